package notify

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/SusuLegend/anima-project/pkg/anima/assistant"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

type captureNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (n *captureNotifier) Notify(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
	return nil
}

func (n *captureNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.texts...)
}

func pollerFixture(t *testing.T, mailResult any) (*Poller, *captureNotifier) {
	t.Helper()
	reg := assistant.NewRegistry()
	err := reg.Register(assistant.ToolDescriptor{Name: "get_gmail"}, func(context.Context, map[string]any) (any, error) {
		return mailResult, nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	dispatcher := assistant.NewDispatcher(reg, testLogger())
	notifier := &captureNotifier{}
	return NewPoller(dispatcher, notifier, []string{"get_gmail"}, "", testLogger()), notifier
}

func TestSweepAnnouncesNewItems(t *testing.T) {
	p, notifier := pollerFixture(t, []map[string]any{
		{"subject": "Build green", "sender": "ci@example.com"},
	})

	p.sweep()

	texts := notifier.all()
	if len(texts) != 1 {
		t.Fatalf("got %d notifications", len(texts))
	}
	if !strings.Contains(texts[0], "get_gmail") || !strings.Contains(texts[0], "Build green") {
		t.Errorf("notification = %q", texts[0])
	}
}

func TestSweepSkipsNothingNewSentinel(t *testing.T) {
	p, notifier := pollerFixture(t, "no new messages")

	p.sweep()

	if texts := notifier.all(); len(texts) != 0 {
		t.Errorf("sentinel should not be announced, got %v", texts)
	}
}

func TestSweepSurvivesUnknownTool(t *testing.T) {
	reg := assistant.NewRegistry()
	dispatcher := assistant.NewDispatcher(reg, testLogger())
	notifier := &captureNotifier{}
	p := NewPoller(dispatcher, notifier, []string{"not_registered"}, "", testLogger())

	p.sweep()

	if texts := notifier.all(); len(texts) != 0 {
		t.Errorf("failed poll should not notify, got %v", texts)
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	reg := assistant.NewRegistry()
	dispatcher := assistant.NewDispatcher(reg, testLogger())
	p := NewPoller(dispatcher, &captureNotifier{}, nil, "not a schedule", testLogger())

	if err := p.Start(); err == nil {
		t.Fatal("expected schedule parse error")
	}
}

func TestStartAndStopWithValidSchedule(t *testing.T) {
	p, _ := pollerFixture(t, "no new messages")
	if err := p.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	p.Stop()
}
