package supervisor

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func sleeperSupervisor(t *testing.T) *Supervisor {
	t.Helper()
	s, err := New(Config{
		Command:           "sleep",
		Args:              []string{"60"},
		HeartbeatInterval: 50 * time.Millisecond,
		StopGrace:         time.Second,
	}, testLogger())
	if err != nil {
		t.Fatalf("new supervisor: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

// pidOf unwraps Health.PID, zero when nothing runs.
func pidOf(h Health) int {
	if h.PID == nil {
		return 0
	}
	return *h.PID
}

// waitDead blocks until the tracked process's reaper has observed exit.
func waitDead(t *testing.T, s *Supervisor) {
	t.Helper()
	s.mu.Lock()
	p := s.proc
	s.mu.Unlock()
	if p == nil {
		t.Fatal("no tracked process")
	}
	select {
	case <-p.done:
	case <-time.After(5 * time.Second):
		t.Fatal("process did not die")
	}
}

func TestStartIsIdempotentWhileRunning(t *testing.T) {
	s := sleeperSupervisor(t)

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	h1 := s.Health()
	if !h1.Running || pidOf(h1) == 0 {
		t.Fatalf("expected running process, got %+v", h1)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("second start: %v", err)
	}
	h2 := s.Health()
	if pidOf(h2) != pidOf(h1) {
		t.Errorf("second start must not spawn: pid %d != %d", pidOf(h2), pidOf(h1))
	}
	if h2.RestartCount != 0 {
		t.Errorf("restart count changed: %d", h2.RestartCount)
	}
}

func TestHeartbeatRestartsDeadProcess(t *testing.T) {
	s := sleeperSupervisor(t)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	oldPID := pidOf(s.Health())

	// Kill the process out from under the supervisor.
	if err := syscall.Kill(oldPID, syscall.SIGKILL); err != nil {
		t.Fatalf("kill: %v", err)
	}
	waitDead(t, s)

	s.tick()

	h := s.Health()
	if !h.Running {
		t.Fatal("expected process restarted")
	}
	if pidOf(h) == oldPID {
		t.Error("expected a new pid after restart")
	}
	if h.RestartCount != 1 {
		t.Errorf("expected restart_count=1, got %d", h.RestartCount)
	}

	// A healthy tick must not touch the counter.
	s.tick()
	if got := s.Health().RestartCount; got != 1 {
		t.Errorf("healthy tick changed restart_count to %d", got)
	}
}

func TestConcurrentStartsConverge(t *testing.T) {
	s := sleeperSupervisor(t)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	pid := pidOf(s.Health())
	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil {
		t.Fatalf("kill: %v", err)
	}
	waitDead(t, s)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Start()
		}()
	}
	wg.Wait()

	h := s.Health()
	if !h.Running {
		t.Fatal("expected one live process")
	}
	if h.RestartCount != 1 {
		t.Errorf("expected exactly one restart increment, got %d", h.RestartCount)
	}
}

func TestStopClearsTrackedState(t *testing.T) {
	s := sleeperSupervisor(t)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	h := s.Health()
	if h.Running || h.PID != nil {
		t.Errorf("expected stopped state, got %+v", h)
	}

	// Stop with nothing tracked is a no-op.
	if err := s.Stop(); err != nil {
		t.Errorf("stop on stopped supervisor: %v", err)
	}
}

func TestHealthWireFormat(t *testing.T) {
	// A stopped listener reports an explicit null pid, not an absent key.
	stopped, err := json.Marshal(Health{RestartCount: 3})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got := string(stopped); got != `{"running":false,"pid":null,"restart_count":3}` {
		t.Errorf("stopped health = %s", got)
	}

	pid := 1234
	running, err := json.Marshal(Health{Running: true, PID: &pid, RestartCount: 1})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got := string(running); got != `{"running":true,"pid":1234,"restart_count":1}` {
		t.Errorf("running health = %s", got)
	}
}

func TestRunLifecycle(t *testing.T) {
	s := sleeperSupervisor(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !s.Health().Running {
		if time.Now().After(deadline) {
			t.Fatal("process never started")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if s.Health().Running {
		t.Error("process still running after shutdown")
	}
}

func TestLaunchFailureIsRetriableNotFatal(t *testing.T) {
	s, err := New(Config{
		Command:           filepath.Join(t.TempDir(), "missing-binary"),
		HeartbeatInterval: 50 * time.Millisecond,
	}, testLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.Start(); err == nil {
		t.Fatal("expected launch error")
	}
	h := s.Health()
	if h.Running || h.RestartCount != 0 {
		t.Errorf("expected clean state after failed launch, got %+v", h)
	}
	// The tick path swallows the error and retries later.
	s.tick()
}

func TestLogSinkRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "listener.log")

	sink, err := NewLogSink(path, 64)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	defer sink.Close()

	line := strings.Repeat("x", 30) + "\n"
	for i := 0; i < 5; i++ {
		if _, err := sink.Write([]byte(line)); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	if _, err := os.Stat(path + ".1"); err != nil {
		t.Errorf("expected rotated generation: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat current: %v", err)
	}
	if info.Size() > 64 {
		t.Errorf("current file exceeds threshold: %d bytes", info.Size())
	}
}

func TestLogSinkSurvivesLostFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "listener.log")

	sink, err := NewLogSink(path, 64)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	defer sink.Close()

	// Simulate a rotation that closed the file but could not reopen it.
	sink.mu.Lock()
	_ = sink.file.Close()
	sink.file = nil
	sink.mu.Unlock()

	// The next write reopens the sink instead of dereferencing nil.
	if _, err := sink.Write([]byte("after rotation failure\n")); err != nil {
		t.Fatalf("write after lost file: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "after rotation failure") {
		t.Errorf("output lost: %q", data)
	}

	// When the path itself is gone, writes are dropped without error so
	// the child's stdout pipe stays usable.
	sink.mu.Lock()
	_ = sink.file.Close()
	sink.file = nil
	sink.path = filepath.Join(dir, "missing-subdir", "listener.log")
	sink.mu.Unlock()

	n, err := sink.Write([]byte("dropped\n"))
	if err != nil {
		t.Fatalf("write to unopenable sink: %v", err)
	}
	if n != len("dropped\n") {
		t.Errorf("short write breaks the pipe: n=%d", n)
	}
}
