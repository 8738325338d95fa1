// Package main is the anima-listener companion process. It connects to
// WhatsApp through whatsmeow, and appends every incoming text message to a
// JSON artifact on disk. The anima daemon supervises this binary and reads
// the artifact through the get_whatsapp_messages tool; the two processes
// never talk to each other directly.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"go.mau.fi/whatsmeow"
	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for session store.
)

func main() {
	var (
		sessionPath  = flag.String("session", "anima-session.db", "path to the WhatsApp session database")
		messagesPath = flag.String("messages", "messages.json", "path to the collected messages artifact")
		verbose      = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})).
		With("component", "listener")

	if err := run(*sessionPath, *messagesPath, logger); err != nil {
		logger.Error("listener failed", "error", err)
		os.Exit(1)
	}
}

func run(sessionPath, messagesPath string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=1&_journal_mode=WAL", sessionPath),
		waLog.Noop)
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}

	device, err := getDevice(ctx, container)
	if err != nil {
		return fmt.Errorf("loading device: %w", err)
	}

	store.SetOSInfo("Anima", [3]uint32{1, 0, 0})
	client := whatsmeow.NewClient(device, waLog.Noop)

	feed, err := openFeed(messagesPath)
	if err != nil {
		return fmt.Errorf("opening messages artifact: %w", err)
	}

	client.AddEventHandler(func(rawEvt interface{}) {
		evt, ok := rawEvt.(*events.Message)
		if !ok {
			return
		}
		handleMessage(evt, feed, logger)
	})

	if client.Store.ID == nil {
		if err := loginWithQR(ctx, client, logger); err != nil {
			return err
		}
	} else {
		if err := client.Connect(); err != nil {
			return fmt.Errorf("connecting: %w", err)
		}
		logger.Info("connected", "jid", client.Store.ID.String())
	}

	<-ctx.Done()
	logger.Info("shutting down")
	client.Disconnect()
	return nil
}

// getDevice returns the first stored device, or creates a fresh one when the
// session store is empty.
func getDevice(ctx context.Context, container *sqlstore.Container) (*store.Device, error) {
	devices, err := container.GetAllDevices(ctx)
	if err != nil {
		return nil, err
	}
	if len(devices) > 0 {
		return devices[0], nil
	}
	return container.NewDevice(), nil
}

// loginWithQR drives the pairing flow for an unregistered device. QR codes
// are printed to stdout so the operator can scan them from the phone.
func loginWithQR(ctx context.Context, client *whatsmeow.Client, logger *slog.Logger) error {
	qrChan, err := client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("requesting QR channel: %w", err)
	}
	if err := client.Connect(); err != nil {
		return fmt.Errorf("connecting: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-qrChan:
			if !ok {
				return nil
			}
			switch evt.Event {
			case "code":
				fmt.Println("Scan this QR code with WhatsApp on your phone:")
				fmt.Println(evt.Code)
			case "success":
				logger.Info("pairing complete")
				return nil
			case "timeout":
				return fmt.Errorf("QR pairing timed out")
			default:
				logger.Debug("qr event", "event", evt.Event)
			}
		}
	}
}

func handleMessage(evt *events.Message, feed *feed, logger *slog.Logger) {
	if evt.Info.IsFromMe {
		return
	}
	if evt.Info.Chat.Server == "broadcast" {
		return
	}

	text := messageText(evt.Message)
	if text == "" {
		return
	}

	sender := evt.Info.PushName
	if sender == "" {
		sender = evt.Info.Sender.String()
	}

	rec := record{
		Sender:    sender,
		Text:      text,
		Timestamp: evt.Info.Timestamp.Format(time.RFC3339),
	}
	if err := feed.append(rec); err != nil {
		logger.Error("recording message", "error", err)
		return
	}
	logger.Debug("message recorded", "sender", sender)
}

// messageText extracts the plain text from a message, covering both simple
// conversations and extended text messages. Media without a caption yields
// an empty string and is skipped.
func messageText(waMsg *waE2E.Message) string {
	if waMsg == nil {
		return ""
	}
	if waMsg.Conversation != nil {
		return waMsg.GetConversation()
	}
	if ext := waMsg.ExtendedTextMessage; ext != nil {
		return ext.GetText()
	}
	return ""
}

// ---------- Messages artifact ----------

type record struct {
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// feed owns the messages.json artifact. Writes go through a temp file and a
// rename so the daemon never observes a partially written file.
type feed struct {
	mu      sync.Mutex
	path    string
	records []record
}

func openFeed(path string) (*feed, error) {
	f := &feed{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &f.records); err != nil {
		// Corrupt or foreign content: start over rather than refusing to run.
		f.records = nil
	}
	return f, nil
}

func (f *feed) append(rec record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.records = append(f.records, rec)

	data, err := json.MarshalIndent(f.records, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".messages-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}
