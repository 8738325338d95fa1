// Package supervisor keeps exactly one companion listener process alive:
// atomic start under concurrent callers, graceful stop with a bounded grace
// period, and a heartbeat loop that detects death and restarts the process
// without ever running two instances.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

const (
	// DefaultHeartbeatInterval is the liveness check period.
	DefaultHeartbeatInterval = 30 * time.Second

	// DefaultStopGrace is how long Stop waits after SIGTERM before
	// force-killing.
	DefaultStopGrace = 5 * time.Second
)

// ErrStopTimeout is returned when a process survives both SIGTERM and the
// follow-up SIGKILL within the grace window.
var ErrStopTimeout = errors.New("process stop timed out")

// Config describes the companion process to supervise.
type Config struct {
	// Command is the executable to spawn.
	Command string `yaml:"command"`

	// Args are passed to the executable.
	Args []string `yaml:"args"`

	// Dir is the process's own working directory.
	Dir string `yaml:"dir"`

	// LogPath receives the process's combined stdout/stderr, appended
	// and size-rotated. Empty means discard.
	LogPath string `yaml:"log_path"`

	// LogMaxBytes is the rotation threshold for LogPath.
	LogMaxBytes int64 `yaml:"log_max_bytes"`

	// HeartbeatInterval overrides the 30s liveness check period.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// StopGrace overrides the 5s termination grace period.
	StopGrace time.Duration `yaml:"stop_grace"`
}

// Health is the supervisor's externally visible state. PID is nil while
// nothing runs, so the wire form carries an explicit "pid": null.
type Health struct {
	Running      bool `json:"running"`
	PID          *int `json:"pid"`
	RestartCount int  `json:"restart_count"`
}

// process is the handle for one spawned instance. done is closed by the
// reaper goroutine when the process exits, making liveness a non-blocking
// channel check.
type process struct {
	pid       int
	startedAt time.Time
	cmd       *exec.Cmd
	done      chan struct{}
}

func (p *process) alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Supervisor owns the lifecycle of one background companion process.
// All mutations of the tracked process and the restart counter go through
// one mutex, so concurrent Start calls collapse to at most one live
// instance and no restart increment is lost or duplicated.
type Supervisor struct {
	cfg    Config
	logger *slog.Logger
	sink   *LogSink

	mu           sync.Mutex
	proc         *process
	restartCount int
}

// New creates a supervisor for the configured companion process.
func New(cfg Config, logger *slog.Logger) (*Supervisor, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("supervisor: empty command")
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = DefaultStopGrace
	}

	var sink *LogSink
	if cfg.LogPath != "" {
		var err error
		sink, err = NewLogSink(cfg.LogPath, cfg.LogMaxBytes)
		if err != nil {
			return nil, fmt.Errorf("supervisor: %w", err)
		}
	}

	return &Supervisor{
		cfg:    cfg,
		logger: logger.With("component", "supervisor"),
		sink:   sink,
	}, nil
}

// Start launches the companion process. It is a no-op when a live instance
// is already tracked; the check and the spawn happen under one lock, so
// concurrent callers cannot race a duplicate launch.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked()
}

func (s *Supervisor) startLocked() error {
	if s.proc != nil && s.proc.alive() {
		return nil
	}
	// A tracked-but-dead process means this launch is a restart, whether
	// it came from the heartbeat or from an ad-hoc caller.
	isRestart := s.proc != nil

	cmd := exec.Command(s.cfg.Command, s.cfg.Args...)
	cmd.Dir = s.cfg.Dir
	if s.sink != nil {
		cmd.Stdout = s.sink
		cmd.Stderr = s.sink
	}
	cmd.Stdin = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launching %s: %w", s.cfg.Command, err)
	}

	p := &process{
		pid:       cmd.Process.Pid,
		startedAt: time.Now(),
		cmd:       cmd,
		done:      make(chan struct{}),
	}
	go func() {
		_ = cmd.Wait()
		close(p.done)
	}()
	s.proc = p
	if isRestart {
		s.restartCount++
		s.logger.Info("listener restarted", "pid", p.pid, "count", s.restartCount)
	} else {
		s.logger.Info("listener started", "pid", p.pid)
	}
	return nil
}

// Stop terminates the tracked process: SIGTERM, then SIGKILL after the
// grace period. Stopping when nothing runs is a no-op. The tracked state
// is cleared either way.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.proc
	if p == nil || !p.alive() {
		s.proc = nil
		return nil
	}

	_ = p.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-p.done:
		s.logger.Info("listener terminated", "pid", p.pid)
	case <-time.After(s.cfg.StopGrace):
		s.logger.Warn("listener ignored SIGTERM, killing", "pid", p.pid)
		_ = p.cmd.Process.Kill()
		select {
		case <-p.done:
		case <-time.After(time.Second):
			s.proc = nil
			return fmt.Errorf("pid %d: %w", p.pid, ErrStopTimeout)
		}
	}
	s.proc = nil
	return nil
}

// Health reports the current state. Pure read, no side effects.
func (s *Supervisor) Health() Health {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := Health{RestartCount: s.restartCount}
	if s.proc != nil && s.proc.alive() {
		pid := s.proc.pid
		h.Running = true
		h.PID = &pid
	}
	return h
}

// Run starts the process and drives the heartbeat loop until the context
// is cancelled, then stops the process. The heartbeat task never outlives
// the supervisor's lifetime.
func (s *Supervisor) Run(ctx context.Context) {
	if err := s.Start(); err != nil {
		// Launch failures are retried on the next tick; dependent tools
		// see "starting" in the meantime.
		s.logger.Error("initial launch failed", "error", err)
	}

	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := s.Stop(); err != nil {
				s.logger.Error("shutdown stop failed", "error", err)
			}
			if s.sink != nil {
				_ = s.sink.Close()
			}
			s.logger.Info("supervisor stopped")
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick performs one liveness check. A dead process triggers a relaunch;
// startLocked moves the restart counter by exactly one per successful
// relaunch.
func (s *Supervisor) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.proc != nil && s.proc.alive() {
		s.logger.Info("heartbeat ok", "pid", s.proc.pid)
		return
	}

	s.logger.Warn("listener not running, attempting restart")
	if err := s.startLocked(); err != nil {
		s.logger.Error("restart failed", "error", err)
	}
}
