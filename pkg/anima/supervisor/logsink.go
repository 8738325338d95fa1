// Package supervisor – logsink.go provides the append-only, size-rotated
// file sink that captures the companion process's stdout and stderr.
package supervisor

import (
	"fmt"
	"os"
	"sync"
)

// DefaultLogMaxBytes is the rotation threshold when none is configured.
const DefaultLogMaxBytes int64 = 5 << 20 // 5 MiB

// LogSink is an io.Writer that appends to a file and rotates it to
// "<path>.1" once it grows past maxBytes. One previous generation is kept.
type LogSink struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
	file     *os.File
	size     int64
}

// NewLogSink opens (or creates) the sink file in append mode.
func NewLogSink(path string, maxBytes int64) (*LogSink, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultLogMaxBytes
	}
	s := &LogSink{path: path, maxBytes: maxBytes}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *LogSink) open() error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log sink: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log sink: %w", err)
	}
	s.file = f
	s.size = info.Size()
	return nil
}

// Write appends to the sink, rotating first when the file is full. A sink
// left without a file after a failed rotation tries to reopen; when that
// fails too, the chunk is dropped rather than breaking the child's pipe.
func (s *LogSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		if err := s.open(); err != nil {
			return len(p), nil
		}
	}

	if s.size+int64(len(p)) > s.maxBytes {
		// Rotation failure must not lose process output; keep appending
		// to the oversized file while one is still open.
		if err := s.rotateLocked(); err != nil && s.file == nil {
			return len(p), nil
		}
	}

	n, err := s.file.Write(p)
	s.size += int64(n)
	return n, err
}

func (s *LogSink) rotateLocked() error {
	if err := s.file.Close(); err != nil {
		return err
	}
	s.file = nil
	if err := os.Rename(s.path, s.path+".1"); err != nil {
		// Reopen so writes keep flowing even if rename failed.
		_ = s.open()
		return err
	}
	return s.open()
}

// Close closes the underlying file.
func (s *LogSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
