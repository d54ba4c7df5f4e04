package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const lockTimeout = 2 * time.Second

// Sink is an append-only store of events
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// FileSink appends events as JSON lines to a local file. Writes are
// serialized in-process with a mutex and across processes with a lock file
// next to the queue, so every line is written whole.
type FileSink struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
}

// NewFileSink returns a sink appending to path
func NewFileSink(path string) *FileSink {
	return &FileSink{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the queue file path
func (s *FileSink) Path() string {
	return s.path
}

// Append writes event as one JSON line
func (s *FileSink) Append(ctx context.Context, event Event) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create queue directory: %w", err)
	}

	// The local append is never skipped because a caller gave up.
	lockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lockTimeout)
	defer cancel()
	locked, err := s.lock.TryLockContext(lockCtx, 5*time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to lock queue file: %w", err)
	}
	if !locked {
		return fmt.Errorf("failed to lock queue file %s", s.path)
	}
	defer func() { _ = s.lock.Unlock() }()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open queue file: %w", err)
	}

	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("failed to append event: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close queue file: %w", err)
	}
	return nil
}
