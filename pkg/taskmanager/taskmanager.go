// Package taskmanager schedules Hisser's housework (merge, downsample,
// cleanup) on goroutines instead of the original implementation's
// forked worker processes, per spec.md §9's explicit re-architecture
// guidance. Ported in shape from original_source/hisser/tasks.py's
// TaskManager and pkg/server/tasks.go's retry/backoff runner.
package taskmanager

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Status records the outcome of the most recent run of a task kind.
type Status struct {
	Running  bool
	LastErr  error
	LastRun  time.Time
	Attempts int
}

// Manager runs at most one worker per named kind at a time, retrying a
// failing task with backoff before giving up for that cycle.
type Manager struct {
	mu      sync.Mutex
	running map[string]bool
	status  map[string]Status

	retries     int
	backoffBase time.Duration
}

// New returns a Manager that retries a failing task up to retries times,
// with exponential backoff starting at backoffBase.
func New(retries int, backoffBase time.Duration) *Manager {
	return &Manager{
		running:     make(map[string]bool),
		status:      make(map[string]Status),
		retries:     retries,
		backoffBase: backoffBase,
	}
}

// IsRunning reports whether a worker of this kind is currently in flight,
// the Go analog of name_is_running.
func (m *Manager) IsRunning(kind string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running[kind]
}

// Status returns the last recorded status for kind.
func (m *Manager) Status(kind string) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status[kind]
}

// Run launches fn as kind's worker if no worker of that kind is already
// running. It blocks the caller only long enough to check/set the
// running flag; fn itself runs in its own goroutine with retry/backoff.
// Returns false if a worker of this kind was already in flight.
func (m *Manager) Run(ctx context.Context, kind string, fn func(context.Context) error) bool {
	m.mu.Lock()
	if m.running[kind] {
		m.mu.Unlock()
		return false
	}
	m.running[kind] = true
	m.mu.Unlock()

	go m.runWithRetry(ctx, kind, fn)
	return true
}

func (m *Manager) runWithRetry(ctx context.Context, kind string, fn func(context.Context) error) {
	defer func() {
		m.mu.Lock()
		m.running[kind] = false
		m.mu.Unlock()
	}()

	backoff := m.backoffBase
	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= m.retries; attempt++ {
		attempts = attempt + 1
		err := fn(ctx)
		if err == nil {
			m.record(kind, Status{Running: false, LastRun: time.Now(), Attempts: attempts})
			return
		}
		lastErr = err
		log.Printf("taskmanager: %s failed (attempt %d/%d): %v", kind, attempt+1, m.retries+1, err)
		if attempt == m.retries {
			break
		}
		select {
		case <-ctx.Done():
			lastErr = fmt.Errorf("%s: cancelled: %w", kind, ctx.Err())
			attempts = attempt + 1
			goto done
		case <-time.After(backoff):
		}
		backoff *= 2
	}
done:
	m.record(kind, Status{Running: false, LastErr: lastErr, LastRun: time.Now(), Attempts: attempts})
}

func (m *Manager) record(kind string, s Status) {
	m.mu.Lock()
	m.status[kind] = s
	m.mu.Unlock()
}
