package taskmanager

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRefusesConcurrentSameKind(t *testing.T) {
	m := New(1, time.Millisecond)
	started := make(chan struct{})
	release := make(chan struct{})

	ok1 := m.Run(context.Background(), "merge", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	require.True(t, ok1)
	<-started

	ok2 := m.Run(context.Background(), "merge", func(ctx context.Context) error { return nil })
	assert.False(t, ok2)

	close(release)
	waitUntilNotRunning(t, m, "merge")
}

func TestRunRetriesThenRecordsError(t *testing.T) {
	m := New(2, time.Millisecond)
	var calls int32
	m.Run(context.Background(), "cleanup", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("boom")
	})

	waitUntilNotRunning(t, m, "cleanup")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls)) // initial + 2 retries
	status := m.Status("cleanup")
	require.Error(t, status.LastErr)
	assert.Equal(t, 3, status.Attempts)
}

func waitUntilNotRunning(t *testing.T, m *Manager, kind string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if !m.IsRunning(kind) {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("%s still running after deadline", kind)
}
