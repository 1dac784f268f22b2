package serial

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestExecutorKeepsOrderPerKey(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e := New(Options{QueueSize: 64})
		n := rapid.IntRange(1, 50).Draw(t, "jobs")

		var mu sync.Mutex
		var got []int
		for i := 0; i < n; i++ {
			i := i
			if err := e.Submit(1, func() {
				mu.Lock()
				got = append(got, i)
				mu.Unlock()
			}); err != nil {
				t.Fatalf("submit %d: %v", i, err)
			}
		}
		if err := e.Close(context.Background()); err != nil {
			t.Fatalf("close: %v", err)
		}
		for i, v := range got {
			if v != i {
				t.Fatalf("job %d ran at position %d", v, i)
			}
		}
		if len(got) != n {
			t.Fatalf("ran %d of %d jobs", len(got), n)
		}
	})
}

func TestExecutorRunsKeysConcurrently(t *testing.T) {
	e := New(Options{})
	release := make(chan struct{})
	done := make(chan struct{})

	require.NoError(t, e.Submit(1, func() { <-release }))
	require.NoError(t, e.Submit(2, func() { close(done) }))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("key 2 was blocked by key 1")
	}
	close(release)
	require.NoError(t, e.Close(context.Background()))
}

func TestExecutorQueueFull(t *testing.T) {
	e := New(Options{QueueSize: 1})
	release := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, e.Submit(7, func() { close(started); <-release }))
	<-started
	require.NoError(t, e.Submit(7, func() {}))
	assert.ErrorIs(t, e.Submit(7, func() {}), ErrQueueFull)

	close(release)
	require.NoError(t, e.Close(context.Background()))
	assert.ErrorIs(t, e.Submit(7, func() {}), ErrClosed)
}

func TestExecutorIdleActorExits(t *testing.T) {
	e := New(Options{IdleTimeout: 10 * time.Millisecond})
	var ran atomic.Bool
	require.NoError(t, e.Submit(3, func() { ran.Store(true) }))

	assert.Eventually(t, func() bool { return e.Active() == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, ran.Load())

	require.NoError(t, e.Submit(3, func() {}))
	require.NoError(t, e.Close(context.Background()))
}

func TestExecutorSurvivesPanics(t *testing.T) {
	e := New(Options{})
	var after atomic.Bool
	require.NoError(t, e.Submit(9, func() { panic("boom") }))
	require.NoError(t, e.Submit(9, func() { after.Store(true) }))
	require.NoError(t, e.Close(context.Background()))
	assert.True(t, after.Load())
}
