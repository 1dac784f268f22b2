package state

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Myudi422/youtube-telegram-downloader/core/media"
)

func TestManagerLazyIdleSession(t *testing.T) {
	m := NewManager(NewMemoryStore())
	s, err := m.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, s.State)
	assert.Empty(t, s.PendingURL)
}

func TestManagerUpdateFailureKeepsStoredSession(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore())
	_, err := m.Update(ctx, 1, func(s *Session) error {
		s.State = StateAwaitingOutput
		s.PendingURL = "https://youtu.be/a"
		return nil
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	got, err := m.Update(ctx, 1, func(s *Session) error {
		s.PendingURL = "half-written"
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "https://youtu.be/a", got.PendingURL)

	stored, err := m.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "https://youtu.be/a", stored.PendingURL)
	assert.False(t, stored.UpdatedAt.IsZero())
}

func TestManagerSerializesSameUser(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore())

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Update(ctx, 7, func(s *Session) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					cur := atomic.LoadInt32(&maxInside)
					if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				s.PendingURL += "x"
				atomic.AddInt32(&inside, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInside))
	s, err := m.Get(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, s.PendingURL, 20)
	m.mu.Lock()
	assert.Empty(t, m.locks, "locks must be released once idle")
	m.mu.Unlock()
}

func TestManagerDifferentUsersDoNotBlock(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore())

	entered := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_, _ = m.Update(ctx, 1, func(*Session) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	done := make(chan struct{})
	go func() {
		_, _ = m.Update(ctx, 2, func(s *Session) error { s.PendingURL = "u"; return nil })
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("user 2 blocked behind user 1")
	}
	close(release)
}

func TestManagerResetHonoursOwner(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore())
	_, err := m.Update(ctx, 5, func(s *Session) error {
		s.State = StateDownloading
		s.PendingURL = "https://youtu.be/a"
		s.OutputKind = media.KindAudio
		s.RequestID = "req-1"
		return nil
	})
	require.NoError(t, err)

	ok, err := m.Reset(ctx, 5, "req-other")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = m.Reset(ctx, 5, "req-1")
	require.NoError(t, err)
	assert.True(t, ok)

	s, err := m.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, s.State)
	assert.Empty(t, s.PendingURL)
	assert.Empty(t, s.OutputKind)
	assert.Empty(t, s.RequestID)
}

func TestManagerResetDeletesRecord(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := NewManager(store)
	_, err := m.Update(ctx, 8, func(s *Session) error {
		s.State = StateAwaitingOutput
		s.PendingURL = "https://youtu.be/a"
		return nil
	})
	require.NoError(t, err)

	ok, err := m.Reset(ctx, 8, "")
	require.NoError(t, err)
	assert.True(t, ok)

	_, found, err := store.Load(ctx, 8)
	require.NoError(t, err)
	assert.False(t, found)

	stats, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Empty(t, stats)
}

func TestMemoryStoreCopiesOfferedFormats(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	offered := []string{"18", "22"}
	require.NoError(t, store.Save(ctx, 1, Session{State: StateAwaitingFormat, Formats: offered}))
	offered[0] = "mutated"

	s, ok, err := store.Load(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"18", "22"}, s.Formats)
}

func TestMemoryStoreResetActiveAndStats(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Save(ctx, 1, Session{State: StateDownloading, RequestID: "a"}))
	require.NoError(t, store.Save(ctx, 2, Session{State: StateUploading, RequestID: "b"}))
	require.NoError(t, store.Save(ctx, 3, Session{State: StateAwaitingOutput, PendingURL: "u"}))

	n, err := store.ResetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[State]int{StateAwaitingOutput: 1}, stats)

	_, ok, err := store.Load(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Delete(ctx, 3))
	_, ok, err = store.Load(ctx, 3)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestToRowDefaultsState(t *testing.T) {
	row := toRow(99, Session{PendingURL: "u"})
	assert.Equal(t, int64(99), row.UserID)
	assert.Equal(t, string(StateIdle), row.State)
}

func TestRowRoundTripsFormatChoice(t *testing.T) {
	in := Session{State: StateAwaitingFormat, PendingURL: "u", FormatID: "22", Formats: []string{"18", "22"}}
	row := toRow(1, in)
	assert.Equal(t, "18,22", row.OfferedFormats)
	out := row.session()
	assert.Equal(t, "22", out.FormatID)
	assert.Equal(t, []string{"18", "22"}, out.Formats)

	assert.Nil(t, toRow(1, Session{}).session().Formats)
}
