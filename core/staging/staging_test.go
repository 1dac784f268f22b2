package staging

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestAcquireAndRelease(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	f, err := s.Acquire()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Dir(), f.ID), f.Stem)
	assert.Equal(t, f.Stem+".%(ext)s", f.Pattern)
	assert.Equal(t, f.Stem+".mp3", f.Path(".mp3"))

	for _, ext := range []string{"mp3", "webm", "jpg", "webm.part"} {
		require.NoError(t, os.WriteFile(f.Path(ext), []byte("x"), 0o644))
	}
	other, err := s.Acquire()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(other.Path("mp4"), []byte("x"), 0o644))

	require.NoError(t, f.Release())
	left, _ := filepath.Glob(f.Stem + "*")
	assert.Empty(t, left)
	assert.FileExists(t, other.Path("mp4"))

	// releasing twice or before anything was written is not an error
	assert.NoError(t, f.Release())
	var nilFile *File
	assert.NoError(t, nilFile.Release())
}

func TestReleaseWithPatternCharsInDir(t *testing.T) {
	for _, name := range []string{"media[1]", "a*b", "what?"} {
		t.Run(name, func(t *testing.T) {
			s, err := New(filepath.Join(t.TempDir(), name))
			require.NoError(t, err)

			f, err := s.Acquire()
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(f.Path("mp3"), []byte("x"), 0o644))
			require.NoError(t, os.WriteFile(f.Path("jpg"), []byte("x"), 0o644))

			got, err := Siblings(f.Stem)
			require.NoError(t, err)
			assert.Equal(t, []string{f.Path("jpg"), f.Path("mp3")}, got)

			require.NoError(t, f.Release())
			assert.NoFileExists(t, f.Path("mp3"))
			assert.NoFileExists(t, f.Path("jpg"))
		})
	}
}

func TestSiblingsMissingDir(t *testing.T) {
	got, err := Siblings(filepath.Join(t.TempDir(), "gone", "stem"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNewRejectsEmptyDir(t *testing.T) {
	_, err := New("  ")
	assert.Error(t, err)
}

func TestConcurrentAcquireIsUnique(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	const n = 64
	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		paths = make(map[string]struct{}, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f, err := s.Acquire()
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			paths[f.Stem] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, paths, n)
}

func TestAcquireNeverRepeats(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(2, 50).Draw(t, "n")
		seen := make(map[string]bool, n)
		for i := 0; i < n; i++ {
			f, err := s.Acquire()
			if err != nil {
				t.Fatalf("acquire: %v", err)
			}
			if seen[f.Stem] {
				t.Fatalf("duplicate stem %s", f.Stem)
			}
			seen[f.Stem] = true
		}
	})
}

func TestSweepRemovesOnlyStaleFiles(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	stale := filepath.Join(s.Dir(), "old.mp3")
	fresh := filepath.Join(s.Dir(), "new.mp3")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o644))
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, past, past))
	require.NoError(t, os.Mkdir(filepath.Join(s.Dir(), "sub"), 0o755))

	n, err := s.Sweep(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)
	assert.DirExists(t, filepath.Join(s.Dir(), "sub"))
}
