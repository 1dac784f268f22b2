// Package staging hands out collision-free scratch paths for downloads and
// removes everything produced under them once a delivery ends.
package staging

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Myudi422/youtube-telegram-downloader/core/logger"
)

// Stager owns a scratch directory shared by all concurrent deliveries.
type Stager struct {
	dir string
}

// New creates the staging directory if needed.
func New(dir string) (*Stager, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("staging: empty directory")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("staging: resolve %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("staging: create %s: %w", abs, err)
	}
	return &Stager{dir: abs}, nil
}

// Dir returns the absolute staging directory.
func (s *Stager) Dir() string { return s.dir }

// File is one acquired staging slot. Every artifact of a delivery lives
// under Stem: the converted media, intermediates and the thumbnail.
type File struct {
	ID      string
	Stem    string
	Pattern string
}

// Acquire reserves a fresh slot named by a random uuid.
func (s *Stager) Acquire() (*File, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("staging: generate id: %w", err)
	}
	stem := filepath.Join(s.dir, id.String())
	return &File{
		ID:      id.String(),
		Stem:    stem,
		Pattern: stem + ".%(ext)s",
	}, nil
}

// Path returns the artifact path for ext.
func (f *File) Path(ext string) string {
	return f.Stem + "." + strings.TrimPrefix(ext, ".")
}

// Release removes every file sharing the slot's stem. Missing files are fine.
func (f *File) Release() error {
	if f == nil || f.Stem == "" {
		return nil
	}
	matches, err := Siblings(f.Stem)
	if err != nil {
		return fmt.Errorf("staging: list %s: %w", f.Stem, err)
	}
	var errs []error
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("staging: release %s: %w", f.ID, errors.Join(errs...))
	}
	return nil
}

// Siblings lists the regular files in stem's directory whose name starts
// with stem's base name, sorted. The directory is read, not globbed, so
// '[', '*' or '?' in its path match literally.
func Siblings(stem string) ([]string, error) {
	dir, base := filepath.Split(stem)
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), base) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out, nil
}

// Sweep deletes regular files older than maxAge, left behind by a crash.
func (s *Stager) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("staging: sweep %s: %w", s.dir, err)
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	var errs []error
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	logger.Info(ctx, "staging", "staging.sweep",
		slog.String("path", s.dir),
		slog.Int("removed", removed),
	)
	return removed, errors.Join(errs...)
}
