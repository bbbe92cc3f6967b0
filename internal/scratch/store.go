// Package scratch manages the directory that holds rendered WAV files.
package scratch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

const ext = ".wav"

// Store hands out file paths inside one scratch directory.
type Store struct {
	dir    string
	logger *log.Logger
}

// New creates the scratch directory if needed.
func New(dir string, logger *log.Logger) (*Store, error) {
	if dir == "" {
		return nil, errors.New("scratch directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("unable to create scratch directory: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("unable to resolve scratch directory: %w", err)
	}
	return &Store{dir: abs, logger: logger}, nil
}

// Dir returns the absolute scratch directory.
func (s *Store) Dir() string { return s.dir }

// Allocate returns a fresh id and the path its audio should be written to.
func (s *Store) Allocate() (id, path string) {
	id = uuid.NewString()
	return id, filepath.Join(s.dir, id+ext)
}

// Path returns the file path for an id, or false if id is not one of ours.
func (s *Store) Path(id string) (string, bool) {
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return filepath.Join(s.dir, id+ext), true
}

// Remove deletes one file. A file that is already gone is not an error.
func (s *Store) Remove(path string) error {
	if !s.owns(path) {
		return fmt.Errorf("refusing to remove %s: outside scratch directory", path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("unable to remove audio file: %w", err)
	}
	return nil
}

// Sweep removes every audio file except the ones listed in keep.
// It returns the number of files removed and the bytes freed.
func (s *Store) Sweep(keep ...string) (int, int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, 0, fmt.Errorf("unable to read scratch directory: %w", err)
	}

	skip := make(map[string]bool, len(keep))
	for _, k := range keep {
		skip[filepath.Clean(k)] = true
	}

	var removed int
	var freed int64
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !(strings.HasSuffix(name, ext) || strings.HasSuffix(name, ext+".tmp")) {
			continue
		}
		path := filepath.Join(s.dir, name)
		if skip[path] {
			continue
		}
		info, err := e.Info()
		if err == nil {
			freed += info.Size()
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("unable to remove orphaned audio", "path", path, "err", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info("removed orphaned audio", "files", removed, "size", humanize.Bytes(uint64(freed))) //nolint:gosec
	}
	return removed, freed, nil
}

// Watch reports audio files removed from the scratch directory by anyone,
// including this process, until ctx is done.
func (s *Store) Watch(ctx context.Context, onRemove func(path string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to create watcher: %w", err)
	}
	defer w.Close() //nolint:errcheck

	if err := w.Add(s.dir); err != nil {
		return fmt.Errorf("unable to watch %s: %w", s.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(ev.Name, ext) {
				continue
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				s.logger.Debug("audio file removed", "path", ev.Name)
				onRemove(ev.Name)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("scratch watcher error", "err", err)
		}
	}
}

func (s *Store) owns(path string) bool {
	rel, err := filepath.Rel(s.dir, filepath.Clean(path))
	return err == nil && !strings.HasPrefix(rel, "..") && !strings.Contains(rel, string(filepath.Separator))
}
