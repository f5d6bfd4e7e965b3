package mapping

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"portal_analysis_backend/platform/logger"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 250 * time.Millisecond

// Source hands out the vocabulary in effect right now.
type Source interface {
	Current() *Tables
}

// Static is a Source that never changes.
type Static struct{ T *Tables }

// Current returns the wrapped tables.
func (s Static) Current() *Tables { return s.T }

// Store swaps whole Tables values atomically so a reconciliation never sees a
// half-applied reload.
type Store struct {
	current atomic.Pointer[Tables]
	path    string
	log     *logger.Logger
}

// NewStore loads path when set, otherwise serves the defaults.
func NewStore(path string, log *logger.Logger) (*Store, error) {
	s := &Store{path: path, log: log}
	if path == "" {
		s.current.Store(Default())
		return s, nil
	}
	t, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	s.current.Store(t)
	return s, nil
}

// Current returns the active tables.
func (s *Store) Current() *Tables {
	return s.current.Load()
}

// Reload re-reads the backing file. On error the previous tables stay active.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	t, err := LoadFile(s.path)
	if err != nil {
		return err
	}
	s.current.Store(t)
	return nil
}

// Watch reloads the tables whenever the backing file changes, until ctx is
// done. The parent directory is watched because editors and config
// management replace files instead of writing in place.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	target := filepath.Clean(s.path)
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	reload := func() {
		if err := s.Reload(); err != nil {
			s.log.Warn("mapping: reload failed, keeping previous tables", "path", s.path, "error", err)
			return
		}
		s.log.Info("mapping: tables reloaded", "path", s.path)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(reloadDebounce, reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("mapping: watch error", "error", err)
		}
	}
}
