// Package instructions holds the process-wide supplementary instruction text
// appended to every generation request.
package instructions

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/af-corp/appgen-gateway/internal/telemetry"
)

// Store serves an immutable snapshot of the instructions. Reloads replace
// the snapshot wholesale; a request racing a reload sees either version.
type Store struct {
	source   Source
	fallback string
	metrics  *telemetry.Metrics
	current  atomic.Pointer[string]

	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
}

// NewStore returns a store serving fallback until the first Reload.
func NewStore(source Source, fallback string, metrics *telemetry.Metrics) *Store {
	s := &Store{source: source, fallback: fallback, metrics: metrics}
	s.current.Store(&fallback)
	return s
}

// Current returns the active instruction text.
func (s *Store) Current() string {
	return *s.current.Load()
}

// Reload loads the source and swaps in the result. A load failure is logged
// and replaces the text with the fallback; it is never returned.
func (s *Store) Reload(ctx context.Context) string {
	text, err := s.source.Load(ctx)
	if err != nil {
		slog.Error("failed to load instructions, using fallback",
			"source", s.source.Name(),
			"error", err,
		)
		s.metrics.RecordInstructionsReload("fallback")
		text = s.fallback
	} else {
		s.metrics.RecordInstructionsReload("ok")
		slog.Info("instructions loaded", "source", s.source.Name(), "bytes", len(text))
	}
	s.current.Store(&text)
	return text
}

// WatchFile reloads whenever path is written, created or renamed into place.
// The parent directory is watched so editors that replace files still work.
func (s *Store) WatchFile(path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch instructions dir %s: %w", dir, err)
	}
	s.watcher = watcher
	target := filepath.Clean(path)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
					s.Reload(context.Background())
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("fsnotify error", "error", err)
			}
		}
	}()
	return nil
}

// Close stops the file watcher, if one was started, and waits for it to exit.
func (s *Store) Close() error {
	if s.watcher == nil {
		return nil
	}
	err := s.watcher.Close()
	s.wg.Wait()
	return err
}
