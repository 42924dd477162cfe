// Package watcher ingests knowledge-base files as they appear or change.
package watcher

import (
	"context"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"ragchat/internal/domain"
)

// IngestFunc adds files to the vector store.
type IngestFunc func(ctx context.Context, paths []string) (domain.IngestReport, error)

type Config struct {
	// Supports filters the paths worth ingesting, typically by extension.
	Supports func(path string) bool
	Ingest   IngestFunc
	// Debounce collects bursts of events into one ingestion.
	Debounce time.Duration
	Logger   zerolog.Logger
}

// Watcher monitors one directory (not recursively).
type Watcher struct {
	fs  *fsnotify.Watcher
	cfg Config
	log zerolog.Logger
}

func New(cfg Config) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	if cfg.Supports == nil {
		cfg.Supports = func(string) bool { return true }
	}
	return &Watcher{fs: w, cfg: cfg, log: cfg.Logger.With().Str("component", "watcher").Logger()}, nil
}

// Run watches dir until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context, dir string) error {
	if err := w.fs.Add(dir); err != nil {
		return err
	}
	w.log.Info().Str("dir", dir).Msg("watching knowledge base")

	pending := map[string]struct{}{}
	timer := time.NewTimer(w.cfg.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !w.cfg.Supports(event.Name) {
				continue
			}
			pending[event.Name] = struct{}{}
			timer.Reset(w.cfg.Debounce)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watch error")
		case <-timer.C:
			w.flush(ctx, pending)
			pending = map[string]struct{}{}
		}
	}
}

func (w *Watcher) flush(ctx context.Context, pending map[string]struct{}) {
	if len(pending) == 0 {
		return
	}
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	report, err := w.cfg.Ingest(ctx, paths)
	if err != nil {
		w.log.Error().Err(err).Strs("paths", paths).Msg("ingest of changed files failed")
		return
	}
	w.log.Info().
		Strs("paths", paths).
		Int("documents", report.Documents).
		Int("stored", report.Stored).
		Msg("ingested changed files")
}

func (w *Watcher) Close() error {
	return w.fs.Close()
}
