// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package config

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/knadh/koanf/providers/file"
	"github.com/rs/zerolog"

	"github.com/zhengbinger/bing-frame-sub000/internal/logging"
)

// FileWatcher reports edits to the loaded config file. It satisfies
// dynconfig.DriftDetector and runs as a supervised service.
type FileWatcher struct {
	path     string
	provider *file.File
	changed  atomic.Bool
	events   atomic.Int64
	logger   zerolog.Logger
}

// NewFileWatcher watches path. The file must exist when Serve starts.
func NewFileWatcher(path string) *FileWatcher {
	return &FileWatcher{
		path:     path,
		provider: file.Provider(path),
		logger:   logging.WithComponent("config-watch"),
	}
}

// Serve watches until ctx is canceled.
func (w *FileWatcher) Serve(ctx context.Context) error {
	err := w.provider.Watch(func(event interface{}, err error) {
		if err != nil {
			w.logger.Warn().Err(err).Str("path", w.path).Msg("Config file watch error")
			return
		}
		w.events.Add(1)
		w.changed.Store(true)
		w.logger.Info().Str("path", w.path).Msg("Config file changed on disk")
	})
	if err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}

	<-ctx.Done()
	if err := w.provider.Unwatch(); err != nil {
		w.logger.Debug().Err(err).Msg("Unwatch failed")
	}
	return ctx.Err()
}

// Changed reports whether the file changed since the last call.
func (w *FileWatcher) Changed() bool {
	return w.changed.Swap(false)
}

// Events returns the number of change events seen.
func (w *FileWatcher) Events() int64 {
	return w.events.Load()
}

func (w *FileWatcher) String() string {
	return "config-file-watcher"
}
