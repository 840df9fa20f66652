// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bureau-foundation/telemetry-agent/lib/clock"
)

// DefaultDebounce is the quiet period Watch waits after the last
// change notification before reloading.
const DefaultDebounce = 300 * time.Millisecond

// Watch reloads the configuration whenever the file changes, until
// ctx is done. The containing directory is watched rather than the
// file, so editors that replace the file by rename are handled.
// Bursts of notifications within debounce collapse into one reload.
// Reload failures are logged and the previous configuration stays
// active. Returns nil when ctx is done.
func (p *Provider) Watch(ctx context.Context, clk clock.Clock, debounce time.Duration) error {
	if p.path == "" {
		return errors.New("config provider: no file to watch")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(p.path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(target), err)
	}
	p.logger.Info("watching configuration", "path", target)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case change, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(change.Name) != target {
				continue
			}
			if change.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = clk.After(debounce)

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.logger.Warn("config watcher error", "error", watchErr)

		case <-pending:
			pending = nil
			if err := p.Reload(); err != nil {
				p.logger.Error("configuration reload rejected, keeping previous", "path", target, "error", err)
			}
		}
	}
}
