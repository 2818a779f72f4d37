// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch re-runs graph scripts when their files change on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/rendergraph/services/rendergraph/script"
)

// ErrAlreadyStopped is returned by Start after Stop.
var ErrAlreadyStopped = errors.New("watcher already stopped")

// Change is a single script file event.
type Change struct {
	// Path is the changed file.
	Path string

	// Op is the kind of change.
	Op Op

	// Time is when the change was seen.
	Time time.Time
}

// Op is the kind of file change.
type Op int

const (
	// OpCreate means the file appeared.
	OpCreate Op = iota

	// OpWrite means the file was modified.
	OpWrite

	// OpRemove means the file was deleted.
	OpRemove

	// OpRename means the file was renamed away.
	OpRename
)

// String returns the lowercase operation name.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Handler receives a debounced batch of changes, at most one per path.
type Handler func(ctx context.Context, changes []Change)

// Options configures a Watcher.
type Options struct {
	// Debounce is how long to wait for further changes before flushing.
	// Default: 100ms
	Debounce time.Duration

	// BufferSize is the capacity of the pending change channel.
	// Default: 256
	BufferSize int

	// Logger receives watch errors. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns the defaults used when nil options are passed.
func DefaultOptions() Options {
	return Options{
		Debounce:   100 * time.Millisecond,
		BufferSize: 256,
	}
}

// Watcher watches one directory for script file changes.
//
// Editors usually write a file in several steps, so events are batched
// until Debounce passes without a new one. Non-script files are ignored.
//
// # Thread Safety
//
// Safe for concurrent use. The handler is always called from a single
// goroutine.
type Watcher struct {
	dir      string
	fsw      *fsnotify.Watcher
	handler  Handler
	debounce time.Duration
	logger   *slog.Logger

	changes  chan Change
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu       sync.RWMutex
	watching bool
	stopped  bool
}

// New creates a Watcher for dir. Call Start to begin watching.
//
// # Inputs
//
//   - dir: Directory holding graph scripts.
//   - handler: Called with each debounced batch.
//   - opts: Optional configuration (nil uses defaults).
func New(dir string, handler Handler, opts *Options) (*Watcher, error) {
	if opts == nil {
		defaults := DefaultOptions()
		opts = &defaults
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultOptions().Debounce
	}
	size := opts.BufferSize
	if size <= 0 {
		size = DefaultOptions().BufferSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	return &Watcher{
		dir:      dir,
		fsw:      fsw,
		handler:  handler,
		debounce: debounce,
		logger:   logger,
		changes:  make(chan Change, size),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. It returns once the directory is registered;
// events are processed in the background until ctx is canceled or Stop
// is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return ErrAlreadyStopped
	}
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.fsw.Add(w.dir); err != nil {
		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	w.wg.Add(2)
	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop stops watching and waits for a pending batch to be flushed.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.fsw.Close()
		w.wg.Wait()

		w.mu.Lock()
		w.watching = false
		w.stopped = true
		w.mu.Unlock()
	})
}

// IsWatching reports whether the watcher is active.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !script.IsScriptFile(event.Name) || isHidden(event.Name) {
				continue
			}
			change := Change{Path: event.Name, Op: convertOp(event.Op), Time: time.Now()}
			select {
			case w.changes <- change:
			default:
				w.logger.Warn("watch buffer full, dropping change", slog.String("path", event.Name))
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", slog.String("dir", w.dir), slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	defer w.wg.Done()

	var batch []Change
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(batch) > 0 {
			if deduped := deduplicate(batch); len(deduped) > 0 && w.handler != nil {
				w.handler(ctx, deduped)
			}
			batch = batch[:0]
		}
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			flush()
			return
		case change := <-w.changes:
			batch = append(batch, change)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			flush()
		}
	}
}

func convertOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Write):
		return OpWrite
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	default:
		return OpWrite
	}
}

// deduplicate keeps the latest change per path, in first-seen order.
func deduplicate(changes []Change) []Change {
	seen := make(map[string]int, len(changes))
	result := make([]Change, 0, len(changes))
	for _, c := range changes {
		if idx, ok := seen[c.Path]; ok {
			result[idx] = c
			continue
		}
		seen[c.Path] = len(result)
		result = append(result, c)
	}
	return result
}

// isHidden filters editor swap and lock files such as ".g.yaml.swp".
func isHidden(path string) bool {
	base := filepath.Base(path)
	return len(base) > 0 && base[0] == '.'
}
