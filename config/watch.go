package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nox-hq/aegis/policy"
)

// Watcher holds the resolved policy behind an atomic pointer and
// hot-swaps it when the file changes on disk. A long-lived guard process
// reads Current() per session instead of restarting on every policy
// edit; a file revision that fails validation is logged and skipped,
// keeping the last good policy live.
type Watcher struct {
	path     string
	debounce time.Duration
	current  atomic.Pointer[policy.Policy]
	onSwap   func(policy.Policy)
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithDebounce overrides the reload debounce interval (default 500ms).
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithOnSwap registers a callback invoked after each successful
// hot-swap.
func WithOnSwap(fn func(policy.Policy)) WatchOption {
	return func(w *Watcher) { w.onSwap = fn }
}

// NewWatcher loads the policy file once and returns a Watcher seeded
// with it. Run must be called to start hot-reloading.
func NewWatcher(path string, opts ...WatchOption) (*Watcher, error) {
	w := &Watcher{path: path, debounce: 500 * time.Millisecond}
	for _, o := range opts {
		o(w)
	}

	p, err := Load(path)
	if err != nil {
		return nil, err
	}
	w.current.Store(&p)
	return w, nil
}

// Current returns the live policy.
func (w *Watcher) Current() policy.Policy {
	return *w.current.Load()
}

// Run watches the policy file until ctx is cancelled, debouncing bursts
// of write events and swapping in each valid revision.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	// Watch the directory rather than the file: editors replace files by
	// rename, which drops a direct file watch.
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(w.path), err)
	}

	var mu sync.Mutex
	var timer *time.Timer
	reload := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(w.debounce, w.reload)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				reload()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("policy watcher error", "path", w.path, "error", err)
		}
	}
}

func (w *Watcher) reload() {
	p, err := Load(w.path)
	if err != nil {
		slog.Warn("policy reload failed, keeping last good policy", "path", w.path, "error", err)
		return
	}
	w.current.Store(&p)
	slog.Info("policy hot-swapped", "path", w.path)
	if w.onSwap != nil {
		w.onSwap(p)
	}
}
