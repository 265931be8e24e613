package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// ReloadFunc receives each accepted revision of the config file together
// with its difference from the previous one.
type ReloadFunc func(next *Config, d ConfigDiff)

// Watcher polls the config file while [Watcher.Run] is active. A revision is
// accepted when its bytes changed, it passes [Validate] and it differs from
// the running config in some field Aura cares about. Rejected revisions are
// logged; the running config stays in effect.
type Watcher struct {
	path     string
	interval time.Duration
	onReload ReloadFunc

	mu      sync.Mutex
	current *Config
	modTime time.Time
	sum     [sha256.Size]byte
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads path once and returns a watcher primed with it. Polling
// starts with [Watcher.Run].
func NewWatcher(path string, onReload ReloadFunc, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{path: path, interval: 5 * time.Second, onReload: onReload}
	for _, opt := range opts {
		opt(w)
	}

	rev, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	if rev.err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", rev.err)
	}
	w.current, w.modTime, w.sum = rev.cfg, rev.modTime, rev.sum
	return w, nil
}

// Current returns the config of the last accepted revision.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Run polls until ctx is done and then returns nil.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.poll()
		}
	}
}

func (w *Watcher) poll() {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config: cannot stat file", "path", w.path, "err", err)
		return
	}
	w.mu.Lock()
	unchanged := info.ModTime().Equal(w.modTime)
	w.mu.Unlock()
	if unchanged {
		return
	}

	rev, err := w.read()
	if err != nil {
		slog.Warn("config: cannot read file", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	w.modTime = rev.modTime
	if rev.sum == w.sum {
		w.mu.Unlock()
		return
	}
	w.sum = rev.sum
	if rev.err != nil {
		w.mu.Unlock()
		slog.Warn("config: revision rejected, keeping running config", "path", w.path, "err", rev.err)
		return
	}
	d := Diff(w.current, rev.cfg)
	w.current = rev.cfg
	w.mu.Unlock()

	if d.Empty() {
		slog.Debug("config: revision has no effective change", "path", w.path)
		return
	}
	slog.Info("config: reloaded", "path", w.path, "hot", d.Changed(), "restart_required", d.RestartRequired)
	if w.onReload != nil {
		w.onReload(rev.cfg, d)
	}
}

// revision is one read of the config file. cfg is nil and err set when the
// content does not parse or validate.
type revision struct {
	cfg     *Config
	err     error
	modTime time.Time
	sum     [sha256.Size]byte
}

// read returns an I/O error only; invalid content is reported in the revision
// so its checksum can still be remembered.
func (w *Watcher) read() (revision, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return revision{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return revision{}, err
	}
	rev := revision{modTime: info.ModTime(), sum: sha256.Sum256(data)}
	if cfg, err := LoadFromReader(bytes.NewReader(data)); err != nil {
		rev.err = err
	} else {
		rev.cfg = cfg
	}
	return rev, nil
}
