package core

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/illarion/cryptkeeper/internal/storage"
)

// DefaultWatchInterval is the pause between two watch iterations
const DefaultWatchInterval = time.Second

// WatchState is the state of a Watcher
type WatchState int

const (
	Watching WatchState = iota // Polling; initial state
	Stopped                    // Cancelled; terminal
)

func (s WatchState) String() string {
	switch s {
	case Watching:
		return "watching"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// WatchOption configures a Watcher
type WatchOption func(*Watcher)

// WithInterval sets the pause between iterations
func WithInterval(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithNotify makes filesystem events on the tracked files end the pause
// early
func WithNotify(enabled bool) WatchOption {
	return func(w *Watcher) { w.notify = enabled }
}

// Watcher re-encrypts the files of one vault whenever their source changes.
// It is driven by one goroutine; the only way out of Watching is
// cancellation of the context given to Run or Step.
type Watcher struct {
	m        *Manager
	vault    string
	interval time.Duration
	notify   bool
	state    WatchState

	fsw     *fsnotify.Watcher
	dirs    map[string]struct{}
	tracked map[string]struct{}
	missing map[string]struct{}
	noVault bool
}

// NewWatcher creates a Watcher for the named vault
func (m *Manager) NewWatcher(vault string, opts ...WatchOption) *Watcher {
	w := &Watcher{
		m:        m,
		vault:    vault,
		interval: DefaultWatchInterval,
		state:    Watching,
		dirs:     make(map[string]struct{}),
		tracked:  make(map[string]struct{}),
		missing:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// State returns the current state
func (w *Watcher) State() WatchState {
	return w.state
}

// Run iterates until ctx is cancelled, then returns nil
func (w *Watcher) Run(ctx context.Context) error {
	if w.notify {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			w.m.logger.Warn("filesystem notifications unavailable, polling only", slog.Any("error", err))
		} else {
			w.fsw = fsw
			defer func() {
				w.fsw.Close()
				w.fsw = nil
			}()
		}
	}

	w.m.logger.Info("watching vault", slog.String("vault", w.vault), slog.Duration("interval", w.interval))
	for {
		if w.Step(ctx) == Stopped {
			return nil
		}
		if !w.wait(ctx) {
			w.stop()
			return nil
		}
	}
}

// Step runs a single iteration: stop if ctx is done, otherwise refresh.
func (w *Watcher) Step(ctx context.Context) WatchState {
	if w.state == Stopped {
		return Stopped
	}
	if ctx.Err() != nil {
		w.stop()
		return Stopped
	}
	w.Refresh(ctx)
	return w.state
}

func (w *Watcher) stop() {
	if w.state != Stopped {
		w.state = Stopped
		w.m.logger.Info("stopped watching", slog.String("vault", w.vault))
	}
}

// Refresh syncs metadata and re-encrypts every file whose source changed
// after its last encryption. Pending files are encrypted once their source
// exists. Failures are logged and never returned.
func (w *Watcher) Refresh(ctx context.Context) []EncryptedFile {
	if err := w.m.sync(); err != nil {
		w.m.logger.Error("sync failed", slog.String("vault", w.vault), slog.Any("error", err))
		return nil
	}

	v, ok := w.m.local.Vault(w.vault)
	if !ok {
		if !w.noVault {
			w.m.logger.Warn("vault not found", slog.String("vault", w.vault))
			w.noVault = true
		}
		return nil
	}
	w.noVault = false

	paths := v.Paths()
	records := make(map[string]storage.TrackedFile, len(paths))
	for _, path := range paths {
		records[path] = v.Files[path]
	}
	w.track(paths)

	var encrypted []EncryptedFile
	for _, path := range paths {
		if ctx.Err() != nil {
			return encrypted
		}

		info, err := os.Stat(path)
		if err != nil {
			if _, logged := w.missing[path]; !logged {
				w.m.logger.Warn("source unavailable, skipping", slog.String("path", path), slog.Any("error", err))
				w.missing[path] = struct{}{}
			}
			continue
		}
		delete(w.missing, path)

		rec := records[path]
		if rec.State() == storage.StateEncrypted && !info.ModTime().After(rec.EncryptedTime()) {
			continue
		}

		result, err := w.m.Encrypt(ctx, w.vault, path)
		if err != nil {
			w.m.logger.Error("re-encryption failed", slog.String("path", path), slog.Any("error", err))
			continue
		}
		for _, f := range result.Files {
			w.m.logger.Info("re-encrypted", slog.String("vault", w.vault), slog.String("path", f.Path))
		}
		encrypted = append(encrypted, result.Files...)
	}
	return encrypted
}

// track records the current file set and, with notifications on, watches
// every parent directory not yet watched
func (w *Watcher) track(paths []string) {
	clear(w.tracked)
	for _, path := range paths {
		w.tracked[path] = struct{}{}
		if w.fsw == nil {
			continue
		}
		dir := filepath.Dir(path)
		if _, ok := w.dirs[dir]; ok {
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			w.m.logger.Debug("cannot watch directory", slog.String("dir", dir), slog.Any("error", err))
			continue
		}
		w.dirs[dir] = struct{}{}
	}
}

// wait pauses for one interval. A filesystem event on a tracked file ends
// the pause early. It returns false when ctx is cancelled.
func (w *Watcher) wait(ctx context.Context) bool {
	timer := w.m.clock.After(w.interval)

	var events <-chan fsnotify.Event
	var errs <-chan error
	if w.fsw != nil {
		events, errs = w.fsw.Events, w.fsw.Errors
	}

	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer:
			return true
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if _, hit := w.tracked[filepath.Clean(ev.Name)]; hit {
				return true
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.m.logger.Warn("filesystem notification error", slog.Any("error", err))
		}
	}
}
