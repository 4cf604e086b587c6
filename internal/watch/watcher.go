// Package watch reports source tree changes in debounced batches.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/logfields"
)

// DefaultDebounce is the quiet window before a batch is delivered.
const DefaultDebounce = 300 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration
	// Ignore lists directories whose events are dropped, e.g. the output.
	Ignore []string
	Logger *slog.Logger
}

// Watcher monitors directory trees recursively.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	ignore   []string
	logger   *slog.Logger
}

// New watches every directory below roots. Hidden directories are skipped.
func New(roots []string, opts Options) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to create file watcher").Build()
	}
	w := &Watcher{watcher: fw, debounce: opts.Debounce, logger: opts.Logger}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	for _, p := range opts.Ignore {
		if abs, err := filepath.Abs(p); err == nil {
			w.ignore = append(w.ignore, abs)
		}
	}
	for _, root := range roots {
		if err := w.addTree(root); err != nil {
			_ = fw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) ignored(p string) bool {
	abs, err := filepath.Abs(p)
	if err != nil {
		return false
	}
	for _, ig := range w.ignore {
		if abs == ig || strings.HasPrefix(abs, ig+string(filepath.Separator)) {
			return true
		}
	}
	return strings.HasPrefix(filepath.Base(p), ".")
}

func (w *Watcher) addTree(root string) error {
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && w.ignored(p) {
			return filepath.SkipDir
		}
		return w.watcher.Add(p)
	})
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to watch directory").
			WithContext("dir", root).Build()
	}
	return nil
}

// Run delivers batches of changed paths to onChange until ctx is done.
// onChange runs on the watcher goroutine; events arriving meanwhile are
// batched for the next call.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, paths []string)) error {
	defer func() { _ = w.watcher.Close() }()

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if w.ignored(ev.Name) || ev.Op == fsnotify.Chmod {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						w.logger.Warn("Cannot watch new directory", logfields.Path(ev.Name), logfields.Error(err))
					}
				}
			}
			w.logger.Debug("Source change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
			pending[ev.Name] = struct{}{}
			timer.Reset(w.debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("File watcher error", logfields.Error(err))
		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			slices.Sort(paths)
			clear(pending)
			onChange(ctx, paths)
		}
	}
}
