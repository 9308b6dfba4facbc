// Package watch re-runs an action whenever the result records of a run change.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events produced by a parallel run.
const DefaultDebounce = 250 * time.Millisecond

// Watcher observes a run directory and its case directories.
type Watcher struct {
	runDir     string
	resultFile string
	debounce   time.Duration
	fsw        *fsnotify.Watcher
}

// New starts watching runDir and every existing case directory below it. The
// caller must call Close, or Run, which closes the watcher when it returns.
func New(runDir, resultFile string, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &Watcher{runDir: runDir, resultFile: resultFile, debounce: debounce, fsw: fsw}

	if err := fsw.Add(runDir); err != nil {
		fsw.Close() //nolint:errcheck
		return nil, fmt.Errorf("watching %s: %w", runDir, err)
	}

	entries, err := os.ReadDir(runDir)
	if err != nil {
		fsw.Close() //nolint:errcheck
		return nil, fmt.Errorf("reading run directory %s: %w", runDir, err)
	}
	for _, e := range entries {
		if e.IsDir() && !hidden(e.Name()) {
			w.addCaseDir(filepath.Join(runDir, e.Name()))
		}
	}

	return w, nil
}

// Run calls onChange after each burst of relevant changes until ctx is done.
// Errors from onChange are logged and do not stop the watch.
func (w *Watcher) Run(ctx context.Context, onChange func() error) error {
	defer w.Close() //nolint:errcheck

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			slog.Debug("run directory changed", "path", event.Name, "op", event.Op.String())

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			if err := onChange(); err != nil {
				slog.Warn("watch action failed", "error", err)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("file watcher error", "error", err)
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// relevant reports whether event touches a result record or adds or removes a
// case directory. New case directories are watched as a side effect.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	base := filepath.Base(event.Name)
	if hidden(base) {
		return false
	}

	if filepath.Dir(event.Name) == filepath.Clean(w.runDir) {
		if event.Has(fsnotify.Create) {
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				w.addCaseDir(event.Name)
				return true
			}
		}
		return event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
	}

	return base == w.resultFile && event.Op != fsnotify.Chmod
}

func (w *Watcher) addCaseDir(dir string) {
	if err := w.fsw.Add(dir); err != nil {
		slog.Warn("failed to watch case directory", "path", dir, "error", err)
	}
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
