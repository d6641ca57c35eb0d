// Package watch re-runs a mapping when its input files change.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 500 * time.Millisecond

// Watcher monitors a set of files and fires OnChange once per burst of
// changes across all of them.
type Watcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]*fileState
	mu       sync.RWMutex
	debounce time.Duration

	// OnChange receives the sorted paths that changed since the last call.
	OnChange func(ctx context.Context, paths []string) error
	OnError  func(path string, err error)
}

type fileState struct {
	path         string
	lastModified time.Time
	size         int64
}

// NewWatcher creates a watcher. A non-positive debounce uses DefaultDebounce.
func NewWatcher(debounce time.Duration) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Watcher{
		watcher:  fsWatcher,
		files:    make(map[string]*fileState),
		debounce: debounce,
	}, nil
}

// Watch starts watching the given files.
func (w *Watcher) Watch(paths ...string) error {
	for _, path := range paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to resolve path: %w", err)
		}

		stat, err := os.Stat(absPath)
		if err != nil {
			return fmt.Errorf("failed to stat file: %w", err)
		}

		w.mu.Lock()
		w.files[absPath] = &fileState{
			path:         absPath,
			lastModified: stat.ModTime(),
			size:         stat.Size(),
		}
		w.mu.Unlock()

		// Spreadsheet editors save through a temp file and rename, so the
		// directory is watched rather than the file.
		if err := w.watcher.Add(filepath.Dir(absPath)); err != nil {
			return fmt.Errorf("failed to watch directory: %w", err)
		}
	}
	return nil
}

// Run starts the watch loop. Blocks until ctx is cancelled. OnChange runs
// on the loop goroutine, so calls never overlap.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending = make(map[string]bool)
	)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			absPath, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}

			w.mu.RLock()
			_, isWatched := w.files[absPath]
			w.mu.RUnlock()
			if !isWatched {
				continue
			}

			pending[absPath] = true
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.handleChange(ctx, pending)
			pending = make(map[string]bool)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			if w.OnError != nil {
				w.OnError("", err)
			}
		}
	}
}

func (w *Watcher) handleChange(ctx context.Context, pending map[string]bool) {
	var changed []string
	for path := range pending {
		stat, err := os.Stat(path)
		if err != nil {
			// Mid-save; the following Create event retriggers.
			if w.OnError != nil {
				w.OnError(path, err)
			}
			continue
		}

		w.mu.Lock()
		state := w.files[path]
		if !stat.ModTime().Equal(state.lastModified) || stat.Size() != state.size {
			state.lastModified = stat.ModTime()
			state.size = stat.Size()
			changed = append(changed, path)
		}
		w.mu.Unlock()
	}
	if len(changed) == 0 || w.OnChange == nil {
		return
	}

	sort.Strings(changed)
	if err := w.OnChange(ctx, changed); err != nil && w.OnError != nil {
		w.OnError(changed[0], err)
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
