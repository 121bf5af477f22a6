// Package watch re-runs contract generation when application sources change.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/doITmagic/api-contract-mcp/internal/logging"
)

// DefaultDebounce is the quiet period after the last change before a rebuild
const DefaultDebounce = 2 * time.Second

var skipDirs = map[string]struct{}{
	"vendor":       {},
	"node_modules": {},
	".git":         {},
	"storage":      {},
}

// ChangeFunc receives the PHP files changed since the last call
type ChangeFunc func(ctx context.Context, changed []string)

// Watcher calls a ChangeFunc after PHP sources under its roots change
type Watcher struct {
	watcher  *fsnotify.Watcher
	roots    []string
	onChange ChangeFunc
	debounce time.Duration
	log      *logging.Logger
}

// New creates a watcher over roots. Missing roots are skipped with a warning.
func New(roots []string, onChange ChangeFunc, log *logging.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Watcher{
		watcher:  w,
		roots:    roots,
		onChange: onChange,
		debounce: DefaultDebounce,
		log:      log,
	}, nil
}

// SetDebounce changes the quiet period
func (fw *Watcher) SetDebounce(d time.Duration) {
	fw.debounce = d
}

// Run watches until ctx is cancelled. Changes are batched and onChange runs
// on this goroutine, so rebuilds never overlap.
func (fw *Watcher) Run(ctx context.Context) error {
	defer fw.watcher.Close()

	watched := 0
	for _, root := range fw.roots {
		if _, err := os.Stat(root); err != nil {
			fw.log.Warn("⚠️  Not watching %s: %v", root, err)
			continue
		}
		watched += fw.addTree(root)
	}
	fw.log.Info("👀 Watching %d directories", watched)

	pending := map[string]struct{}{}
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return nil
			}
			// Ignore chmod events (too noisy)
			if event.Op == fsnotify.Chmod {
				continue
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					fw.addTree(event.Name)
					continue
				}
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".php") {
				continue
			}

			pending[event.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(fw.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(fw.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			pending = map[string]struct{}{}

			fw.log.Info("♻️  %d file(s) changed - regenerating contract", len(changed))
			fw.onChange(ctx, changed)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return nil
			}
			fw.log.Error("Watcher error: %v", err)
		}
	}
}

func (fw *Watcher) addTree(root string) int {
	added := 0
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if _, skip := skipDirs[base]; skip && path != root {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			fw.log.Warn("⚠️  Unable to watch %s: %v", path, err)
			return nil
		}
		added++
		return nil
	})
	if err != nil {
		fw.log.Warn("⚠️  Error walking %s: %v", root, err)
	}
	return added
}
