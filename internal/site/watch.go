package site

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for changes to settle.
const DefaultDebounce = 200 * time.Millisecond

// BuildFunc receives the outcome of every watcher-triggered build.
// changed lists the source paths that triggered the build.
type BuildFunc func(res *Result, changed []string, err error)

// Watch starts an fsnotify watcher on the source root and rebuilds the site
// after changes settle, until ctx is cancelled. cb (if non-nil) is called
// after each rebuild.
//
// New directories created at runtime are automatically added to the watch
// list. The destination, dot files and excluded paths are ignored, so the
// build's own writes never retrigger it.
func (b *Builder) Watch(ctx context.Context, debounce time.Duration, cb BuildFunc) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	root, err := filepath.Abs(b.opts.Source)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	ignored := b.watchIgnored(root)
	if err := addDirsRecursive(w, root, ignored); err != nil {
		return err
	}

	b.logger.Info("watcher: started", slog.String("root", root))

	// rebuildTimer debounces bursts of events into one build.
	var rebuildTimer *time.Timer
	var rebuildCh <-chan time.Time
	changed := make(map[string]struct{})

	scheduleRebuild := func() {
		if rebuildTimer == nil {
			rebuildTimer = time.NewTimer(debounce)
			rebuildCh = rebuildTimer.C
		} else {
			rebuildTimer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if rebuildTimer != nil {
				rebuildTimer.Stop()
			}
			b.logger.Info("watcher: stopped")
			return nil

		case <-rebuildCh:
			paths := make([]string, 0, len(changed))
			for p := range changed {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			clear(changed)

			res, err := b.Build(ctx)
			if err != nil {
				b.logger.Error("watcher: rebuild failed", slog.String("error", err.Error()))
			}
			if cb != nil {
				cb(res, paths, err)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			if ignored(rel) {
				continue
			}

			// New directories are added to the watcher.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name, func(r string) bool {
						full, err := filepath.Rel(root, filepath.Join(ev.Name, filepath.FromSlash(r)))
						return err == nil && ignored(filepath.ToSlash(full))
					}); addErr != nil {
						b.logger.Warn("watcher: add new dir failed",
							slog.String("path", rel),
							slog.String("error", addErr.Error()))
					} else {
						b.logger.Debug("watcher: watching new dir", slog.String("path", rel))
					}
				}
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			b.logger.Debug("watcher: change", slog.String("path", rel), slog.String("op", ev.Op.String()))
			changed[rel] = struct{}{}
			scheduleRebuild()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			b.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// watchIgnored reports source paths whose changes never affect the output.
func (b *Builder) watchIgnored(root string) func(rel string) bool {
	destRel := ""
	if abs, err := filepath.Abs(b.opts.Destination); err == nil {
		if rel, err := filepath.Rel(root, abs); err == nil && !strings.HasPrefix(rel, "..") {
			destRel = filepath.ToSlash(rel)
		}
	}
	return func(rel string) bool {
		if rel == "." {
			return false
		}
		if destRel != "" && under(rel, destRel) {
			return true
		}
		for _, seg := range strings.Split(rel, "/") {
			if strings.HasPrefix(seg, ".") {
				return true
			}
		}
		base := path.Base(rel)
		if strings.HasSuffix(base, "~") || strings.HasPrefix(base, "#") {
			return true
		}
		return Excluded(b.opts.Exclude, rel)
	}
}

// addDirsRecursive adds dir and all its subdirectories to the watcher,
// pruning those ignored reports (given paths relative to dir).
func addDirsRecursive(w *fsnotify.Watcher, dir string, ignored func(rel string) bool) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(dir, p)
		if relErr == nil && rel != "." && ignored(filepath.ToSlash(rel)) {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}
