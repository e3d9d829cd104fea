package docs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	clog "github.com/charmbracelet/log"
	fsnotify "github.com/fsnotify/fsnotify"

	"cookterm/internal/system"
)

// reloadDebounce coalesces bursts of file events from editors that write
// through temp files.
const reloadDebounce = 120 * time.Millisecond

// Library holds the documents of one directory and reloads them when the
// directory changes.
type Library struct {
	dir string
	log *clog.Logger

	mu   sync.RWMutex
	docs []Doc
	subs []func()
}

// NewLibrary returns an empty library for dir. Call Reload to populate it.
func NewLibrary(dir string, log *clog.Logger) *Library {
	return &Library{dir: dir, log: system.Or(log).WithPrefix("docs")}
}

// Dir returns the watched directory.
func (l *Library) Dir() string { return l.dir }

// Reload re-reads every document. A missing directory yields no documents.
func (l *Library) Reload() error {
	var docs []Doc
	if _, err := os.Stat(l.dir); err == nil {
		docs, err = Load(l.dir)
		if err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("docs: stat %s: %w", l.dir, err)
	}

	l.mu.Lock()
	l.docs = docs
	subs := append([]func(){}, l.subs...)
	l.mu.Unlock()
	l.log.Debug("docs loaded", "dir", l.dir, "count", len(docs))
	for _, fn := range subs {
		fn()
	}
	return nil
}

// OnChange registers fn to run after every reload.
func (l *Library) OnChange(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs = append(l.subs, fn)
}

// Docs returns a copy of the loaded documents.
func (l *Library) Docs() []Doc {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Doc(nil), l.docs...)
}

// Find returns the document whose name or path matches name.
func (l *Library) Find(name string) (Doc, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, d := range l.docs {
		if d.Name == name || d.Path == name {
			return d, true
		}
	}
	return Doc{}, false
}

// Watch reloads the library whenever a markdown file under the directory
// changes, until ctx is done.
func (l *Library) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("docs: watcher: %w", err)
	}
	defer w.Close()

	if err := addTree(w, l.dir); err != nil {
		return err
	}

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					_ = addTree(w, ev.Name)
					continue
				}
			}
			if !isMarkdown(ev.Name) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			fire = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			l.log.Warn("watch error", "err", err)
		case <-fire:
			fire = nil
			if err := l.Reload(); err != nil {
				l.log.Warn("reload failed", "err", err)
			}
		}
	}
}

func addTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("docs: watch %s: %w", path, err)
		}
		return nil
	})
}
