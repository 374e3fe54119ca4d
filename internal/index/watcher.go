package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/lectern/lectern/internal/storage"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, path string)

// DefaultDebounce is the per-path quiet period before a create/modify burst
// is collapsed into a single index operation.
const DefaultDebounce = 300 * time.Millisecond

type eventKind int

const (
	eventChanged eventKind = iota
	eventRemoved
)

// fileEvent is the normalized form of a filesystem notification. Raw
// fsnotify events are reduced to this before they reach the coalescing loop,
// which keeps debounce and ordering decisions in one place.
type fileEvent struct {
	kind eventKind
	path string // relative to the library root
}

// Watcher observes a library root and keeps the index in step with it.
// A collector goroutine normalizes fsnotify events onto a bounded channel;
// a single coalescing loop consumes them, debouncing create/modify bursts
// per path and applying deletes immediately.
type Watcher struct {
	db       *DB
	store    storage.Provider
	root     string
	debounce time.Duration
	logger   *slog.Logger
	cb       EventCallback
}

// NewWatcher builds a watcher for the given root. debounce <= 0 selects
// DefaultDebounce.
func NewWatcher(db *DB, store storage.Provider, root string, debounce time.Duration, logger *slog.Logger, cb EventCallback) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{db: db, store: store, root: root, debounce: debounce, logger: logger, cb: cb}
}

// Run watches the root until ctx is cancelled. It registers live watch
// subscriptions on the root and every subdirectory, adding new directories
// as they appear.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := addDirsRecursive(fsw, w.root); err != nil {
		return err
	}

	w.logger.Info("watcher: started", slog.String("root", w.root))

	events := make(chan fileEvent, 256)
	go w.collect(ctx, fsw, events)
	w.coalesce(ctx, events)

	w.logger.Info("watcher: stopped")
	return nil
}

// collect turns raw fsnotify events into fileEvents. Non-matching file types
// are dropped here; new directories are added to the watch list and their
// existing files emitted as changes.
func (w *Watcher) collect(ctx context.Context, fsw *fsnotify.Watcher, out chan<- fileEvent) {
	defer close(out)

	emit := func(ev fileEvent) {
		select {
		case out <- ev:
		case <-ctx.Done():
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(fsw, absPath); addErr != nil {
						w.logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath), slog.String("error", addErr.Error()))
					}
					w.emitDirContents(ctx, absPath, out)
					continue
				}
			}

			if !w.store.Matches(absPath) {
				continue
			}
			rel, relErr := filepath.Rel(w.root, absPath)
			if relErr != nil {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				emit(fileEvent{kind: eventChanged, path: rel})
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// fsnotify fires Rename on the old path only; the new path
				// arrives as a separate Create event.
				emit(fileEvent{kind: eventRemoved, path: rel})
			}

		case watchErr, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// emitDirContents emits change events for matching files already present in
// a newly created directory (moved-in directories carry their contents).
func (w *Watcher) emitDirContents(ctx context.Context, dirPath string, out chan<- fileEvent) {
	_ = filepath.WalkDir(dirPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !w.store.Matches(p) {
			return nil
		}
		rel, relErr := filepath.Rel(w.root, p)
		if relErr != nil {
			return nil
		}
		select {
		case out <- fileEvent{kind: eventChanged, path: rel}:
		case <-ctx.Done():
			return filepath.SkipAll
		}
		return nil
	})
}

// coalesce is the single consumer loop. Changes are held in a pending set
// until their path has been quiet for the debounce window, then indexed once
// with the final on-disk content. Removes are applied immediately and cancel
// any pending change for the same path.
func (w *Watcher) coalesce(ctx context.Context, events <-chan fileEvent) {
	pending := make(map[string]time.Time)
	var timer *time.Timer
	var timerC <-chan time.Time

	schedule := func() {
		if len(pending) == 0 {
			timerC = nil
			return
		}
		earliest := time.Time{}
		for _, due := range pending {
			if earliest.IsZero() || due.Before(earliest) {
				earliest = due
			}
		}
		d := time.Until(earliest)
		if d < 0 {
			d = 0
		}
		if timer == nil {
			timer = time.NewTimer(d)
		} else {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(d)
		}
		timerC = timer.C
	}

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.kind {
			case eventChanged:
				pending[ev.path] = time.Now().Add(w.debounce)
				schedule()
			case eventRemoved:
				delete(pending, ev.path)
				schedule()
				w.applyRemove(ev.path)
			}

		case now := <-timerC:
			for path, due := range pending {
				if due.After(now) {
					continue
				}
				delete(pending, path)
				w.applyChange(path)
			}
			schedule()
		}
	}
}

func (w *Watcher) applyChange(path string) {
	existed, _ := w.db.GetChecksum(path)

	data, err := w.store.Read(path)
	if err != nil {
		// File may have vanished between the event and the debounce firing.
		w.logger.Warn("watcher: read failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	if err := IndexFile(w.db, path, data, fileMtime(w.store, path)); err != nil {
		w.logger.Warn("watcher: index failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	kind := "updated"
	if existed == "" {
		kind = "created"
	}
	w.logger.Debug("watcher: indexed", slog.String("path", path), slog.String("op", kind))
	if w.cb != nil {
		w.cb(kind, path)
	}
}

func (w *Watcher) applyRemove(path string) {
	if err := w.db.DeleteDocument(path); err != nil {
		w.logger.Warn("watcher: delete failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	w.logger.Debug("watcher: deleted", slog.String("path", path))
	if w.cb != nil {
		w.cb("deleted", path)
	}
}

func fileMtime(store storage.Provider, rel string) int64 {
	info, err := os.Stat(filepath.Join(store.Root(), rel))
	if err != nil {
		return 0
	}
	return info.ModTime().UnixMilli()
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
