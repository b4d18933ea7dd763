// Package watch drives compile sessions from file-system changes: every
// .tex file under the watched root gets a live session, and each write
// becomes an edit event (latexmk -pvc style).
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/halvar/vellum/internal/orchestrator"
)

// EventCallback is called after a watcher-driven session change.
// kind is one of "opened", "edited", "closed".
type EventCallback func(kind string, path string)

// Watch starts an fsnotify watcher on root and feeds file changes into
// per-file compile sessions until ctx is cancelled. It calls cb (if
// non-nil) after each session mutation.
//
// New directories created at runtime are automatically added to the
// watch list. Removed or renamed files have their session torn down;
// the rename's new path arrives as a separate Create event.
func Watch(ctx context.Context, mgr *orchestrator.Manager, root string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	// sessions maps a relative .tex path to its open session id.
	sessions := make(map[string]string)

	closeSession := func(rel string) {
		if id, ok := sessions[rel]; ok {
			delete(sessions, rel)
			_ = mgr.Close(id)
			logger.Debug("watcher: session closed", slog.String("path", rel))
			if cb != nil {
				cb("closed", rel)
			}
		}
	}

	feed := func(rel, abs string, created bool) {
		data, readErr := os.ReadFile(abs)
		if readErr != nil {
			logger.Warn("watcher: read failed",
				slog.String("path", rel), slog.String("error", readErr.Error()))
			return
		}

		id, ok := sessions[rel]
		var o *orchestrator.Orchestrator
		if !ok {
			id, o = mgr.Open("")
			sessions[rel] = id
			logger.Debug("watcher: session opened", slog.String("path", rel))
			if cb != nil {
				cb("opened", rel)
			}
		} else {
			var getErr error
			o, getErr = mgr.Get(id)
			if getErr != nil {
				delete(sessions, rel)
				return
			}
		}

		if editErr := o.Edit(string(data)); editErr != nil {
			logger.Warn("watcher: edit failed",
				slog.String("path", rel), slog.String("error", editErr.Error()))
			return
		}
		if cb != nil && !created {
			cb("edited", rel)
		}
	}

	defer func() {
		for rel := range sessions {
			closeSession(rel)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			// New directories: add to watcher and pick up any .tex
			// files already inside.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					}
					feedNewDir(root, absPath, feed)
					continue
				}
			}

			if !strings.HasSuffix(absPath, ".tex") {
				continue
			}

			rel, relErr := filepath.Rel(root, absPath)
			if relErr != nil {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				feed(rel, absPath, ev.Op&fsnotify.Create != 0)

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				closeSession(rel)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// feedNewDir feeds any .tex files found in a newly created directory.
func feedNewDir(root, dirPath string, feed func(rel, abs string, created bool)) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".tex") {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		feed(rel, path, true)
		return nil
	})
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
