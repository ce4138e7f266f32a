package acquire

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/joseph-ayodele/scansmart/constants"
)

type WatchConfig struct {
	InitialScan bool          // emit images already in the gallery
	Debounce    time.Duration // coalesce rapid create/write bursts per file
}

// Watch reports gallery images as they appear, as selections relative to the
// gallery root. Both channels close when ctx ends.
func (g *DirectoryGallery) Watch(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("failed to create fsnotify watcher", "error", err)
		return nil, nil, err
	}

	evCh := make(chan string, 64)
	errCh := make(chan error, 1)

	emit := func(path string) {
		rel, err := filepath.Rel(g.root, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			return
		}
		select {
		case evCh <- rel:
		case <-ctx.Done():
		}
	}

	var initial []string
	err = filepath.WalkDir(g.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != g.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return w.Add(path)
		}
		if cfg.InitialScan && isGalleryImage(path) {
			initial = append(initial, path)
		}
		return nil
	})
	if err != nil {
		logger.Error("failed to watch gallery", "root", g.root, "error", err)
		_ = w.Close()
		return nil, nil, err
	}

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("close gallery watcher", "error", err)
			}
		}()

		for _, p := range initial {
			emit(p)
		}

		// timers only signal the loop; evCh is written from this goroutine alone
		fire := make(chan string)
		timers := map[string]*time.Timer{}
		defer func() {
			for _, t := range timers {
				t.Stop()
			}
		}()
		schedule := func(path string) {
			if cfg.Debounce <= 0 {
				emit(path)
				return
			}
			if t, ok := timers[path]; ok {
				t.Reset(cfg.Debounce)
				return
			}
			timers[path] = time.AfterFunc(cfg.Debounce, func() {
				select {
				case fire <- path:
				case <-ctx.Done():
				}
			})
		}

		for {
			select {
			case <-ctx.Done():
				return
			case path := <-fire:
				delete(timers, path)
				emit(path)
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Has(fsnotify.Create) {
					if st, err := os.Stat(e.Name); err == nil && st.IsDir() && !strings.HasPrefix(st.Name(), ".") {
						if err := w.Add(e.Name); err != nil {
							logger.Warn("could not watch new directory", "dir", e.Name, "error", err)
						}
						continue
					}
				}
				if isGalleryImage(e.Name) && (e.Has(fsnotify.Create) || e.Has(fsnotify.Write) || e.Has(fsnotify.Rename)) {
					schedule(e.Name)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("gallery watcher error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

// isGalleryImage reports whether path names a visible file with an image extension.
func isGalleryImage(path string) bool {
	name := filepath.Base(path)
	return !strings.HasPrefix(name, ".") && constants.MapExtToFormat(filepath.Ext(name)) != ""
}
