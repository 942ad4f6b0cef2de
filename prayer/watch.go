package prayer

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// WatchCatalog reloads path into c whenever the file changes, until ctx is
// done. The parent directory is watched so editors that replace the file on
// save are picked up. A file that fails to parse leaves c untouched.
func WatchCatalog(ctx context.Context, path string, c *Catalog) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to watch catalog: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		_ = w.Close()
		return fmt.Errorf("unable to resolve catalog path: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return fmt.Errorf("unable to watch catalog: %w", err)
	}

	logger := log.WithPrefix("catalog")
	go func() {
		defer w.Close() //nolint:errcheck
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				prayers, err := readCatalogFile(abs)
				if err != nil {
					logger.Warn("Keeping previous catalog", "err", err)
					continue
				}
				c.Replace(prayers)
				logger.Info("Catalog reloaded", "path", abs, "prayers", len(prayers))
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("Catalog watcher failed", "err", err)
			}
		}
	}()
	return nil
}
