package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/flexfinRTP/telecode/internal/logger"
)

// Watch observes the configuration file (and optionally the prompt rule
// file) and logs when either changes on disk. Nothing is hot-reloaded; the
// gateway keeps the configuration it authorized at startup, and the operator
// restarts to apply edits. Returns a stop function.
func Watch(ctx context.Context, paths ...string) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	log := logger.Global().WithPrefix("config")

	watched := make(map[string]bool, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		watched[abs] = true
		// Watch the directory: editors replace files by rename, which
		// drops a watch placed on the file itself.
		if err := watcher.Add(filepath.Dir(abs)); err != nil {
			log.Warn("cannot watch %s: %v", abs, err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !watched[event.Name] {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					log.Warn("%s changed on disk; restart to apply", event.Name)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("config watcher: %v", err)
			}
		}
	}()
	return cancel, nil
}
