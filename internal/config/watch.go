package config

import (
	"context"

	"github.com/fsnotify/fsnotify"

	"github.com/openclaw/gateway/internal/logging"
)

// Watch reloads path into target whenever the file changes on disk,
// calling onReload after each successful reload. It returns once ctx is
// cancelled or the watcher fails to start; reload errors are logged and
// otherwise ignored so a transient write (editor swap files, partial
// writes) never crashes the gateway.
func Watch(ctx context.Context, path string, target *Config, onReload func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(path); err != nil {
		return err
	}

	log := logging.For("config_watch")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			reloaded, err := Load(path)
			if err != nil {
				log.Warn("config reload failed, keeping previous config", "error", err)
				continue
			}
			target.ReplaceFrom(reloaded)
			log.Info("config reloaded", "path", path)
			if onReload != nil {
				onReload(reloaded)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher error", "error", err)
		}
	}
}
