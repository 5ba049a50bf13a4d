package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rubiojr/topicsync/pkg/log"
)

var watchLogger = log.ForService("config")

// settleDelay gives editors doing atomic writes time to finish replacing the
// file before it is read again.
var settleDelay = 100 * time.Millisecond

// Watch calls onChange every time path is written, created or replaced,
// until ctx is cancelled. Editors that save by renaming a temporary file over
// the original are handled by re-adding the path to the watcher.
func Watch(ctx context.Context, path string, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watching %s: %w", path, err)
	}
	watchLogger.Debugf("watching %s for changes", path)

	go func() {
		defer func() {
			if err := watcher.Close(); err != nil {
				watchLogger.Warnf("closing watcher for %s: %v", path, err)
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove)) {
					continue
				}
				watchLogger.Debugf("%s changed (%s)", event.Name, event.Op.String())

				if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
					time.Sleep(2 * settleDelay)
					if _, err := os.Stat(path); os.IsNotExist(err) {
						watchLogger.Warnf("%s was removed and not replaced, skipping reload", path)
						continue
					}
					if err := watcher.Add(path); err != nil {
						watchLogger.Warnf("re-adding %s to watcher: %v", path, err)
					}
				} else {
					time.Sleep(settleDelay)
				}
				onChange()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				watchLogger.Warnf("watcher error: %v", err)
			}
		}
	}()
	return nil
}
