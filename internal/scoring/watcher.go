package scoring

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// TableWatcher reloads a weight table whenever its backing file changes,
// so engagement tuning can be adjusted without restarting the hub.
type TableWatcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// WatchTable loads path into table and keeps it in sync with the file.
// The parent directory is watched rather than the file itself, so
// editor-style replace-by-rename still triggers a reload. A reload that
// fails leaves the previous table in effect.
func WatchTable(path string, table *Table) (*TableWatcher, error) {
	if err := table.LoadFile(path); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create weights watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch weights dir: %w", err)
	}

	tw := &TableWatcher{
		watcher: watcher,
		done:    make(chan struct{}),
	}
	go tw.run(path, table)
	return tw, nil
}

func (tw *TableWatcher) run(path string, table *Table) {
	defer close(tw.done)

	target := filepath.Clean(path)
	for {
		select {
		case event, ok := <-tw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := table.LoadFile(path); err != nil {
				log.Printf("Weights reload failed, keeping previous table: %v", err)
				continue
			}
			log.Printf("Reloaded engagement weights from %s", path)

		case err, ok := <-tw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Weights watcher error: %v", err)
		}
	}
}

// Close stops watching and waits for the reload goroutine to exit.
func (tw *TableWatcher) Close() error {
	err := tw.watcher.Close()
	<-tw.done
	return err
}
