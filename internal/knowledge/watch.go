package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/devforge/internal/ignore"
)

// DefaultDebounce is how long Watch waits after the last change before
// reindexing.
const DefaultDebounce = 500 * time.Millisecond

// ErrWatcherFailed indicates the filesystem watcher could not be created.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// Watch reindexes the knowledge base whenever a source file under the
// sources directory changes. It blocks until ctx is done. onIndex, when
// non-nil, is called after every reindex with its outcome.
func (b *Base) Watch(ctx context.Context, debounce time.Duration, onIndex func(int, error)) error {
	if !b.enabled {
		return nil
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	defer func() { _ = watcher.Close() }()

	if err := addTree(watcher, b.sourcesDir); err != nil {
		return fmt.Errorf("watching %s: %w", b.sourcesDir, err)
	}

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addTree(watcher, event.Name); err != nil {
						b.logger.Warn(ctx, "watching new directory", zap.String("dir", event.Name), zap.Error(err))
					}
					timer.Reset(debounce)
					continue
				}
			}
			if relevant(event) {
				timer.Reset(debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			b.logger.Warn(ctx, "knowledge watcher error", zap.Error(err))
		case <-timer.C:
			n, err := b.Index(ctx)
			if err != nil {
				b.logger.Error(ctx, "reindexing knowledge sources", zap.Error(err))
			}
			if onIndex != nil {
				onIndex(n, err)
			}
		}
	}
}

func relevant(event fsnotify.Event) bool {
	if !isSource(event.Name) && !isIgnoreFile(event.Name) {
		return false
	}
	return event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) ||
		event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename)
}

func isIgnoreFile(path string) bool {
	return slices.Contains(ignore.DefaultFiles, filepath.Base(path))
}

// addTree watches root and every non-hidden directory below it.
func addTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
