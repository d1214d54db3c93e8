package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/abelbrown/hush/internal/logging"
	"github.com/abelbrown/hush/internal/otel"
)

// FileOptions tunes WatchFile.
type FileOptions struct {
	Debounce time.Duration // default 200ms
	Retries  int           // reload attempts per change, default 3
	Log      *log.Logger
	Events   *otel.Logger
}

// WatchFile calls reload whenever path changes on disk, coalescing bursts
// of writes. It watches the parent directory so editors that replace the
// file by rename are followed. It blocks until ctx is cancelled.
func WatchFile(ctx context.Context, path string, reload func() error, opts FileOptions) error {
	if opts.Debounce <= 0 {
		opts.Debounce = 200 * time.Millisecond
	}
	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	logger := logging.OrDiscard(opts.Log).WithPrefix("file")

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	reloadWithRetry := func() {
		var err error
		for i := 0; i < opts.Retries; i++ {
			if i > 0 {
				// The writer may not have finished.
				time.Sleep(100 * time.Millisecond)
			}
			if err = reload(); err == nil {
				break
			}
			logger.Warn("reload failed", "path", abs, "attempt", i+1, "err", err)
		}
		if err != nil {
			opts.Events.Error(otel.KindFileReload, "watch", err)
			return
		}
		opts.Events.Info(otel.KindFileReload, "watch", abs)
	}

	deb := NewDebouncer(RealClock, opts.Debounce, reloadWithRetry)
	defer deb.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !Relevant(event, abs) {
				continue
			}
			deb.Trigger()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "err", err)
		}
	}
}

// Relevant reports whether event is a content change to path.
func Relevant(event fsnotify.Event, path string) bool {
	if filepath.Clean(event.Name) != path {
		return false
	}
	if event.Op == fsnotify.Chmod {
		return false
	}
	return event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Rename)
}
