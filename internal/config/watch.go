package config

import (
	"context"
	"fmt"
	"os"
	"time"
)

// fileWatcher polls one file and reloads it when its size or modification
// time changes. A reload that fails keeps the previous value in effect.
type fileWatcher[T any] struct {
	path     string
	load     func(string) (T, error)
	onUpdate func(T)
	onError  func(error)

	modTime time.Time
	size    int64
}

func (w *fileWatcher[T]) changed() (bool, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return false, err
	}
	if info.ModTime().Equal(w.modTime) && info.Size() == w.size {
		return false, nil
	}
	w.modTime, w.size = info.ModTime(), info.Size()
	return true, nil
}

func (w *fileWatcher[T]) reload() error {
	v, err := w.load(w.path)
	if err != nil {
		return fmt.Errorf("reload %s: %w", w.path, err)
	}
	if w.onUpdate != nil {
		w.onUpdate(v)
	}
	return nil
}

func (w *fileWatcher[T]) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := w.changed()
			if err == nil && ok {
				err = w.reload()
			}
			if err != nil && w.onError != nil {
				w.onError(err)
			}
		}
	}
}

// WatchClosedDates loads the closed dates file, hands it to onUpdate and keeps
// polling it in the background until ctx is done. Only the initial load can
// fail the call; later problems go to onError.
func WatchClosedDates(ctx context.Context, path string, interval time.Duration, onUpdate func(*ClosedDatesConfig), onError func(error)) error {
	if path == "" {
		path = "configs/closed_dates.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	w := &fileWatcher[*ClosedDatesConfig]{
		path:     path,
		load:     LoadClosedDates,
		onUpdate: onUpdate,
		onError:  onError,
	}
	if _, err := w.changed(); err != nil {
		return err
	}
	if err := w.reload(); err != nil {
		return err
	}

	go w.run(ctx, interval)
	return nil
}
