package fsstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/i2y/apiportal/internal/usecase"
)

// ChangeHandler receives the keys changed since the previous call.
type ChangeHandler func(ctx context.Context, keys []string)

// Watch reports changes below the store root to handle. Events are batched
// until debounce passes without a new one. It blocks until ctx is done.
func (s *ObjectStore) Watch(ctx context.Context, debounce time.Duration, handle ChangeHandler) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer w.Close()

	for _, dir := range []string{s.root, filepath.Join(s.root, filepath.FromSlash(usecase.DocumentPrefix))} {
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	log := s.logger.With(slog.String("root", s.root))
	log.Info("Watching storage directory for changes")

	pending := make(map[string]struct{})
	var timer *time.Timer
	var flush <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if strings.HasPrefix(filepath.Base(ev.Name), tempPrefix) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.Add(ev.Name); err != nil {
						log.Warn("Failed to watch new directory", slog.String("dir", ev.Name), slog.Any("error", err))
					}
					continue
				}
			}
			key, ok := s.keyFor(ev.Name)
			if !ok {
				continue
			}
			pending[key] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(debounce)
				flush = timer.C
			} else {
				timer.Reset(debounce)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("File watcher error", slog.Any("error", err))

		case <-flush:
			keys := make([]string, 0, len(pending))
			for k := range pending {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			pending = make(map[string]struct{})
			timer, flush = nil, nil
			handle(ctx, keys)
		}
	}
}
