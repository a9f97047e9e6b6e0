package profile

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/robotdriver/internal/infrastructure/logging"
)

// DefaultDebounce is the quiet period before a changed file is reloaded.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads a profile file when it changes and hands valid profiles to
// a callback. Invalid edits are logged and ignored.
type Watcher struct {
	path     string
	onChange func(*Profile)
	logger   *logging.Logger
	debounce time.Duration

	watcher *fsnotify.Watcher
	reload  chan struct{}
	stop    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// NewWatcher prepares a watcher for path. Nothing is watched until Start.
func NewWatcher(path string, onChange func(*Profile), logger *logging.Logger, debounce time.Duration) (*Watcher, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve profile path: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Watcher{
		path:     abs,
		onChange: onChange,
		logger:   logger.Named("profile").With(zap.String("path", abs)),
		debounce: debounce,
		watcher:  fw,
		reload:   make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}, nil
}

// Start watches the profile's directory. Editors often replace files by
// rename, which a watch on the file itself would lose.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w.logger.Info("Watching robot profile")
	w.wg.Add(2)
	go w.watchLoop(ctx)
	go w.reloadLoop(ctx)
	return nil
}

// Stop ends watching and waits for the loops to exit.
func (w *Watcher) Stop() error {
	var err error
	w.once.Do(func() {
		close(w.stop)
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer w.wg.Done()
	name := filepath.Base(w.path)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create), event.Has(fsnotify.Rename):
				w.logger.Debug("Profile change detected", zap.String("op", event.Op.String()))
				w.trigger()
			case event.Has(fsnotify.Remove):
				w.logger.Warn("Profile file removed")
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Profile watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reloadLoop(ctx context.Context) {
	defer w.wg.Done()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-w.reload:
			timer.Reset(w.debounce)
		case <-timer.C:
			w.apply()
		}
	}
}

func (w *Watcher) trigger() {
	select {
	case w.reload <- struct{}{}:
	default:
	}
}

func (w *Watcher) apply() {
	p, err := Load(w.path)
	if err != nil {
		w.logger.Error("Failed to reload robot profile", zap.Error(err))
		return
	}
	w.logger.Info("Robot profile reloaded", zap.String("name", p.Name), zap.Int("joints", len(p.Joints)))
	if w.onChange != nil {
		w.onChange(p)
	}
}
