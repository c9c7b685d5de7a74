package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/nostrbackup/internal/config"
	"git.home.luguber.info/inful/nostrbackup/internal/logfields"
)

// Reloader applies a freshly loaded configuration.
type Reloader interface {
	ReloadConfig(ctx context.Context, cfg *config.Config) error
}

// ConfigWatcher monitors the configuration file and reloads it after changes
// settle.
type ConfigWatcher struct {
	configPath   string
	target       Reloader
	watcher      *fsnotify.Watcher
	mu           sync.Mutex
	stopChan     chan struct{}
	stopOnce     sync.Once
	reloadChan   chan struct{}
	debounceTime time.Duration
	onReload     func(error)
}

// NewConfigWatcher creates a watcher for configPath.
func NewConfigWatcher(configPath string, target Reloader) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	return &ConfigWatcher{
		configPath:   absPath,
		target:       target,
		watcher:      watcher,
		stopChan:     make(chan struct{}),
		reloadChan:   make(chan struct{}, 1),
		debounceTime: time.Second,
	}, nil
}

// Start begins monitoring the configuration file.
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	// Editors replace files; watching the directory survives that.
	configDir := filepath.Dir(cw.configPath)
	if err := cw.watcher.Add(configDir); err != nil {
		return fmt.Errorf("failed to watch config directory %s: %w", configDir, err)
	}

	slog.Info("Starting configuration watcher", slog.String("config_path", cw.configPath))

	go cw.watchLoop(ctx)
	go cw.reloadLoop(ctx)
	return nil
}

// Stop stops the configuration watcher.
func (cw *ConfigWatcher) Stop(_ context.Context) error {
	var err error
	cw.stopOnce.Do(func() {
		slog.Info("Stopping configuration watcher")
		close(cw.stopChan)
		err = cw.watcher.Close()
	})
	return err
}

func (cw *ConfigWatcher) watchLoop(ctx context.Context) {
	configFile := filepath.Base(cw.configPath)

	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stopChan:
			return
		case ev, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != configFile {
				continue
			}
			switch {
			case ev.Has(fsnotify.Write), ev.Has(fsnotify.Create), ev.Has(fsnotify.Rename):
				slog.Debug("Config file change detected", slog.String("file", ev.Name), slog.String("op", ev.Op.String()))
				cw.triggerReload()
			case ev.Has(fsnotify.Remove):
				slog.Warn("Config file removed", slog.String("file", ev.Name))
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Config watcher error", logfields.Error(err))
		}
	}
}

func (cw *ConfigWatcher) reloadLoop(ctx context.Context) {
	var timer *time.Timer
	stop := func() {
		if timer != nil {
			timer.Stop()
		}
	}

	for {
		select {
		case <-ctx.Done():
			stop()
			return
		case <-cw.stopChan:
			stop()
			return
		case <-cw.reloadChan:
			stop()
			timer = time.AfterFunc(cw.debounceTime, func() {
				err := cw.performReload(ctx)
				if err != nil {
					slog.Error("Failed to reload configuration", logfields.Error(err))
				}
				if cw.onReload != nil {
					cw.onReload(err)
				}
			})
		}
	}
}

func (cw *ConfigWatcher) triggerReload() {
	select {
	case cw.reloadChan <- struct{}{}:
	default:
	}
}

func (cw *ConfigWatcher) performReload(ctx context.Context) error {
	slog.Info("Reloading configuration", slog.String("config_path", cw.configPath))

	cfg, err := config.Load(cw.configPath)
	if err != nil {
		return err
	}
	if err := cw.target.ReloadConfig(ctx, cfg); err != nil {
		return fmt.Errorf("failed to apply new configuration: %w", err)
	}
	slog.Info("Configuration reloaded successfully")
	return nil
}
