// Package config loads fieldschema.yaml and keeps it current while a
// long-running command such as watch is open.
package config

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Holder keeps the latest good configuration. Listeners registered with
// OnChange see every successful reload; a file that fails to load leaves
// the previous configuration in place.
type Holder struct {
	mu       sync.RWMutex
	config   *Config
	path     string
	logger   zerolog.Logger
	watcher  *fsnotify.Watcher
	onChange []func(*Config)
	stopCh   chan struct{}
}

// NewHolder loads path and returns a holder for it. Nothing is watched
// until WatchFile or WatchSignals is called.
func NewHolder(path string, logger zerolog.Logger) (*Holder, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}

	h := &Holder{
		config: cfg,
		path:   absPath,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	return h, nil
}

// Get returns the configuration in effect.
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.config
}

// Reload reads the file again and notifies listeners. Keys that only take
// effect at startup are logged with a warning.
func (h *Holder) Reload() error {
	h.logger.Debug().Str("path", h.path).Msg("reading config file")

	newCfg, err := Load(h.path)
	if err != nil {
		h.logger.Error().Err(err).Str("path", h.path).Msg("config file rejected, schema settings unchanged")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	oldCfg := h.config
	h.config = newCfg
	h.mu.Unlock()

	for _, c := range Diff(oldCfg, newCfg) {
		h.logger.Info().Str("key", c.Key).Str("old", c.Old).Str("new", c.New).Msg("config changed")
		if !isReloadable(c.Key) {
			h.logger.Warn().Str("key", c.Key).Msg("setting applies on next fieldctl start")
		}
	}

	h.mu.RLock()
	listeners := append([]func(*Config){}, h.onChange...)
	h.mu.RUnlock()
	for _, fn := range listeners {
		fn(newCfg)
	}

	h.logger.Info().Str("path", h.path).Msg("config reloaded")
	return nil
}

// OnChange adds a listener. bootstrap.App.Watch uses it to apply the log
// level and load new module definitions.
func (h *Holder) OnChange(fn func(*Config)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = append(h.onChange, fn)
}

// WatchFile reloads whenever the config file is written.
func (h *Holder) WatchFile() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	h.watcher = watcher

	// Editors that save by rename replace the inode, so watch the parent.
	dir := filepath.Dir(h.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}

	go h.watchLoop()

	h.logger.Debug().Str("path", h.path).Msg("watching config file")
	return nil
}

// WatchSignals reloads on SIGHUP.
func (h *Holder) WatchSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	go func() {
		for {
			select {
			case <-sigCh:
				h.logger.Info().Msg("SIGHUP")
				if err := h.Reload(); err != nil {
					h.logger.Error().Err(err).Msg("SIGHUP reload failed")
				}
			case <-h.stopCh:
				signal.Stop(sigCh)
				return
			}
		}
	}()

	h.logger.Debug().Msg("SIGHUP reloads config")
}

// Stop ends file and signal watching. Call it once.
func (h *Holder) Stop() {
	close(h.stopCh)
	if h.watcher != nil {
		h.watcher.Close()
	}
}

func (h *Holder) watchLoop() {
	filename := filepath.Base(h.path)

	for {
		select {
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != filename {
				continue
			}

			// A rename-based save shows up as Create.
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				h.logger.Debug().
					Str("event", event.Op.String()).
					Str("file", event.Name).
					Msg("config file touched")

				if err := h.Reload(); err != nil {
					h.logger.Error().Err(err).Msg("file watch reload failed")
				}
			}

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Msg("file watcher error")

		case <-h.stopCh:
			return
		}
	}
}

// Change is one configuration key whose value differs after a reload.
type Change struct {
	Key string
	Old string
	New string
}

// Diff lists the keys that differ between two configurations.
func Diff(old, cur *Config) []Change {
	var out []Change
	add := func(key, o, n string) {
		if o != n {
			out = append(out, Change{Key: key, Old: o, New: n})
		}
	}
	add("database.driver", old.Database.Driver, cur.Database.Driver)
	add("database.dsn", old.Database.DSN, cur.Database.DSN)
	add("logging.level", old.Logging.Level, cur.Logging.Level)
	add("logging.format", old.Logging.Format, cur.Logging.Format)
	add("modules.dir", old.Modules.Dir, cur.Modules.Dir)
	add("modules.embedded", fmt.Sprint(old.Modules.LoadEmbedded()), fmt.Sprint(cur.Modules.LoadEmbedded()))
	add("audit.enabled", fmt.Sprint(old.Audit.IsEnabled()), fmt.Sprint(cur.Audit.IsEnabled()))
	add("metrics.enabled", fmt.Sprint(old.Metrics.Enabled), fmt.Sprint(cur.Metrics.Enabled))
	add("metrics.namespace", old.Metrics.Namespace, cur.Metrics.Namespace)
	return out
}

// ReloadableFields lists the keys a running watch applies on reload.
func ReloadableFields() []string {
	return []string{
		"logging.level",
		"modules.dir",
	}
}

// NonReloadableFields lists the keys read only at startup.
func NonReloadableFields() []string {
	return []string{
		"database.driver",
		"database.dsn",
		"logging.format",
		"modules.embedded",
		"audit.enabled",
		"metrics.enabled",
		"metrics.namespace",
	}
}

func isReloadable(key string) bool {
	for _, k := range ReloadableFields() {
		if k == key {
			return true
		}
	}
	return false
}
