package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Manager provides thread-safe, read-only configuration management.
// The configuration file is never modified by the server; updates come from
// external sources (ConfigMaps, volume mounts, configuration management tools)
// and are picked up by WatchConfig. Request handlers read settings through
// GetConfig on every request so a reload takes effect immediately.
type Manager interface {
	// GetConfig safely retrieves the current configuration
	GetConfig() *Config

	// ReloadConfig reads the latest configuration from disk and applies it if valid.
	ReloadConfig() error

	// WatchConfig observes the configuration file for external changes.
	// Blocks until context is cancelled.
	WatchConfig(ctx context.Context) error

	// Close releases the file watcher resources
	Close() error
}

// Loader reads a configuration from a path
type Loader interface {
	LoadConfig(path string) (*Config, error)
}

// fileLoader is the default Loader backed by LoadConfig
type fileLoader struct{}

func (fileLoader) LoadConfig(path string) (*Config, error) {
	return LoadConfig(WithConfigPath(path))
}

type manager struct {
	mu         sync.RWMutex
	config     *Config
	configPath string
	loader     Loader
	watcher    *fsnotify.Watcher
	watcherMu  sync.Mutex
}

// ManagerOption allows customizing Manager behavior
type ManagerOption func(*manager)

// WithLoader sets a custom config loader for the manager
func WithLoader(loader Loader) ManagerOption {
	return func(m *manager) {
		m.loader = loader
	}
}

// NewManager creates a Manager for the given configuration file path.
// It loads and validates the initial configuration.
func NewManager(configPath string, opts ...ManagerOption) (Manager, error) {
	m := &manager{
		configPath: configPath,
		loader:     fileLoader{},
	}

	for _, opt := range opts {
		opt(m)
	}

	if err := m.ReloadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load initial configuration: %w", err)
	}

	return m, nil
}

// GetConfig safely retrieves the current configuration
func (m *manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Shallow copy; Config fields are replaced wholesale on reload, never mutated
	configCopy := *m.config
	return &configCopy
}

// ReloadConfig reads the configuration file and applies it if valid.
// If the new configuration is invalid, the previous configuration remains active.
func (m *manager) ReloadConfig() error {
	newConfig, err := m.loader.LoadConfig(m.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := newConfig.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	m.mu.Lock()
	m.config = newConfig
	m.mu.Unlock()

	slog.Info("Configuration loaded", "path", m.configPath)
	return nil
}

// WatchConfig observes the configuration file for external changes.
// This method blocks until the context is cancelled.
func (m *manager) WatchConfig(ctx context.Context) error {
	m.watcherMu.Lock()
	if m.watcher != nil {
		m.watcherMu.Unlock()
		return fmt.Errorf("config watcher is already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		m.watcherMu.Unlock()
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	m.watcher = watcher
	m.watcherMu.Unlock()

	// The directory is watched so that atomic replacements (a rename over the
	// file, or a ConfigMap symlink swap) are seen after the original inode is gone
	configFile := filepath.Clean(m.configPath)
	configDir := filepath.Dir(configFile)
	if err := watcher.Add(configDir); err != nil {
		return fmt.Errorf("failed to watch config directory %s: %w", configDir, err)
	}

	slog.Info("Started watching configuration file", "path", m.configPath)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Stopping config file watcher due to context cancellation")
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher event channel closed")
			}

			if !affectsConfig(event, configFile) {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				slog.Info("External config update detected, reloading", "event", event.Op.String())

				if err := m.ReloadConfig(); err != nil {
					slog.Error("Failed to reload config", "error", err)
				}
				continue
			}

			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				slog.Debug("Config file moved away, waiting for its replacement", "path", event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			slog.Error("File watcher error", "error", err)
		}
	}
}

// kubernetesDataDir is the symlink a ConfigMap volume swaps on update
const kubernetesDataDir = "..data"

// affectsConfig reports whether a directory event concerns the config file
func affectsConfig(event fsnotify.Event, configFile string) bool {
	name := filepath.Clean(event.Name)
	if name == configFile {
		return true
	}
	return filepath.Base(name) == kubernetesDataDir && filepath.Dir(name) == filepath.Dir(configFile)
}

// Close releases resources held by the manager
func (m *manager) Close() error {
	m.watcherMu.Lock()
	defer m.watcherMu.Unlock()

	if m.watcher != nil {
		if err := m.watcher.Close(); err != nil {
			return fmt.Errorf("failed to close file watcher: %w", err)
		}
		m.watcher = nil
		slog.Info("Config watcher closed")
	}

	return nil
}

// staticManager serves a fixed configuration
type staticManager struct {
	config *Config
}

// NewStaticManager wraps an already loaded configuration. Reloading and
// watching are no-ops. Used by one-shot CLI commands and tests.
func NewStaticManager(cfg *Config) Manager {
	return &staticManager{config: cfg}
}

func (s *staticManager) GetConfig() *Config {
	configCopy := *s.config
	return &configCopy
}

func (*staticManager) ReloadConfig() error { return nil }

func (*staticManager) WatchConfig(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (*staticManager) Close() error { return nil }
