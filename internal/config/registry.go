package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/muurk/essp/internal/logging"
)

const (
	appName    = "essp"
	configFile = "config.yaml"
)

// ConfigDirEnvVar overrides the configuration directory, e.g. on a till
// image whose home directory is read-only.
const ConfigDirEnvVar = "ESSP_CONFIG_DIR"

// fileMu serialises registry reads and writes within the process.
var fileMu sync.Mutex

// GetConfigDir returns the directory holding the registry: $ESSP_CONFIG_DIR
// when set, otherwise the platform's user config directory (XDG on Linux,
// ~/.config on macOS, %AppData% on Windows) plus "essp".
func GetConfigDir() (string, error) {
	if dir := os.Getenv(ConfigDirEnvVar); dir != "" {
		return dir, nil
	}

	if runtime.GOOS == "darwin" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(home, ".config", appName), nil
	}

	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return filepath.Join(base, appName), nil
}

// GetConfigPath returns the full path to the configuration file.
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFile), nil
}

// Load reads the registry at path, or at GetConfigPath when path is empty.
// A missing file yields a new default registry bound to that path.
func Load(path string) (*Registry, error) {
	if path == "" {
		var err error
		if path, err = GetConfigPath(); err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
	}

	fileMu.Lock()
	defer fileMu.Unlock()

	reg, err := loadRegistryFromFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logging.Debug("No config file, using defaults", zap.String("path", path))
		reg = NewRegistry()
		reg.path = path
		return reg, nil
	}
	return reg, err
}

// loadRegistryFromFile parses and validates one config file.
func loadRegistryFromFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var registry Registry
	if err := yaml.Unmarshal(data, &registry); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if registry.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version: %d (expected %d)", registry.Version, CurrentVersion)
	}

	if registry.Devices == nil {
		registry.Devices = make(map[string]*DeviceProfile)
	}
	if registry.Defaults == nil {
		registry.Defaults = NewRegistry().Defaults
	}
	if err := registry.Defaults.Validate(); err != nil {
		return nil, fmt.Errorf("defaults: %w", err)
	}
	for name, p := range registry.Devices {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("device %q: %w", name, err)
		}
	}

	registry.path = path
	logging.Debug("Config loaded", zap.String("path", path), zap.Int("devices", len(registry.Devices)))
	return &registry, nil
}

// marshalRegistry renders the registry with a header comment.
func marshalRegistry(r *Registry) ([]byte, error) {
	data, err := yaml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# essp configuration file
# Serial device profiles. Durations are in milliseconds.
# Negotiated encryption keys are never stored here.

`)
	return append(header, data...), nil
}

// Path returns the file the registry was loaded from or will be saved to.
func (r *Registry) Path() string { return r.path }

// Save writes the registry back to its path. The file is replaced
// atomically, so a crash mid-write leaves the previous version intact.
func (r *Registry) Save() error {
	if r.path == "" {
		path, err := GetConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
		r.path = path
	}

	data, err := marshalRegistry(r)
	if err != nil {
		return err
	}

	fileMu.Lock()
	defer fileMu.Unlock()

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := writeAtomic(dir, r.path, data); err != nil {
		return err
	}

	logging.Debug("Config saved", zap.String("path", r.path), zap.Int("devices", len(r.Devices)))
	return nil
}

func writeAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, "."+configFile+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary config file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush temporary config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary config file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("failed to set config file mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}
