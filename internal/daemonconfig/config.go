// Package daemonconfig holds the ambient settings the core daemon assumes
// exist somewhere: activation timeout, channel sizing, compiler limits,
// and the on-disk state directory.
package daemonconfig

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ActivationConfig bounds how long profile activation may run before it
// is cancelled with krxerr.ErrActivationTimeout (spec.md §5).
type ActivationConfig struct {
	TimeoutMs int `toml:"timeout_ms"`
}

// ChannelsConfig sizes the daemon's bounded event/injection queues (spec.md §5).
type ChannelsConfig struct {
	EventCapacity  int `toml:"event_capacity"`
	InjectCapacity int `toml:"inject_capacity"`
}

// LimitsConfig mirrors the compiler's own compile-time caps (spec.md §4.4)
// so an operator can see them without reading source.
type LimitsConfig struct {
	MaxScriptBytes int `toml:"max_script_bytes"`
	MaxCommands    int `toml:"max_commands"`
}

// StateConfig locates the daemon's on-disk state.
type StateConfig struct {
	MarkerDir  string `toml:"marker_dir"`
	ProfileDir string `toml:"profile_dir"`
}

// Config is the top-level daemon configuration.
type Config struct {
	Activation ActivationConfig `toml:"activation"`
	Channels   ChannelsConfig   `toml:"channels"`
	Limits     LimitsConfig     `toml:"limits"`
	State      StateConfig      `toml:"state"`
}

// Default returns a Config populated with every default value from
// SPEC_FULL's daemon configuration table.
func Default() *Config {
	return &Config{
		Activation: ActivationConfig{
			TimeoutMs: 10000,
		},
		Channels: ChannelsConfig{
			EventCapacity:  256,
			InjectCapacity: 64,
		},
		Limits: LimitsConfig{
			MaxScriptBytes: 524288,
			MaxCommands:    100000,
		},
		State: StateConfig{
			MarkerDir:  DefaultMarkerDir(),
			ProfileDir: DefaultProfileDir(),
		},
	}
}

// DefaultPath returns the default config file path (~/.config/krxd/config.toml).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "krxd", "config.toml")
}

// DefaultMarkerDir returns the default marker-file directory
// (~/.local/state/krx).
func DefaultMarkerDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "krx")
}

// DefaultProfileDir returns the default directory compiled .krx profiles
// are loaded from by name (~/.local/share/krx/profiles).
func DefaultProfileDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "krx", "profiles")
}

// Save writes cfg as TOML to path, creating parent directories as needed.
// The write is atomic: data lands in a temp file in the same directory
// first and is renamed into place, so a crash mid-write cannot corrupt an
// existing config.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".krxd-config-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if err := toml.NewEncoder(tmp).Encode(cfg); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

// Load reads the TOML config at path, overlaying it onto Default(). If the
// file does not exist, Default() is returned without error.
func Load(path string) (*Config, error) {
	cfg := Default()

	_, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
