package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Log            LogConfig       `yaml:"log"`
	Transport      TransportConfig `yaml:"transport"`
	ConnectTimeout time.Duration   `yaml:"connect_timeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // "text" or "json"
	File   string `yaml:"file"`   // used while the control TUI owns the terminal
}

// TransportConfig selects the Bluetooth stack.
type TransportConfig struct {
	Backend   string `yaml:"backend"`    // "tinygo" or "hci"
	HCIDevice int    `yaml:"hci_device"` // hci<N>, hci backend only
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "cloudctl")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	home, _ := os.UserHomeDir()
	logFile := filepath.Join(home, ".local", "state", "cloudctl", "control.log")

	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			File:   logFile,
		},
		Transport: TransportConfig{
			Backend: "tinygo",
		},
		ConnectTimeout: 10 * time.Second,
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in log.file is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Log.File = expandTilde(cfg.Log.File)

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn, or error, got %q", c.Log.Level)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be \"text\" or \"json\", got %q", c.Log.Format)
	}

	switch c.Transport.Backend {
	case "tinygo":
	case "hci":
		if c.Transport.HCIDevice < 0 {
			return fmt.Errorf("transport.hci_device must be >= 0, got %d", c.Transport.HCIDevice)
		}
	default:
		return fmt.Errorf("transport.backend must be \"tinygo\" or \"hci\", got %q", c.Transport.Backend)
	}

	if c.ConnectTimeout < 0 {
		return fmt.Errorf("connect_timeout must not be negative, got %s", c.ConnectTimeout)
	}

	return nil
}

// ParseLogLevel maps a config level name to a slog level. Unknown names
// fall back to info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const defaultHeader = `# cloudctl configuration
#
# log.level:         debug | info | warn | error
# log.format:        text | json
# log.file:          log destination while "cloudctl control" is running
# transport.backend: tinygo (default) | hci (Linux only, raw HCI socket)
# connect_timeout:   upper bound for one connect attempt, e.g. 10s
`

// WriteDefault writes the default config to DefaultConfigPath. It returns
// the written path, or "" without touching anything if a file already exists.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("checking %s: %w", path, err)
	}

	body, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(defaultHeader+"\n"), body...), 0o644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
