package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/chaz8081/cloudctl/internal/ble"
	"github.com/chaz8081/cloudctl/internal/cloud"
	"github.com/chaz8081/cloudctl/internal/config"
	"github.com/chaz8081/cloudctl/internal/logging"
)

var (
	configPath string
	logLevel   string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "cloudctl",
	Short: "Control BLE cloud lights",
	Long: `cloudctl finds cloud lights over Bluetooth LE and controls them.

Several clouds can be connected at once. Commands go to the active cloud,
and only the active cloud's state reports are applied.

Transports:
  tinygo  the platform Bluetooth stack (default)
  hci     a raw Linux HCI socket via go-ble (needs CAP_NET_ADMIN)`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if logLevel != "" {
			c.Log.Level = logLevel
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("config validation: %w", err)
		}
		cfg = c
		logging.Setup(cfg.Log, os.Stderr)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: ~/.config/cloudctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		c, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		return c, nil
	}
	return config.Default(), nil
}

// newAdapter builds the transport selected by transport.backend.
func newAdapter(c *config.Config) (ble.Adapter, error) {
	switch c.Transport.Backend {
	case "hci":
		slog.Debug("[BLE] using hci transport", "device", c.Transport.HCIDevice)
		return ble.NewHCIAdapter(c.Transport.HCIDevice)
	default:
		slog.Debug("[BLE] using tinygo transport")
		return ble.NewTinyGoAdapter(), nil
	}
}

// newManager builds a Manager over the configured transport and initializes
// it.
func newManager(cmd *cobra.Command, onEvent func(cloud.Event)) (*cloud.Manager, error) {
	adapter, err := newAdapter(cfg)
	if err != nil {
		return nil, err
	}
	m := cloud.New(adapter, cloud.Options{
		OnEvent:        onEvent,
		ConnectTimeout: cfg.ConnectTimeout,
	})
	if err := m.Init(cmd.Context()); err != nil {
		return nil, err
	}
	return m, nil
}
