package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/rhp30760/sharestream-local/pkg/transfer"
)

// AppConfig holds the application-level configuration for both roles.
type AppConfig struct {
	DeviceName     string        `mapstructure:"device_name"`
	ListenPort     int           `mapstructure:"listen_port"`
	StorePath      string        `mapstructure:"store_path"`
	ChunkSize      int           `mapstructure:"chunk_size"`
	PacingInterval time.Duration `mapstructure:"pacing_interval"`
}

// Load reads config.yaml from the given directory, layered under
// environment variables and built-in defaults. A missing file is not an
// error; the defaults carry a usable setup.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)
	v.SetEnvPrefix("sharestream")
	v.AutomaticEnv()

	v.SetDefault("device_name", "")
	v.SetDefault("listen_port", 8660)
	v.SetDefault("store_path", "./sharestream-data")
	v.SetDefault("chunk_size", transfer.DefaultChunkSize)
	v.SetDefault("pacing_interval", transfer.DefaultPacingInterval)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		slog.Debug("No config file found, using defaults")
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) Validate() error {
	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return fmt.Errorf("invalid listen_port: %d", c.ListenPort)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("invalid chunk_size: %d", c.ChunkSize)
	}
	if c.PacingInterval < 0 {
		return fmt.Errorf("invalid pacing_interval: %s", c.PacingInterval)
	}
	return nil
}

// TransferConfig maps the application settings onto the protocol layer.
func (c *AppConfig) TransferConfig() *transfer.TransferConfig {
	return &transfer.TransferConfig{
		ChunkSize:      c.ChunkSize,
		PacingInterval: c.PacingInterval,
	}
}
