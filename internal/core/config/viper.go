package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration with viper.
// Precedence: CLI flags > NETTO_* environment > config file > defaults.
// Flag overrides are applied by the CLI layer after Load returns.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	defaults := Default()
	v.SetDefault("server.addr", defaults.Addr)
	v.SetDefault("server.request_timeout", defaults.RequestTimeout.String())
	v.SetDefault("db.url", defaults.DBURL)
	v.SetDefault("log.level", defaults.LogLevel)
	v.SetDefault("log.format", defaults.LogFormat)

	// server.addr becomes NETTO_SERVER_ADDR and so on.
	v.SetEnvPrefix("NETTO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := &Config{
		Addr:           v.GetString("server.addr"),
		DBURL:          v.GetString("db.url"),
		RequestTimeout: v.GetDuration("server.request_timeout"),
		LogLevel:       v.GetString("log.level"),
		LogFormat:      v.GetString("log.format"),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if cfg.DBURL == "" {
		return fmt.Errorf("db.url must not be empty")
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive, got %v", cfg.RequestTimeout)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", cfg.LogLevel)
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", cfg.LogFormat)
	}
	return nil
}
