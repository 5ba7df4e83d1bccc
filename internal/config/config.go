// Package config loads runtime settings through viper: defaults,
// environment variables and any flags the command binds.
package config

import (
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultHTTPAddr              = ":8098"
	defaultDBPath                = "/data/netduma_telemetry.db"
	defaultHABaseURL             = "http://supervisor/core"
	defaultConfigRefreshInterval = 60 * time.Second
)

// Config stores addon-level settings. Router connection settings come
// from configsync, not from here.
type Config struct {
	HTTPAddr              string
	DBPath                string
	HABaseURL             string
	SupervisorToken       string
	ConfigRefreshInterval time.Duration
	LogLevel              slog.Level
}

func SetDefaults() {
	viper.SetDefault("http_addr", defaultHTTPAddr)
	viper.SetDefault("db_path", defaultDBPath)
	viper.SetDefault("ha_base_url", defaultHABaseURL)
	viper.SetDefault("config_refresh_interval", defaultConfigRefreshInterval.String())
	viper.SetDefault("log_level", "info")
	viper.AutomaticEnv()
	_ = viper.BindEnv("supervisor_token", "SUPERVISOR_TOKEN")
}

func Load() Config {
	return Config{
		HTTPAddr:              viper.GetString("http_addr"),
		DBPath:                viper.GetString("db_path"),
		HABaseURL:             viper.GetString("ha_base_url"),
		SupervisorToken:       strings.TrimSpace(viper.GetString("supervisor_token")),
		ConfigRefreshInterval: duration(viper.GetString("config_refresh_interval"), defaultConfigRefreshInterval),
		LogLevel:              parseLogLevel(viper.GetString("log_level")),
	}
}

// DBDir returns the target directory for DBPath.
func (c Config) DBDir() string {
	return filepath.Dir(c.DBPath)
}

func duration(raw string, fallback time.Duration) time.Duration {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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
