package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	defaultListenAddr = ":8080"
	defaultDBPath     = "foundry.db"
	defaultPoolLimit  = 4

	envConfigFile = "FOUNDRY_CONFIG"
	envListenAddr = "FOUNDRY_LISTEN_ADDR"
	envDBPath     = "FOUNDRY_DB_PATH"
	envLogLevel   = "FOUNDRY_LOG_LEVEL"
	envPoolLimit  = "FOUNDRY_POOL_LIMIT"
)

// Config holds application configuration. Values come from an optional TOML
// file, overridden by environment variables, over built-in defaults.
type Config struct {
	ListenAddr string
	DBPath     string
	PoolLimit  int
	LogLevel   slog.Level
}

// fileConfig mirrors the TOML file shape.
type fileConfig struct {
	ListenAddr string `toml:"listen_addr"`
	DBPath     string `toml:"db_path"`
	PoolLimit  int    `toml:"pool_limit"`
	LogLevel   string `toml:"log_level"`
}

// Load reads configuration from the optional FOUNDRY_CONFIG file and the
// environment, with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr: defaultListenAddr,
		DBPath:     defaultDBPath,
		PoolLimit:  defaultPoolLimit,
		LogLevel:   slog.LevelInfo,
	}

	if path := os.Getenv(envConfigFile); path != "" {
		var raw fileConfig
		meta, err := toml.DecodeFile(path, &raw)
		if err != nil {
			return Config{}, fmt.Errorf("load config file: %w", err)
		}
		if meta.IsDefined("listen_addr") {
			cfg.ListenAddr = raw.ListenAddr
		}
		if meta.IsDefined("db_path") {
			cfg.DBPath = raw.DBPath
		}
		if meta.IsDefined("pool_limit") && raw.PoolLimit > 0 {
			cfg.PoolLimit = raw.PoolLimit
		}
		if meta.IsDefined("log_level") {
			cfg.LogLevel = parseLogLevel(raw.LogLevel)
		}
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envPoolLimit); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid %s: %q", envPoolLimit, v)
		}
		cfg.PoolLimit = n
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}

	return cfg, nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
