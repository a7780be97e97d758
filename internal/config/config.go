// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	DBPath       string
	ContentPath  string // empty = embedded default bundle
	JourneyID    string // empty = bundle's journey id
	LogMode      string
	APIAddr      string
	RemoteURL    string // when set, progress syncs over HTTP instead of the local store
	JWTSecret    string
	RedisAddr    string // when set, tokens are cached in Redis
	Token        string // bearer token seeded into the token cache
	SnapshotKeep int
	ExamDuration time.Duration // 0 = use the final test's own duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	dbPath := getEnv("PREPCOACH_DB", "")
	if dbPath == "" {
		p, err := DefaultDBPath()
		if err != nil {
			return nil, err
		}
		dbPath = p
	}

	cfg := &Config{
		DBPath:       dbPath,
		ContentPath:  getEnv("PREPCOACH_CONTENT", ""),
		JourneyID:    getEnv("PREPCOACH_JOURNEY", ""),
		LogMode:      getEnv("PREPCOACH_LOG_MODE", "quiet"),
		APIAddr:      getEnv("PREPCOACH_API_ADDR", ":8080"),
		RemoteURL:    getEnv("PREPCOACH_REMOTE_URL", ""),
		JWTSecret:    getEnv("PREPCOACH_JWT_SECRET", ""),
		RedisAddr:    getEnv("PREPCOACH_REDIS_ADDR", ""),
		Token:        getEnv("PREPCOACH_TOKEN", ""),
		SnapshotKeep: getEnvInt("PREPCOACH_SNAPSHOT_KEEP", 10),
		ExamDuration: time.Duration(getEnvInt("PREPCOACH_EXAM_SECONDS", 0)) * time.Second,
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("PREPCOACH_DB cannot be empty")
	}
	if c.SnapshotKeep <= 0 {
		return fmt.Errorf("PREPCOACH_SNAPSHOT_KEEP must be > 0")
	}
	if c.ExamDuration < 0 {
		return fmt.Errorf("PREPCOACH_EXAM_SECONDS must be >= 0")
	}
	if c.RemoteURL != "" && !strings.HasPrefix(c.RemoteURL, "http://") && !strings.HasPrefix(c.RemoteURL, "https://") {
		return fmt.Errorf("PREPCOACH_REMOTE_URL must be an http(s) URL")
	}
	return nil
}

// DefaultDBPath resolves the database file path:
// 1. $XDG_DATA_HOME/prepcoach/prepcoach.db
// 2. ~/.local/share/prepcoach/prepcoach.db
func DefaultDBPath() (string, error) {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "prepcoach", "prepcoach.db"), nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}
