// Package config loads configuration from the environment and an optional
// YAML config file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string `yaml:"surrealdb_url"`
	SurrealDBNamespace string `yaml:"surrealdb_namespace"`
	SurrealDBDatabase  string `yaml:"surrealdb_database"`
	SurrealDBUser      string `yaml:"surrealdb_user"`
	SurrealDBPass      string `yaml:"surrealdb_pass"`
	SurrealDBAuthLevel string `yaml:"surrealdb_auth_level"`

	// Identity override for root-auth setups where $auth is empty.
	// When set, CurrentUser resolves to this user without a lookup.
	UserID    string `yaml:"user_id"`
	UserEmail string `yaml:"user_email"`

	// Pagination
	ConversationPageLimit int `yaml:"conversation_page_limit"`
	MessagePageLimit      int `yaml:"message_page_limit"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`
}

// Load reads configuration from an optional config file, then overlays
// environment variables. Env vars win over file values.
func Load() Config {
	cfg := Config{
		SurrealDBURL:       "ws://localhost:8000/rpc",
		SurrealDBNamespace: "oficinas",
		SurrealDBDatabase:  "chat",
		SurrealDBUser:      "root",
		SurrealDBPass:      "root",
		SurrealDBAuthLevel: "root",

		ConversationPageLimit: 20,
		MessagePageLimit:      50,

		LogFile:  "/tmp/oficinas-chat.log",
		LogLevel: slog.LevelInfo,
	}

	if path := configFilePath(); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: ignoring config file %s: %v\n", path, err)
		}
	}

	cfg.SurrealDBURL = getEnv("OFICINAS_SURREALDB_URL", cfg.SurrealDBURL)
	cfg.SurrealDBNamespace = getEnv("OFICINAS_SURREALDB_NAMESPACE", cfg.SurrealDBNamespace)
	cfg.SurrealDBDatabase = getEnv("OFICINAS_SURREALDB_DATABASE", cfg.SurrealDBDatabase)
	cfg.SurrealDBUser = getEnv("OFICINAS_SURREALDB_USER", cfg.SurrealDBUser)
	cfg.SurrealDBPass = getEnv("OFICINAS_SURREALDB_PASS", cfg.SurrealDBPass)
	cfg.SurrealDBAuthLevel = getEnv("OFICINAS_SURREALDB_AUTH_LEVEL", cfg.SurrealDBAuthLevel)

	cfg.UserID = getEnv("OFICINAS_USER_ID", cfg.UserID)
	cfg.UserEmail = getEnv("OFICINAS_USER_EMAIL", cfg.UserEmail)

	cfg.ConversationPageLimit = getEnvInt("OFICINAS_CONVERSATION_PAGE_LIMIT", cfg.ConversationPageLimit)
	cfg.MessagePageLimit = getEnvInt("OFICINAS_MESSAGE_PAGE_LIMIT", cfg.MessagePageLimit)

	cfg.LogFile = getEnv("OFICINAS_LOG_FILE", cfg.LogFile)
	cfg.LogLevel = parseLogLevel(getEnv("OFICINAS_LOG_LEVEL", "INFO"))

	return cfg
}

// configFilePath returns the config file location: OFICINAS_CONFIG if set,
// otherwise ~/.config/oficinas-chat/config.yaml when it exists.
func configFilePath() string {
	if path := os.Getenv("OFICINAS_CONFIG"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(home, ".config", "oficinas-chat", "config.yaml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
