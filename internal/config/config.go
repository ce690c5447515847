// Package config provides configuration loading and validation from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Defaults for optional settings.
const (
	DefaultPort         = 3030
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "json"
	DefaultAdminDir     = "./client"
	DefaultIdentity     = "email"
	DefaultHasher       = "hmac"
	DefaultMaxBodyBytes = 1 << 20
)

// Config holds all server configuration.
type Config struct {
	Port              int    // PORT, used when ListenAddr is empty
	ListenAddr        string // LISTEN_ADDR, overrides Port (e.g., "127.0.0.1:3030")
	LogLevel          string // debug, info, warn, error
	LogFormat         string // json or text
	MetricsListenAddr string // empty disables the metrics listener

	SeedDir          string // replaces the embedded collections
	ProtectedSeedDir string // replaces the embedded users and sessions
	RulesFile        string // replaces the embedded rules.yaml
	JSONStoreDir     string // documents served by the jsonstore service

	AdminDir string // admin assets read in dev mode
	DevMode  bool

	IdentityField  string // user field used as login name
	PasswordHasher string // hmac or bcrypt
	MaxBodyBytes   int64
	Throttle       bool // initial value of the throttle flag
}

// Load parses configuration from environment variables.
// Every option has a default, so an empty environment is valid.
func Load() (*Config, error) {
	cfg := &Config{
		Port:              DefaultPort,
		ListenAddr:        os.Getenv("LISTEN_ADDR"),
		LogLevel:          envOr("LOG_LEVEL", DefaultLogLevel),
		LogFormat:         envOr("LOG_FORMAT", DefaultLogFormat),
		MetricsListenAddr: os.Getenv("METRICS_LISTEN_ADDR"),
		SeedDir:           os.Getenv("SEED_DIR"),
		ProtectedSeedDir:  os.Getenv("PROTECTED_SEED_DIR"),
		RulesFile:         os.Getenv("RULES_FILE"),
		JSONStoreDir:      os.Getenv("JSONSTORE_DIR"),
		AdminDir:          envOr("ADMIN_DIR", DefaultAdminDir),
		IdentityField:     envOr("IDENTITY_FIELD", DefaultIdentity),
		PasswordHasher:    envOr("PASSWORD_HASHER", DefaultHasher),
		MaxBodyBytes:      DefaultMaxBodyBytes,
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Port = port
	}

	if v := os.Getenv("MAX_BODY_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_BODY_BYTES %q: %w", v, err)
		}
		cfg.MaxBodyBytes = n
	}

	var err error
	if cfg.DevMode, err = envBool("DEV_MODE"); err != nil {
		return nil, err
	}
	if cfg.Throttle, err = envBool("THROTTLE"); err != nil {
		return nil, err
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

// Addr returns the address the HTTP server listens on.
func (c *Config) Addr() string {
	if c.ListenAddr != "" {
		return c.ListenAddr
	}
	return fmt.Sprintf(":%d", c.Port)
}

// Validate checks all configuration constraints.
func (c *Config) Validate() error {
	if c.ListenAddr == "" && (c.Port < 1 || c.Port > 65535) {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.LogLevel)
	}

	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}

	switch c.PasswordHasher {
	case "hmac", "bcrypt":
	default:
		return fmt.Errorf("PASSWORD_HASHER must be hmac or bcrypt, got %q", c.PasswordHasher)
	}

	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("MAX_BODY_BYTES must be positive, got %d", c.MaxBodyBytes)
	}

	if c.IdentityField == "" {
		return fmt.Errorf("IDENTITY_FIELD must not be empty")
	}

	return nil
}
