package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "config.yaml"

// SupportedTypes lists the database.type values an adapter exists for.
var SupportedTypes = []string{"mysql", "postgres", "mssql", "sqlite"}

// Config holds all configuration for querykit.
// Values are loaded from config.yaml with environment variable overrides.
type Config struct {
	Env     string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version string `yaml:"-"` // Set at load time, not from config

	Log LogConfig `yaml:"log"`

	Database DatabaseConfig `yaml:"database"`

	Session SessionConfig `yaml:"session"`
}

// LogConfig controls logger construction.
type LogConfig struct {
	Level       string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Development bool   `yaml:"development" env:"LOG_DEVELOPMENT" env-default:"false"`
}

// DatabaseConfig holds the connection settings handed to an adapter.
type DatabaseConfig struct {
	Type     string `yaml:"type" env:"DB_TYPE" env-default:"mysql"`
	Host     string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DB_PORT" env-default:"0"` // 0 selects the adapter default
	User     string `yaml:"user" env:"DB_USER" env-default:"root"`
	Password string `yaml:"-" env:"DB_PASSWORD"` // Secret - not in YAML
	Name     string `yaml:"name" env:"DB_NAME"`
	// Dir is the directory holding SQLite database files.
	Dir     string `yaml:"dir" env:"DB_DIR" env-default:"database"`
	SSLMode string `yaml:"ssl_mode" env:"DB_SSL_MODE" env-default:"disable"`
	// Params are extra driver options appended to the DSN.
	Params map[string]string `yaml:"params"`

	// ConnectRetries is how many times opening a connection is retried.
	ConnectRetries int `yaml:"connect_retries" env:"DB_CONNECT_RETRIES" env-default:"2"`

	// SQL Server only. AuthMethod is "sql" or "service_principal"; empty auto-detects.
	AuthMethod   string `yaml:"auth_method" env:"DB_AUTH_METHOD"`
	TenantID     string `yaml:"tenant_id" env:"AZURE_TENANT_ID"`
	ClientID     string `yaml:"client_id" env:"AZURE_CLIENT_ID"`
	ClientSecret string `yaml:"-" env:"AZURE_CLIENT_SECRET"` // Secret - not in YAML
}

// SessionConfig tunes statement execution.
type SessionConfig struct {
	// StrictBind aborts a statement on the first failed bind instead of logging and continuing.
	StrictBind bool `yaml:"strict_bind" env:"SESSION_STRICT_BIND" env-default:"false"`
	// DetectInjection logs a warning for string values that look like SQL injection.
	DetectInjection bool `yaml:"detect_injection" env:"SESSION_DETECT_INJECTION" env-default:"false"`
}

// Load reads configuration from path (config.yaml when empty) with environment
// variable overrides. A .env file in the working directory is loaded first and
// never overrides variables that are already set. A missing config file is not
// an error; everything then comes from the environment.
func Load(path, version string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, fs.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := cfg.Database.normalize(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	return cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func (c *DatabaseConfig) normalize() error {
	c.Type = strings.ToLower(strings.TrimSpace(c.Type))
	if !isSupportedType(c.Type) {
		return fmt.Errorf("unsupported database type %q (expected one of %s)", c.Type, strings.Join(SupportedTypes, ", "))
	}

	if c.Name == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Dir != "" {
		dir, err := homedir.Expand(c.Dir)
		if err != nil {
			return fmt.Errorf("failed to expand dir %q: %w", c.Dir, err)
		}
		c.Dir = dir
	}

	return nil
}

func isSupportedType(t string) bool {
	for _, s := range SupportedTypes {
		if s == t {
			return true
		}
	}
	return false
}

// AdapterConfig converts the settings into the generic map adapters parse
// with their FromMap functions.
func (c *DatabaseConfig) AdapterConfig() map[string]any {
	m := map[string]any{
		"host":     c.Host,
		"user":     c.User,
		"password": c.Password,
		"database": c.Name,
		"dir":      c.Dir,
		"ssl_mode": c.SSLMode,
	}
	if c.Port > 0 {
		m["port"] = c.Port
	}
	for key, value := range map[string]string{
		"auth_method":   c.AuthMethod,
		"tenant_id":     c.TenantID,
		"client_id":     c.ClientID,
		"client_secret": c.ClientSecret,
	} {
		if value != "" {
			m[key] = value
		}
	}
	if len(c.Params) > 0 {
		params := make(map[string]string, len(c.Params))
		for k, v := range c.Params {
			params[k] = v
		}
		m["params"] = params
	}
	return m
}
