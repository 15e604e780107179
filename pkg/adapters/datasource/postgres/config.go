package postgres

import (
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/ekaya-inc/ekaya-querykit/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-querykit/pkg/config"
)

// Config contains PostgreSQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string            // "disable", "require", "verify-ca", "verify-full"
	Params   map[string]string // extra runtime parameters, e.g. application_name
}

// DefaultPort returns the default PostgreSQL port.
func DefaultPort() int {
	return 5432
}

// DefaultSSLMode returns the default SSL mode.
func DefaultSSLMode() string {
	return "require"
}

// FromMap creates a Config from a generic config map.
func FromMap(cfgMap map[string]any) (*Config, error) {
	cfg := &Config{
		Port:    datasource.IntFromMap(cfgMap, "port", DefaultPort()),
		SSLMode: DefaultSSLMode(),
	}

	if host, ok := cfgMap["host"].(string); ok && host != "" {
		cfg.Host = host
	} else {
		return nil, fmt.Errorf("host is required")
	}

	if user, ok := cfgMap["user"].(string); ok && user != "" {
		cfg.User = user
	} else {
		return nil, fmt.Errorf("user is required")
	}

	if password, ok := cfgMap["password"].(string); ok {
		cfg.Password = password
	}

	if database, ok := cfgMap["database"].(string); ok && database != "" {
		cfg.Database = database
	} else {
		return nil, fmt.Errorf("database is required")
	}

	if sslMode, ok := cfgMap["ssl_mode"].(string); ok && sslMode != "" {
		cfg.SSLMode = sslMode
	}

	cfg.Params = datasource.StringMapFromMap(cfgMap, "params")

	return cfg, nil
}

// ConnString builds a PostgreSQL URL with every user-provided part escaped,
// so passwords containing @, / or # survive. When running in Docker, localhost
// is resolved to host.docker.internal.
func (c *Config) ConnString() string {
	query := url.Values{}
	for k, v := range c.Params {
		query.Set(k, v)
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = DefaultSSLMode()
	}
	query.Set("sslmode", sslMode)

	u := url.URL{
		Scheme:   "postgresql",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(config.ResolveHostForDocker(c.Host), strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: query.Encode(),
	}
	return u.String()
}
