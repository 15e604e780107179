package mssql

import (
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/ekaya-inc/ekaya-querykit/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-querykit/pkg/config"
)

// Authentication methods.
const (
	AuthSQL              = "sql"
	AuthServicePrincipal = "service_principal"
)

// Config contains SQL Server-specific connection options.
type Config struct {
	Host     string
	Port     int
	Database string

	// AuthMethod determines which authentication to use: "sql" or "service_principal".
	AuthMethod string

	// SQL Authentication fields
	Username string
	Password string

	// Service Principal (Azure AD) fields
	TenantID     string
	ClientID     string
	ClientSecret string

	// Connection options
	Encrypt                bool
	TrustServerCertificate bool
	ConnectionTimeout      int
	Params                 map[string]string
}

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// DefaultConnectionTimeout returns the default connection timeout in seconds.
func DefaultConnectionTimeout() int {
	return 30
}

// FromMap creates a Config from a generic config map and auto-detects auth method.
func FromMap(cfgMap map[string]any) (*Config, error) {
	cfg := &Config{
		Port:              datasource.IntFromMap(cfgMap, "port", DefaultPort()),
		ConnectionTimeout: datasource.IntFromMap(cfgMap, "connection_timeout", DefaultConnectionTimeout()),
		Params:            datasource.StringMapFromMap(cfgMap, "params"),
	}

	if host, ok := cfgMap["host"].(string); ok && host != "" {
		cfg.Host = host
	} else {
		return nil, fmt.Errorf("host is required")
	}

	if database, ok := cfgMap["database"].(string); ok && database != "" {
		cfg.Database = database
	} else {
		return nil, fmt.Errorf("database is required")
	}

	// ssl_mode follows the libpq vocabulary shared by every adapter; an explicit
	// encrypt option wins.
	sslMode, _ := cfgMap["ssl_mode"].(string)
	cfg.Encrypt = sslMode != "" && sslMode != "disable"
	if encrypt, ok := cfgMap["encrypt"].(bool); ok {
		cfg.Encrypt = encrypt
	} else if encryptStr, ok := cfgMap["encrypt"].(string); ok {
		// Support string values: "true", "false", "strict"
		cfg.Encrypt = encryptStr == "true" || encryptStr == "strict"
	}

	if trust, ok := cfgMap["trust_server_certificate"].(bool); ok {
		cfg.TrustServerCertificate = trust
	}

	// Auto-detect auth method or use explicitly provided
	if authMethod, ok := cfgMap["auth_method"].(string); ok && authMethod != "" {
		cfg.AuthMethod = authMethod
	} else if _, hasClientID := cfgMap["client_id"].(string); hasClientID {
		cfg.AuthMethod = AuthServicePrincipal
	} else if user, hasUser := cfgMap["user"].(string); hasUser && user != "" {
		cfg.AuthMethod = AuthSQL
	} else {
		return nil, fmt.Errorf("could not auto-detect auth method; no credentials provided")
	}

	switch cfg.AuthMethod {
	case AuthSQL:
		if user, ok := cfgMap["user"].(string); ok && user != "" {
			cfg.Username = user
		} else {
			return nil, fmt.Errorf("user is required for SQL authentication")
		}
		// Password can be empty for some scenarios
		cfg.Password, _ = cfgMap["password"].(string)

	case AuthServicePrincipal:
		cfg.TenantID, _ = cfgMap["tenant_id"].(string)
		cfg.ClientID, _ = cfgMap["client_id"].(string)
		cfg.ClientSecret, _ = cfgMap["client_secret"].(string)

	default:
		return nil, fmt.Errorf("invalid auth method: %s (must be sql or service_principal)", cfg.AuthMethod)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the config has all required fields for the selected auth method.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	switch c.AuthMethod {
	case AuthSQL:
		if c.Username == "" {
			return fmt.Errorf("user is required for SQL authentication")
		}
	case AuthServicePrincipal:
		if c.TenantID == "" {
			return fmt.Errorf("tenant_id is required for service principal authentication")
		}
		if c.ClientID == "" {
			return fmt.Errorf("client_id is required for service principal authentication")
		}
		if c.ClientSecret == "" {
			return fmt.Errorf("client_secret is required for service principal authentication")
		}
	default:
		return fmt.Errorf("invalid auth method: %s", c.AuthMethod)
	}

	return nil
}

// DriverName is the database/sql driver for the auth method. Service principal
// logins go through the Azure AD aware "azuresql" driver.
func (c *Config) DriverName() string {
	if c.AuthMethod == AuthServicePrincipal {
		return "azuresql"
	}
	return "sqlserver"
}

// ConnString renders a sqlserver:// URL for the configured auth method.
func (c *Config) ConnString() string {
	query := url.Values{}
	for k, v := range c.Params {
		query.Set(k, v)
	}
	query.Set("database", c.Database)
	query.Set("encrypt", strconv.FormatBool(c.Encrypt))
	if c.TrustServerCertificate {
		query.Set("TrustServerCertificate", "true")
	}
	if c.ConnectionTimeout > 0 {
		query.Set("connection timeout", strconv.Itoa(c.ConnectionTimeout))
	}

	u := url.URL{
		Scheme: "sqlserver",
		Host:   net.JoinHostPort(config.ResolveHostForDocker(c.Host), strconv.Itoa(c.Port)),
	}

	switch c.AuthMethod {
	case AuthServicePrincipal:
		query.Set("fedauth", "ActiveDirectoryServicePrincipal")
		query.Set("user id", c.ClientID+"@"+c.TenantID)
		query.Set("password", c.ClientSecret)
	default:
		u.User = url.UserPassword(c.Username, c.Password)
	}

	u.RawQuery = query.Encode()
	return u.String()
}
