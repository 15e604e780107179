package mysql

import (
	"fmt"
	"net"
	"strconv"
	"time"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/ekaya-inc/ekaya-querykit/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-querykit/pkg/config"
)

// Config contains MySQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Params   map[string]string // extra DSN parameters, e.g. charset
}

// DefaultPort returns the default MySQL port.
func DefaultPort() int {
	return 3306
}

// FromMap creates a Config from a generic config map.
func FromMap(cfgMap map[string]any) (*Config, error) {
	cfg := &Config{
		Port: datasource.IntFromMap(cfgMap, "port", DefaultPort()),
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

	cfg.Params = datasource.StringMapFromMap(cfgMap, "params")

	return cfg, nil
}

// DSN renders the driver connection string. Loopback hosts are resolved to
// host.docker.internal when running in a container.
func (c *Config) DSN() string {
	dsn := gomysql.NewConfig()
	dsn.User = c.User
	dsn.Passwd = c.Password
	dsn.Net = "tcp"
	dsn.Addr = net.JoinHostPort(config.ResolveHostForDocker(c.Host), strconv.Itoa(c.Port))
	dsn.DBName = c.Database
	dsn.ParseTime = true
	dsn.Loc = time.UTC
	dsn.MultiStatements = true
	if len(c.Params) > 0 {
		dsn.Params = make(map[string]string, len(c.Params))
		for k, v := range c.Params {
			dsn.Params[k] = v
		}
	}
	return dsn.FormatDSN()
}
