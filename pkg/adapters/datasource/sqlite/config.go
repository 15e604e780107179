package sqlite

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/ekaya-inc/ekaya-querykit/pkg/adapters/datasource"
)

// MemoryDatabase opens a private in-memory database instead of a file.
const MemoryDatabase = ":memory:"

// Config contains SQLite-specific connection options.
type Config struct {
	// Dir is the directory holding database files.
	Dir string
	// Database is the file name inside Dir, or ":memory:".
	Database string
	// BusyTimeoutMS is how long a locked database is retried before failing.
	BusyTimeoutMS int
}

// DefaultBusyTimeoutMS returns the default busy timeout in milliseconds.
func DefaultBusyTimeoutMS() int {
	return 5000
}

// FromMap creates a Config from a generic config map.
func FromMap(cfgMap map[string]any) (*Config, error) {
	cfg := &Config{
		BusyTimeoutMS: DefaultBusyTimeoutMS(),
	}

	if database, ok := cfgMap["database"].(string); ok && database != "" {
		cfg.Database = database
	} else {
		return nil, fmt.Errorf("database is required")
	}

	if dir, ok := cfgMap["dir"].(string); ok {
		cfg.Dir = dir
	}

	if v, ok := datasource.StringMapFromMap(cfgMap, "params")["busy_timeout"]; ok {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid busy_timeout %q: %w", v, err)
		}
		cfg.BusyTimeoutMS = ms
	}

	return cfg, nil
}

// Path returns the database file, Dir joined with Database.
func (c *Config) Path() string {
	if c.Database == MemoryDatabase {
		return MemoryDatabase
	}
	return filepath.Join(c.Dir, c.Database)
}

// DSN renders the go-sqlite3 connection string.
func (c *Config) DSN() string {
	if c.Database == MemoryDatabase {
		return fmt.Sprintf("file::memory:?_busy_timeout=%d", c.BusyTimeoutMS)
	}
	return fmt.Sprintf("file:%s?_busy_timeout=%d", c.Path(), c.BusyTimeoutMS)
}
