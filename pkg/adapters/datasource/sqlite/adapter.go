package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-querykit/pkg/adapters/datasource"
)

// Open opens the database file, creating its directory when needed.
func Open(ctx context.Context, cfg *Config, logger *zap.Logger) (*datasource.SQLConn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.Database != MemoryDatabase && cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database lives exactly as long as its single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Enable foreign keys (disabled by default in SQLite)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	conn, err := datasource.NewSQLConn(ctx, db, Dialect{}, logger)
	if err != nil {
		return nil, err
	}

	logger.Debug("Opened SQLite database", zap.String("path", cfg.Path()))
	return conn, nil
}
