package mssql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/microsoft/go-mssqldb"         // SQL Server driver
	_ "github.com/microsoft/go-mssqldb/azuread" // Azure AD support
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-querykit/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-querykit/pkg/logging"
)

// Open connects to SQL Server and pins a single connection for the session.
func Open(ctx context.Context, cfg *Config, logger *zap.Logger) (*datasource.SQLConn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	connStr := cfg.ConnString()
	db, err := sql.Open(cfg.DriverName(), connStr)
	if err != nil {
		return nil, fmt.Errorf("open %s connection: %w", cfg.AuthMethod, err)
	}
	db.SetMaxOpenConns(1)

	// Test the connection immediately
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connection test failed: %w", err)
	}

	conn, err := datasource.NewSQLConn(ctx, db, Dialect{}, logger)
	if err != nil {
		return nil, err
	}

	logger.Debug("Opened SQL Server connection",
		zap.String("auth_method", cfg.AuthMethod),
		zap.String("dsn", logging.SanitizeConnectionString(connStr)))
	return conn, nil
}
