package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-querykit/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-querykit/pkg/logging"
)

// Open connects to MySQL and pins a single connection for the session.
func Open(ctx context.Context, cfg *Config, logger *zap.Logger) (*datasource.SQLConn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dsn := cfg.DSN()
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql connection: %w", err)
	}
	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connection test failed: %w", err)
	}

	conn, err := datasource.NewSQLConn(ctx, db, Dialect{}, logger)
	if err != nil {
		return nil, err
	}

	logger.Debug("Opened MySQL connection", zap.String("dsn", logging.SanitizeConnectionString(dsn)))
	return conn, nil
}
