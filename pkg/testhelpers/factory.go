package testhelpers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-querykit/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-querykit/pkg/adapters/datasource/mysql"
	"github.com/ekaya-inc/ekaya-querykit/pkg/adapters/datasource/postgres"
	"github.com/ekaya-inc/ekaya-querykit/pkg/adapters/datasource/sqlite"
)

// ConnFactory opens MySQL, PostgreSQL and SQLite connections directly, so
// tests do not depend on which adapter build tags are set.
type ConnFactory struct {
	Logger *zap.Logger
}

// NewConnFactory returns a ConnFactory. A nil logger discards output.
func NewConnFactory(logger *zap.Logger) *ConnFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnFactory{Logger: logger}
}

func (f *ConnFactory) Open(ctx context.Context, dsType string, cfgMap map[string]any) (datasource.Conn, error) {
	switch dsType {
	case "mysql":
		cfg, err := mysql.FromMap(cfgMap)
		if err != nil {
			return nil, err
		}
		conn, err := mysql.Open(ctx, cfg, f.Logger)
		if err != nil {
			return nil, err
		}
		return conn, nil
	case "postgres":
		cfg, err := postgres.FromMap(cfgMap)
		if err != nil {
			return nil, err
		}
		conn, err := postgres.Open(ctx, cfg, f.Logger)
		if err != nil {
			return nil, err
		}
		return conn, nil
	case "sqlite":
		cfg, err := sqlite.FromMap(cfgMap)
		if err != nil {
			return nil, err
		}
		conn, err := sqlite.Open(ctx, cfg, f.Logger)
		if err != nil {
			return nil, err
		}
		return conn, nil
	default:
		return nil, fmt.Errorf("unsupported datasource type: %s", dsType)
	}
}

func (f *ConnFactory) ListTypes() []datasource.AdapterInfo {
	return []datasource.AdapterInfo{
		{Type: "mysql", DisplayName: "MySQL"},
		{Type: "postgres", DisplayName: "PostgreSQL"},
		{Type: "sqlite", DisplayName: "SQLite"},
	}
}

var _ datasource.ConnFactory = (*ConnFactory)(nil)
