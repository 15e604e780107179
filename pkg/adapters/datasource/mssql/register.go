//go:build mssql || all_adapters

package mssql

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-querykit/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Type:        "mssql",
			DisplayName: "Microsoft SQL Server",
			Description: "Connect to SQL Server 2016+, Azure SQL Database",
		},
		Open: func(ctx context.Context, config map[string]any, logger *zap.Logger) (datasource.Conn, error) {
			cfg, err := FromMap(config)
			if err != nil {
				return nil, err
			}
			conn, err := Open(ctx, cfg, logger)
			if err != nil {
				return nil, err
			}
			return conn, nil
		},
	})
}
