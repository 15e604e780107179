//go:build mysql || all_adapters

package mysql

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-querykit/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Type:        "mysql",
			DisplayName: "MySQL",
			Description: "Connect to MySQL 5.7+, MariaDB, Aurora MySQL",
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
