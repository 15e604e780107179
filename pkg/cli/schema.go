package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-querykit/pkg/session"
)

func (a *app) newTablesCommand() *cobra.Command {
	var reload bool

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List the tables of the configured database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, s *session.Session) (any, error) {
				return s.Tables(ctx, reload)
			})
		},
	}

	cmd.Flags().BoolVar(&reload, "reload", false, "Read the table list again instead of using the cached one")

	return cmd
}

func (a *app) newColumnsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "columns <table>",
		Short: "Describe the columns of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, s *session.Session) (any, error) {
				return s.ColumnTypes(ctx, args[0])
			})
		},
	}
}
