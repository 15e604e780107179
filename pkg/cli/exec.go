package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-querykit/pkg/session"
)

func (a *app) newExecCommand() *cobra.Command {
	var pf paramFlags
	var closeAfter bool

	cmd := &cobra.Command{
		Use:   "exec <sql>",
		Short: "Execute one statement",
		Long: `Execute one statement written with :name placeholders.

Parameters the statement does not use are ignored. A placeholder without a
parameter is an error and nothing is sent to the database.`,
		Example: `  querykit exec "SELECT * FROM users WHERE id = :id" -p id=7
  querykit exec "INSERT INTO users (name) VALUES (:name); SELECT LAST_INSERT_ID();" -p name=bob`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := pf.params()
			if err != nil {
				return err
			}
			var opts []session.ExecOption
			if closeAfter {
				opts = append(opts, session.WithCloseAfter())
			}
			return a.run(cmd, func(ctx context.Context, s *session.Session) (any, error) {
				return s.Execute(ctx, args[0], params, opts...)
			})
		},
	}

	pf.register(cmd)
	cmd.Flags().BoolVar(&closeAfter, "close", false, "Close the connection after the statement")

	return cmd
}
