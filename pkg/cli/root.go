// Package cli implements the querykit command line.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-querykit/pkg/config"
	"github.com/ekaya-inc/ekaya-querykit/pkg/logging"
	"github.com/ekaya-inc/ekaya-querykit/pkg/session"
)

type app struct {
	version     string
	configPath  string
	format      string
	sessionOpts []session.Option
}

// NewRootCommand builds the querykit command tree. opts are applied to every
// session a command opens, after the ones derived from configuration.
func NewRootCommand(version string, opts ...session.Option) *cobra.Command {
	a := &app{version: version, sessionOpts: opts}

	cmd := &cobra.Command{
		Use:   "querykit",
		Short: "Run parameterized SQL against MySQL, PostgreSQL, SQL Server and SQLite",
		Long: `querykit runs statements written with :name placeholders, executes atomic
batches and builds simple SELECT, INSERT, UPDATE and DELETE statements from
table and column names checked against the live schema.

Connection settings come from config.yaml and DB_* environment variables.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return checkFormat(a.format)
		},
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultPath, "Path to the configuration file")
	cmd.PersistentFlags().StringVar(&a.format, "format", formatJSON, "Output format: json or yaml")

	cmd.AddCommand(a.newExecCommand())
	cmd.AddCommand(a.newTxCommand())
	cmd.AddCommand(a.newTablesCommand())
	cmd.AddCommand(a.newColumnsCommand())
	cmd.AddCommand(a.newFetchCommand())
	cmd.AddCommand(a.newInsertCommand())
	cmd.AddCommand(a.newUpdateCommand())
	cmd.AddCommand(a.newDeleteCommand())

	return cmd
}

// open loads configuration and creates a session. The returned func closes
// the session and flushes the logger.
func (a *app) open() (*session.Session, func(), error) {
	cfg, err := config.Load(a.configPath, a.version)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, nil, err
	}

	opts := append([]session.Option{
		session.WithLogger(logger),
		session.WithSessionConfig(cfg.Session),
	}, a.sessionOpts...)

	s, err := session.New(cfg.Database, opts...)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}

	logger.Debug("Session opened",
		zap.String("session_id", s.ID().String()),
		zap.String("type", cfg.Database.Type),
		zap.String("database", cfg.Database.Name))

	cleanup := func() {
		if err := s.Close(); err != nil {
			logger.Warn("Failed to close session", zap.String("error", logging.SanitizeError(err)))
		}
		_ = logger.Sync()
	}
	return s, cleanup, nil
}

// run opens a session, calls fn and renders whatever it returns.
func (a *app) run(cmd *cobra.Command, fn func(ctx context.Context, s *session.Session) (any, error)) error {
	s, cleanup, err := a.open()
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := fn(cmd.Context(), s)
	if p, ok := result.(partial); ok {
		if renderErr := render(cmd.OutOrStdout(), a.format, p.value); renderErr != nil {
			return renderErr
		}
		return err
	}
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), a.format, result)
}

// partial is a result printed even though the command fails.
type partial struct {
	value any
}
