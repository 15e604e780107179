package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-querykit/pkg/querybuilder"
	"github.com/ekaya-inc/ekaya-querykit/pkg/session"
)

type fetchFlags struct {
	where    []string
	order    []string
	group    []string
	joins    []string
	joinType string
	limit    int
	offset   int
	count    bool
}

func (a *app) newFetchCommand() *cobra.Command {
	var ff fetchFlags

	cmd := &cobra.Command{
		Use:   "fetch <table>",
		Short: "Select rows from a table",
		Long: `Select rows from a table. Unknown columns in --where, --order and --group
are ignored; an unknown table is an error.

A --where value may start with an operator: IS NULL, IS NOT NULL, LIKE,
>=, >, <=, < or !=. Without one the column must equal the value.`,
		Example: `  querykit fetch users --where "age=>= 21" --order name --limit 10
  querykit fetch users --join orders:user_id --where "total=> 100" --count`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := ff.request(args[0])
			if err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context, s *session.Session) (any, error) {
				if req.Count {
					n, err := s.FetchCount(ctx, req)
					if err != nil {
						return nil, err
					}
					return map[string]int64{"count": n}, nil
				}
				return s.FetchTable(ctx, req)
			})
		},
	}

	cmd.Flags().StringArrayVar(&ff.where, "where", nil, "Condition as column=value (repeatable)")
	cmd.Flags().StringArrayVar(&ff.order, "order", nil, "Order by column, optionally column:desc (repeatable)")
	cmd.Flags().StringArrayVar(&ff.group, "group", nil, "Group by column (repeatable)")
	cmd.Flags().StringArrayVar(&ff.joins, "join", nil, "Join another table as table:column (repeatable)")
	cmd.Flags().StringVar(&ff.joinType, "join-type", querybuilder.DefaultJoin, "Join keyword, e.g. \"INNER JOIN\"")
	cmd.Flags().IntVar(&ff.limit, "limit", 0, "Maximum number of rows (0 means no limit)")
	cmd.Flags().IntVar(&ff.offset, "offset", 0, "Rows to skip, used with --limit")
	cmd.Flags().BoolVar(&ff.count, "count", false, "Print the number of matching rows instead of the rows")

	return cmd
}

func (ff *fetchFlags) request(table string) (querybuilder.SelectRequest, error) {
	req := querybuilder.SelectRequest{
		Table:   table,
		Join:    ff.joinType,
		GroupBy: ff.group,
		Count:   ff.count,
	}

	if len(ff.joins) > 0 {
		req.Tables = []querybuilder.JoinTable{{Table: table}}
		for _, j := range ff.joins {
			name, using, ok := strings.Cut(j, ":")
			if !ok || name == "" || using == "" {
				return req, fmt.Errorf("invalid join %q (expected table:column)", j)
			}
			req.Tables = append(req.Tables, querybuilder.JoinTable{Table: name, Using: using})
		}
	}

	for _, w := range ff.where {
		column, value, ok := strings.Cut(w, "=")
		column = strings.TrimSpace(column)
		if !ok || column == "" {
			return req, fmt.Errorf("invalid condition %q (expected column=value)", w)
		}
		req.Where = append(req.Where, querybuilder.Condition{Column: column, Value: strings.TrimSpace(value)})
	}

	for _, o := range ff.order {
		column, dir, _ := strings.Cut(o, ":")
		req.OrderBy = append(req.OrderBy, querybuilder.Order{Column: column, Direction: dir})
	}

	if ff.limit > 0 {
		req.Limit = &querybuilder.Limit{Offset: ff.offset, Count: ff.limit}
	}
	return req, nil
}

func (a *app) newInsertCommand() *cobra.Command {
	var pf paramFlags
	var upsert bool

	cmd := &cobra.Command{
		Use:     "insert <table>",
		Short:   "Insert a row built from the parameters",
		Example: `  querykit insert users -p id=7 -p name=bob --upsert`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := pf.params()
			if err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context, s *session.Session) (any, error) {
				return s.InsertRow(ctx, args[0], params, upsert)
			})
		},
	}

	pf.register(cmd)
	cmd.Flags().BoolVar(&upsert, "upsert", false, "Update the row when its primary key already exists")

	return cmd
}

func (a *app) newUpdateCommand() *cobra.Command {
	var pf paramFlags
	var keys []string

	cmd := &cobra.Command{
		Use:     "update <table>",
		Short:   "Update the rows matching --key with the parameters",
		Example: `  querykit update users -p age=31 --key id=7`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := pf.params()
			if err != nil {
				return err
			}
			key, err := parsePairs(keys)
			if err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context, s *session.Session) (any, error) {
				return s.UpdateRow(ctx, args[0], params, key)
			})
		},
	}

	pf.register(cmd)
	cmd.Flags().StringArrayVar(&keys, "key", nil, "Key column as name=value (repeatable)")

	return cmd
}

func (a *app) newDeleteCommand() *cobra.Command {
	var pf paramFlags

	cmd := &cobra.Command{
		Use:   "delete <table>",
		Short: "Delete the rows matching every parameter",
		Long: `Delete the rows whose columns equal every given parameter. An unknown
column is an error rather than being ignored, so a typo never deletes more
rows than intended.`,
		Example: `  querykit delete users -p id=7`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := pf.params()
			if err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context, s *session.Session) (any, error) {
				return s.DeleteRow(ctx, args[0], params)
			})
		},
	}

	pf.register(cmd)

	return cmd
}
