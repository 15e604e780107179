package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-querykit/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-querykit/pkg/logging"
	qsql "github.com/ekaya-inc/ekaya-querykit/pkg/sql"
)

// statementPrefix prefixes server-side prepared statement names.
const statementPrefix = "qk_"

// Conn is a single native pgx connection.
type Conn struct {
	conn    *pgx.Conn
	tx      pgx.Tx
	dialect Dialect
	logger  *zap.Logger
}

// Open connects to PostgreSQL.
func Open(ctx context.Context, cfg *Config, logger *zap.Logger) (*Conn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	connStr := cfg.ConnString()
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	logger.Debug("Opened PostgreSQL connection", zap.String("dsn", logging.SanitizeConnectionString(connStr)))
	return &Conn{
		conn:   conn,
		logger: logger,
	}, nil
}

func (c *Conn) Ping(ctx context.Context) error {
	var result int
	if err := c.conn.QueryRow(ctx, c.dialect.ProbeQuery()).Scan(&result); err != nil {
		return fmt.Errorf("probe query failed: %w", err)
	}
	return nil
}

// Prepare creates a named server-side statement. Statements prepared inside a
// transaction run on the same connection and therefore inside it.
func (c *Conn) Prepare(ctx context.Context, template string) (datasource.Stmt, error) {
	native, order := qsql.Rewrite(template, qsql.StyleDollar)
	name := statementPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")

	if _, err := c.conn.Prepare(ctx, name, native); err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(order))
	for _, n := range order {
		known[n] = true
	}

	return &stmt{
		conn:  c,
		name:  name,
		order: order,
		known: known,
		bound: make(map[string]any, len(order)),
	}, nil
}

func (c *Conn) Begin(ctx context.Context) error {
	if c.tx != nil {
		return errors.New("transaction already active")
	}
	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return err
	}
	c.tx = tx
	return nil
}

// Commit keeps the transaction marked active on failure so the caller can
// still issue a Rollback.
func (c *Conn) Commit(ctx context.Context) error {
	if c.tx == nil {
		return errors.New("no active transaction")
	}
	if err := c.tx.Commit(ctx); err != nil {
		return err
	}
	c.tx = nil
	return nil
}

func (c *Conn) Rollback(ctx context.Context) error {
	if c.tx == nil {
		return errors.New("no active transaction")
	}
	err := c.tx.Rollback(ctx)
	c.tx = nil
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

func (c *Conn) InTransaction() bool {
	return c.tx != nil
}

func (c *Conn) Dialect() datasource.Dialect {
	return c.dialect
}

func (c *Conn) Close() error {
	ctx := context.Background()
	var errs []error
	if c.tx != nil {
		if err := c.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			errs = append(errs, fmt.Errorf("rollback on close: %w", err))
		}
		c.tx = nil
	}
	if err := c.conn.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	c.logger.Debug("Closed connection", zap.String("dialect", c.dialect.Name()))
	return errors.Join(errs...)
}

var _ datasource.Conn = (*Conn)(nil)

type stmt struct {
	conn  *Conn
	name  string
	order []string // bare names by $N position
	known map[string]bool
	bound map[string]any
}

func (s *stmt) Bind(name string, value any, t qsql.ParamType) error {
	bare := qsql.BareName(name)
	if !s.known[bare] {
		return fmt.Errorf("statement has no placeholder %s", qsql.NormalizeName(name))
	}
	v, err := qsql.Coerce(value, t)
	if err != nil {
		return err
	}
	s.bound[bare] = v
	return nil
}

func (s *stmt) args() ([]any, error) {
	args := make([]any, len(s.order))
	for i, name := range s.order {
		v, ok := s.bound[name]
		if !ok {
			return nil, fmt.Errorf("no value bound for %s", qsql.NormalizeName(name))
		}
		args[i] = v
	}
	return args, nil
}

func (s *stmt) Query(ctx context.Context) (*datasource.QueryResult, error) {
	args, err := s.args()
	if err != nil {
		return nil, err
	}

	rows, err := s.conn.conn.Query(ctx, s.name, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = fd.Name
	}

	result := &datasource.QueryResult{
		Columns: columns,
		Rows:    make([]map[string]any, 0),
	}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		result.Rows = append(result.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return result, nil
}

// Exec reports affected rows from the command tag. PostgreSQL has no
// connection-level last insert id; use RETURNING instead.
func (s *stmt) Exec(ctx context.Context) (*datasource.ExecResult, error) {
	args, err := s.args()
	if err != nil {
		return nil, err
	}

	tag, err := s.conn.conn.Exec(ctx, s.name, args...)
	if err != nil {
		return nil, err
	}
	return &datasource.ExecResult{RowsAffected: tag.RowsAffected()}, nil
}

// Close deallocates the server-side statement.
func (s *stmt) Close() error {
	return s.conn.conn.Deallocate(context.Background(), s.name)
}

// normalizeValue converts pgx-specific values into plain Go values.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case [16]byte:
		return uuid.UUID(val).String()
	case driver.Valuer:
		if out, err := val.Value(); err == nil {
			return out
		}
	}
	return v
}
