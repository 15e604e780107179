package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	qsql "github.com/ekaya-inc/ekaya-querykit/pkg/sql"
)

// SQLConn adapts a database/sql handle to Conn. It pins a single *sql.Conn so
// that transactions and the statements inside them share one connection.
type SQLConn struct {
	db      *sql.DB
	conn    *sql.Conn
	tx      *sql.Tx
	dialect Dialect
	logger  *zap.Logger
}

// preparer is satisfied by both *sql.Conn and *sql.Tx.
type preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// NewSQLConn pins a connection from db. On failure db is closed.
func NewSQLConn(ctx context.Context, db *sql.DB, dialect Dialect, logger *zap.Logger) (*SQLConn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("acquire %s connection: %w", dialect.Name(), err)
	}

	return &SQLConn{
		db:      db,
		conn:    conn,
		dialect: dialect,
		logger:  logger,
	}, nil
}

func (c *SQLConn) Ping(ctx context.Context) error {
	var result any
	if err := c.conn.QueryRowContext(ctx, c.dialect.ProbeQuery()).Scan(&result); err != nil {
		return fmt.Errorf("probe query failed: %w", err)
	}
	return nil
}

func (c *SQLConn) Prepare(ctx context.Context, template string) (Stmt, error) {
	style := c.dialect.PlaceholderStyle()
	native, order := qsql.Rewrite(template, style)

	var p preparer = c.conn
	if c.tx != nil {
		p = c.tx
	}

	stmt, err := p.PrepareContext(ctx, native)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(order))
	for _, name := range order {
		known[name] = true
	}

	return &sqlStmt{
		stmt:  stmt,
		order: order,
		style: style,
		known: known,
		bound: make(map[string]any, len(known)),
	}, nil
}

func (c *SQLConn) Begin(ctx context.Context) error {
	if c.tx != nil {
		return errors.New("transaction already active")
	}
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	c.tx = tx
	return nil
}

// Commit keeps the transaction marked active on failure so the caller can
// still issue a Rollback.
func (c *SQLConn) Commit(ctx context.Context) error {
	if c.tx == nil {
		return errors.New("no active transaction")
	}
	if err := c.tx.Commit(); err != nil {
		return err
	}
	c.tx = nil
	return nil
}

func (c *SQLConn) Rollback(ctx context.Context) error {
	if c.tx == nil {
		return errors.New("no active transaction")
	}
	err := c.tx.Rollback()
	c.tx = nil
	return err
}

func (c *SQLConn) InTransaction() bool {
	return c.tx != nil
}

func (c *SQLConn) Dialect() Dialect {
	return c.dialect
}

func (c *SQLConn) Close() error {
	var errs []error
	if c.tx != nil {
		if err := c.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			errs = append(errs, fmt.Errorf("rollback on close: %w", err))
		}
		c.tx = nil
	}
	if err := c.conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		errs = append(errs, err)
	}
	if err := c.db.Close(); err != nil {
		errs = append(errs, err)
	}
	c.logger.Debug("Closed connection", zap.String("dialect", c.dialect.Name()))
	return errors.Join(errs...)
}

var _ Conn = (*SQLConn)(nil)

type sqlStmt struct {
	stmt  *sql.Stmt
	order []string // bare names in argument order
	style qsql.PlaceholderStyle
	known map[string]bool
	bound map[string]any
}

func (s *sqlStmt) Bind(name string, value any, t qsql.ParamType) error {
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

func (s *sqlStmt) args() ([]any, error) {
	args := make([]any, 0, len(s.order))
	for _, name := range s.order {
		v, ok := s.bound[name]
		if !ok {
			return nil, fmt.Errorf("no value bound for %s", qsql.NormalizeName(name))
		}
		if s.style == qsql.StyleAtName {
			args = append(args, sql.Named(name, v))
			continue
		}
		args = append(args, v)
	}
	return args, nil
}

func (s *sqlStmt) Query(ctx context.Context) (*QueryResult, error) {
	args, err := s.args()
	if err != nil {
		return nil, err
	}
	rows, err := s.stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return ScanRows(rows)
}

func (s *sqlStmt) Exec(ctx context.Context) (*ExecResult, error) {
	args, err := s.args()
	if err != nil {
		return nil, err
	}
	res, err := s.stmt.ExecContext(ctx, args...)
	if err != nil {
		return nil, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("read rows affected: %w", err)
	}

	out := &ExecResult{RowsAffected: affected}
	if id, err := res.LastInsertId(); err == nil {
		out.LastInsertID = id
		out.HasLastInsertID = true
	}
	return out, nil
}

func (s *sqlStmt) Close() error {
	return s.stmt.Close()
}
