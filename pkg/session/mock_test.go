package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-querykit/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-querykit/pkg/adapters/datasource/mysql"
	"github.com/ekaya-inc/ekaya-querykit/pkg/config"
	"github.com/ekaya-inc/ekaya-querykit/pkg/retry"
	qsql "github.com/ekaya-inc/ekaya-querykit/pkg/sql"
)

// mockConn is an in-memory datasource.Conn. Results and failures are keyed by
// the exact template handed to Prepare.
type mockConn struct {
	dialect datasource.Dialect

	pingErr     error
	beginErr    error
	commitErr   error
	rollbackErr error
	prepareErrs map[string]error
	execErrs    map[string]error
	queryRows   map[string]*datasource.QueryResult
	execResults map[string]*datasource.ExecResult

	inTx     bool
	closed   bool
	prepared []*mockStmt
	calls    []string
}

func newMockConn() *mockConn {
	return &mockConn{
		dialect:     mysql.Dialect{},
		prepareErrs: map[string]error{},
		execErrs:    map[string]error{},
		queryRows:   map[string]*datasource.QueryResult{},
		execResults: map[string]*datasource.ExecResult{},
	}
}

func (c *mockConn) Ping(context.Context) error {
	return c.pingErr
}

func (c *mockConn) Prepare(_ context.Context, template string) (datasource.Stmt, error) {
	if err := c.prepareErrs[template]; err != nil {
		return nil, err
	}
	stmt := &mockStmt{
		conn:         c,
		template:     template,
		placeholders: qsql.ExtractPlaceholders(template),
		bound:        map[string]any{},
		types:        map[string]qsql.ParamType{},
	}
	c.prepared = append(c.prepared, stmt)
	return stmt, nil
}

func (c *mockConn) Begin(context.Context) error {
	c.calls = append(c.calls, "begin")
	if c.beginErr != nil {
		return c.beginErr
	}
	c.inTx = true
	return nil
}

// Commit keeps the transaction open on failure, like the real adapters.
func (c *mockConn) Commit(context.Context) error {
	c.calls = append(c.calls, "commit")
	if c.commitErr != nil {
		return c.commitErr
	}
	c.inTx = false
	return nil
}

func (c *mockConn) Rollback(context.Context) error {
	c.calls = append(c.calls, "rollback")
	c.inTx = false
	return c.rollbackErr
}

func (c *mockConn) InTransaction() bool { return c.inTx }

func (c *mockConn) Dialect() datasource.Dialect { return c.dialect }

func (c *mockConn) Close() error {
	c.closed = true
	c.inTx = false
	return nil
}

func (c *mockConn) templates() []string {
	out := make([]string, len(c.prepared))
	for i, s := range c.prepared {
		out[i] = s.template
	}
	return out
}

type mockStmt struct {
	conn         *mockConn
	template     string
	placeholders []string
	bound        map[string]any
	types        map[string]qsql.ParamType
	executed     bool
	closed       bool
}

func (s *mockStmt) Bind(name string, value any, t qsql.ParamType) error {
	bare := qsql.BareName(name)
	found := false
	for _, p := range s.placeholders {
		if p == bare {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("statement has no placeholder %s", name)
	}
	v, err := qsql.Coerce(value, t)
	if err != nil {
		return err
	}
	s.bound[bare] = v
	s.types[bare] = t
	return nil
}

func (s *mockStmt) checkBound() error {
	for _, p := range s.placeholders {
		if _, ok := s.bound[p]; !ok {
			return fmt.Errorf("no value bound for :%s", p)
		}
	}
	return nil
}

func (s *mockStmt) Query(context.Context) (*datasource.QueryResult, error) {
	s.executed = true
	if err := s.checkBound(); err != nil {
		return nil, err
	}
	if err := s.conn.execErrs[s.template]; err != nil {
		return nil, err
	}
	if res, ok := s.conn.queryRows[s.template]; ok {
		return res, nil
	}
	return &datasource.QueryResult{Columns: []string{}, Rows: []map[string]any{}}, nil
}

func (s *mockStmt) Exec(context.Context) (*datasource.ExecResult, error) {
	s.executed = true
	if err := s.checkBound(); err != nil {
		return nil, err
	}
	if err := s.conn.execErrs[s.template]; err != nil {
		return nil, err
	}
	if res, ok := s.conn.execResults[s.template]; ok {
		return res, nil
	}
	return &datasource.ExecResult{RowsAffected: 1}, nil
}

func (s *mockStmt) Close() error {
	s.closed = true
	return nil
}

// mockFactory hands out connections in order; errs are returned first.
type mockFactory struct {
	conns []*mockConn
	errs  []error
	opens int
}

func (f *mockFactory) Open(context.Context, string, map[string]any) (datasource.Conn, error) {
	f.opens++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	if len(f.conns) == 0 {
		return nil, errors.New("no more connections")
	}
	conn := f.conns[0]
	f.conns = f.conns[1:]
	return conn, nil
}

func (f *mockFactory) ListTypes() []datasource.AdapterInfo { return nil }

func testRetry() *retry.Config {
	return &retry.Config{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
}

func newTestSession(t *testing.T, factory datasource.ConnFactory, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{
		WithLogger(zaptest.NewLogger(t)),
		WithFactory(factory),
		WithRetry(testRetry()),
	}, opts...)
	s, err := New(config.DatabaseConfig{Type: "mysql", Name: "test"}, opts...)
	require.NoError(t, err)
	return s
}

// newMockSession returns a session that will connect to conn.
func newMockSession(t *testing.T, conn *mockConn, opts ...Option) *Session {
	t.Helper()
	return newTestSession(t, &mockFactory{conns: []*mockConn{conn}}, opts...)
}

// withUsersSchema makes conn answer the MySQL introspection queries for a
// single users table.
func withUsersSchema(conn *mockConn) {
	conn.queryRows["SHOW TABLES"] = &datasource.QueryResult{
		Columns: []string{"Tables_in_test"},
		Rows:    []map[string]any{{"Tables_in_test": "users"}},
	}
	conn.queryRows["SHOW COLUMNS IN `users`"] = &datasource.QueryResult{
		Columns: []string{"Field", "Type", "Null", "Key", "Default", "Extra"},
		Rows: []map[string]any{
			{"Field": "id", "Type": "int(11)", "Key": "PRI"},
			{"Field": "name", "Type": "varchar(64)", "Key": ""},
			{"Field": "age", "Type": "int(11)", "Key": ""},
		},
	}
}
