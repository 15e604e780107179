package datasource

import (
	"context"

	qsql "github.com/ekaya-inc/ekaya-querykit/pkg/sql"
)

// Conn is a single database connection owned by one session.
// Implementations are not safe for concurrent use.
type Conn interface {
	// Ping runs the dialect's probe query to verify the connection is alive.
	Ping(ctx context.Context) error

	// Prepare compiles a template written with :name placeholders.
	// Inside a transaction the statement belongs to that transaction.
	Prepare(ctx context.Context, template string) (Stmt, error)

	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	// InTransaction reports whether Begin succeeded without a matching Commit or Rollback.
	InTransaction() bool

	Dialect() Dialect

	// Close releases the connection, rolling back any open transaction.
	Close() error
}

// Stmt is a prepared statement with named bind slots.
type Stmt interface {
	// Bind assigns a value to a placeholder. The name may carry the leading marker.
	// Returns an error if the statement has no such placeholder or the value
	// cannot be represented as t.
	Bind(name string, value any, t qsql.ParamType) error

	// Query executes the statement and fetches every row.
	Query(ctx context.Context) (*QueryResult, error)

	// Exec executes the statement and reports affected rows.
	Exec(ctx context.Context) (*ExecResult, error)

	Close() error
}

// QueryResult holds all rows of a query, keyed by column name.
type QueryResult struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// ExecResult is the outcome of a statement that does not return rows.
type ExecResult struct {
	RowsAffected    int64 `json:"rows_affected"`
	LastInsertID    int64 `json:"last_insert_id"`
	HasLastInsertID bool  `json:"-"` // false when the driver cannot report one
}

// Dialect captures the SQL differences between supported databases.
type Dialect interface {
	// Name returns the adapter type, e.g. "mysql".
	Name() string

	PlaceholderStyle() qsql.PlaceholderStyle

	QuoteIdentifier(name string) string

	// ProbeQuery is the lightweight statement used to verify a live connection.
	ProbeQuery() string

	// ListTablesQuery returns a statement whose first column holds table names.
	ListTablesQuery() string

	// DescribeColumnsQuery returns a statement producing Field, Type and Key
	// columns for table, along with any parameters it needs.
	DescribeColumnsQuery(table string) (string, qsql.Params)

	// LimitClause renders a row limit. A negative offset means none.
	LimitClause(offset, count int, ordered bool) string

	// UpsertClause renders the conflict handling appended to an INSERT.
	// aliases maps extra placeholder names to the column whose value they repeat.
	UpsertClause(keys, columns []string) (clause string, aliases map[string]string, err error)

	// SupportsLastInsertID reports whether Exec results carry the id generated
	// by an INSERT.
	SupportsLastInsertID() bool
}
