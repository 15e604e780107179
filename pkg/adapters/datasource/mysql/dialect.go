package mysql

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-querykit/pkg/adapters/datasource"
	qsql "github.com/ekaya-inc/ekaya-querykit/pkg/sql"
)

// updatePrefix names the placeholders that repeat an inserted value in the
// ON DUPLICATE KEY UPDATE list.
const updatePrefix = "update_"

// Dialect is the MySQL flavour of SQL.
type Dialect struct{}

func (Dialect) Name() string { return "mysql" }

func (Dialect) PlaceholderStyle() qsql.PlaceholderStyle { return qsql.StyleQuestion }

func (Dialect) QuoteIdentifier(name string) string {
	return datasource.QuoteWith("`", "`", name)
}

func (Dialect) ProbeQuery() string { return "SELECT 1" }

func (Dialect) SupportsLastInsertID() bool { return true }

func (Dialect) ListTablesQuery() string { return "SHOW TABLES" }

// DescribeColumnsQuery uses SHOW COLUMNS, which already yields Field, Type and Key.
func (d Dialect) DescribeColumnsQuery(table string) (string, qsql.Params) {
	return "SHOW COLUMNS IN " + d.QuoteIdentifier(table), nil
}

// LimitClause renders MySQL's "LIMIT offset, count" form.
func (Dialect) LimitClause(offset, count int, _ bool) string {
	if offset < 0 {
		return fmt.Sprintf("LIMIT %d", count)
	}
	return fmt.Sprintf("LIMIT %d, %d", offset, count)
}

// UpsertClause renders ON DUPLICATE KEY UPDATE. Every column is assigned from
// its own update_<col> placeholder, so the returned aliases tell the caller
// which inserted value each one repeats. MySQL detects the conflicting key
// itself and keys is ignored.
func (d Dialect) UpsertClause(_ []string, columns []string) (string, map[string]string, error) {
	if len(columns) == 0 {
		return "", nil, nil
	}

	updates := make([]string, len(columns))
	aliases := make(map[string]string, len(columns))
	for i, col := range columns {
		alias := updatePrefix + col
		updates[i] = fmt.Sprintf("%s=%s%s", d.QuoteIdentifier(col), qsql.Marker, alias)
		aliases[alias] = col
	}

	return "ON DUPLICATE KEY UPDATE " + strings.Join(updates, ","), aliases, nil
}

var _ datasource.Dialect = Dialect{}
