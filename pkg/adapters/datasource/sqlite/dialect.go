package sqlite

import (
	"github.com/ekaya-inc/ekaya-querykit/pkg/adapters/datasource"
	qsql "github.com/ekaya-inc/ekaya-querykit/pkg/sql"
)

const listTablesQuery = `SELECT name AS "Tables"
FROM sqlite_master
WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
ORDER BY name`

const describeColumnsQuery = `SELECT name AS "Field",
       type AS "Type",
       CASE WHEN pk > 0 THEN 'PRI' ELSE '' END AS "Key"
FROM pragma_table_info(:table)
ORDER BY cid`

// Dialect is the SQLite flavour of SQL.
type Dialect struct{}

func (Dialect) Name() string { return "sqlite" }

func (Dialect) PlaceholderStyle() qsql.PlaceholderStyle { return qsql.StyleQuestion }

func (Dialect) QuoteIdentifier(name string) string {
	return datasource.QuoteWith(`"`, `"`, name)
}

func (Dialect) ProbeQuery() string { return "SELECT 1" }

func (Dialect) SupportsLastInsertID() bool { return true }

func (Dialect) ListTablesQuery() string { return listTablesQuery }

func (Dialect) DescribeColumnsQuery(table string) (string, qsql.Params) {
	return describeColumnsQuery, qsql.Params{"table": table}
}

func (Dialect) LimitClause(offset, count int, _ bool) string {
	return datasource.StandardLimit(offset, count)
}

func (d Dialect) UpsertClause(keys, columns []string) (string, map[string]string, error) {
	return datasource.ConflictUpsert(d.QuoteIdentifier, keys, columns), nil, nil
}

var _ datasource.Dialect = Dialect{}
