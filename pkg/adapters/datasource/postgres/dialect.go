package postgres

import (
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-querykit/pkg/adapters/datasource"
	qsql "github.com/ekaya-inc/ekaya-querykit/pkg/sql"
)

const listTablesQuery = `SELECT table_name::text AS "Tables"
FROM information_schema.tables
WHERE table_schema = current_schema()
  AND table_type = 'BASE TABLE'
ORDER BY table_name`

// describeColumnsQuery mirrors MySQL's SHOW COLUMNS output so the schema cache
// can read Field, Type and Key the same way for every database.
const describeColumnsQuery = `SELECT c.column_name::text AS "Field",
       (c.data_type || COALESCE('(' || c.character_maximum_length || ')', ''))::text AS "Type",
       CASE WHEN pk.column_name IS NULL THEN '' ELSE 'PRI' END AS "Key"
FROM information_schema.columns c
LEFT JOIN (
    SELECT kcu.column_name
    FROM information_schema.table_constraints tc
    JOIN information_schema.key_column_usage kcu
      ON kcu.constraint_name = tc.constraint_name
     AND kcu.table_schema = tc.table_schema
     AND kcu.table_name = tc.table_name
    WHERE tc.constraint_type = 'PRIMARY KEY'
      AND tc.table_schema = current_schema()
      AND tc.table_name::text = :table
) pk ON pk.column_name = c.column_name
WHERE c.table_schema = current_schema()
  AND c.table_name::text = :table
ORDER BY c.ordinal_position`

// Dialect is the PostgreSQL flavour of SQL.
type Dialect struct{}

func (Dialect) Name() string { return "postgres" }

func (Dialect) PlaceholderStyle() qsql.PlaceholderStyle { return qsql.StyleDollar }

// QuoteIdentifier uses PostgreSQL's standard double-quote quoting.
func (Dialect) QuoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (Dialect) ProbeQuery() string { return "SELECT 1" }

// SupportsLastInsertID is false: generated keys come back through RETURNING.
func (Dialect) SupportsLastInsertID() bool { return false }

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
