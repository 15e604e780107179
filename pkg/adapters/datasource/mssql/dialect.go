package mssql

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-querykit/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-querykit/pkg/apperrors"
	qsql "github.com/ekaya-inc/ekaya-querykit/pkg/sql"
)

const listTablesQuery = `SELECT TABLE_NAME AS [Tables]
FROM INFORMATION_SCHEMA.TABLES
WHERE TABLE_TYPE = 'BASE TABLE'
  AND TABLE_SCHEMA = SCHEMA_NAME()
ORDER BY TABLE_NAME`

// describeColumnsTemplate is completed with a schema predicate; %[1]s is
// either SCHEMA_NAME() or the :schema placeholder.
const describeColumnsTemplate = `SELECT c.COLUMN_NAME AS [Field],
       c.DATA_TYPE + CASE
           WHEN c.CHARACTER_MAXIMUM_LENGTH IS NULL THEN ''
           WHEN c.CHARACTER_MAXIMUM_LENGTH = -1 THEN '(max)'
           ELSE '(' + CAST(c.CHARACTER_MAXIMUM_LENGTH AS varchar(10)) + ')'
       END AS [Type],
       CASE WHEN pk.COLUMN_NAME IS NULL THEN '' ELSE 'PRI' END AS [Key]
FROM INFORMATION_SCHEMA.COLUMNS c
LEFT JOIN (
    SELECT kcu.COLUMN_NAME
    FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
    JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
      ON kcu.CONSTRAINT_NAME = tc.CONSTRAINT_NAME
     AND kcu.TABLE_SCHEMA = tc.TABLE_SCHEMA
     AND kcu.TABLE_NAME = tc.TABLE_NAME
    WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
      AND tc.TABLE_SCHEMA = %[1]s
      AND tc.TABLE_NAME = :table
) pk ON pk.COLUMN_NAME = c.COLUMN_NAME
WHERE c.TABLE_SCHEMA = %[1]s
  AND c.TABLE_NAME = :table
ORDER BY c.ORDINAL_POSITION`

// Dialect is the SQL Server flavour of SQL.
type Dialect struct{}

func (Dialect) Name() string { return "mssql" }

func (Dialect) PlaceholderStyle() qsql.PlaceholderStyle { return qsql.StyleAtName }

// QuoteIdentifier brackets name the way QUOTENAME does, escaping ] as ]].
func (Dialect) QuoteIdentifier(name string) string {
	return datasource.QuoteWith("[", "]", name)
}

func (Dialect) ProbeQuery() string { return "SELECT 1" }

// SupportsLastInsertID is false: go-mssqldb does not implement LastInsertId.
func (Dialect) SupportsLastInsertID() bool { return false }

func (Dialect) ListTablesQuery() string { return listTablesQuery }

// DescribeColumnsQuery accepts "table" or "schema.table"; an unqualified name
// resolves against the login's default schema.
func (Dialect) DescribeColumnsQuery(table string) (string, qsql.Params) {
	schema, name := parseSchemaTable(table)
	if schema == "" {
		return fmt.Sprintf(describeColumnsTemplate, "SCHEMA_NAME()"), qsql.Params{"table": name}
	}
	return fmt.Sprintf(describeColumnsTemplate, ":schema"), qsql.Params{"schema": schema, "table": name}
}

// LimitClause renders OFFSET/FETCH, which SQL Server only accepts after an
// ORDER BY; unordered queries get a no-op ordering.
func (Dialect) LimitClause(offset, count int, ordered bool) string {
	if offset < 0 {
		offset = 0
	}
	clause := fmt.Sprintf("OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", offset, count)
	if !ordered {
		clause = "ORDER BY (SELECT NULL) " + clause
	}
	return clause
}

// UpsertClause is rejected: SQL Server only offers MERGE, which cannot be
// appended to an INSERT.
func (Dialect) UpsertClause(_, _ []string) (string, map[string]string, error) {
	return "", nil, apperrors.Validation("upsert is not supported by %s; insert without update or use MERGE", "SQL Server")
}

// parseSchemaTable splits "[schema].[table]" or "schema.table".
// The schema is empty when the name is unqualified.
func parseSchemaTable(tableName string) (string, string) {
	cleaned := strings.NewReplacer("[", "", "]", "").Replace(tableName)
	if schema, table, ok := strings.Cut(cleaned, "."); ok {
		return schema, table
	}
	return "", cleaned
}

var _ datasource.Dialect = Dialect{}
