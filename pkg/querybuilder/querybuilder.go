// Package querybuilder assembles query templates and parameter mappings from
// structured input. Every referenced table and column is checked against a
// SchemaChecker first; unknown columns are dropped rather than failing the
// whole query, while an unknown table is a validation error.
package querybuilder

import (
	"context"
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-querykit/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-querykit/pkg/apperrors"
	qsql "github.com/ekaya-inc/ekaya-querykit/pkg/sql"
)

// SchemaChecker answers table and column lookups, usually from a session's
// schema cache.
type SchemaChecker interface {
	ValidTable(ctx context.Context, table string, reload bool) (bool, error)
	ValidColumn(ctx context.Context, table, column string, reload bool) (bool, error)
	ColumnTypes(ctx context.Context, table string) ([]datasource.ColumnDescriptor, error)
}

// Query is a template ready for execution together with its parameters.
type Query struct {
	SQL    string
	Params qsql.Params
}

// IncrementKey returns key, or key suffixed with the first free number starting
// at 2 when key is already taken in params: "id", "id2", "id3", ...
func IncrementKey(key string, params qsql.Params) string {
	if _, taken := params[key]; !taken {
		return key
	}
	i := 2
	for {
		candidate := fmt.Sprintf("%s%d", key, i)
		if _, taken := params[candidate]; !taken {
			return candidate
		}
		i++
	}
}

// paramKey turns a column name into a valid placeholder identifier.
func paramKey(column string) string {
	var b strings.Builder
	for i := 0; i < len(column); i++ {
		c := column[i]
		switch {
		case c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
			b.WriteByte(c)
		case c >= '0' && c <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteByte(c)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "param"
	}
	return b.String()
}

func requireTable(ctx context.Context, schema SchemaChecker, table string) error {
	if strings.TrimSpace(table) == "" {
		return apperrors.Validation("table name is required")
	}
	ok, err := schema.ValidTable(ctx, table, false)
	if err != nil {
		return fmt.Errorf("failed to validate table %s: %w", table, err)
	}
	if !ok {
		return apperrors.Validation("invalid table %s", table)
	}
	return nil
}

// validColumnIn reports whether column exists in any of tables.
func validColumnIn(ctx context.Context, schema SchemaChecker, tables []string, column string) (bool, error) {
	for _, table := range tables {
		ok, err := schema.ValidColumn(ctx, table, column, false)
		if err != nil {
			return false, fmt.Errorf("failed to validate column %s.%s: %w", table, column, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func appendUnique(list []string, item string) []string {
	for _, existing := range list {
		if existing == item {
			return list
		}
	}
	return append(list, item)
}
