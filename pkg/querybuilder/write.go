package querybuilder

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ekaya-inc/ekaya-querykit/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-querykit/pkg/apperrors"
	qsql "github.com/ekaya-inc/ekaya-querykit/pkg/sql"
)

// validParamColumns returns the bare names of params that are columns of
// table, sorted, along with their values.
func validParamColumns(ctx context.Context, schema SchemaChecker, table string, params qsql.Params) ([]string, qsql.Params, error) {
	var columns []string
	values := qsql.Params{}
	for _, key := range params.SortedKeys() {
		col := qsql.BareName(key)
		if _, dup := values[col]; dup {
			// a bare key sorts after its marked form and wins
			values[col] = params[key]
			continue
		}
		ok, err := schema.ValidColumn(ctx, table, col, false)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to validate column %s.%s: %w", table, col, err)
		}
		if !ok {
			continue
		}
		columns = append(columns, col)
		values[col] = params[key]
	}
	sort.Strings(columns)
	return columns, values, nil
}

// Insert builds an INSERT of params into table. With upsert, the dialect's
// conflict clause updates every non primary key column that has a value.
//
// Example (MySQL):
//
//	q, _ := Insert(ctx, schema, dialect, "users", qsql.Params{"id": 1, "name": "bob"}, true)
//	// q.SQL == "INSERT INTO `users` (`id`, `name`) VALUES (:id, :name) ON DUPLICATE KEY UPDATE `name`=:update_name"
func Insert(ctx context.Context, schema SchemaChecker, dialect datasource.Dialect, table string, params qsql.Params, upsert bool) (Query, error) {
	if err := requireTable(ctx, schema, table); err != nil {
		return Query{}, err
	}
	if len(params) == 0 {
		return Query{}, apperrors.Validation("missing query parameters for insert into %s", table)
	}

	columns, values, err := validParamColumns(ctx, schema, table, params)
	if err != nil {
		return Query{}, err
	}
	if len(columns) == 0 {
		return Query{}, apperrors.Validation("no valid columns to insert into %s", table)
	}

	quoted := make([]string, len(columns))
	binds := make([]string, len(columns))
	bound := qsql.Params{}
	for i, col := range columns {
		key := paramKey(col)
		quoted[i] = dialect.QuoteIdentifier(col)
		binds[i] = qsql.NormalizeName(key)
		bound[key] = values[col]
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		dialect.QuoteIdentifier(table), strings.Join(quoted, ", "), strings.Join(binds, ", "))

	if upsert {
		descriptors, err := schema.ColumnTypes(ctx, table)
		if err != nil {
			return Query{}, fmt.Errorf("failed to describe %s: %w", table, err)
		}

		var keys, updates []string
		for _, d := range descriptors {
			if d.IsPrimaryKey() {
				keys = append(keys, d.Name)
				continue
			}
			if _, ok := values[d.Name]; ok {
				updates = append(updates, d.Name)
			}
		}

		clause, aliases, err := dialect.UpsertClause(keys, updates)
		if err != nil {
			return Query{}, err
		}
		for alias, col := range aliases {
			bound[alias] = values[col]
		}
		if clause != "" {
			query += " " + clause
		}
	}

	return Query{SQL: query, Params: bound}, nil
}

// Update builds an UPDATE of table setting params where every column of key
// matches. Key values are bound as :where_<column> so a column can appear in
// both the SET list and the condition.
func Update(ctx context.Context, schema SchemaChecker, dialect datasource.Dialect, table string, params, key qsql.Params) (Query, error) {
	if err := requireTable(ctx, schema, table); err != nil {
		return Query{}, err
	}

	columns, values, err := validParamColumns(ctx, schema, table, params)
	if err != nil {
		return Query{}, err
	}
	if len(columns) == 0 {
		return Query{}, apperrors.Validation("no valid columns to update in %s", table)
	}

	keyColumns, keyValues, err := validParamColumns(ctx, schema, table, key)
	if err != nil {
		return Query{}, err
	}
	if len(keyColumns) == 0 {
		return Query{}, apperrors.Validation("update of %s requires a valid key column", table)
	}

	sets := make([]string, len(columns))
	for i, col := range columns {
		sets[i] = fmt.Sprintf("%s = %s", dialect.QuoteIdentifier(col), qsql.NormalizeName(paramKey(col)))
		if pk := paramKey(col); pk != col {
			values[pk] = values[col]
			delete(values, col)
		}
	}

	wheres := make([]string, len(keyColumns))
	for i, col := range keyColumns {
		name := "where_" + paramKey(col)
		wheres[i] = fmt.Sprintf("%s = %s", dialect.QuoteIdentifier(col), qsql.NormalizeName(name))
		values[name] = keyValues[col]
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		dialect.QuoteIdentifier(table), strings.Join(sets, ", "), strings.Join(wheres, " AND "))
	return Query{SQL: query, Params: values}, nil
}

// Delete builds a DELETE from table matching every column of params. Unlike the
// other builders it never drops an unknown column: doing so would widen the
// set of deleted rows.
func Delete(ctx context.Context, schema SchemaChecker, dialect datasource.Dialect, table string, params qsql.Params) (Query, error) {
	if err := requireTable(ctx, schema, table); err != nil {
		return Query{}, err
	}
	if len(params) == 0 {
		return Query{}, apperrors.Validation("cannot delete from %s without conditions", table)
	}

	values := qsql.Params{}
	for _, k := range params.SortedKeys() {
		values[qsql.BareName(k)] = params[k]
	}

	columns := make([]string, 0, len(values))
	for col := range values {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	wheres := make([]string, 0, len(columns))
	bound := qsql.Params{}
	for _, col := range columns {
		ok, err := schema.ValidColumn(ctx, table, col, false)
		if err != nil {
			return Query{}, fmt.Errorf("failed to validate column %s.%s: %w", table, col, err)
		}
		if !ok {
			return Query{}, apperrors.Validation("invalid column %s for table %s", col, table)
		}
		name := paramKey(col)
		wheres = append(wheres, fmt.Sprintf("%s = %s", dialect.QuoteIdentifier(col), qsql.NormalizeName(name)))
		bound[name] = values[col]
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s", dialect.QuoteIdentifier(table), strings.Join(wheres, " AND "))
	return Query{SQL: query, Params: bound}, nil
}
