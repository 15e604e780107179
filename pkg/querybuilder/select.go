package querybuilder

import (
	"context"
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-querykit/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-querykit/pkg/apperrors"
	qsql "github.com/ekaya-inc/ekaya-querykit/pkg/sql"
)

// DefaultJoin is used when a SelectRequest names no join type or an unknown one.
const DefaultJoin = "LEFT OUTER JOIN"

// JoinTypes lists the accepted join keywords.
var JoinTypes = []string{
	"LEFT JOIN",
	"LEFT OUTER JOIN",
	"INNER JOIN",
	"OUTER JOIN",
	"FULL JOIN",
	"FULL OUTER JOIN",
	"RIGHT JOIN",
	"RIGHT OUTER JOIN",
	"JOIN",
}

// JoinTable is one link of a join chain. The first table of a chain is the base
// table and its Using column is ignored; every later table is joined on Using.
type JoinTable struct {
	Table string
	Using string
}

// Limit restricts the number of rows. Offset <= 0 means no offset.
type Limit struct {
	Offset int
	Count  int
}

// SelectRequest describes a SELECT over one table or a join chain.
type SelectRequest struct {
	// Table is the single table to read. Ignored when Tables is set.
	Table  string
	Tables []JoinTable
	Join   string

	Where   []Condition
	OrderBy []Order
	GroupBy []string
	Limit   *Limit

	// Count wraps the query so it returns the number of matching rows.
	Count bool
}

func (r SelectRequest) chain() []JoinTable {
	if len(r.Tables) > 0 {
		return r.Tables
	}
	return []JoinTable{{Table: r.Table}}
}

func (r SelectRequest) joinType() string {
	join := strings.ToUpper(strings.Join(strings.Fields(r.Join), " "))
	for _, known := range JoinTypes {
		if join == known {
			return join
		}
	}
	return DefaultJoin
}

// Select builds a SELECT statement.
//
// Example:
//
//	q, err := Select(ctx, schema, dialect, SelectRequest{
//		Table:   "users",
//		Where:   []Condition{{Column: "age", Value: ">= 21"}},
//		OrderBy: []Order{{Column: "name"}},
//		Limit:   &Limit{Count: 10},
//	})
//	// q.SQL    == "SELECT * FROM `users` WHERE `age` >= :age ORDER BY `name` ASC LIMIT 10"
//	// q.Params == qsql.Params{"age": "21"}
func Select(ctx context.Context, schema SchemaChecker, dialect datasource.Dialect, req SelectRequest) (Query, error) {
	from, tables, err := buildFrom(ctx, schema, dialect, req)
	if err != nil {
		return Query{}, err
	}

	params := qsql.Params{}
	var sb strings.Builder
	sb.WriteString("SELECT * FROM ")
	sb.WriteString(from)

	wheres, err := buildWheres(ctx, schema, dialect, tables, req.Where, params)
	if err != nil {
		return Query{}, err
	}
	if len(wheres) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(wheres, " AND "))
	}

	var orders []Order
	for _, o := range req.OrderBy {
		ok, err := validColumnIn(ctx, schema, tables, o.Column)
		if err != nil {
			return Query{}, err
		}
		if ok {
			orders = append(orders, o)
		}
	}
	if clause := OrderClause(dialect, orders); clause != "" {
		sb.WriteString(" ")
		sb.WriteString(clause)
	}

	var groups []string
	for _, col := range req.GroupBy {
		ok, err := validColumnIn(ctx, schema, tables, col)
		if err != nil {
			return Query{}, err
		}
		if ok {
			groups = append(groups, col)
		}
	}

	query := sb.String()
	ordered := len(orders) > 0
	if clause := GroupClause(dialect, groups); clause != "" {
		query = fmt.Sprintf("SELECT * FROM ( %s ) %s %s", query, dialect.QuoteIdentifier("table"), clause)
		ordered = false
	}

	if req.Limit != nil && req.Limit.Count > 0 {
		offset := req.Limit.Offset
		if offset <= 0 {
			offset = -1
		}
		query += " " + dialect.LimitClause(offset, req.Limit.Count, ordered)
	}

	if req.Count {
		query = fmt.Sprintf("SELECT COUNT(*) FROM ( %s ) records", query)
	}

	return Query{SQL: query, Params: params}, nil
}

// buildFrom renders the FROM target and returns the tables that made it in.
// Tables after the first that are unknown, or whose join column is unknown,
// are left out of the chain.
func buildFrom(ctx context.Context, schema SchemaChecker, dialect datasource.Dialect, req SelectRequest) (string, []string, error) {
	chain := req.chain()
	join := req.joinType()

	var sb strings.Builder
	var tables []string
	for i, link := range chain {
		if i == 0 {
			if err := requireTable(ctx, schema, link.Table); err != nil {
				return "", nil, err
			}
			sb.WriteString(dialect.QuoteIdentifier(link.Table))
			tables = append(tables, link.Table)
			continue
		}

		ok, err := schema.ValidTable(ctx, link.Table, false)
		if err != nil {
			return "", nil, fmt.Errorf("failed to validate table %s: %w", link.Table, err)
		}
		if !ok || link.Using == "" {
			continue
		}
		ok, err = schema.ValidColumn(ctx, link.Table, link.Using, false)
		if err != nil {
			return "", nil, fmt.Errorf("failed to validate column %s.%s: %w", link.Table, link.Using, err)
		}
		if !ok {
			continue
		}

		fmt.Fprintf(&sb, " %s %s USING (%s)", join, dialect.QuoteIdentifier(link.Table), dialect.QuoteIdentifier(link.Using))
		tables = append(tables, link.Table)
	}

	if len(tables) == 0 {
		return "", nil, apperrors.Validation("no valid table to select from")
	}
	return sb.String(), tables, nil
}

type conditionKey struct {
	column, op, value string
}

func buildWheres(ctx context.Context, schema SchemaChecker, dialect datasource.Dialect, tables []string, conditions []Condition, params qsql.Params) ([]string, error) {
	var wheres []string
	seen := make(map[conditionKey]bool, len(conditions))

	for _, cond := range conditions {
		ok, err := validColumnIn(ctx, schema, tables, cond.Column)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		op, value, err := cond.resolve()
		if err != nil {
			return nil, err
		}

		key := conditionKey{column: cond.Column, op: op, value: fmt.Sprint(value)}
		if seen[key] {
			continue
		}
		seen[key] = true

		wheres = append(wheres, renderCondition(dialect, cond.Column, op, value, params))
	}
	return wheres, nil
}
