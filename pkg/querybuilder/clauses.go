package querybuilder

import (
	"context"
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-querykit/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-querykit/pkg/apperrors"
	qsql "github.com/ekaya-inc/ekaya-querykit/pkg/sql"
)

// Comparison operators accepted in conditions.
const (
	OpEqual     = "="
	OpNotEqual  = "!="
	OpLess      = "<"
	OpLessEq    = "<="
	OpGreater   = ">"
	OpGreaterEq = ">="
	OpLike      = "LIKE"
	OpIsNull    = "IS NULL"
	OpIsNotNull = "IS NOT NULL"
)

var validOperators = map[string]bool{
	OpEqual: true, OpNotEqual: true, "<>": true,
	OpLess: true, OpLessEq: true, OpGreater: true, OpGreaterEq: true,
	OpLike: true, "NOT LIKE": true,
	OpIsNull: true, OpIsNotNull: true,
}

// valuePrefixes are checked in order; two-character operators come before
// their one-character prefixes.
var valuePrefixes = []string{OpGreaterEq, OpGreater, OpLessEq, OpLess, OpNotEqual}

// Condition restricts a column. When Operator is empty and Value is a string,
// the operator is read from the value itself: "IS NULL", "IS NOT NULL",
// "LIKE x", ">= x", "> x", "<= x", "< x" and "!= x" are recognized, anything
// else compares for equality.
type Condition struct {
	Column   string
	Operator string
	Value    any
}

// resolve returns the operator and the value left to bind.
func (c Condition) resolve() (string, any, error) {
	if c.Operator != "" {
		op := strings.ToUpper(strings.TrimSpace(c.Operator))
		if !validOperators[op] {
			return "", nil, apperrors.Validation("unsupported operator %q for column %s", c.Operator, c.Column)
		}
		return op, c.Value, nil
	}

	s, ok := c.Value.(string)
	if !ok {
		return OpEqual, c.Value, nil
	}

	trimmed := strings.TrimSpace(s)
	upper := strings.ToUpper(trimmed)
	switch {
	case upper == OpIsNull:
		return OpIsNull, nil, nil
	case upper == OpIsNotNull:
		return OpIsNotNull, nil, nil
	case strings.HasPrefix(upper, OpLike):
		return OpLike, strings.TrimSpace(trimmed[len(OpLike):]), nil
	}
	for _, prefix := range valuePrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return prefix, strings.TrimSpace(trimmed[len(prefix):]), nil
		}
	}
	return OpEqual, s, nil
}

// render appends "col op :key" to params and returns the expression. Null
// checks bind nothing.
func renderCondition(dialect datasource.Dialect, column, op string, value any, params qsql.Params) string {
	quoted := dialect.QuoteIdentifier(column)
	if op == OpIsNull || op == OpIsNotNull {
		return quoted + " " + op
	}
	key := IncrementKey(paramKey(column), params)
	params[key] = value
	return fmt.Sprintf("%s %s %s%s", quoted, op, qsql.Marker, key)
}

// Order sorts by a column. Direction is ASC or DESC; anything else sorts ascending.
type Order struct {
	Column    string
	Direction string
}

func (o Order) direction() string {
	dir := strings.ToUpper(strings.TrimSpace(o.Direction))
	if dir == "DESC" {
		return "DESC"
	}
	return "ASC"
}

// OrderClause renders "ORDER BY a ASC, b DESC" without validating columns.
// Returns an empty string when there is nothing to order by.
func OrderClause(dialect datasource.Dialect, orders []Order) string {
	var terms []string
	for _, o := range orders {
		if o.Column == "" {
			continue
		}
		terms = appendUnique(terms, dialect.QuoteIdentifier(o.Column)+" "+o.direction())
	}
	if len(terms) == 0 {
		return ""
	}
	return "ORDER BY " + strings.Join(terms, ", ")
}

// GroupClause renders "GROUP BY a, b" without validating columns.
func GroupClause(dialect datasource.Dialect, columns []string) string {
	var terms []string
	for _, col := range columns {
		if col == "" {
			continue
		}
		terms = appendUnique(terms, dialect.QuoteIdentifier(col))
	}
	if len(terms) == 0 {
		return ""
	}
	return "GROUP BY " + strings.Join(terms, ", ")
}

// Clause is a free-form "column operator value" expression, for example
// "users.age >= 21" or "deleted_at IS NULL". Glue is WHERE, AND, OR or empty.
type Clause struct {
	Expr string
	Glue string
}

var clauseOperators = map[string]bool{
	OpLike: true, OpLess: true, OpLessEq: true, OpEqual: true,
	OpNotEqual: true, OpGreaterEq: true, OpGreater: true,
}

// WhereClause turns clauses into a condition string and its parameters.
// Table-qualified columns are checked against schema and dropped when unknown;
// their placeholders are named table_column. Malformed expressions are skipped.
//
// Example:
//
//	q, _ := WhereClause(ctx, schema, dialect, []Clause{
//		{Expr: "users.age >= 21", Glue: "WHERE"},
//		{Expr: "name LIKE bob%", Glue: "AND"},
//	})
//	// q.SQL == "WHERE `users`.`age` >= :users_age AND `name` LIKE :name"
func WhereClause(ctx context.Context, schema SchemaChecker, dialect datasource.Dialect, clauses []Clause) (Query, error) {
	params := qsql.Params{}
	var parts []string

	for _, clause := range clauses {
		fields := strings.Fields(clause.Expr)
		if len(fields) < 2 {
			continue
		}

		column := strings.Trim(fields[0], "`\"[]")
		operand := strings.ToUpper(fields[1])
		value := strings.Join(fields[2:], " ")

		glue := strings.ToUpper(strings.TrimSpace(clause.Glue))
		switch glue {
		case "", "WHERE", "AND", "OR":
		default:
			glue = ""
		}

		var table string
		if t, c, ok := strings.Cut(column, "."); ok {
			table, column = strings.Trim(t, "`\"[]"), strings.Trim(c, "`\"[]")
			okTable, err := schema.ValidTable(ctx, table, false)
			if err != nil {
				return Query{}, fmt.Errorf("failed to validate table %s: %w", table, err)
			}
			if !okTable {
				continue
			}
			okColumn, err := schema.ValidColumn(ctx, table, column, false)
			if err != nil {
				return Query{}, fmt.Errorf("failed to validate column %s.%s: %w", table, column, err)
			}
			if !okColumn {
				continue
			}
		}

		target := dialect.QuoteIdentifier(column)
		token := paramKey(column)
		if table != "" {
			target = dialect.QuoteIdentifier(table) + "." + target
			token = paramKey(table + "_" + column)
		}

		var expr string
		switch {
		case operand == "IS":
			upper := strings.ToUpper(value)
			if upper != "NULL" && upper != "NOT NULL" {
				continue
			}
			expr = fmt.Sprintf("%s IS %s", target, upper)
		case clauseOperators[operand]:
			token = IncrementKey(token, params)
			params[token] = value
			expr = fmt.Sprintf("%s %s %s%s", target, operand, qsql.Marker, token)
		default:
			continue
		}

		if glue != "" {
			expr = glue + " " + expr
		}
		parts = append(parts, expr)
	}

	return Query{SQL: strings.Join(parts, " "), Params: params}, nil
}
