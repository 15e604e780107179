package querybuilder

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-querykit/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-querykit/pkg/adapters/datasource/mssql"
	"github.com/ekaya-inc/ekaya-querykit/pkg/adapters/datasource/mysql"
	"github.com/ekaya-inc/ekaya-querykit/pkg/adapters/datasource/postgres"
	"github.com/ekaya-inc/ekaya-querykit/pkg/adapters/datasource/sqlite"
	"github.com/ekaya-inc/ekaya-querykit/pkg/apperrors"
	qsql "github.com/ekaya-inc/ekaya-querykit/pkg/sql"
)

// mockSchema is a SchemaChecker over a fixed set of tables.
type mockSchema struct {
	tables map[string][]datasource.ColumnDescriptor
	err    error
}

func newMockSchema() *mockSchema {
	return &mockSchema{tables: map[string][]datasource.ColumnDescriptor{
		"users": {
			{Name: "id", Type: "int(11)", Key: "PRI"},
			{Name: "name", Type: "varchar(64)"},
			{Name: "age", Type: "int(11)"},
			{Name: "deleted_at", Type: "datetime"},
		},
		"orders": {
			{Name: "order_id", Type: "int(11)", Key: "PRI"},
			{Name: "user_id", Type: "int(11)"},
			{Name: "total", Type: "decimal(10,2)"},
		},
	}}
}

func (m *mockSchema) ValidTable(_ context.Context, table string, _ bool) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.tables[table]
	return ok, nil
}

func (m *mockSchema) ValidColumn(_ context.Context, table, column string, _ bool) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	for _, c := range m.tables[table] {
		if c.Name == column {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockSchema) ColumnTypes(_ context.Context, table string) ([]datasource.ColumnDescriptor, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.tables[table], nil
}

func TestIncrementKey(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		params   qsql.Params
		expected string
	}{
		{"free", "id", qsql.Params{}, "id"},
		{"taken once", "id", qsql.Params{"id": 1}, "id2"},
		{"taken twice", "id", qsql.Params{"id": 1, "id2": 2}, "id3"},
		{"gap reused", "id", qsql.Params{"id": 1, "id3": 3}, "id2"},
		{"nil params", "id", nil, "id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IncrementKey(tt.key, tt.params))
		})
	}
}

func TestSelect_SingleTable(t *testing.T) {
	q, err := Select(context.Background(), newMockSchema(), mysql.Dialect{}, SelectRequest{
		Table: "users",
		Where: []Condition{
			{Column: "age", Value: ">= 21"},
			{Column: "name", Value: "bob"},
			{Column: "bogus", Value: 1},
		},
		OrderBy: []Order{{Column: "name", Direction: "desc"}, {Column: "bogus"}},
		Limit:   &Limit{Count: 10},
	})
	require.NoError(t, err)

	assert.Equal(t, "SELECT * FROM `users` WHERE `age` >= :age AND `name` = :name ORDER BY `name` DESC LIMIT 10", q.SQL)
	assert.Equal(t, qsql.Params{"age": "21", "name": "bob"}, q.Params)
	assert.Equal(t, qsql.Matched, qsql.Reconcile(q.SQL, q.Params).Status)
}

func TestSelect_Conditions(t *testing.T) {
	tests := []struct {
		name        string
		cond        Condition
		expectedSQL string
		expected    qsql.Params
	}{
		{"is null", Condition{Column: "deleted_at", Value: "is null"}, "`deleted_at` IS NULL", qsql.Params{}},
		{"is not null", Condition{Column: "deleted_at", Value: " IS NOT NULL "}, "`deleted_at` IS NOT NULL", qsql.Params{}},
		{"like", Condition{Column: "name", Value: "LIKE bo%"}, "`name` LIKE :name", qsql.Params{"name": "bo%"}},
		{"less or equal", Condition{Column: "age", Value: "<=30"}, "`age` <= :age", qsql.Params{"age": "30"}},
		{"less", Condition{Column: "age", Value: "< 30"}, "`age` < :age", qsql.Params{"age": "30"}},
		{"greater", Condition{Column: "age", Value: "> 30"}, "`age` > :age", qsql.Params{"age": "30"}},
		{"not equal", Condition{Column: "age", Value: "!= 30"}, "`age` != :age", qsql.Params{"age": "30"}},
		{"non string", Condition{Column: "age", Value: 30}, "`age` = :age", qsql.Params{"age": 30}},
		{"explicit operator", Condition{Column: "name", Operator: "not like", Value: "%x"}, "`name` NOT LIKE :name", qsql.Params{"name": "%x"}},
		{"explicit operator keeps value", Condition{Column: "name", Operator: "=", Value: "> not an operator"}, "`name` = :name", qsql.Params{"name": "> not an operator"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Select(context.Background(), newMockSchema(), mysql.Dialect{}, SelectRequest{
				Table: "users",
				Where: []Condition{tt.cond},
			})
			require.NoError(t, err)
			assert.Equal(t, "SELECT * FROM `users` WHERE "+tt.expectedSQL, q.SQL)
			assert.Equal(t, tt.expected, q.Params)
		})
	}
}

func TestSelect_InvalidOperator(t *testing.T) {
	_, err := Select(context.Background(), newMockSchema(), mysql.Dialect{}, SelectRequest{
		Table: "users",
		Where: []Condition{{Column: "age", Operator: "; DROP", Value: 1}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestSelect_RepeatedColumnIncrementsKey(t *testing.T) {
	q, err := Select(context.Background(), newMockSchema(), mysql.Dialect{}, SelectRequest{
		Table: "users",
		Where: []Condition{
			{Column: "age", Value: ">= 18"},
			{Column: "age", Value: "< 65"},
			{Column: "age", Value: "< 65"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "SELECT * FROM `users` WHERE `age` >= :age AND `age` < :age2", q.SQL)
	assert.Equal(t, qsql.Params{"age": "18", "age2": "65"}, q.Params)
}

func TestSelect_Joins(t *testing.T) {
	tests := []struct {
		name     string
		join     string
		tables   []JoinTable
		expected string
	}{
		{
			name:     "explicit join type",
			join:     "inner  join",
			tables:   []JoinTable{{Table: "users"}, {Table: "orders", Using: "user_id"}},
			expected: "SELECT * FROM `users` INNER JOIN `orders` USING (`user_id`)",
		},
		{
			name:     "unknown join type falls back",
			join:     "CROSS APPLY",
			tables:   []JoinTable{{Table: "users"}, {Table: "orders", Using: "user_id"}},
			expected: "SELECT * FROM `users` LEFT OUTER JOIN `orders` USING (`user_id`)",
		},
		{
			name:     "unknown table skipped",
			tables:   []JoinTable{{Table: "users"}, {Table: "ghosts", Using: "id"}, {Table: "orders", Using: "user_id"}},
			expected: "SELECT * FROM `users` LEFT OUTER JOIN `orders` USING (`user_id`)",
		},
		{
			name:     "unknown join column skipped",
			tables:   []JoinTable{{Table: "users"}, {Table: "orders", Using: "nope"}},
			expected: "SELECT * FROM `users`",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Select(context.Background(), newMockSchema(), mysql.Dialect{}, SelectRequest{
				Tables: tt.tables,
				Join:   tt.join,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, q.SQL)
		})
	}
}

func TestSelect_JoinedColumnsValidatedAcrossTables(t *testing.T) {
	q, err := Select(context.Background(), newMockSchema(), mysql.Dialect{}, SelectRequest{
		Tables: []JoinTable{{Table: "users"}, {Table: "orders", Using: "user_id"}},
		Where:  []Condition{{Column: "total", Value: "> 100"}, {Column: "name", Value: "bob"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `users` LEFT OUTER JOIN `orders` USING (`user_id`) WHERE `total` > :total AND `name` = :name", q.SQL)
}

func TestSelect_UnknownTable(t *testing.T) {
	_, err := Select(context.Background(), newMockSchema(), mysql.Dialect{}, SelectRequest{Table: "ghosts"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	_, err = Select(context.Background(), newMockSchema(), mysql.Dialect{}, SelectRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestSelect_SchemaError(t *testing.T) {
	schema := newMockSchema()
	schema.err = errors.New("connection lost")

	_, err := Select(context.Background(), schema, mysql.Dialect{}, SelectRequest{Table: "users"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection lost")
	assert.False(t, errors.Is(err, apperrors.ErrValidation))
}

func TestSelect_GroupAndCount(t *testing.T) {
	q, err := Select(context.Background(), newMockSchema(), sqlite.Dialect{}, SelectRequest{
		Table:   "users",
		GroupBy: []string{"age", "bogus", "age"},
		Count:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, `SELECT COUNT(*) FROM ( SELECT * FROM ( SELECT * FROM "users" ) "table" GROUP BY "age" ) records`, q.SQL)
}

func TestSelect_LimitPerDialect(t *testing.T) {
	tests := []struct {
		name     string
		dialect  datasource.Dialect
		req      SelectRequest
		expected string
	}{
		{
			name:     "mysql offset",
			dialect:  mysql.Dialect{},
			req:      SelectRequest{Table: "users", Limit: &Limit{Offset: 20, Count: 10}},
			expected: "SELECT * FROM `users` LIMIT 20, 10",
		},
		{
			name:     "postgres offset",
			dialect:  postgres.Dialect{},
			req:      SelectRequest{Table: "users", Limit: &Limit{Offset: 20, Count: 10}},
			expected: `SELECT * FROM "users" LIMIT 10 OFFSET 20`,
		},
		{
			name:     "mssql ordered",
			dialect:  mssql.Dialect{},
			req:      SelectRequest{Table: "users", OrderBy: []Order{{Column: "id"}}, Limit: &Limit{Count: 5}},
			expected: "SELECT * FROM [users] ORDER BY [id] ASC OFFSET 0 ROWS FETCH NEXT 5 ROWS ONLY",
		},
		{
			name:     "mssql unordered",
			dialect:  mssql.Dialect{},
			req:      SelectRequest{Table: "users", Limit: &Limit{Offset: 5, Count: 5}},
			expected: "SELECT * FROM [users] ORDER BY (SELECT NULL) OFFSET 5 ROWS FETCH NEXT 5 ROWS ONLY",
		},
		{
			name:     "zero count ignored",
			dialect:  mysql.Dialect{},
			req:      SelectRequest{Table: "users", Limit: &Limit{}},
			expected: "SELECT * FROM `users`",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Select(context.Background(), newMockSchema(), tt.dialect, tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, q.SQL)
		})
	}
}

func TestInsert_MySQLUpsert(t *testing.T) {
	q, err := Insert(context.Background(), newMockSchema(), mysql.Dialect{}, "users",
		qsql.Params{"id": 1, ":name": "bob", "bogus": true}, true)
	require.NoError(t, err)

	assert.Equal(t, "INSERT INTO `users` (`id`, `name`) VALUES (:id, :name) ON DUPLICATE KEY UPDATE `name`=:update_name", q.SQL)
	assert.Equal(t, qsql.Params{"id": 1, "name": "bob", "update_name": "bob"}, q.Params)
	assert.Equal(t, qsql.Matched, qsql.Reconcile(q.SQL, q.Params).Status)
}

func TestInsert_PostgresUpsert(t *testing.T) {
	q, err := Insert(context.Background(), newMockSchema(), postgres.Dialect{}, "users",
		qsql.Params{"id": 1, "name": "bob", "age": 40}, true)
	require.NoError(t, err)

	assert.Equal(t, `INSERT INTO "users" ("age", "id", "name") VALUES (:age, :id, :name) ON CONFLICT ("id") DO UPDATE SET "name" = excluded."name", "age" = excluded."age"`, q.SQL)
	assert.Equal(t, qsql.Params{"id": 1, "name": "bob", "age": 40}, q.Params)
}

func TestInsert_WithoutUpsert(t *testing.T) {
	q, err := Insert(context.Background(), newMockSchema(), mssql.Dialect{}, "users", qsql.Params{"name": "bob"}, false)
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO [users] ([name]) VALUES (:name)", q.SQL)
}

func TestInsert_Errors(t *testing.T) {
	tests := []struct {
		name    string
		dialect datasource.Dialect
		table   string
		params  qsql.Params
		upsert  bool
	}{
		{"unknown table", mysql.Dialect{}, "ghosts", qsql.Params{"id": 1}, false},
		{"no params", mysql.Dialect{}, "users", nil, false},
		{"no valid columns", mysql.Dialect{}, "users", qsql.Params{"bogus": 1}, false},
		{"mssql upsert", mssql.Dialect{}, "users", qsql.Params{"name": "bob"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Insert(context.Background(), newMockSchema(), tt.dialect, tt.table, tt.params, tt.upsert)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrValidation))
		})
	}
}

func TestUpdate(t *testing.T) {
	q, err := Update(context.Background(), newMockSchema(), mysql.Dialect{}, "users",
		qsql.Params{"name": "bob", "age": 41, "bogus": 1}, qsql.Params{"id": 7})
	require.NoError(t, err)

	assert.Equal(t, "UPDATE `users` SET `age` = :age, `name` = :name WHERE `id` = :where_id", q.SQL)
	assert.Equal(t, qsql.Params{"name": "bob", "age": 41, "where_id": 7}, q.Params)
	assert.Equal(t, qsql.Matched, qsql.Reconcile(q.SQL, q.Params).Status)
}

func TestUpdate_KeyColumnAlsoSet(t *testing.T) {
	q, err := Update(context.Background(), newMockSchema(), mysql.Dialect{}, "users",
		qsql.Params{"id": 8}, qsql.Params{"id": 7})
	require.NoError(t, err)

	assert.Equal(t, "UPDATE `users` SET `id` = :id WHERE `id` = :where_id", q.SQL)
	assert.Equal(t, qsql.Params{"id": 8, "where_id": 7}, q.Params)
}

func TestUpdate_RequiresKeyAndColumns(t *testing.T) {
	_, err := Update(context.Background(), newMockSchema(), mysql.Dialect{}, "users", qsql.Params{"name": "bob"}, qsql.Params{"bogus": 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	_, err = Update(context.Background(), newMockSchema(), mysql.Dialect{}, "users", qsql.Params{"bogus": "bob"}, qsql.Params{"id": 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestDelete(t *testing.T) {
	q, err := Delete(context.Background(), newMockSchema(), mysql.Dialect{}, "users", qsql.Params{":id": 7, "name": "bob"})
	require.NoError(t, err)

	assert.Equal(t, "DELETE FROM `users` WHERE `id` = :id AND `name` = :name", q.SQL)
	assert.Equal(t, qsql.Params{"id": 7, "name": "bob"}, q.Params)
}

func TestDelete_NeverWidens(t *testing.T) {
	tests := []struct {
		name   string
		params qsql.Params
	}{
		{"no conditions", qsql.Params{}},
		{"one invalid column", qsql.Params{"id": 7, "bogus": 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Delete(context.Background(), newMockSchema(), mysql.Dialect{}, "users", tt.params)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrValidation))
		})
	}
}

func TestOrderAndGroupClause(t *testing.T) {
	d := mysql.Dialect{}

	assert.Equal(t, "ORDER BY `a` ASC, `b` DESC", OrderClause(d, []Order{{Column: "a", Direction: "sideways"}, {Column: "b", Direction: "desc"}, {Column: "a"}}))
	assert.Equal(t, "", OrderClause(d, nil))
	assert.Equal(t, "GROUP BY `a`, `b`", GroupClause(d, []string{"a", "b", "a", ""}))
	assert.Equal(t, "", GroupClause(d, nil))
}

func TestWhereClause(t *testing.T) {
	q, err := WhereClause(context.Background(), newMockSchema(), mysql.Dialect{}, []Clause{
		{Expr: "users.age >= 21", Glue: "WHERE"},
		{Expr: "name LIKE bob%", Glue: "and"},
		{Expr: "users.bogus = 1", Glue: "AND"},
		{Expr: "ghosts.id = 1", Glue: "AND"},
		{Expr: "deleted_at is null", Glue: "AND"},
		{Expr: "name = alice", Glue: "XOR"},
		{Expr: "lonely"},
	})
	require.NoError(t, err)

	assert.Equal(t, "WHERE `users`.`age` >= :users_age AND `name` LIKE :name AND `deleted_at` IS NULL `name` = :name2", q.SQL)
	assert.Equal(t, qsql.Params{"users_age": "21", "name": "bob%", "name2": "alice"}, q.Params)
}
