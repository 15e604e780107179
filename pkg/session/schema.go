package session

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-querykit/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-querykit/pkg/apperrors"
	qsql "github.com/ekaya-inc/ekaya-querykit/pkg/sql"
)

// schemaCache is the session's snapshot of tables and their columns. Entries
// are only ever replaced whole.
type schemaCache struct {
	tables  map[string]bool
	loaded  bool
	columns map[string][]datasource.ColumnDescriptor
}

func newSchemaCache() schemaCache {
	return schemaCache{
		tables:  map[string]bool{},
		columns: map[string][]datasource.ColumnDescriptor{},
	}
}

func (s *Session) dialect(ctx context.Context) (datasource.Dialect, error) {
	if err := s.Connect(ctx); err != nil {
		return nil, err
	}
	return s.conn.Dialect(), nil
}

func (s *Session) loadTables(ctx context.Context) error {
	dialect, err := s.dialect(ctx)
	if err != nil {
		return err
	}

	out, err := s.Execute(ctx, dialect.ListTablesQuery(), nil)
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}

	names := datasource.TableNamesFromRows(&datasource.QueryResult{Columns: out.Columns, Rows: out.Rows})
	tables := make(map[string]bool, len(names))
	for _, name := range names {
		tables[name] = true
	}

	// Descriptions of tables that disappeared must not outlive them.
	for table := range s.schema.columns {
		if !tables[table] {
			delete(s.schema.columns, table)
		}
	}

	s.schema.tables = tables
	s.schema.loaded = true
	s.logger.Debug("Loaded table list", zap.Int("tables", len(tables)))
	return nil
}

func (s *Session) describe(ctx context.Context, table string) ([]datasource.ColumnDescriptor, error) {
	dialect, err := s.dialect(ctx)
	if err != nil {
		return nil, err
	}

	query, params := dialect.DescribeColumnsQuery(table)
	out, err := s.Execute(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", table, err)
	}

	columns := datasource.ColumnsFromRows(out.Rows)
	s.schema.columns[table] = columns
	s.logger.Debug("Described table", zap.String("table", table), zap.Int("columns", len(columns)))
	return columns, nil
}

// ValidTable reports whether table exists. The table list is loaded on first
// use and again when reload is set.
func (s *Session) ValidTable(ctx context.Context, table string, reload bool) (bool, error) {
	if reload || !s.schema.loaded {
		if err := s.loadTables(ctx); err != nil {
			return false, err
		}
	}
	if !s.schema.tables[table] {
		s.logger.Debug("Unknown table", zap.String("table", table))
		return false, nil
	}
	return true, nil
}

// Tables lists the known tables in name order.
func (s *Session) Tables(ctx context.Context, reload bool) ([]string, error) {
	if reload || !s.schema.loaded {
		if err := s.loadTables(ctx); err != nil {
			return nil, err
		}
	}
	names := make([]string, 0, len(s.schema.tables))
	for name := range s.schema.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ValidColumn reports whether column exists in table. A table is described on
// first use and again when reload is set. Unknown tables have no columns.
func (s *Session) ValidColumn(ctx context.Context, table, column string, reload bool) (bool, error) {
	columns, err := s.columnsOf(ctx, table, reload)
	if err != nil || columns == nil {
		return false, err
	}
	for _, c := range columns {
		if c.Name == column {
			return true, nil
		}
	}
	return false, nil
}

func (s *Session) columnsOf(ctx context.Context, table string, reload bool) ([]datasource.ColumnDescriptor, error) {
	if cached, ok := s.schema.columns[table]; ok && !reload {
		return cached, nil
	}
	ok, err := s.ValidTable(ctx, table, false)
	if err != nil || !ok {
		return nil, err
	}
	return s.describe(ctx, table)
}

// ColumnTypes returns the descriptors of every column of table. An unknown
// table is a validation error.
func (s *Session) ColumnTypes(ctx context.Context, table string) ([]datasource.ColumnDescriptor, error) {
	columns, err := s.columnsOf(ctx, table, false)
	if err != nil {
		return nil, err
	}
	if columns == nil {
		return nil, s.fail(apperrors.Validation("invalid table %s", table), "Unknown table", zap.String("table", table))
	}
	return columns, nil
}

// GetColumns returns the column names of table in declaration order.
func (s *Session) GetColumns(ctx context.Context, table string) ([]string, error) {
	columns, err := s.ColumnTypes(ctx, table)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	return names, nil
}

// ColDatatype returns the declared type of column without its length, for
// example "varchar" for varchar(255). It is empty when the column is unknown.
func (s *Session) ColDatatype(ctx context.Context, column, table string) (string, error) {
	columns, err := s.columnsOf(ctx, table, false)
	if err != nil {
		return "", err
	}
	for _, c := range columns {
		if c.Name == column {
			return qsql.StripTypeSuffix(c.Type), nil
		}
	}
	return "", nil
}

// Reload drops the cached table list and every described table. The next
// lookup reads the schema again.
func (s *Session) Reload(ctx context.Context) error {
	s.schema = newSchemaCache()
	return s.loadTables(ctx)
}
