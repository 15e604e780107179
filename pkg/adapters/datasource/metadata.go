package datasource

import "fmt"

// Column names every DescribeColumnsQuery must produce.
const (
	FieldColumn = "Field"
	TypeColumn  = "Type"
	KeyColumn   = "Key"

	// PrimaryKeyRole is the Key value of a primary key column.
	PrimaryKeyRole = "PRI"
)

// ColumnDescriptor describes one column of a table.
type ColumnDescriptor struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"` // declared type, e.g. "varchar(255)"
	Key  string `json:"key" yaml:"key"`   // "PRI" for primary key columns
}

// IsPrimaryKey reports whether the column is part of the primary key.
func (c ColumnDescriptor) IsPrimaryKey() bool {
	return c.Key == PrimaryKeyRole
}

// ColumnsFromRows converts describe-query rows into descriptors.
// Rows without a Field value are skipped.
func ColumnsFromRows(rows []map[string]any) []ColumnDescriptor {
	columns := make([]ColumnDescriptor, 0, len(rows))
	for _, row := range rows {
		name := AsString(row[FieldColumn])
		if name == "" {
			continue
		}
		columns = append(columns, ColumnDescriptor{
			Name: name,
			Type: AsString(row[TypeColumn]),
			Key:  AsString(row[KeyColumn]),
		})
	}
	return columns
}

// TableNamesFromRows returns the first column of each row of a list-tables query.
func TableNamesFromRows(result *QueryResult) []string {
	if result == nil || len(result.Columns) == 0 {
		return nil
	}
	first := result.Columns[0]
	names := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		if name := AsString(row[first]); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// AsString renders a scanned value as text.
func AsString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}
