package datasource

import (
	"fmt"
	"strings"
)

// QuoteWith wraps name in open/close quotes, doubling any embedded close quote.
func QuoteWith(open, close, name string) string {
	return open + strings.ReplaceAll(name, close, close+close) + close
}

// StandardLimit renders "LIMIT n" or "LIMIT n OFFSET m".
func StandardLimit(offset, count int) string {
	if offset < 0 {
		return fmt.Sprintf("LIMIT %d", count)
	}
	return fmt.Sprintf("LIMIT %d OFFSET %d", count, offset)
}

// ConflictUpsert renders "ON CONFLICT (keys) DO UPDATE SET c = excluded.c" as
// understood by PostgreSQL and SQLite. Without keys or columns there is nothing
// to update and the clause is empty.
func ConflictUpsert(quote func(string) string, keys, columns []string) string {
	if len(keys) == 0 || len(columns) == 0 {
		return ""
	}

	quotedKeys := make([]string, len(keys))
	for i, k := range keys {
		quotedKeys[i] = quote(k)
	}

	sets := make([]string, len(columns))
	for i, c := range columns {
		sets[i] = fmt.Sprintf("%s = excluded.%s", quote(c), quote(c))
	}

	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(quotedKeys, ", "), strings.Join(sets, ", "))
}
