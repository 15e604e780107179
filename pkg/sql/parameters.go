package sql

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ekaya-inc/ekaya-querykit/pkg/apperrors"
)

// Marker is the prefix that identifies a placeholder in a template.
const Marker = ":"

// Params maps placeholder names, with or without the leading marker, to values.
type Params map[string]any

// SortedKeys returns the mapping keys in lexical order.
func (p Params) SortedKeys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy of the mapping.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// placeholderSpan is one occurrence of a placeholder in a template.
type placeholderSpan struct {
	start, end int // byte offsets, start points at the marker
	name       string
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// scanPlaceholders returns every placeholder occurrence in template order.
func scanPlaceholders(template string) []placeholderSpan {
	var spans []placeholderSpan
	n := len(template)

	for i := 0; i < n; i++ {
		if template[i] != ':' {
			continue
		}
		// ::type casts
		if (i > 0 && template[i-1] == ':') || (i+1 < n && template[i+1] == ':') {
			continue
		}
		if i+1 >= n || !isIdentStart(template[i+1]) {
			continue
		}
		j := i + 2
		for j < n && isIdentChar(template[j]) {
			j++
		}
		spans = append(spans, placeholderSpan{start: i, end: j, name: template[i+1 : j]})
		i = j - 1
	}

	return spans
}

// ExtractPlaceholders finds all :name placeholders in a template and returns
// a deduplicated list of bare names in order of first appearance.
//
// Example:
//
//	sql := "SELECT * FROM transactions WHERE sender_id = :user_id OR receiver_id = :user_id AND total > :min"
//	names := ExtractPlaceholders(sql)
//	// names == []string{"user_id", "min"}
func ExtractPlaceholders(template string) []string {
	seen := make(map[string]bool)
	var names []string

	for _, span := range scanPlaceholders(template) {
		if !seen[span.name] {
			seen[span.name] = true
			names = append(names, span.name)
		}
	}

	return names
}

// NormalizeName returns name with exactly one leading marker.
func NormalizeName(name string) string {
	return Marker + BareName(name)
}

// BareName returns name without any leading markers.
func BareName(name string) string {
	return strings.TrimLeft(name, Marker)
}

// ReconcileStatus classifies how a template's placeholders line up with a mapping.
type ReconcileStatus int

const (
	Matched ReconcileStatus = iota
	HasExtras
	HasMissing
)

func (s ReconcileStatus) String() string {
	switch s {
	case Matched:
		return "matched"
	case HasExtras:
		return "has_extras"
	case HasMissing:
		return "has_missing"
	default:
		return fmt.Sprintf("ReconcileStatus(%d)", int(s))
	}
}

// Reconciliation is the outcome of Reconcile.
type Reconciliation struct {
	Status       ReconcileStatus
	Placeholders []string // bare names, first-appearance order
	Extras       []string // bare names of unused keys, sorted
	Missing      []string // placeholders without a key, sorted
}

// Err returns a BindingError naming every missing placeholder, or nil.
func (r Reconciliation) Err() error {
	if r.Status != HasMissing {
		return nil
	}
	return &apperrors.BindingError{Missing: r.Missing}
}

// Reconcile compares the placeholders of template with the keys of params.
// A key satisfies a placeholder with or without the leading marker.
//
// Example:
//
//	r := Reconcile("UPDATE t SET a = :a WHERE id = :id", Params{":a": 1, "id": 2, "b": 3})
//	// r.Status == HasExtras, r.Extras == []string{"b"}
func Reconcile(template string, params Params) Reconciliation {
	placeholders := ExtractPlaceholders(template)

	required := make(map[string]bool, len(placeholders))
	for _, name := range placeholders {
		required[name] = true
	}

	supplied := make(map[string]bool, len(params))
	for key := range params {
		supplied[BareName(key)] = true
	}

	result := Reconciliation{Placeholders: placeholders}

	for _, name := range placeholders {
		if !supplied[name] {
			result.Missing = append(result.Missing, name)
		}
	}

	for name := range supplied {
		if !required[name] {
			result.Extras = append(result.Extras, name)
		}
	}
	sort.Strings(result.Missing)
	sort.Strings(result.Extras)

	switch {
	case len(result.Missing) > 0:
		result.Status = HasMissing
	case len(result.Extras) > 0:
		result.Status = HasExtras
	default:
		result.Status = Matched
	}

	return result
}

// PruneExtras returns a copy of params without every key whose bare name is
// in extras, however many markers it carries. Pruning an already pruned
// mapping is a no-op.
func PruneExtras(params Params, extras []string) Params {
	drop := make(map[string]bool, len(extras))
	for _, name := range extras {
		drop[BareName(name)] = true
	}

	out := make(Params, len(params))
	for key, value := range params {
		if !drop[BareName(key)] {
			out[key] = value
		}
	}
	return out
}

// FindPlaceholdersInStringLiterals detects placeholders that appear inside
// single-quoted string literals. Such placeholders are still bound by the
// driver, which is rarely what the author meant.
//
// Example:
//
//	sql := "SELECT * FROM events WHERE note = 'at :time' AND id = :id"
//	FindPlaceholdersInStringLiterals(sql)
//	// []string{"time"}
func FindPlaceholdersInStringLiterals(template string) []string {
	inLiteral := make([]bool, len(template))
	inQuote := false
	for i := 0; i < len(template); i++ {
		c := template[i]
		if c == '\'' && (i == 0 || template[i-1] != '\\') {
			inQuote = !inQuote
			continue
		}
		inLiteral[i] = inQuote
	}

	seen := make(map[string]bool)
	var found []string
	for _, span := range scanPlaceholders(template) {
		if inLiteral[span.start] && !seen[span.name] {
			seen[span.name] = true
			found = append(found, span.name)
		}
	}
	return found
}

// PlaceholderStyle is the native bind syntax of a driver.
type PlaceholderStyle int

const (
	StyleQuestion PlaceholderStyle = iota // ? per occurrence
	StyleDollar                           // $N per distinct name
	StyleAtName                           // @name per distinct name
)

// Rewrite converts :name placeholders into style and returns the rewritten SQL
// along with the bare names in the order their values must be passed.
//
// Example:
//
//	sql, order := Rewrite("SELECT * FROM t WHERE a = :a OR b = :a AND c = :c", StyleDollar)
//	// sql   == "SELECT * FROM t WHERE a = $1 OR b = $1 AND c = $2"
//	// order == []string{"a", "c"}
func Rewrite(template string, style PlaceholderStyle) (string, []string) {
	spans := scanPlaceholders(template)
	if len(spans) == 0 {
		return template, nil
	}

	var b strings.Builder
	b.Grow(len(template))

	var order []string
	index := make(map[string]int)
	last := 0

	for _, span := range spans {
		b.WriteString(template[last:span.start])
		last = span.end

		switch style {
		case StyleDollar:
			pos, ok := index[span.name]
			if !ok {
				order = append(order, span.name)
				pos = len(order)
				index[span.name] = pos
			}
			fmt.Fprintf(&b, "$%d", pos)
		case StyleAtName:
			if _, ok := index[span.name]; !ok {
				order = append(order, span.name)
				index[span.name] = len(order)
			}
			b.WriteString("@" + span.name)
		default:
			order = append(order, span.name)
			b.WriteString("?")
		}
	}
	b.WriteString(template[last:])

	return b.String(), order
}
