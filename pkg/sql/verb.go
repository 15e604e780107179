package sql

import (
	"strings"
)

// Verb is the leading keyword of a statement.
type Verb int

const (
	VerbOther Verb = iota
	VerbSelect
	VerbShow
	VerbInsert
	VerbUpdate
	VerbDelete
)

var verbNames = map[string]Verb{
	"SELECT": VerbSelect,
	"SHOW":   VerbShow,
	"INSERT": VerbInsert,
	"UPDATE": VerbUpdate,
	"DELETE": VerbDelete,
}

func (v Verb) String() string {
	for name, verb := range verbNames {
		if verb == v {
			return name
		}
	}
	return "OTHER"
}

// OutcomeKind is the shape of the value a statement produces.
type OutcomeKind int

const (
	KindAcknowledged OutcomeKind = iota
	KindRowSet
	KindAffectedCount
)

func (k OutcomeKind) String() string {
	switch k {
	case KindRowSet:
		return "row_set"
	case KindAffectedCount:
		return "affected_count"
	default:
		return "acknowledged"
	}
}

// MarshalText renders the kind by name in JSON and YAML output.
func (k OutcomeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// LastInsertIDMarker is the function call that turns an INSERT into an id lookup.
const LastInsertIDMarker = "LAST_INSERT_ID()"

// Classification tells the executor how to run a statement and what to return.
type Classification struct {
	Verb         Verb
	Kind         OutcomeKind
	LastInsertID bool // INSERT that returns the generated id as a row set
}

// ReturnsRows reports whether the statement must be run on the query path.
func (c Classification) ReturnsRows() bool {
	return c.Kind == KindRowSet && !c.LastInsertID
}

// ParseVerb returns the leading verb of template. Newlines and tabs count as
// whitespace and matching ignores case.
func ParseVerb(template string) Verb {
	normalized := strings.NewReplacer("\r\n", " ", "\n", " ", "\t", " ").Replace(template)
	fields := strings.Fields(normalized)
	if len(fields) == 0 {
		return VerbOther
	}
	if verb, ok := verbNames[strings.ToUpper(fields[0])]; ok {
		return verb
	}
	return VerbOther
}

// ClassifyVerb maps a template onto its outcome shape:
//
//	SELECT, SHOW            row set
//	INSERT, UPDATE, DELETE  affected row count
//	INSERT ... LAST_INSERT_ID()  row set holding the generated id
//	anything else           acknowledged
func ClassifyVerb(template string) Classification {
	verb := ParseVerb(template)
	c := Classification{Verb: verb}

	switch verb {
	case VerbSelect, VerbShow:
		c.Kind = KindRowSet
	case VerbInsert:
		c.Kind = KindAffectedCount
		if strings.Contains(strings.ToUpper(template), LastInsertIDMarker) {
			c.Kind = KindRowSet
			c.LastInsertID = true
		}
	case VerbUpdate, VerbDelete:
		c.Kind = KindAffectedCount
	default:
		c.Kind = KindAcknowledged
	}

	return c
}

// WithoutLastInsertIDSelect drops "SELECT LAST_INSERT_ID()" statements from a
// multi-statement insert. The generated id is read from the driver result
// instead, which works the same on every database that reports one.
func WithoutLastInsertIDSelect(template string) string {
	statements := SplitStatements(template)
	if len(statements) < 2 {
		return template
	}

	kept := make([]string, 0, len(statements))
	for _, stmt := range statements {
		if ParseVerb(stmt) == VerbSelect && strings.Contains(strings.ToUpper(stmt), LastInsertIDMarker) {
			continue
		}
		kept = append(kept, stmt)
	}
	if len(kept) == 0 {
		return template
	}
	// A newline keeps a trailing line comment from swallowing the next statement.
	return strings.Join(kept, "\n")
}
