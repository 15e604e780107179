package sql

import (
	"strings"
	"unicode"

	"github.com/ekaya-inc/ekaya-querykit/pkg/apperrors"
)

// ValidateTemplate rejects a template that is empty after trimming.
func ValidateTemplate(template string) error {
	if strings.TrimSpace(template) == "" {
		return apperrors.Validation("query template is empty")
	}
	return nil
}

// SplitStatements breaks a multi-statement template on semicolons that sit
// outside quoted strings, identifiers and comments. Fragments holding nothing
// but whitespace or comments are dropped and each remaining statement is
// returned with a single trailing semicolon.
//
// Example:
//
//	SplitStatements("UPDATE t SET a=:a; UPDATE t SET b=:b;")
//	// []string{"UPDATE t SET a=:a;", "UPDATE t SET b=:b;"}
func SplitStatements(template string) []string {
	var statements []string
	for _, fragment := range splitOutsideQuotes(template) {
		statements = append(statements, strings.TrimSpace(fragment)+";")
	}
	return statements
}

// IsMultiStatement reports whether template holds more than one statement.
func IsMultiStatement(template string) bool {
	return len(SplitStatements(template)) > 1
}

// splitOutsideQuotes splits on ';' while tracking single, double and backtick
// quoting plus "--" and "/* */" comments. Both backslash escapes and doubled
// quotes keep a string open. Fragments without any code are left out.
func splitOutsideQuotes(sqlQuery string) []string {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
		stateBacktick
		stateLineComment
		stateBlockComment
	)

	var parts []string
	state := stateNormal
	prevChar := rune(0)
	start := 0
	hasCode := false
	skip := false

	next := func(i int) byte {
		if i+1 < len(sqlQuery) {
			return sqlQuery[i+1]
		}
		return 0
	}

	for i, char := range sqlQuery {
		if skip {
			// Second character of a comment opener.
			skip = false
			prevChar = 0
			continue
		}

		switch state {
		case stateNormal:
			switch {
			case char == ';':
				if hasCode {
					parts = append(parts, sqlQuery[start:i])
				}
				start = i + 1
				hasCode = false
			case char == '-' && next(i) == '-':
				state, skip = stateLineComment, true
			case char == '/' && next(i) == '*':
				state, skip = stateBlockComment, true
			case char == '\'':
				state, hasCode = stateSingleQuote, true
			case char == '"':
				state, hasCode = stateDoubleQuote, true
			case char == '`':
				state, hasCode = stateBacktick, true
			case !unicode.IsSpace(char):
				hasCode = true
			}
		case stateSingleQuote:
			// A doubled quote ('') exits and immediately re-enters.
			if char == '\'' && prevChar != '\\' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if char == '"' && prevChar != '\\' {
				state = stateNormal
			}
		case stateBacktick:
			if char == '`' {
				state = stateNormal
			}
		case stateLineComment:
			if char == '\n' {
				state = stateNormal
			}
		case stateBlockComment:
			if char == '/' && prevChar == '*' {
				state = stateNormal
				char = 0
			}
		}
		prevChar = char
	}
	if hasCode {
		parts = append(parts, sqlQuery[start:])
	}

	return parts
}
