package sql

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ekaya-inc/ekaya-querykit/pkg/apperrors"
)

func TestValidateTemplate(t *testing.T) {
	tests := []struct {
		name      string
		sql       string
		expectErr bool
	}{
		{"empty", "", true},
		{"whitespace only", "  \n\t ", true},
		{"statement", "SELECT 1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTemplate(tt.sql)
			if tt.expectErr {
				assert.True(t, errors.Is(err, apperrors.ErrValidation))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		expected []string
	}{
		{
			name:     "two updates sharing params",
			sql:      "UPDATE t SET a=:a; UPDATE t SET b=:b;",
			expected: []string{"UPDATE t SET a=:a;", "UPDATE t SET b=:b;"},
		},
		{
			name:     "single statement gains a semicolon",
			sql:      "SELECT 1",
			expected: []string{"SELECT 1;"},
		},
		{
			name:     "stray separators are dropped",
			sql:      ";; UPDATE t SET a=1 ;  ;",
			expected: []string{"UPDATE t SET a=1;"},
		},
		{
			name:     "only separators",
			sql:      " ; ; ",
			expected: nil,
		},
		{
			name:     "semicolon inside single quotes",
			sql:      "INSERT INTO t (s) VALUES ('a;b'); DELETE FROM t",
			expected: []string{"INSERT INTO t (s) VALUES ('a;b');", "DELETE FROM t;"},
		},
		{
			name:     "doubled quote escape",
			sql:      "SELECT 'it''s; fine'",
			expected: []string{"SELECT 'it''s; fine';"},
		},
		{
			name:     "semicolon inside backticks",
			sql:      "SELECT `a;b` FROM t; SELECT 2",
			expected: []string{"SELECT `a;b` FROM t;", "SELECT 2;"},
		},
		{
			name:     "semicolon inside double quotes",
			sql:      `SELECT "x;y"; SELECT 2`,
			expected: []string{`SELECT "x;y";`, "SELECT 2;"},
		},
		{
			name:     "apostrophe in line comment",
			sql:      "UPDATE t SET a=:a; -- don't stop here\nUPDATE t SET b=:b;",
			expected: []string{"UPDATE t SET a=:a;", "-- don't stop here\nUPDATE t SET b=:b;"},
		},
		{
			name:     "semicolon in block comment",
			sql:      "UPDATE t /* a; b's */ SET a=1; DELETE FROM t",
			expected: []string{"UPDATE t /* a; b's */ SET a=1;", "DELETE FROM t;"},
		},
		{
			name:     "comment-only fragment is dropped",
			sql:      "UPDATE t SET a=1; -- trailing note",
			expected: []string{"UPDATE t SET a=1;"},
		},
		{
			name:     "block opener does not close itself",
			sql:      "SELECT 1 /*/ ; */; SELECT 2",
			expected: []string{"SELECT 1 /*/ ; */;", "SELECT 2;"},
		},
		{
			name:     "minus operator is not a comment",
			sql:      "UPDATE t SET a = a - 1; UPDATE t SET b = -b",
			expected: []string{"UPDATE t SET a = a - 1;", "UPDATE t SET b = -b;"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitStatements(tt.sql))
		})
	}
}

func TestIsMultiStatement(t *testing.T) {
	assert.True(t, IsMultiStatement("UPDATE t SET a=1; UPDATE t SET b=2"))
	assert.False(t, IsMultiStatement("UPDATE t SET a=1;"))
	assert.False(t, IsMultiStatement("SELECT ';'"))
}
