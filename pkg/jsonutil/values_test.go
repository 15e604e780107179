package jsonutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qsql "github.com/ekaya-inc/ekaya-querykit/pkg/sql"
)

func TestValue(t *testing.T) {
	tests := []struct {
		name  string
		input json.RawMessage
		want  any
	}{
		{"string value", json.RawMessage(`"hello"`), "hello"},
		{"integer value", json.RawMessage(`42`), int64(42)},
		{"negative integer", json.RawMessage(`-7`), int64(-7)},
		{"large integer preserves precision", json.RawMessage(`9007199254740993`), int64(9007199254740993)},
		{"float keeps its text", json.RawMessage(`3.14`), "3.14"},
		{"boolean true", json.RawMessage(`true`), true},
		{"null value", json.RawMessage(`null`), nil},
		{"empty raw message", json.RawMessage{}, nil},
		{"nil raw message", nil, nil},
		{"array", json.RawMessage(`[1,"a"]`), []any{int64(1), "a"}},
		{"object", json.RawMessage(`{"k":1.5}`), map[string]any{"k": "1.5"}},
		{"empty string", json.RawMessage(`""`), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Value(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValue_Invalid(t *testing.T) {
	for _, input := range []string{`{`, `1 2`, `bob`} {
		_, err := Value(json.RawMessage(input))
		assert.Error(t, err, input)
	}
}

func TestParseParams(t *testing.T) {
	params, err := ParseParams([]byte(`{"id": 7, ":name": "bob", "tags": ["a"], "deleted_at": null}`))
	require.NoError(t, err)

	assert.Equal(t, qsql.Params{
		"id":         int64(7),
		":name":      "bob",
		"tags":       []any{"a"},
		"deleted_at": nil,
	}, params)

	_, err = ParseParams([]byte(`[1, 2]`))
	assert.Error(t, err)
}

func TestScalarOrString(t *testing.T) {
	tests := []struct {
		input string
		want  any
	}{
		{"7", int64(7)},
		{"bob", "bob"},
		{`"7"`, "7"},
		{"null", nil},
		{"false", false},
		{"[1,2]", "[1,2]"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ScalarOrString(tt.input))
		})
	}
}
