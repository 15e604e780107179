package sql

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-querykit/pkg/apperrors"
)

type accountStatus int

func TestInferType(t *testing.T) {
	five := 5
	var nilPtr *int

	tests := []struct {
		name     string
		value    any
		expected ParamType
	}{
		{"nil", nil, TypeNull},
		{"nil pointer", nilPtr, TypeNull},
		{"bool", true, TypeBool},
		{"int", 42, TypeInt},
		{"int64", int64(42), TypeInt},
		{"uint8", uint8(7), TypeInt},
		{"named int", accountStatus(2), TypeInt},
		{"pointer to int", &five, TypeInt},
		{"string", "hello", TypeString},
		{"numeric string stays string", "42", TypeString},
		{"float falls back to string", 1.5, TypeString},
		{"bytes are a string", []byte("raw"), TypeString},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := InferType(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestInferType_RejectsCollections(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"int slice", []int{1, 2}},
		{"string slice", []string{"a"}},
		{"array", [2]string{"a", "b"}},
		{"map", map[string]any{"a": 1}},
		{"empty slice", []any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := InferType(tt.value)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrBinding))
			assert.True(t, IsCollection(tt.value))
		})
	}
}

func TestStripTypeSuffix(t *testing.T) {
	tests := map[string]string{
		"VARCHAR(255)":     "VARCHAR",
		"int(10) unsigned": "int",
		"decimal(10,2)":    "decimal",
		"text":             "text",
		"":                 "",
	}

	for in, expected := range tests {
		assert.Equal(t, expected, StripTypeSuffix(in), in)
	}
}

func TestTypeFromDeclared(t *testing.T) {
	tests := []struct {
		declared string
		expected ParamType
	}{
		{"int(11)", TypeInt},
		{"BIGINT", TypeInt},
		{"tinyint(1)", TypeInt},
		{"integer", TypeInt},
		{"boolean", TypeBool},
		{"varchar(32)", TypeString},
		{"datetime", TypeString},
		{"decimal(10,2)", TypeString},
	}

	for _, tt := range tests {
		t.Run(tt.declared, func(t *testing.T) {
			assert.Equal(t, tt.expected, TypeFromDeclared(tt.declared))
		})
	}
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name      string
		value     any
		typ       ParamType
		expected  any
		expectErr bool
	}{
		{name: "numeric string to int", value: "12", typ: TypeInt, expected: int64(12)},
		{name: "padded numeric string to int", value: " 12 ", typ: TypeInt, expected: int64(12)},
		{name: "word to int", value: "abc", typ: TypeInt, expectErr: true},
		{name: "bool to int", value: true, typ: TypeInt, expected: int64(1)},
		{name: "integral float to int", value: 3.0, typ: TypeInt, expected: int64(3)},
		{name: "fractional float to int", value: 1.5, typ: TypeInt, expectErr: true},
		{name: "uint overflow", value: uint64(math.MaxUint64), typ: TypeInt, expectErr: true},
		{name: "string to bool", value: "true", typ: TypeBool, expected: true},
		{name: "one to bool", value: 1, typ: TypeBool, expected: true},
		{name: "word to bool", value: "maybe", typ: TypeBool, expectErr: true},
		{name: "int to string", value: 42, typ: TypeString, expected: "42"},
		{name: "float to string", value: 1.5, typ: TypeString, expected: "1.5"},
		{name: "bool to string", value: true, typ: TypeString, expected: "1"},
		{name: "nil under any type", value: nil, typ: TypeInt, expected: nil},
		{name: "value under null type", value: "x", typ: TypeNull, expected: nil},
		{name: "collection", value: []int{1}, typ: TypeString, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.value, tt.typ)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParamType_String(t *testing.T) {
	assert.Equal(t, "NULL", TypeNull.String())
	assert.Equal(t, "BOOLEAN", TypeBool.String())
	assert.Equal(t, "INTEGER", TypeInt.String())
	assert.Equal(t, "STRING", TypeString.String())
}
