package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckParameterForInjection(t *testing.T) {
	tests := []struct {
		name            string
		paramName       string
		value           any
		expectInjection bool
	}{
		// Clean values
		{name: "clean string value", paramName: "customer_id", value: "12345"},
		{name: "clean email address", paramName: "email", value: "user@example.com"},
		{name: "clean date string", paramName: "start_date", value: "2024-01-15"},
		{name: "clean search term", paramName: "search", value: "laptop computers"},
		{name: "apostrophe in name", paramName: "last_name", value: "O'Brien"},
		{name: "empty string", paramName: "note", value: ""},

		// Non-string values
		{name: "integer value", paramName: "limit", value: 100},
		{name: "float value", paramName: "price", value: 99.95},
		{name: "boolean value", paramName: "active", value: true},
		{name: "nil value", paramName: "deleted_at", value: nil},

		// Injection attempts
		{name: "classic OR injection", paramName: "password", value: "' OR '1'='1", expectInjection: true},
		{name: "drop table", paramName: "search", value: "'; DROP TABLE users--", expectInjection: true},
		{name: "union select", paramName: "id", value: "1 UNION SELECT * FROM passwords", expectInjection: true},
		{name: "comment truncation", paramName: "username", value: "admin'--", expectInjection: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckParameterForInjection(tt.paramName, tt.value)
			if !tt.expectInjection {
				assert.Nil(t, result)
				return
			}
			require.NotNil(t, result)
			assert.True(t, result.IsSQLi)
			assert.NotEmpty(t, result.Fingerprint)
			assert.Equal(t, tt.paramName, result.ParamName)
		})
	}
}

func TestCheckParameterForInjection_ReportsBareName(t *testing.T) {
	result := CheckParameterForInjection(":search", "'; DROP TABLE users--")

	require.NotNil(t, result)
	assert.Equal(t, "search", result.ParamName)
}

func TestCheckAllParameters(t *testing.T) {
	tests := []struct {
		name             string
		params           Params
		expectParamNames []string
	}{
		{
			name: "all clean parameters",
			params: Params{
				"customer_id": "12345",
				"limit":       100,
				"active":      true,
			},
		},
		{
			name: "single injection attempt",
			params: Params{
				"customer_id": "12345",
				":search":     "'; DROP TABLE users--",
				"limit":       100,
			},
			expectParamNames: []string{"search"},
		},
		{
			name: "results follow sorted key order",
			params: Params{
				"username": "admin'--",
				"password": "' OR '1'='1",
				"email":    "user@example.com",
			},
			expectParamNames: []string{"password", "username"},
		},
		{
			name:   "empty parameters",
			params: Params{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := CheckAllParameters(tt.params)

			var names []string
			for _, r := range results {
				names = append(names, r.ParamName)
			}
			assert.Equal(t, tt.expectParamNames, names)
		})
	}
}
