// Package jsonutil turns loosely typed JSON into statement parameters.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"

	qsql "github.com/ekaya-inc/ekaya-querykit/pkg/sql"
)

// Value decodes one JSON value into a bind value. Integers become int64 and
// other numbers keep their literal text so no precision is lost. Strings,
// booleans and null map to string, bool and nil. Arrays and objects decode to
// []any and map[string]any, which the binder rejects as collections.
func Value(raw json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid JSON value %s: %w", string(raw), err)
	}
	if dec.More() {
		return nil, fmt.Errorf("invalid JSON value %s: trailing data", string(raw))
	}
	return normalize(v), nil
}

func normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		return t.String()
	case []any:
		for i := range t {
			t[i] = normalize(t[i])
		}
		return t
	case map[string]any:
		for k := range t {
			t[k] = normalize(t[k])
		}
		return t
	default:
		return v
	}
}

// Params decodes each raw value with Value.
func Params(raw map[string]json.RawMessage) (qsql.Params, error) {
	params := make(qsql.Params, len(raw))
	for name, r := range raw {
		v, err := Value(r)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", name, err)
		}
		params[name] = v
	}
	return params, nil
}

// ParseParams decodes a JSON object such as {"id": 7, ":name": "bob"}.
func ParseParams(data []byte) (qsql.Params, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parameters must be a JSON object: %w", err)
	}
	return Params(raw)
}

// ScalarOrString decodes s as JSON when it holds a scalar and otherwise
// returns it unchanged, so "7" is an integer and "bob" stays a string.
func ScalarOrString(s string) any {
	if s == "" {
		return s
	}
	v, err := Value(json.RawMessage(s))
	if err != nil {
		return s
	}
	switch v.(type) {
	case []any, map[string]any:
		return s
	}
	return v
}
