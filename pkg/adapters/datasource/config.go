package datasource

import "fmt"

// IntFromMap reads an integer option. JSON numbers decode as float64 and
// YAML or env values may arrive as int, so both are accepted.
func IntFromMap(config map[string]any, key string, fallback int) int {
	switch v := config[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}

// StringMapFromMap reads a nested string map such as driver params.
// Non-string values are rendered with fmt.
func StringMapFromMap(config map[string]any, key string) map[string]string {
	switch v := config[key].(type) {
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, val := range v {
			out[k] = val
		}
		return out
	case map[string]any:
		out := make(map[string]string, len(v))
		for k, val := range v {
			out[k] = fmt.Sprint(val)
		}
		return out
	}
	return nil
}
