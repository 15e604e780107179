package sql

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/ekaya-inc/ekaya-querykit/pkg/apperrors"
)

// ParamType is the storage type a value is bound as.
type ParamType int

const (
	TypeNull ParamType = iota
	TypeBool
	TypeInt
	TypeString
)

func (t ParamType) String() string {
	switch t {
	case TypeNull:
		return "NULL"
	case TypeBool:
		return "BOOLEAN"
	case TypeInt:
		return "INTEGER"
	case TypeString:
		return "STRING"
	default:
		return fmt.Sprintf("ParamType(%d)", int(t))
	}
}

// InferType derives a bind type from the runtime shape of value:
// nil is NULL, a boolean is BOOLEAN, any integer is INTEGER, anything else is STRING.
// Slices, arrays and maps are rejected; []byte counts as a string.
func InferType(value any) (ParamType, error) {
	if value == nil {
		return TypeNull, nil
	}

	switch value.(type) {
	case bool:
		return TypeBool, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return TypeInt, nil
	case string, []byte, time.Time:
		return TypeString, nil
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return TypeNull, nil
		}
		return InferType(rv.Elem().Interface())
	case reflect.Slice, reflect.Array, reflect.Map:
		return TypeNull, &apperrors.BindingError{Reason: fmt.Sprintf("collection values cannot be bound (%T)", value)}
	case reflect.Bool:
		return TypeBool, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInt, nil
	}

	return TypeString, nil
}

// IsCollection reports whether value is a slice, array or map other than []byte.
func IsCollection(value any) bool {
	if value == nil {
		return false
	}
	if _, ok := value.([]byte); ok {
		return false
	}
	switch reflect.ValueOf(value).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return true
	}
	return false
}

// StripTypeSuffix removes a parenthesized length or precision from a declared
// column type: "VARCHAR(255)" becomes "VARCHAR", "int(10) unsigned" becomes "int".
func StripTypeSuffix(declared string) string {
	if idx := strings.Index(declared, "("); idx >= 0 {
		declared = declared[:idx]
	}
	return strings.TrimSpace(declared)
}

var declaredIntTypes = map[string]bool{
	"int": true, "integer": true, "tinyint": true, "smallint": true, "mediumint": true, "bigint": true,
	"int2": true, "int4": true, "int8": true, "serial": true, "smallserial": true, "bigserial": true,
}

// TypeFromDeclared maps a declared column type onto a bind type.
func TypeFromDeclared(declared string) ParamType {
	base := strings.ToLower(StripTypeSuffix(declared))
	switch {
	case declaredIntTypes[base]:
		return TypeInt
	case base == "bool" || base == "boolean":
		return TypeBool
	default:
		return TypeString
	}
}

// Coerce converts value to the Go representation drivers expect for t.
// A nil value is always bound as NULL. Impossible combinations return an error.
func Coerce(value any, t ParamType) (any, error) {
	if value == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil
		}
		return Coerce(rv.Elem().Interface(), t)
	}
	if IsCollection(value) {
		return nil, fmt.Errorf("cannot bind collection %T", value)
	}

	switch t {
	case TypeNull:
		return nil, nil
	case TypeBool:
		return coerceBool(rv)
	case TypeInt:
		return coerceInt(rv)
	case TypeString:
		return coerceString(value, rv)
	default:
		return nil, fmt.Errorf("unknown bind type %v", t)
	}
}

func coerceBool(rv reflect.Value) (any, error) {
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0, nil
	case reflect.String:
		b, err := strconv.ParseBool(strings.TrimSpace(rv.String()))
		if err != nil {
			return nil, fmt.Errorf("cannot bind %q as BOOLEAN", rv.String())
		}
		return b, nil
	}
	return nil, fmt.Errorf("cannot bind %s as BOOLEAN", rv.Type())
}

func coerceInt(rv reflect.Value) (any, error) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("value %d overflows INTEGER", u)
		}
		return int64(u), nil
	case reflect.Bool:
		if rv.Bool() {
			return int64(1), nil
		}
		return int64(0), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
			return nil, fmt.Errorf("cannot bind %v as INTEGER", f)
		}
		return int64(f), nil
	case reflect.String:
		n, err := strconv.ParseInt(strings.TrimSpace(rv.String()), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot bind %q as INTEGER", rv.String())
		}
		return n, nil
	}
	return nil, fmt.Errorf("cannot bind %s as INTEGER", rv.Type())
}

func coerceString(value any, rv reflect.Value) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return v, nil
	case time.Time:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	}

	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		if rv.Bool() {
			return "1", nil
		}
		return "0", nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32), nil
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), nil
	}
	return nil, fmt.Errorf("cannot bind %s as STRING", rv.Type())
}
