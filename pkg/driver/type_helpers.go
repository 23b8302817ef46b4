package driver

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
)

// TypeConversionError represents an error during type conversion from database types.
type TypeConversionError struct {
	Expected string
	Actual   string
	Field    string
}

func (e *TypeConversionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("type conversion error for field %q: expected %s, got %s", e.Field, e.Expected, e.Actual)
	}
	return fmt.Sprintf("type conversion error: expected %s, got %s", e.Expected, e.Actual)
}

// NewTypeConversionError creates a new TypeConversionError.
func NewTypeConversionError(expected, actual, field string) *TypeConversionError {
	return &TypeConversionError{
		Expected: expected,
		Actual:   actual,
		Field:    field,
	}
}

// AsString safely converts an interface{} to string.
// Returns the string and true if successful, empty string and false otherwise.
func AsString(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// AsMap safely converts an interface{} to map[string]any.
// Returns the map and true if successful, nil and false otherwise.
func AsMap(v any) (map[string]any, bool) {
	if v == nil {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

// PropertyString renders a stored property value as a string. Numbers and
// booleans are formatted; lists are joined with a single space.
func PropertyString(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case int64:
		return strconv.FormatInt(val, 10), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(val), true
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := PropertyString(item); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " "), true
	default:
		return "", false
	}
}

// MustString converts an interface{} to string or returns an error.
func MustString(v any, field string) (string, error) {
	s, ok := AsString(v)
	if !ok {
		return "", NewTypeConversionError("string", fmt.Sprintf("%T", v), field)
	}
	return s, nil
}

// RecordString reads a string column from a record.
func RecordString(record *db.Record, key string) (string, error) {
	if record == nil {
		return "", NewTypeConversionError("*db.Record", "nil", key)
	}
	v, ok := record.Get(key)
	if !ok {
		return "", fmt.Errorf("record has no column %q", key)
	}
	return MustString(v, key)
}

// RecordProperties reads a property map column from a record, keeping the
// values that render as strings.
func RecordProperties(record *db.Record, key string) (map[string]string, error) {
	if record == nil {
		return nil, NewTypeConversionError("*db.Record", "nil", key)
	}
	v, _ := record.Get(key)
	raw, ok := AsMap(v)
	if !ok {
		return nil, NewTypeConversionError("map[string]any", fmt.Sprintf("%T", v), key)
	}
	props := make(map[string]string, len(raw))
	for name, value := range raw {
		if s, ok := PropertyString(value); ok {
			props[name] = s
		}
	}
	return props, nil
}
