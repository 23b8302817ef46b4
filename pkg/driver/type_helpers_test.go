package driver

import (
	"errors"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
)

func TestTypeConversionError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      *TypeConversionError
		expected string
	}{
		{
			name:     "with field",
			err:      &TypeConversionError{Expected: "string", Actual: "int64", Field: "id"},
			expected: `type conversion error for field "id": expected string, got int64`,
		},
		{
			name:     "without field",
			err:      &TypeConversionError{Expected: "map[string]any", Actual: "nil"},
			expected: "type conversion error: expected map[string]any, got nil",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAsString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  any
		want   string
		wantOK bool
	}{
		{"valid string", "hello", "hello", true},
		{"empty string", "", "", true},
		{"nil", nil, "", false},
		{"int", 42, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := AsString(tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("AsString(%v) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestPropertyString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  any
		want   string
		wantOK bool
	}{
		{"string", "pg_10", "pg_10", true},
		{"int64", int64(2020), "2020", true},
		{"float64", 1.5, "1.5", true},
		{"bool", true, "true", true},
		{"list", []any{"alpha", int64(2)}, "alpha 2", true},
		{"nil", nil, "", false},
		{"unsupported", struct{}{}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := PropertyString(tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("PropertyString(%v) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestMustString(t *testing.T) {
	t.Parallel()

	if _, err := MustString("ok", "f"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := MustString(int64(1), "f")
	var convErr *TypeConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("expected TypeConversionError, got %v", err)
	}
	if convErr.Actual != "int64" {
		t.Errorf("Actual = %q, want int64", convErr.Actual)
	}
}

func TestRecordHelpers(t *testing.T) {
	t.Parallel()

	record := &db.Record{
		Keys: []string{"id", "props"},
		Values: []any{
			"4:abc:1",
			map[string]any{"ot:studyId": "pg_10", "ot:studyYear": int64(2020), "blob": struct{}{}},
		},
	}

	id, err := RecordString(record, "id")
	if err != nil || id != "4:abc:1" {
		t.Fatalf("RecordString = (%q, %v)", id, err)
	}

	props, err := RecordProperties(record, "props")
	if err != nil {
		t.Fatalf("RecordProperties failed: %v", err)
	}
	if props["ot:studyId"] != "pg_10" || props["ot:studyYear"] != "2020" {
		t.Errorf("unexpected props %v", props)
	}
	if _, ok := props["blob"]; ok {
		t.Error("unsupported values should be dropped")
	}

	if _, err := RecordString(record, "missing"); err == nil {
		t.Error("expected error for missing column")
	}
	if _, err := RecordProperties(nil, "props"); err == nil {
		t.Error("expected error for nil record")
	}
}
