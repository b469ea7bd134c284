package core

import (
	"errors"
	"reflect"
	"testing"
)

func csvRows(lines ...[]Cell) []ParsedRow {
	rows := make([]ParsedRow, len(lines))
	for i, l := range lines {
		rows[i] = ParsedRow{RowIndex: i + 1, Data: l}
	}
	return rows
}

func TestResolve_DefaultHeader(t *testing.T) {
	rows := csvRows(
		[]Cell{"h1", "h2"},
		[]Cell{"A", "1"},
		[]Cell{"B", "2"},
	)

	headers, processed, err := Resolve(rows, 0)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	if !reflect.DeepEqual(headers, HeaderSet{"h1", "h2"}) {
		t.Errorf("headers = %v, want [h1 h2]", headers)
	}
	want := []ProcessedRow{
		{RowIndex: 1, Data: map[string]Cell{"h1": "A", "h2": "1"}},
		{RowIndex: 2, Data: map[string]Cell{"h1": "B", "h2": "2"}},
	}
	if !reflect.DeepEqual(processed, want) {
		t.Errorf("processed = %#v, want %#v", processed, want)
	}
}

// Re-headering to the first data row brings the old header back as data;
// only the header in use is ever excluded.
func TestResolve_ReheaderKeepsOldHeaderRow(t *testing.T) {
	rows := csvRows(
		[]Cell{"h1", "h2"},
		[]Cell{"A", "1"},
		[]Cell{"B", "2"},
	)

	headers, processed, err := Resolve(rows, 2)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !reflect.DeepEqual(headers, HeaderSet{"A", "1"}) {
		t.Errorf("headers = %v, want [A 1]", headers)
	}
	want := []ProcessedRow{
		{RowIndex: 1, Data: map[string]Cell{"A": "h1", "1": "h2"}},
		{RowIndex: 2, Data: map[string]Cell{"A": "B", "1": "2"}},
	}
	if !reflect.DeepEqual(processed, want) {
		t.Errorf("processed = %v, want %v", processed, want)
	}
}

func TestResolve_ExplicitHeader(t *testing.T) {
	rows := csvRows(
		[]Cell{"h1", "h2"},
		[]Cell{"A", "1"},
		[]Cell{"B", "2"},
	)

	headers, processed, err := Resolve(rows, 2)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if !reflect.DeepEqual(headers, HeaderSet{"A", "1"}) {
		t.Errorf("headers = %v, want [A 1]", headers)
	}
	want := []ProcessedRow{
		{RowIndex: 1, Data: map[string]Cell{"A": "h1", "1": "h2"}},
		{RowIndex: 2, Data: map[string]Cell{"A": "B", "1": "2"}},
	}
	if !reflect.DeepEqual(processed, want) {
		t.Errorf("processed = %#v, want %#v", processed, want)
	}
}

func TestResolve_RaggedRows(t *testing.T) {
	rows := csvRows(
		[]Cell{"a", "b", "c"},
		[]Cell{"1"},
		[]Cell{"1", "2", "3", "4", "5"},
	)

	_, processed, err := Resolve(rows, 1)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	if got := processed[0].Data; !reflect.DeepEqual(got, map[string]Cell{"a": "1", "b": nil, "c": nil}) {
		t.Errorf("short row = %#v, want missing cells as nil", got)
	}
	if got := processed[1].Data; len(got) != 3 {
		t.Errorf("long row has %d keys, want extra cells dropped", len(got))
	}
}

func TestResolve_CoercesAndDuplicateLabels(t *testing.T) {
	rows := csvRows(
		[]Cell{"id", float64(2024), true, nil, "id"},
		[]Cell{"first", "x", "y", "z", "second"},
	)

	headers, processed, err := Resolve(rows, 1)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	if !reflect.DeepEqual(headers, HeaderSet{"id", "2024", "true", "", "id"}) {
		t.Errorf("headers = %#v", headers)
	}
	if got := processed[0].Data["id"]; got != "second" {
		t.Errorf(`Data["id"] = %v, want later assignment "second"`, got)
	}
	if got := headers.Columns(); !reflect.DeepEqual(got, []string{"id", "2024", "true", ""}) {
		t.Errorf("Columns() = %v", got)
	}
}

func TestResolve_InvalidHeaderRow(t *testing.T) {
	rows := csvRows([]Cell{"a"}, []Cell{"b"})

	for _, h := range []int{-1, 3, 100} {
		_, _, err := Resolve(rows, h)
		if !errors.Is(err, ErrInvalidHeaderRow) {
			t.Errorf("Resolve(rows, %d) error = %v, want ErrInvalidHeaderRow", h, err)
		}
	}
}

func TestResolve_Properties(t *testing.T) {
	rows := csvRows(
		[]Cell{"title", "", ""},
		[]Cell{"k", "v", "n"},
		[]Cell{"a", "1", float64(1)},
		[]Cell{"a", "1", float64(1)},
		[]Cell{"b", "2", nil},
	)
	original := make([]ParsedRow, len(rows))
	copy(original, rows)

	for h := 1; h <= len(rows); h++ {
		_, first, err := Resolve(rows, h)
		if err != nil {
			t.Fatalf("Resolve(rows, %d) error: %v", h, err)
		}
		_, second, _ := Resolve(rows, h)

		if !reflect.DeepEqual(first, second) {
			t.Errorf("header %d: re-resolving changed the data", h)
		}
		if len(first) != len(rows)-1 {
			t.Errorf("header %d: %d processed rows, want %d", h, len(first), len(rows)-1)
		}
		for i, r := range first {
			if r.RowIndex != i+1 {
				t.Errorf("header %d: row %d has RowIndex %d", h, i, r.RowIndex)
			}
		}
	}

	if !reflect.DeepEqual(rows, original) {
		t.Error("Resolve mutated its input")
	}
}

func TestOriginalRowFor(t *testing.T) {
	tests := []struct {
		header, displayed, want int
	}{
		{1, 1, 2},
		{1, 2, 3},
		{3, 1, 1},
		{3, 2, 2},
		{3, 3, 4},
		{0, 1, 2},
	}

	for _, tt := range tests {
		if got := OriginalRowFor(tt.header, tt.displayed); got != tt.want {
			t.Errorf("OriginalRowFor(%d, %d) = %d, want %d", tt.header, tt.displayed, got, tt.want)
		}
	}
}

func TestOriginalRowFor_DuplicateRows(t *testing.T) {
	// Two identical data rows must still map to distinct original rows.
	rows := csvRows(
		[]Cell{"h"},
		[]Cell{"same"},
		[]Cell{"same"},
		[]Cell{"last"},
	)

	_, _, err := Resolve(rows, 1)
	if err != nil {
		t.Fatal(err)
	}

	h := OriginalRowFor(1, 2)
	headers, processed, err := Resolve(rows, h)
	if err != nil {
		t.Fatal(err)
	}
	if h != 3 {
		t.Errorf("displayed row 2 maps to original %d, want 3", h)
	}
	if !reflect.DeepEqual(headers, HeaderSet{"same"}) {
		t.Errorf("headers = %v", headers)
	}
	if processed[1].Data["same"] != "same" {
		t.Errorf("the other duplicate row was lost: %#v", processed)
	}
}
