package core

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestFileExtension(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"report.xlsx", "xlsx", false},
		{"REPORT.XLS", "xls", false},
		{"data.Csv", "csv", false},
		{"notes.txt", "", true},
		{"noext", "", true},
		{"archive.xlsx.zip", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FileExtension(tt.name)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedFormat) {
					t.Errorf("FileExtension(%q) error = %v, want ErrUnsupportedFormat", tt.name, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FileExtension(%q) unexpected error: %v", tt.name, err)
			}
			if got != tt.want {
				t.Errorf("FileExtension(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestParse_CSV(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  [][]Cell
	}{
		{
			name:  "simple",
			input: "h1,h2\nA,1\nB,2",
			want:  [][]Cell{{"h1", "h2"}, {"A", "1"}, {"B", "2"}},
		},
		{
			name:  "utf8 bom stripped",
			input: "\xef\xbb\xbfh1,h2\nA,1\n",
			want:  [][]Cell{{"h1", "h2"}, {"A", "1"}},
		},
		{
			name:  "ragged rows kept",
			input: "a,b,c\nd\ne,f,g,h\n",
			want:  [][]Cell{{"a", "b", "c"}, {"d"}, {"e", "f", "g", "h"}},
		},
		{
			name:  "blank line kept as empty row",
			input: "a,b\n\nc,d\n",
			want:  [][]Cell{{"a", "b"}, {}, {"c", "d"}},
		},
		{
			name:  "quoted newline is one row",
			input: "a,\"multi\nline\"\n\nb,c\n",
			want:  [][]Cell{{"a", "multi\nline"}, {}, {"b", "c"}},
		},
		{
			name:  "empty cells stay empty strings",
			input: "a,,c\r\n,,\r\n",
			want:  [][]Cell{{"a", "", "c"}, {"", "", ""}},
		},
	}

	p := NewParser(0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := p.Parse(strings.NewReader(tt.input), int64(len(tt.input)), "upload.csv")
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			if len(rows) != len(tt.want) {
				t.Fatalf("Parse() returned %d rows, want %d", len(rows), len(tt.want))
			}
			for i, row := range rows {
				if row.RowIndex != i+1 {
					t.Errorf("row %d RowIndex = %d, want %d", i, row.RowIndex, i+1)
				}
				if !reflect.DeepEqual(row.Data, tt.want[i]) {
					t.Errorf("row %d Data = %#v, want %#v", i, row.Data, tt.want[i])
				}
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	p := NewParser(16)

	tests := []struct {
		name     string
		input    string
		size     int64
		filename string
		want     error
	}{
		{"unsupported extension", "a,b", 3, "data.txt", ErrUnsupportedFormat},
		{"declared size over limit", "a,b", 17, "data.csv", ErrFileTooLarge},
		{"actual size over limit", strings.Repeat("x", 40), -1, "data.csv", ErrFileTooLarge},
		{"empty file", "", 0, "data.csv", ErrEmptyFile},
		{"broken xlsx", "not a zip archive", -1, "data.xlsx", ErrCorruptFile},
		{"broken xls", "not a biff file", -1, "data.xls", ErrCorruptFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse(strings.NewReader(tt.input), tt.size, tt.filename)
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParse_XLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	f.SetCellValue(sheet, "A1", "name")
	f.SetCellValue(sheet, "B1", "qty")
	f.SetCellValue(sheet, "C1", "active")
	f.SetCellValue(sheet, "A2", "widget")
	f.SetCellValue(sheet, "B2", 2.5)
	f.SetCellBool(sheet, "C2", true)
	f.SetCellValue(sheet, "B3", 3)
	f.SetCellValue(sheet, "C3", "n/a")

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	rows, err := NewParser(0).Parse(&buf, int64(buf.Len()), "book.xlsx")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	want := [][]Cell{
		{"name", "qty", "active"},
		{"widget", 2.5, true},
		{nil, float64(3), "n/a"},
	}
	if len(rows) != len(want) {
		t.Fatalf("Parse() returned %d rows, want %d", len(rows), len(want))
	}
	for i := range want {
		if !reflect.DeepEqual(rows[i].Data, want[i]) {
			t.Errorf("row %d Data = %#v, want %#v", i+1, rows[i].Data, want[i])
		}
	}
}
