package core

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultMaxFileSize is the upload ceiling (10 MiB).
const DefaultMaxFileSize int64 = 10 << 20

// Parser decodes uploaded spreadsheets and CSV files into positional rows.
// No header is assumed; every decoded row is returned in file order.
type Parser struct {
	MaxFileSize int64
}

// NewParser creates a parser with the given size ceiling.
// A non-positive maxSize falls back to DefaultMaxFileSize.
func NewParser(maxSize int64) *Parser {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &Parser{MaxFileSize: maxSize}
}

// FileExtension returns the lowercase extension of filename without the dot,
// or ErrUnsupportedFormat when it is not one of xlsx, xls, csv.
func FileExtension(filename string) (string, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	switch ext {
	case "xlsx", "xls", "csv":
		return ext, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
}

// Parse reads the whole file and decodes it according to the extension of
// filename. size is the declared size (pass -1 when unknown); the ceiling is
// enforced on the declared size and again while reading.
func (p *Parser) Parse(r io.Reader, size int64, filename string) ([]ParsedRow, error) {
	ext, err := FileExtension(filename)
	if err != nil {
		return nil, err
	}

	if size > p.MaxFileSize {
		return nil, p.tooLarge(size)
	}

	data, err := io.ReadAll(io.LimitReader(r, p.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > p.MaxFileSize {
		return nil, p.tooLarge(int64(len(data)))
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	var cells [][]Cell
	switch ext {
	case "csv":
		cells, err = decodeCSV(data)
	case "xlsx":
		cells, err = decodeXLSX(data)
	case "xls":
		cells, err = decodeXLS(data)
	}
	if err != nil {
		return nil, err
	}
	if len(cells) == 0 {
		return nil, ErrEmptyFile
	}

	rows := make([]ParsedRow, len(cells))
	for i, c := range cells {
		rows[i] = ParsedRow{RowIndex: i + 1, Data: c}
	}
	return rows, nil
}

func (p *Parser) tooLarge(n int64) error {
	return fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrFileTooLarge, n, p.MaxFileSize)
}

// decodeCSV reads every record as strings. A UTF-8 or UTF-16 BOM selects the
// decoding and is stripped; invalid UTF-8 is replaced with U+FFFD.
// Blank lines between records are kept as empty rows so row numbers match
// the line layout the user sees in a spreadsheet program.
func decodeCSV(data []byte) ([][]Cell, error) {
	decoded := transform.NewReader(bytes.NewReader(data), unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	r := csv.NewReader(decoded)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]Cell
	lastLine := 0
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: invalid csv: %v", ErrCorruptFile, err)
		}

		line, _ := r.FieldPos(0)
		for ; lastLine+1 < line; lastLine++ {
			rows = append(rows, []Cell{})
		}
		endLine, _ := r.FieldPos(len(record) - 1)
		lastLine = endLine + strings.Count(record[len(record)-1], "\n")

		row := make([]Cell, len(record))
		for i, v := range record {
			row[i] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}
