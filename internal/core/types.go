package core

import (
	"context"
	"io"
	"time"
)

// Cell is a raw cell value. It is always one of string, float64, bool or nil,
// which keeps every row set JSON-native.
type Cell = any

// ParsedRow is one positional row exactly as decoded from the uploaded file.
type ParsedRow struct {
	RowIndex int    `json:"row_index"` // 1-based, contiguous
	Data     []Cell `json:"data"`
}

// HeaderSet is the ordered list of column labels taken from the header row.
// Index i names positional cell i of every data row.
type HeaderSet []string

// ProcessedRow is a data row with a HeaderSet applied.
type ProcessedRow struct {
	RowIndex int             `json:"row_index"` // 1-based, renumbered after header removal
	Data     map[string]Cell `json:"data"`
}

// Record is one projected output row, positionally aligned with Table.Columns.
// A nil entry means the column was absent or empty in the source row.
type Record []Cell

// Table is the rectangular result of a projection, ready for encoding.
type Table struct {
	Columns []string
	Rows    []Record
}

// Map returns row i as a column -> value mapping.
func (t *Table) Map(i int) map[string]Cell {
	out := make(map[string]Cell, len(t.Columns))
	for c, col := range t.Columns {
		out[col] = t.Rows[i][c]
	}
	return out
}

// Format identifies an export encoding.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
)

// ParseFormat normalizes the format names accepted at the boundary.
// "excel" and "spreadsheet" are accepted as aliases for xlsx.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "xlsx", "excel", "spreadsheet":
		return FormatXLSX, nil
	case "csv":
		return FormatCSV, nil
	case "pdf":
		return FormatPDF, nil
	}
	return "", ErrUnknownFormat
}

// Encoder renders a projected table into one output format.
type Encoder interface {
	Encode(w io.Writer, t *Table) error
	ContentType() string
	Extension() string
}

// SessionMeta is the small metadata record kept in the session store.
// Row sets live in blobs referenced by OriginalRef and ProcessedRef.
// HeaderRow is in the numbering of the original rows.
type SessionMeta struct {
	Key          string    `json:"key"`
	ImportFileID int64     `json:"import_file_id"`
	OriginalRef  string    `json:"original_data_ref"`
	ProcessedRef string    `json:"processed_data_ref"`
	Filename     string    `json:"filename"`
	HeaderRow    *int      `json:"header_row"`
	TotalRows    int       `json:"total_rows"`
	TotalColumns int       `json:"total_columns"`
	Columns      []string  `json:"columns"`
	OwnerID      string    `json:"owner_id"`
	Version      int       `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// EffectiveHeaderRow returns the header row in use, 1 when none was recorded.
func (m *SessionMeta) EffectiveHeaderRow() int {
	if m.HeaderRow == nil || *m.HeaderRow < 1 {
		return 1
	}
	return *m.HeaderRow
}

// SessionCache persists one upload's working dataset across requests.
// Implementations must make ReplaceProcessed atomic for concurrent readers.
type SessionCache interface {
	Create(ctx context.Context, original []ParsedRow, processed []ProcessedRow, meta SessionMeta) (string, error)
	Get(ctx context.Context, key string) (*SessionMeta, error)
	LoadOriginal(ctx context.Context, meta *SessionMeta) ([]ParsedRow, error)
	LoadProcessed(ctx context.Context, meta *SessionMeta) ([]ProcessedRow, error)
	ReplaceProcessed(ctx context.Context, key string, processed []ProcessedRow, headerRow int, headers HeaderSet) error
	Destroy(ctx context.Context, key string) error
	Sweep(ctx context.Context, olderThan time.Duration) (int, error)
}

// FileType distinguishes uploaded files from generated exports.
type FileType string

const (
	FileImport FileType = "import"
	FileExport FileType = "export"
)

// FileRecord is a stored file entry in the file registry.
type FileRecord struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	Filepath  string    `json:"filepath"`
	Filetype  FileType  `json:"filetype"`
	OwnerID   string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileRegistry records stored import and export files.
type FileRegistry interface {
	Record(ctx context.Context, rec FileRecord) (FileRecord, error)
	Get(ctx context.Context, id int64) (FileRecord, error)
	List(ctx context.Context, ownerID string, ft FileType) ([]FileRecord, error)
	Delete(ctx context.Context, id int64) error
}

// FileStore holds the bytes behind registry records.
type FileStore interface {
	Put(ctx context.Context, path string, r io.Reader) error
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
}
