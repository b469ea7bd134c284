package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Stored file prefixes inside the FileStore.
const (
	importsDir = "imports"
	exportsDir = "exports"
)

// exportTimeLayout renders data_export_YYYY_MM_DD_HH_MM_SS.
const exportTimeLayout = "2006_01_02_15_04_05"

// TemplateFunc writes the import template workbook.
type TemplateFunc func(w io.Writer) error

// Deps are the collaborators a Service is built from.
type Deps struct {
	Parser   *Parser
	Sessions SessionCache
	Registry FileRegistry
	Files    FileStore
	Encoders map[Format]Encoder
	Template TemplateFunc
	Limiter  *Limiter
}

// Service provides the upload, re-header and export pipeline.
type Service struct {
	parser   *Parser
	sessions SessionCache
	registry FileRegistry
	files    FileStore
	encoders map[Format]Encoder
	template TemplateFunc
	limiter  *Limiter

	now func() time.Time
}

// NewService creates a new Service instance.
func NewService(d Deps) (*Service, error) {
	switch {
	case d.Sessions == nil:
		return nil, errors.New("core: session cache is required")
	case d.Registry == nil:
		return nil, errors.New("core: file registry is required")
	case d.Files == nil:
		return nil, errors.New("core: file store is required")
	}
	if d.Parser == nil {
		d.Parser = NewParser(DefaultMaxFileSize)
	}
	if d.Limiter == nil {
		d.Limiter = NewLimiter(DefaultMaxConcurrent, DefaultMaxWaitTime)
	}
	return &Service{
		parser:   d.Parser,
		sessions: d.Sessions,
		registry: d.Registry,
		files:    d.Files,
		encoders: d.Encoders,
		template: d.Template,
		limiter:  d.Limiter,
		now:      time.Now,
	}, nil
}

// Limiter exposes the job limiter for status reporting and drain on shutdown.
func (s *Service) Limiter() *Limiter {
	return s.limiter
}

// MaxFileSize returns the upload ceiling in bytes.
func (s *Service) MaxFileSize() int64 {
	return s.parser.MaxFileSize
}

// UploadInput is one uploaded file.
type UploadInput struct {
	Filename  string
	Size      int64 // declared size, -1 when unknown
	Body      io.Reader
	HeaderRow int // 1-based; 0 uses the first row
}

// Upload stores and registers the file, parses it, applies the header and
// opens a session. The stored import survives a parse failure, but no
// session is created in that case.
func (s *Service) Upload(ctx context.Context, p Principal, in UploadInput) (string, error) {
	if in.Body == nil {
		return "", ErrNoFile
	}
	if _, err := FileExtension(in.Filename); err != nil {
		return "", err
	}
	if in.Size > s.parser.MaxFileSize {
		return "", s.parser.tooLarge(in.Size)
	}
	if in.HeaderRow < 0 {
		return "", fmt.Errorf("%w: row %d", ErrInvalidHeaderRow, in.HeaderRow)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}
	defer s.limiter.Release()

	data, err := io.ReadAll(io.LimitReader(in.Body, s.parser.MaxFileSize+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.parser.MaxFileSize {
		return "", s.parser.tooLarge(int64(len(data)))
	}

	filename := safeFilename(in.Filename)
	stored := path.Join(importsDir, uuid.NewString()+"_"+filename)
	if err := s.files.Put(ctx, stored, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("store import: %w", err)
	}
	rec, err := s.registry.Record(ctx, FileRecord{
		Filename: in.Filename,
		Filepath: stored,
		Filetype: FileImport,
		OwnerID:  p.UserID,
	})
	if err != nil {
		return "", fmt.Errorf("record import: %w", err)
	}

	rows, err := s.parser.Parse(bytes.NewReader(data), int64(len(data)), in.Filename)
	if err != nil {
		return "", err
	}

	headerRow := in.HeaderRow
	if headerRow == 0 {
		headerRow = 1
	}
	headers, processed, err := Resolve(rows, headerRow)
	if err != nil {
		return "", err
	}

	key, err := s.sessions.Create(ctx, rows, processed, SessionMeta{
		ImportFileID: rec.ID,
		Filename:     in.Filename,
		HeaderRow:    &headerRow,
		TotalRows:    len(processed),
		TotalColumns: len(headers),
		Columns:      headers.Columns(),
		OwnerID:      p.UserID,
	})
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	slog.Info("upload parsed",
		"session", key,
		"file", in.Filename,
		"import_file_id", rec.ID,
		"rows", len(rows),
		"columns", len(headers),
	)
	return key, nil
}

// ViewStats summarizes the processed table.
type ViewStats struct {
	TotalRows int      `json:"total_rows"`
	Columns   []string `json:"columns"`
	HeaderRow *int     `json:"header_row"`
}

// View is the processed table of one session.
type View struct {
	SessionKey string         `json:"session_key"`
	Filename   string         `json:"filename"`
	Rows       []ProcessedRow `json:"parsed_data"`
	Stats      ViewStats      `json:"stats"`
}

// View returns the processed rows and stats of a session.
func (s *Service) View(ctx context.Context, p Principal, key string) (*View, error) {
	meta, err := s.session(ctx, p, key)
	if err != nil {
		return nil, err
	}
	rows, err := s.sessions.LoadProcessed(ctx, meta)
	if err != nil {
		return nil, err
	}

	columns := meta.Columns
	if columns == nil {
		columns = []string{}
	}
	return &View{
		SessionKey: key,
		Filename:   meta.Filename,
		Rows:       rows,
		Stats: ViewStats{
			TotalRows: len(rows),
			Columns:   columns,
			HeaderRow: meta.HeaderRow,
		},
	}, nil
}

// Reheader rebuilds the processed rows from the original rows using
// headerRow, counted in the numbering of the original file.
func (s *Service) Reheader(ctx context.Context, p Principal, key string, headerRow int) error {
	meta, err := s.session(ctx, p, key)
	if err != nil {
		return err
	}
	return s.reheader(ctx, meta, headerRow)
}

// ReheaderFromView is Reheader with the row counted as displayed in the
// processed table, where the current header row is absent.
func (s *Service) ReheaderFromView(ctx context.Context, p Principal, key string, displayedRow int) error {
	meta, err := s.session(ctx, p, key)
	if err != nil {
		return err
	}
	if displayedRow < 1 || displayedRow > meta.TotalRows {
		return fmt.Errorf("%w: row %d is outside 1..%d", ErrInvalidHeaderRow, displayedRow, meta.TotalRows)
	}
	return s.reheader(ctx, meta, OriginalRowFor(meta.EffectiveHeaderRow(), displayedRow))
}

func (s *Service) reheader(ctx context.Context, meta *SessionMeta, headerRow int) error {
	if headerRow < 1 {
		return fmt.Errorf("%w: row %d", ErrInvalidHeaderRow, headerRow)
	}
	original, err := s.sessions.LoadOriginal(ctx, meta)
	if err != nil {
		return err
	}
	headers, processed, err := Resolve(original, headerRow)
	if err != nil {
		return err
	}
	if err := s.sessions.ReplaceProcessed(ctx, meta.Key, processed, headerRow, headers); err != nil {
		return err
	}

	slog.Info("header row changed",
		"session", meta.Key,
		"header_row", headerRow,
		"rows", len(processed),
	)
	return nil
}

// ExportInput selects what to export from a session.
type ExportInput struct {
	SessionKey       string
	Selected         []int
	Columns          []string
	Format           Format
	RemoveDuplicates bool
}

// ExportResult is a generated export, already stored and registered.
type ExportResult struct {
	File        FileRecord
	Filename    string
	ContentType string
	Data        []byte
}

// Export projects the selected rows and columns, encodes them and records
// the output as an export file owned by p. The session is left untouched.
func (s *Service) Export(ctx context.Context, p Principal, in ExportInput) (*ExportResult, error) {
	meta, err := s.session(ctx, p, in.SessionKey)
	if err != nil {
		return nil, err
	}
	enc, ok := s.encoders[in.Format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, in.Format)
	}

	rows, err := s.sessions.LoadProcessed(ctx, meta)
	if err != nil {
		return nil, err
	}
	table, err := Project(rows, in.Selected, in.Columns, in.RemoveDuplicates)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	err = enc.Encode(&buf, table)
	s.limiter.Release()
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", in.Format, err)
	}

	filename := fmt.Sprintf("data_export_%s.%s", s.now().Format(exportTimeLayout), enc.Extension())
	stored := path.Join(exportsDir, uuid.NewString()+"_"+filename)
	if err := s.files.Put(ctx, stored, bytes.NewReader(buf.Bytes())); err != nil {
		return nil, fmt.Errorf("store export: %w", err)
	}
	rec, err := s.registry.Record(ctx, FileRecord{
		Filename: filename,
		Filepath: stored,
		Filetype: FileExport,
		OwnerID:  p.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("record export: %w", err)
	}

	slog.Info("export generated",
		"session", meta.Key,
		"format", in.Format,
		"rows", len(table.Rows),
		"columns", len(table.Columns),
		"file_id", rec.ID,
	)
	return &ExportResult{
		File:        rec,
		Filename:    filename,
		ContentType: enc.ContentType(),
		Data:        buf.Bytes(),
	}, nil
}

// ClearSession destroys a session and its blobs. Unknown keys are ignored.
func (s *Service) ClearSession(ctx context.Context, p Principal, key string) error {
	meta, err := s.session(ctx, p, key)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.sessions.Destroy(ctx, meta.Key)
}

func (s *Service) session(ctx context.Context, p Principal, key string) (*SessionMeta, error) {
	meta, err := s.sessions.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	// Another user's session is reported exactly like an unknown one.
	if meta.OwnerID != p.UserID {
		return nil, ErrSessionNotFound
	}
	return meta, nil
}

// ListFiles returns the caller's stored files, newest first. Import files
// are listed for super admins only.
func (s *Service) ListFiles(ctx context.Context, p Principal) (imports, exports []FileRecord, err error) {
	exports, err = s.registry.List(ctx, p.UserID, FileExport)
	if err != nil {
		return nil, nil, fmt.Errorf("list exports: %w", err)
	}
	imports = []FileRecord{}
	if p.IsSuperAdmin() {
		imports, err = s.registry.List(ctx, p.UserID, FileImport)
		if err != nil {
			return nil, nil, fmt.Errorf("list imports: %w", err)
		}
	}
	return imports, exports, nil
}

// OpenFile returns a stored file for download. The caller closes the reader.
func (s *Service) OpenFile(ctx context.Context, p Principal, id int64) (FileRecord, io.ReadCloser, error) {
	rec, err := s.registry.Get(ctx, id)
	if err != nil {
		return FileRecord{}, nil, err
	}
	if !canAccess(p, rec) {
		return FileRecord{}, nil, ErrForbidden
	}
	rc, err := s.files.Open(ctx, rec.Filepath)
	if err != nil {
		return FileRecord{}, nil, err
	}
	return rec, rc, nil
}

// DeleteFile removes a stored file and its registry record.
func (s *Service) DeleteFile(ctx context.Context, p Principal, id int64) error {
	rec, err := s.registry.Get(ctx, id)
	if err != nil {
		return err
	}
	if !canAccess(p, rec) {
		return ErrForbidden
	}
	if err := s.files.Delete(ctx, rec.Filepath); err != nil && !errors.Is(err, ErrFileNotFound) {
		return fmt.Errorf("delete stored file: %w", err)
	}
	if err := s.registry.Delete(ctx, id); err != nil {
		return err
	}

	slog.Info("stored file deleted", "file_id", id, "filetype", rec.Filetype, "user_id", p.UserID)
	return nil
}

// canAccess: import files are super admin only; export files belong to
// their owner, and super admins may act on any of them.
func canAccess(p Principal, rec FileRecord) bool {
	if p.IsSuperAdmin() {
		return true
	}
	return rec.Filetype == FileExport && rec.OwnerID == p.UserID
}

// Template returns the import template workbook.
func (s *Service) Template(ctx context.Context) ([]byte, error) {
	if s.template == nil {
		return nil, errors.New("import template is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := s.template(&buf); err != nil {
		return nil, fmt.Errorf("build template: %w", err)
	}
	return buf.Bytes(), nil
}

// safeFilename reduces a client-supplied name to a single path element.
func safeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." || name == "/" || name == ".." {
		return "upload"
	}
	return name
}
