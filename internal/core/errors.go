package core

import "errors"

// Parser errors. Nothing is persisted when any of these is returned.
var (
	ErrUnsupportedFormat = errors.New("unsupported format: expected xlsx, xls or csv")
	ErrFileTooLarge      = errors.New("file too large")
	ErrCorruptFile       = errors.New("corrupt file")
	ErrEmptyFile         = errors.New("empty file")
	ErrNoFile            = errors.New("no file provided")
)

// ErrInvalidHeaderRow is returned when a header index is out of range.
var ErrInvalidHeaderRow = errors.New("invalid header row")

// ErrSessionNotFound is returned for unknown, expired or foreign session keys.
var ErrSessionNotFound = errors.New("session data not found")

// Export validation errors. The session is left untouched.
var (
	ErrEmptySelection    = errors.New("no rows selected")
	ErrNoColumnsSelected = errors.New("no columns selected")
	ErrUnknownFormat     = errors.New("unknown export format")
)

// Registry and authorization errors.
var (
	ErrFileNotFound = errors.New("stored file not found")
	ErrForbidden    = errors.New("permission denied")
)
