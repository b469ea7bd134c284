// Package core provides the business logic for tabular import and export.
//
// # Error Codes Reference
//
// This file maps technical errors to user-facing messages with a code that
// users can quote to support staff.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds the 10MB upload limit
//	          Action: Split the file or remove unused sheets and columns
//	FILE002 - Unsupported format: Only xlsx, xls and csv files are accepted
//	          Action: Save the file as xlsx, xls or csv and upload again
//	FILE003 - Corrupt file: The file could not be read
//	          Action: Open the file in a spreadsheet program and save it again
//	FILE004 - No file: No file was selected
//	          Action: Please select a file to upload
//	FILE005 - Empty file: The uploaded file contains no rows
//	          Action: Please upload a file with at least one row
//
// # Header Errors (HDR001-HDR099)
//
//	HDR001 - Invalid header row: The chosen header row does not exist
//	         Action: Pick a row number shown in the table
//
// # Session Errors (SES001-SES099)
//
//	SES001 - Session not found: Session data not found
//	         Action: Please re-upload the file
//
// # Export Errors (EXP001-EXP099)
//
//	EXP001 - No rows selected
//	EXP002 - No columns selected
//	EXP003 - Unknown export format
//
// # Stored File and Access Errors (STO, AUTH)
//
//	STO001  - Stored file not found
//	AUTH001 - Permission denied
//	AUTH002 - Authentication required
//
// # Request and Capacity Errors (REQ, JOB, RATE, DB)
//
//	REQ001  - Request cancelled ("context canceled")
//	REQ002  - Request timeout ("context deadline exceeded")
//	REQ003  - Malformed request (raised by the web layer)
//	JOB001  - System busy: too many concurrent jobs
//	RATE001 - Too many requests
//	DB001   - Unable to connect to database
//
// # Default Error (ERR000)
//
//	ERR000 - Processing failed: An unexpected error occurred
//
// # Matching
//
// Sentinel errors are matched first with errors.Is, so wrapped errors keep
// their code. Anything else is matched case-insensitively against message
// patterns; the first match wins.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type sentinelMessage struct {
	target error
	msg    UserMessage
}

var sentinelMessages = []sentinelMessage{
	{ErrFileTooLarge, UserMessage{"File exceeds the 10MB upload limit", "Split the file or remove unused sheets and columns", "FILE001"}},
	{ErrUnsupportedFormat, UserMessage{"Only xlsx, xls and csv files are accepted", "Save the file as xlsx, xls or csv and upload again", "FILE002"}},
	{ErrCorruptFile, UserMessage{"The file could not be read", "Open the file in a spreadsheet program and save it again", "FILE003"}},
	{ErrNoFile, UserMessage{"No file was selected", "Please select a file to upload", "FILE004"}},
	{ErrEmptyFile, UserMessage{"The uploaded file contains no rows", "Please upload a file with at least one row", "FILE005"}},

	{ErrInvalidHeaderRow, UserMessage{"The chosen header row does not exist", "Pick a row number shown in the table", "HDR001"}},

	{ErrSessionNotFound, UserMessage{"Session data not found", "Please re-upload the file", "SES001"}},

	{ErrEmptySelection, UserMessage{"No rows selected", "Select at least one row to export", "EXP001"}},
	{ErrNoColumnsSelected, UserMessage{"No columns selected", "Select at least one column to export", "EXP002"}},
	{ErrUnknownFormat, UserMessage{"Unknown export format", "Choose excel, csv or pdf", "EXP003"}},

	{ErrFileNotFound, UserMessage{"Stored file not found", "Refresh the file list", "STO001"}},
	{ErrForbidden, UserMessage{"Permission denied", "Ask an administrator for access", "AUTH001"}},

	{ErrTooManyJobs, UserMessage{"Too many files are being processed", "Please wait a moment and try again", "JOB001"}},
	{context.Canceled, UserMessage{"Request was cancelled", "Please try again", "REQ001"}},
	{context.DeadlineExceeded, UserMessage{"Request timed out", "Try a smaller file or try again later", "REQ002"}},
}

// errorPattern defines a message pattern and its user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns catches errors that lost their sentinel (for example errors
// from drivers or crossing a process boundary). Specific before general.
var errorPatterns = []errorPattern{
	{"unauthorized", UserMessage{"Authentication required", "Provide a valid API key", "AUTH002"}},
	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB001"}},
	{"session data not found", UserMessage{"Session data not found", "Please re-upload the file", "SES001"}},
}

var defaultMessage = UserMessage{
	Message: "Processing failed",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// If nothing matches, the ERR000 fallback is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var ue *UserError
	if errors.As(err, &ue) {
		return ue.User
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.target) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with the message shown to users.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
