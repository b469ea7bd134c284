// Package core provides the business logic for tabular import and export.
//
// This package holds the domain pipeline independent of any UI or transport
// layer. Web handlers, the command line tool and tests all drive it through
// the same functions.
//
// # Pipeline
//
//  1. [Parser.Parse] decodes an xlsx, xls or csv file into positional
//     [ParsedRow] values. No header is assumed.
//  2. [Resolve] picks one row as the [HeaderSet] and turns every other row
//     into a [ProcessedRow] keyed by column label.
//  3. A [SessionCache] keeps both row sets under an opaque key so the user
//     can come back to the same upload across requests.
//  4. [Project] filters rows and columns, optionally dropping duplicates,
//     and produces a [Table] for an [Encoder].
//
// # Re-header
//
// Changing the header row always restarts from the original rows, never
// from the current processed rows. A row number shown in the processed
// table is converted with [OriginalRowFor], which is positional, so two
// identical data rows can never be confused.
//
// # Service
//
// [Service] wires the pipeline to its collaborators: the session cache, a
// [FileRegistry] of stored imports and exports, a [FileStore] for the bytes,
// and the encoders. Every operation takes the calling [Principal]; a session
// belonging to someone else is reported as [ErrSessionNotFound].
//
// # Error Handling
//
// Failures are sentinel errors wrapped with context. [MapError] turns them
// into user-facing messages with a support code (FILE, HDR, SES, EXP, ...).
package core
