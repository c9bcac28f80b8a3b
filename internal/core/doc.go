// Package core provides the business logic for spreadsheet comparison.
//
// It answers one question: which rows of a reference table are absent from a
// subset table? The package has no UI or file-format dependencies; callers
// hand it loaded tables (or a [Loader] plus raw inputs) and get back a
// [Report] of the original reference rows.
//
// # Pipeline
//
//  1. [Normalize] trims and lowercases column names and cell values, with
//     empty cells becoming "". Cell text comes from table.Cell.Canonical.
//  2. [ValidateSchema] requires identical normalized column sequences,
//     order included, and returns a [SchemaMismatchError] otherwise.
//  3. [FingerprintRow] hashes each normalized row with SHA-256 over
//     length-prefixed values.
//  4. [Compare] collects the subset fingerprints into a set and keeps every
//     reference row whose fingerprint is missing, in original order and
//     with duplicates preserved.
//
// The cost is linear in the total row count.
//
// # Service
//
// [Service] wraps the pipeline for servers and CLIs: it loads inputs through
// a [Loader], wraps load failures in [ReadError], bounds concurrent work with
// a [CompareLimiter] and logs each comparison under its own id. Nothing is
// cached between calls.
//
// # Error Handling
//
// Errors are deterministic for a given input, so nothing is retried.
// [MapError] turns any error into a [UserMessage] with a support code:
//
//   - CMP001-CMP002: comparison errors (schema mismatch, busy)
//   - FILE001-FILE006: file errors (size, unreadable, missing, empty, format, sheet)
//   - UPL004-UPL005, RATE001: request errors
//
// # Known Limitation
//
// Two different rows whose SHA-256 fingerprints collide would be treated as
// equal. The probability is negligible at spreadsheet scale and is not
// reported as an error.
package core
