// Package core provides the business logic for spreadsheet comparison.
//
// # Error Codes Reference
//
// This file maps technical errors to user-friendly messages with codes for
// support reference. Users can quote the code when asking for help.
//
// # Comparison Errors (CMP001-CMP099)
//
//	CMP001 - Columns differ: the two files do not have the same columns
//	         Action: Make both files use the same column names in the same order
//	         Match: *SchemaMismatchError
//
//	CMP002 - System busy: too many comparisons in progress
//	         Action: Please wait a moment and try again
//	         Match: ErrTooManyComparisons, "too many comparisons"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	          Action: Remove unused sheets or rows and try again
//	          Patterns: "file too large", "request body too large"
//
//	FILE002 - File could not be read
//	          Action: Check the file opens in a spreadsheet program
//	          Match: any *ReadError not matched by a more specific pattern
//
//	FILE003 - No file: one of the two files is missing
//	          Action: Choose both a reference file and a subset file
//	          Patterns: "no file provided"
//
//	FILE004 - Empty file
//	          Action: Upload a file with a header row
//	          Patterns: "empty file"
//
//	FILE005 - Unsupported format
//	          Action: Upload an .xlsx or .csv file
//	          Patterns: "unsupported file format"
//
//	FILE006 - Sheet not found
//	          Action: Check the sheet name, or leave it blank to use the first sheet
//	          Patterns: "no sheet found"
//
// # Request Errors (UPL004-UPL005, RATE001)
//
//	UPL004 - Request cancelled          Patterns: "context canceled"
//	UPL005 - Request timeout            Patterns: "context deadline exceeded"
//	RATE001 - Too many requests         Patterns: "rate limit"
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// # Matching
//
// Typed errors are matched first with errors.As / errors.Is. The remaining
// patterns are matched case-insensitively with strings.Contains; the first
// match wins, so specific patterns come before general ones. For a
// *ReadError only the cause is matched, never the file name.
package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/JonMunkholm/sheetdiff/internal/sheet"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var schemaMismatchMessage = UserMessage{
	Message: "The two files do not have the same columns",
	Action:  "Make both files use the same column names in the same order",
	Code:    "CMP001",
}

var busyMessage = UserMessage{
	Message: "Too many comparisons are running",
	Action:  "Please wait a moment and try again",
	Code:    "CMP002",
}

var unreadableMessage = UserMessage{
	Message: "The file could not be read",
	Action:  "Check that the file opens in a spreadsheet program and try again",
	Code:    "FILE002",
}

var fileTooLargeMessage = UserMessage{
	Message: "File exceeds the maximum size limit",
	Action:  "Remove unused sheets or rows and try again",
	Code:    "FILE001",
}

var noFileMessage = UserMessage{
	Message: "Both files are required",
	Action:  "Choose both a reference file and a subset file",
	Code:    "FILE003",
}

var emptyFileMessage = UserMessage{
	Message: "The uploaded file is empty",
	Action:  "Upload a file with a header row",
	Code:    "FILE004",
}

var unsupportedMessage = UserMessage{
	Message: "This file type is not supported",
	Action:  "Upload an .xlsx or .csv file",
	Code:    "FILE005",
}

var noSheetMessage = UserMessage{
	Message: "The requested sheet was not found in the workbook",
	Action:  "Check the sheet name, or leave it blank to use the first sheet",
	Code:    "FILE006",
}

var cancelledMessage = UserMessage{
	Message: "Request was cancelled",
	Action:  "Please try again",
	Code:    "UPL004",
}

var timeoutMessage = UserMessage{
	Message: "Request timed out",
	Action:  "Try smaller files or try again later",
	Code:    "UPL005",
}

// sentinelMessages maps known sentinel errors, matched with errors.Is before
// any text pattern.
var sentinelMessages = []struct {
	err error
	msg UserMessage
}{
	{ErrTooManyComparisons, busyMessage},
	{ErrNoFile, noFileMessage},
	{sheet.ErrFileTooLarge, fileTooLargeMessage},
	{sheet.ErrEmptyFile, emptyFileMessage},
	{sheet.ErrUnsupportedFormat, unsupportedMessage},
	{sheet.ErrNoSheet, noSheetMessage},
	{context.Canceled, cancelledMessage},
	{context.DeadlineExceeded, timeoutMessage},
}

// errorPatterns maps technical error text (case-insensitive) to user messages.
var errorPatterns = []errorPattern{
	// =========================================================================
	// File Errors (FILE001-FILE006)
	// =========================================================================
	{
		pattern: "file too large",
		msg:     fileTooLargeMessage,
	},
	{
		pattern: "request body too large",
		msg:     fileTooLargeMessage,
	},
	{
		pattern: "no file provided",
		msg:     noFileMessage,
	},
	{
		pattern: "empty file",
		msg:     emptyFileMessage,
	},
	{
		pattern: "unsupported file format",
		msg:     unsupportedMessage,
	},
	{
		pattern: "no sheet found",
		msg:     noSheetMessage,
	},

	// =========================================================================
	// Request Errors (CMP002, UPL004-UPL005, RATE001)
	// =========================================================================
	{
		pattern: "too many comparisons",
		msg:     busyMessage,
	},
	{
		pattern: "context canceled",
		msg:     cancelledMessage,
	},
	{
		pattern: "context deadline exceeded",
		msg:     timeoutMessage,
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error into a user-friendly message.
// Returns an empty UserMessage for a nil error.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	if IsSchemaMismatch(err) {
		return schemaMismatchMessage
	}
	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(matchText(err))
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	if IsReadError(err) {
		return unreadableMessage
	}

	return defaultMessage
}

// matchText returns the text the patterns are matched against. The source
// name of a read error and any file path in its cause are user input, so
// only the cause's own message is used.
func matchText(err error) string {
	var re *ReadError
	if !errors.As(err, &re) {
		return err.Error()
	}

	cause := re.Err
	var pe *fs.PathError
	if errors.As(cause, &pe) {
		cause = pe.Err
	}
	if cause == nil {
		return ""
	}
	return cause.Error()
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

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
