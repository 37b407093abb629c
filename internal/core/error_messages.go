// Error Codes Reference
//
// Technical errors are mapped to user-friendly messages with codes for
// support reference. Codes are grouped by category:
//
// # Ingestion Errors (ING001-ING099)
//
//	ING001 - Unsupported file type: the extension is not .xlsx, .xlsm or .xls
//	         Patterns: "unsupported file type"
//
//	ING002 - Empty workbook: the document has no cells
//	         Patterns: "empty workbook"
//
//	ING003 - Layout not followed: a cell exceeded the redispatch limit
//	         Patterns: "redispatch limit"
//
//	ING004 - Decode failure: the workbook could not be read
//	         Patterns: "workbook decode failure"
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Unique constraint on a reference title
//	DB002 - Foreign key constraint
//	DB003 - Connection refused
//	DB004 - SQLite database is locked
//	DB005 - Timeout
//	DB006 - Deadlock
//
// # Source Errors (SRC001-SRC099)
//
//	SRC001 - Local file not found ("no such file")
//	SRC002 - S3 object not found ("NoSuchKey")
//	SRC003 - File too large
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL001 - No file in the multipart request
//	UPL002 - Ingestion slot busy ("too many ingestions")
//	UPL003 - Request cancelled
//	UPL004 - Request timed out
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: check application logs for the technical error
//
// # Pattern Matching
//
// Patterns are matched case-insensitively using strings.Contains. The first
// matching pattern wins, so more specific patterns come before general ones.

package core

import (
	"fmt"
	"strings"
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

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// Patterns are matched using strings.Contains, so partial matches work.
// The first matching pattern wins, so order matters:
//   - More specific patterns should come before general ones
//   - Multiple patterns can map to the same error code
//
// To add a new error pattern:
//  1. Choose the appropriate category and code range
//  2. Add the pattern in the correct position (specific before general)
//  3. Update the package documentation at the top of this file
var errorPatterns = []errorPattern{
	// =========================================================================
	// Ingestion Errors (ING001-ING004)
	// These errors occur while reading or parsing a ranking list document.
	// =========================================================================
	{
		pattern: "unsupported file type",
		msg: UserMessage{
			Message: "This file type is not supported",
			Action:  "Save the ranking list as .xlsx or .xls and upload it again",
			Code:    "ING001",
		},
	},
	{
		pattern: "empty workbook",
		msg: UserMessage{
			Message: "The workbook contains no cells",
			Action:  "Check that the right file was selected",
			Code:    "ING002",
		},
	},
	{
		pattern: "redispatch limit",
		msg: UserMessage{
			Message: "The document layout could not be followed",
			Action:  "Report the file to support with this code",
			Code:    "ING003",
		},
	},
	{
		pattern: "workbook decode failure",
		msg: UserMessage{
			Message: "The workbook could not be read",
			Action:  "Open and re-save the file in a spreadsheet editor",
			Code:    "ING004",
		},
	},

	// =========================================================================
	// Database Errors (DB001-DB006)
	// These errors occur when the store rejects a write or is unreachable.
	// =========================================================================
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "A reference record with this title already exists",
			Action:  "Another ingestion may be running against the same database",
			Code:    "DB001",
		},
	},
	{
		pattern: "foreign key constraint",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Check that the database schema is up to date",
			Code:    "DB002",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB003",
		},
	},
	{
		pattern: "database is locked",
		msg: UserMessage{
			Message: "The database is busy",
			Action:  "Wait for the running ingestion to finish and try again",
			Code:    "DB004",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try a smaller workbook or try again later",
			Code:    "DB005",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB006",
		},
	},

	// =========================================================================
	// Source Errors (SRC001-SRC003)
	// These errors occur while fetching a document to ingest.
	// =========================================================================
	{
		pattern: "no such file",
		msg: UserMessage{
			Message: "The document was not found",
			Action:  "Check the path and try again",
			Code:    "SRC001",
		},
	},
	{
		pattern: "nosuchkey",
		msg: UserMessage{
			Message: "The document was not found in the bucket",
			Action:  "Check the object key and try again",
			Code:    "SRC002",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Split the workbook into smaller files",
			Code:    "SRC003",
		},
	},

	// =========================================================================
	// Upload Errors (UPL001-UPL004)
	// These errors occur around the request carrying a document.
	// =========================================================================
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a workbook to upload",
			Code:    "UPL001",
		},
	},
	{
		pattern: "too many ingestions",
		msg: UserMessage{
			Message: "Another document is being ingested",
			Action:  "Please wait a moment and try again",
			Code:    "UPL002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL003",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller workbook or check your connection",
			Code:    "UPL004",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
// This is the fallback for unexpected errors. Support staff should check
// application logs for the original technical error when users report ERR000.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It searches through known error patterns (case-insensitive) and returns
// the first match. If no pattern matches, a generic fallback message with
// code ERR000 is returned.
//
// Example:
//
//	msg := MapError(fmt.Errorf("open report.csv: %w", ErrUnsupportedFormat))
//	// msg.Code == "ING001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
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
//
// Example output: "This file type is not supported (Code: ING001). Save the ranking list as .xlsx or .xls and upload it again"
//
// This is the primary function for displaying errors to end users.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing checks if an error matches a known pattern and should be shown to users.
// Returns true if the error matches a specific pattern (not the generic ERR000 fallback).
// Use this to decide whether to show the raw error or the mapped user message.
//
// Example:
//
//	if IsUserFacing(err) {
//	    showToUser(FormatUserError(err))
//	} else {
//	    log.Error(err) // Log technical error
//	    showToUser("An error occurred. Please try again.")
//	}
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	msg := MapError(err)
	return msg.Code != defaultMessage.Code
}

// UserError wraps a technical error with a user-friendly message.
// The original error is preserved for logging while providing a clean message for users.
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

// NewUserError creates a UserError by mapping a technical error to a user-friendly message.
// The returned UserError preserves the original technical error for logging via Unwrap(),
// while providing a clean user message via Error().
//
// Returns nil if err is nil.
//
// Example:
//
//	ue := NewUserError(err)
//	log.Error(ue.Technical)   // Log original error
//	fmt.Println(ue.Error())   // Show the user message
//	fmt.Println(ue.User.Code) // Show the code
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
