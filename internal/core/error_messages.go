package core

// # Error Codes Reference
//
// This file defines user-facing error messages with codes for support
// reference. Codes are grouped by category:
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds the maximum size limit
//	          Action: Remove unused sheets or split the file
//	          Patterns: "file too large"
//
//	FILE002 - Unreadable spreadsheet: File could not be read as a spreadsheet
//	          Action: Open the file in Excel and save it again as .xlsx
//	          Matches: source.ErrUnreadableSource
//
//	FILE003 - Legacy workbook: File is in the old .xls format
//	          Action: Save the file as .xlsx and upload it again
//	          Patterns: "legacy .xls"
//
//	FILE004 - No file: A required file was not provided
//	          Action: Select both the CAJA and the BIG PASS files
//	          Matches: ErrNoFile
//
//	FILE005 - Empty file: The uploaded file is empty
//	          Action: Upload a spreadsheet with a header row and data
//	          Patterns: "empty file"
//
// # Result Errors (EMPTY001)
//
//	EMPTY001 - No qualifying rows: The files were read but no row had a positive amount
//	           Action: Check that the amount columns carry values greater than zero
//	           Matches: ErrEmptyResult
//
// # Request Errors (UPL002-UPL005, VAL001, RATE001)
//
//	UPL002 - System busy           Matches: ErrTooManyRuns
//	UPL004 - Request cancelled     Matches: context.Canceled
//	UPL005 - Request timeout       Matches: context.DeadlineExceeded
//	VAL001 - Invalid option        Patterns: "invalid option"
//	RATE001 - Too many requests    Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check the application logs for the
// technical error.
//
// # Matching
//
// Entries are tried in order. An entry matches when err wraps its target
// (errors.Is) or when the lowercased error text contains its pattern. The
// first match wins, so more specific entries come first.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/planos/internal/source"
)

var (
	// ErrEmptyResult reports a successful run that produced no records.
	// Extract does not return it; callers that must treat an empty flat file
	// as a failure (HTTP, CLI exit paths) wrap it themselves.
	ErrEmptyResult = errors.New("no qualifying rows")

	// ErrNoFile reports a missing input.
	ErrNoFile = errors.New("no file provided")
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

// errorPattern matches an error by sentinel, by text, or both.
type errorPattern struct {
	target  error
	pattern string
	msg     UserMessage
}

func (p errorPattern) matches(err error, lower string) bool {
	if p.target != nil && errors.Is(err, p.target) {
		return true
	}
	return p.pattern != "" && strings.Contains(lower, p.pattern)
}

var errorPatterns = []errorPattern{
	// =========================================================================
	// File Errors (FILE001-FILE005)
	// Causes first, then the generic unreadable sentinel.
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Remove unused sheets or split the file",
			Code:    "FILE001",
		},
	},
	{
		pattern: "legacy .xls",
		msg: UserMessage{
			Message: "File is in the old .xls format",
			Action:  "Save the file as .xlsx and upload it again",
			Code:    "FILE003",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Upload a spreadsheet with a header row and data",
			Code:    "FILE005",
		},
	},
	{
		target: source.ErrUnreadableSource,
		msg: UserMessage{
			Message: "File could not be read as a spreadsheet",
			Action:  "Open the file in Excel and save it again as .xlsx",
			Code:    "FILE002",
		},
	},
	{
		target:  ErrNoFile,
		pattern: "no file provided",
		msg: UserMessage{
			Message: "A required file was not provided",
			Action:  "Select both the CAJA and the BIG PASS files",
			Code:    "FILE004",
		},
	},

	// =========================================================================
	// Result Errors (EMPTY001)
	// =========================================================================
	{
		target: ErrEmptyResult,
		msg: UserMessage{
			Message: "The files were read but no row had a positive amount",
			Action:  "Check that the amount columns carry values greater than zero",
			Code:    "EMPTY001",
		},
	},

	// =========================================================================
	// Request Errors (UPL002-UPL005, VAL001, RATE001)
	// =========================================================================
	{
		target: ErrTooManyRuns,
		msg: UserMessage{
			Message: "The system is busy with other files",
			Action:  "Please wait a moment and try again",
			Code:    "UPL002",
		},
	},
	{
		target:  context.Canceled,
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		target:  context.DeadlineExceeded,
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try smaller files or check your connection",
			Code:    "UPL005",
		},
	},
	{
		pattern: "invalid option",
		msg: UserMessage{
			Message: "One of the request options is not valid",
			Action:  "Use format=xlsx or format=csv",
			Code:    "VAL001",
		},
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

// MapError converts a technical error to a user-friendly message.
// If nothing matches, a generic fallback message with code ERR000 is returned.
//
// Example:
//
//	_, err := source.ReadFile(ctx, "caja.xls")
//	msg := MapError(err)
//	// msg.Code == "FILE003"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var ue *UserError
	if errors.As(err, &ue) {
		return ue.User
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if ep.matches(err, errStr) {
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

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
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
