package core

// error_messages.go maps technical errors to user-facing messages with a
// support code. Codes are grouped by category:
//
//	DB001-DB099    storage constraints and connectivity
//	VAL001-VAL099  field values
//	FILE001-FILE099 uploaded file could not be read
//	ING001-ING099  ingestion run state
//	ERR000         no pattern matched; check the server log
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type errorPattern struct {
	pattern, code, message, action string
}

var errorPatterns = []errorPattern{
	// storage
	{"duplicate key", "DB001", "A record with this key already exists",
		"Upload the file again; the row will be matched to the existing record"},
	{"unique constraint", "DB002", "Another upload saved the same person at the same time",
		"Upload the file again"},
	{"violates foreign key", "DB003", "Referenced record does not exist",
		"Please try again or contact support"},
	{"connection refused", "DB004", "Unable to connect to database",
		"Please try again in a few moments"},
	{"connection reset", "DB005", "Database connection was interrupted",
		"Please try again"},
	{"storage unavailable", "DB006", "Database is unavailable",
		"Rows that were not saved are listed in the report; upload the file again later"},
	{"deadlock", "DB007", "Database was busy with conflicting operations",
		"Please try again"},

	// field values
	{"invalid date", "VAL001", "Invalid date format detected",
		"Use a four-digit year, e.g. 1985-03-14, 14/03/1985 or 14-Mar-1985"},
	{"invalid number", "VAL002", "Invalid number format detected",
		"Enter a whole number"},
	{"required field", "VAL003", "Required field is empty",
		"Fill in the employee name"},
	{"invalid enum", "VAL004", "Value is not in the allowed list",
		"Download the template to see the accepted values"},
	{"invalid cnic", "VAL005", "CNIC must have 13 digits",
		"Enter the CNIC as 12345-1234567-1"},
	{"invalid phone", "VAL006", "Mobile number is not valid",
		"Enter the number as 03001234567 or +923001234567"},
	{"invalid email", "VAL007", "Email address is not valid",
		"Enter a single address such as name@example.com"},

	// uploaded files
	{"file too large", "FILE001", "File exceeds maximum size limit",
		"Split the roster into smaller files"},
	{"legacy .xls", "FILE002", "Excel 97-2003 workbooks are not supported",
		"Save the file as .xlsx or .csv and upload again"},
	{"binary content", "FILE003", "File is not a spreadsheet or CSV",
		"Upload a .xlsx or .csv roster"},
	{"no file provided", "FILE004", "No file was selected",
		"Please select a roster file to upload"},
	{"empty file", "FILE005", "The uploaded file is empty",
		"Please upload a roster with a header row and data rows"},
	{"invalid xlsx", "FILE006", "Workbook could not be opened",
		"Open the file in Excel, save it again as .xlsx and retry"},
	{"invalid csv", "FILE007", "File is not a valid CSV",
		"Ensure the file is comma-separated"},
	{"unreadable file", "FILE008", "File could not be read",
		"Upload a .xlsx or .csv roster"},

	// ingestion runs
	{"too many uploads", "ING001", "Another roster is being imported",
		"Please wait a moment and try again"},
	{"ingest cancelled", "ING002", "Import was stopped before it finished",
		"Rows before the stop were saved; upload the file again to finish"},
	{"context canceled", "ING003", "Request was cancelled",
		"Please try again"},
	{"context deadline exceeded", "ING004", "Request timed out",
		"Split the roster into smaller files or try again later"},
	{"timeout", "ING004", "Operation timed out",
		"Please try again later"},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message, falling
// back to ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return UserMessage{Message: ep.message, Action: ep.action, Code: ep.code}
		}
	}
	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
