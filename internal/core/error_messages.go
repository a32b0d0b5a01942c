package core

// error_messages.go maps technical errors to user-facing messages with a
// code that users can quote to support.
//
// # Schema Errors (SCH001-SCH099)
//
//	SCH001 - Primary file lacks Latitude, Longitude or Code
//	         Patterns: "primary schema"
//	SCH002 - Additional file lacks sl.no, Latitude or Longitude
//	         Patterns: "auxiliary schema"
//
// # Row Errors (ROW001-ROW099)
//
//	ROW001 - A row had unusable coordinates and was skipped
//	         Patterns: "malformed row"
//	ROW002 - No row had usable coordinates
//	         Patterns: "no valid rows"
//	ROW003 - Nothing to draw yet
//	         Patterns: "no primary dataset"
//
// # Render and Export Errors (RAS001, EXP001-EXP099)
//
//	RAS001 - The map could not be rasterized
//	         Patterns: "rasterization failed"
//	EXP001 - Unknown export format
//	         Patterns: "unsupported export format"
//	EXP002 - Too many exports in progress
//	         Patterns: "too many concurrent renders"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large       Patterns: "file too large", "request body too large"
//	FILE002 - Invalid CSV          Patterns: "invalid csv"
//	FILE004 - No file              Patterns: "no file provided"
//	FILE005 - Empty file           Patterns: "empty file"
//
// # Request Errors
//
//	SES001  - Session not found    Patterns: "session not found"
//	INP001  - Bad manual input     Patterns: "manual latitude", "manual longitude"
//	REQ001  - Request cancelled    Patterns: "context canceled"
//	REQ002  - Request timed out    Patterns: "context deadline exceeded"
//	RATE001 - Rate limited         Patterns: "rate limit"
//	AUTH001 - Missing/invalid key  Patterns: "api key"
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches. Check the application logs
// for the original technical error.
//
// Patterns are matched case-insensitively with strings.Contains; the first
// match wins, so specific patterns come before general ones.

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

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Schema
	{
		pattern: "primary schema",
		msg: UserMessage{
			Message: "The main uploaded CSV file does not contain the required columns: 'Latitude', 'Longitude', 'Code'.",
			Action:  "Add the missing columns to the header row and upload again",
			Code:    "SCH001",
		},
	},
	{
		pattern: "auxiliary schema",
		msg: UserMessage{
			Message: "The additional uploaded CSV file does not contain the required columns: 'sl.no', 'Latitude', 'Longitude'.",
			Action:  "Add the missing columns to the header row and upload again",
			Code:    "SCH002",
		},
	},

	// Rows
	{
		pattern: "malformed row",
		msg: UserMessage{
			Message: "A row had an invalid coordinate and was skipped",
			Action:  "Fix the listed rows and upload the file again",
			Code:    "ROW001",
		},
	},
	{
		pattern: "no valid rows",
		msg: UserMessage{
			Message: "No row in the main CSV file has usable coordinates",
			Action:  "Check that Latitude and Longitude hold decimal degrees",
			Code:    "ROW002",
		},
	},
	{
		pattern: "no primary dataset",
		msg: UserMessage{
			Message: "No main CSV file has been uploaded yet",
			Action:  "Choose the main CSV file first",
			Code:    "ROW003",
		},
	},

	// Render and export
	{
		pattern: "rasterization failed",
		msg: UserMessage{
			Message: "The map could not be rendered to an image",
			Action:  "Please try again; if it persists contact support",
			Code:    "RAS001",
		},
	},
	{
		pattern: "unsupported export format",
		msg: UserMessage{
			Message: "Unknown export format",
			Action:  "Choose JPG or PNG",
			Code:    "EXP001",
		},
	},
	{
		pattern: "too many concurrent renders",
		msg: UserMessage{
			Message: "The server is busy exporting other maps",
			Action:  "Please wait a moment and try again",
			Code:    "EXP002",
		},
	},

	// Files
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Remove unused columns or split the file",
			Code:    "FILE001",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Remove unused columns or split the file",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure file is comma-separated with a header row",
			Code:    "FILE002",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a CSV file with a header row and data rows",
			Code:    "FILE005",
		},
	},

	// Requests
	{
		pattern: "session not found",
		msg: UserMessage{
			Message: "Your session has expired",
			Action:  "Upload the CSV file again",
			Code:    "SES001",
		},
	},
	{
		pattern: "manual latitude",
		msg: UserMessage{
			Message: "The latitude entered is not a valid coordinate",
			Action:  "Enter decimal degrees between -90 and 90",
			Code:    "INP001",
		},
	},
	{
		pattern: "manual longitude",
		msg: UserMessage{
			Message: "The longitude entered is not a valid coordinate",
			Action:  "Enter decimal degrees between -180 and 180",
			Code:    "INP001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "REQ001",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Please try again",
			Code:    "REQ002",
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
	{
		pattern: "api key",
		msg: UserMessage{
			Message: "Missing or invalid API key",
			Action:  "Send a valid key in the X-API-Key header",
			Code:    "AUTH001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// If no pattern matches, a generic fallback message with code ERR000 is
// returned.
//
//	msg := MapError(&SchemaError{Dataset: DatasetPrimary, Missing: []string{"Code"}})
//	// msg.Code == "SCH001"
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
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern, as opposed to
// the generic ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
