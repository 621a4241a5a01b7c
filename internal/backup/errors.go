package backup

import (
	"errors"
	"fmt"
)

// ErrNoProfileData is returned when exporting empty profile data
var ErrNoProfileData = errors.New("no profile data to backup")

// Validation codes, in the order checks run
const (
	CodeCorrupt            = "corrupt"
	CodeNotObject          = "not_object"
	CodeMissingField       = "missing_field"
	CodeUnsupportedVersion = "unsupported_version"
	CodeEventsNotArray     = "events_not_array"
	CodeMalformedEvent     = "malformed_event"
)

// ValidationError rejects a snapshot. Index is the offending event for
// CodeMalformedEvent and -1 otherwise.
type ValidationError struct {
	Code   string
	Field  string
	Index  int
	Detail string
}

func (e *ValidationError) Error() string {
	switch e.Code {
	case CodeCorrupt:
		return fmt.Sprintf("Invalid backup file: compressed data is corrupt: %s", e.Detail)
	case CodeNotObject:
		return "Invalid backup file: not a valid JSON object"
	case CodeMissingField:
		return fmt.Sprintf("Invalid backup file: missing required fields (%s)", e.Field)
	case CodeUnsupportedVersion:
		return fmt.Sprintf("Backup version not supported (%s). Please update syncstr.", e.Detail)
	case CodeEventsNotArray:
		return "Invalid backup file: events must be an array"
	case CodeMalformedEvent:
		if e.Field != "" {
			return fmt.Sprintf("Invalid backup file: events are malformed (event %d: bad %s)", e.Index, e.Field)
		}
		return fmt.Sprintf("Invalid backup file: events are malformed (event %d: %s)", e.Index, e.Detail)
	}
	return "Invalid backup file"
}

func invalid(code, field string) *ValidationError {
	return &ValidationError{Code: code, Field: field, Index: -1}
}
