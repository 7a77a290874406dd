package core

import (
	"errors"
	"fmt"
)

// Storage contract errors. Store implementations must wrap their failures
// with one of these so the resolver can tell a miss from an outage.
var (
	ErrNotFound           = errors.New("not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrConflict           = errors.New("unique constraint conflict")
)

// ErrIngestBusy is returned when another ingestion run holds the run slot
// and the wait timeout expires.
var ErrIngestBusy = errors.New("too many uploads: another ingestion run is in progress")

// Field-level causes. Normalizers return these wrapped with the offending
// value; the transformer turns them into FieldWarnings, except
// ErrMissingRequiredField which rejects the row.
var (
	ErrMissingRequiredField = errors.New("required field is empty")
	ErrInvalidDate          = errors.New("invalid date")
	ErrInvalidCNIC          = errors.New("invalid cnic")
	ErrInvalidPhone         = errors.New("invalid phone number")
	ErrInvalidEmail         = errors.New("invalid email")
	ErrInvalidNumber        = errors.New("invalid number")
	ErrInvalidEnum          = errors.New("invalid enum value")
)

// UnreadableFileError aborts a run before any row is processed.
type UnreadableFileError struct {
	FileName string
	Reason   string
	Err      error
}

func (e *UnreadableFileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unreadable file %q: %s: %v", e.FileName, e.Reason, e.Err)
	}
	return fmt.Sprintf("unreadable file %q: %s", e.FileName, e.Reason)
}

func (e *UnreadableFileError) Unwrap() error {
	return e.Err
}

// RowErrorKind classifies why a row was skipped.
type RowErrorKind string

const (
	KindMissingRequiredField  RowErrorKind = "MissingRequiredField"
	KindMalformedRow          RowErrorKind = "MalformedRow"
	KindAmbiguousMatch        RowErrorKind = "AmbiguousMatch"
	KindConflictingIdentifier RowErrorKind = "ConflictingIdentifier"
	KindStorageUnavailable    RowErrorKind = "StorageUnavailable"
	KindCommitFailed          RowErrorKind = "CommitFailed"
)

// RowError is a failure scoped to one input row. The run continues.
type RowError struct {
	Row     int          `json:"rowNumber"`
	Field   string       `json:"field,omitempty"`
	Kind    RowErrorKind `json:"code"`
	Message string       `json:"message"`
	Err     error        `json:"-"`
}

func (e *RowError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("row %d: %s: %s", e.Row, e.Field, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// FieldWarning records a value that was defaulted or dropped. Never fatal.
type FieldWarning struct {
	Row     int    `json:"rowNumber"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// storageRowError classifies a store failure for the report.
func storageRowError(row int, op string, err error) *RowError {
	kind := KindCommitFailed
	msg := fmt.Sprintf("%s failed: %v", op, err)
	if errors.Is(err, ErrStorageUnavailable) {
		kind = KindStorageUnavailable
		msg = fmt.Sprintf("storage unavailable during %s, row not saved", op)
	}
	return &RowError{Row: row, Kind: kind, Message: msg, Err: err}
}
