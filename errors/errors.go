package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a d2sedit error code.
type ErrorCode string

const (
	ErrFormat   ErrorCode = "FORMAT"             // file is not a save we understand
	ErrContract ErrorCode = "CONTRACT_VIOLATION" // caller asked for something impossible
	ErrStale    ErrorCode = "STALE"              // file changed under the stash
)

// D2sError represents a structured error with code and details.
type D2sError struct {
	Code    ErrorCode
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *D2sError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewUnknownTag is raised when the attribute scan meets a tag id that is not in the catalog.
func NewUnknownTag(tag uint32, bitOffset int) *D2sError {
	return &D2sError{
		Code:    ErrFormat,
		Message: fmt.Sprintf("unknown attribute tag %d at bit %d", tag, bitOffset),
		Details: map[string]any{"tag": tag, "bit_offset": bitOffset},
	}
}

// NewTruncatedField is raised when a tag claims more value bits than are left before it.
func NewTruncatedField(kind string, width, available int) *D2sError {
	return &D2sError{
		Code:    ErrFormat,
		Message: fmt.Sprintf("%s needs %d bits but only %d remain", kind, width, available),
		Details: map[string]any{"kind": kind, "width": width, "available": available},
	}
}

// NewMarkerNotFound creates an error for a missing section marker.
func NewMarkerNotFound(marker []byte, start int) *D2sError {
	return &D2sError{
		Code:    ErrFormat,
		Message: fmt.Sprintf("section marker % x not found after offset %d, invalid file format?", marker, start),
		Details: map[string]any{"marker": marker, "start": start},
	}
}

// NewUnaligned creates an error for a bit sequence that does not split into whole bytes.
func NewUnaligned(bits int) *D2sError {
	return &D2sError{
		Code:    ErrFormat,
		Message: fmt.Sprintf("bit sequence length %d is not a multiple of 8", bits),
		Details: map[string]any{"bits": bits},
	}
}

// NewTooShort creates an error for a file that ends before a fixed field.
func NewTooShort(need, have int) *D2sError {
	return &D2sError{
		Code:    ErrFormat,
		Message: fmt.Sprintf("file too short: need %d bytes, have %d", need, have),
		Details: map[string]any{"need": need, "have": have},
	}
}

// NewContract creates a generic contract violation.
func NewContract(msg string) *D2sError {
	return &D2sError{
		Code:    ErrContract,
		Message: msg,
	}
}

// NewValueTooWide is raised when a value does not fit the field's bit width.
func NewValueTooWide(kind string, value uint64, width int) *D2sError {
	return &D2sError{
		Code:    ErrContract,
		Message: fmt.Sprintf("%s: value %d does not fit in %d bits (max %d)", kind, value, width, uint64(1)<<width-1),
		Details: map[string]any{"kind": kind, "value": value, "width": width},
	}
}

// NewUnknownKind is raised for an attribute kind outside the catalog.
func NewUnknownKind(kind string) *D2sError {
	return &D2sError{
		Code:    ErrContract,
		Message: fmt.Sprintf("unknown attribute kind %s", kind),
		Details: map[string]any{"kind": kind},
	}
}

// NewNotPresent is raised when setting a kind that the file does not store.
func NewNotPresent(kind string) *D2sError {
	return &D2sError{
		Code:    ErrContract,
		Message: fmt.Sprintf("%s is not present in this file and cannot be set", kind),
		Details: map[string]any{"kind": kind},
	}
}

// NewOutOfRange creates an error for an index outside its table.
func NewOutOfRange(what string, index, limit int) *D2sError {
	return &D2sError{
		Code:    ErrContract,
		Message: fmt.Sprintf("%s %d out of range (0..%d)", what, index, limit-1),
		Details: map[string]any{"what": what, "index": index, "limit": limit},
	}
}

// NewStale creates an error for a stash whose source file has been rewritten since load.
func NewStale(path string) *D2sError {
	return &D2sError{
		Code:    ErrStale,
		Message: fmt.Sprintf("%s changed on disk since it was loaded; load it again", path),
		Details: map[string]any{"path": path},
	}
}

// Is checks if an error (or anything it wraps) is a D2sError with the given code.
func Is(err error, code ErrorCode) bool {
	var dErr *D2sError
	if stderrors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}
