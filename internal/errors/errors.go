package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// SourceUnreadable indicates the declaration file could not be read
	SourceUnreadable ErrorCode = "SOURCE_UNREADABLE"
	// ParseFailed indicates the declaration file could not be parsed
	ParseFailed ErrorCode = "PARSE_FAILED"
	// ParserUnavailable indicates the binary was built without the tree-sitter parser
	ParserUnavailable ErrorCode = "PARSER_UNAVAILABLE"
	// OutsideRoot indicates a path that does not live under the translated root
	OutsideRoot ErrorCode = "OUTSIDE_ROOT"
	// PieceWriteFailed indicates a piece file or its directory could not be written
	PieceWriteFailed ErrorCode = "PIECE_WRITE_FAILED"
	// PieceReadFailed indicates an existing piece file could not be read back
	PieceReadFailed ErrorCode = "PIECE_READ_FAILED"
	// Locked indicates another process holds the piece directory lock
	Locked ErrorCode = "LOCKED"
	// ConfigInvalid indicates invalid configuration
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// BackupMissing indicates no backup exists for a source file
	BackupMissing ErrorCode = "BACKUP_MISSING"
	// SourceChanged indicates the source no longer matches its last split
	SourceChanged ErrorCode = "SOURCE_CHANGED"
	// NoManifest indicates the source file was never split
	NoManifest ErrorCode = "NO_MANIFEST"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// DtsError represents an error with a stable code and the path it concerns
type DtsError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Path    string    `json:"path,omitempty"`
	cause   error     // Underlying error (not exported to JSON)
}

// New creates a new DtsError
func New(code ErrorCode, message string, cause error) *DtsError {
	return &DtsError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Newf creates a new DtsError with a formatted message and no cause
func Newf(code ErrorCode, format string, args ...interface{}) *DtsError {
	return &DtsError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface
func (e *DtsError) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, msg, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap returns the underlying error
func (e *DtsError) Unwrap() error {
	return e.cause
}

// WithPath attaches the path the error concerns
func (e *DtsError) WithPath(path string) *DtsError {
	e.Path = path
	return e
}

// CodeOf returns the code of the first DtsError in err's chain, or "" if there is none.
func CodeOf(err error) ErrorCode {
	var de *DtsError
	if stderrors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
