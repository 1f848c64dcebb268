package pkg

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Kind is the closed set of error kinds this engine raises. Callers
// switch on Kind via errors.As rather than matching message text.
type Kind int

const (
	ErrUnknown Kind = iota
	ErrInvalidHeader
	ErrUnsupportedVersion
	ErrInvalidFieldDescriptor
	ErrFieldTooLarge
	ErrIntegerOutOfRange
	ErrInvalidDate
	ErrInvalidNumeric
	ErrRecordOutOfRange
	ErrMemoFileRequired
	ErrMemoFileMissing
	ErrMemoContentTooLarge
	ErrMemoBlockCorrupt
	ErrInvalidBlockSize
	ErrBlockNotAllocated
	ErrIndexCorrupt
	ErrIndexKeyMismatch
	ErrConflictDetected
	ErrInvalidTransactionReturn
	ErrIO
	ErrClosed
)

func (k Kind) String() string {
	switch k {
	case ErrInvalidHeader:
		return "invalid_header"
	case ErrUnsupportedVersion:
		return "unsupported_version"
	case ErrInvalidFieldDescriptor:
		return "invalid_field_descriptor"
	case ErrFieldTooLarge:
		return "field_too_large"
	case ErrIntegerOutOfRange:
		return "integer_out_of_range"
	case ErrInvalidDate:
		return "invalid_date"
	case ErrInvalidNumeric:
		return "invalid_numeric"
	case ErrRecordOutOfRange:
		return "record_out_of_range"
	case ErrMemoFileRequired:
		return "memo_file_required"
	case ErrMemoFileMissing:
		return "memo_file_missing"
	case ErrMemoContentTooLarge:
		return "memo_content_too_large"
	case ErrMemoBlockCorrupt:
		return "memo_block_corrupt"
	case ErrInvalidBlockSize:
		return "invalid_block_size"
	case ErrBlockNotAllocated:
		return "block_not_allocated"
	case ErrIndexCorrupt:
		return "index_corrupt"
	case ErrIndexKeyMismatch:
		return "index_key_mismatch"
	case ErrConflictDetected:
		return "conflict_detected"
	case ErrInvalidTransactionReturn:
		return "invalid_transaction_return"
	case ErrIO:
		return "io"
	case ErrClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Error is the single error type every exported operation returns on
// failure. Field and Value are populated by codec errors per the
// "offending field name and raw value" policy.
type Error struct {
	Kind    Kind
	Field   string
	Value   []byte
	msg     string
	cause   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field %q)", e.Kind, e.msg, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

func (e *Error) Unwrap() error { return e.cause }

func newErr(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...), cause: errors.WithStack(errors.Newf(format, args...))}
}

func wrapErr(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...), cause: errors.Wrapf(cause, format, args...)}
}

func fieldErr(kind Kind, field string, value []byte, format string, args ...interface{}) *Error {
	e := newErr(kind, format, args...)
	e.Field = field
	e.Value = value
	return e
}

// Is reports whether err is, or wraps, an *Error of kind k, so callers
// can write pkg.ErrClosed.Is(err).
func (k Kind) Is(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}
