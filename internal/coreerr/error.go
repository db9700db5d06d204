// Package coreerr defines the semantic error taxonomy shared by every
// optimiser and the coordinator (spec section 7). Kind lets callers
// branch on category without string-matching messages, the same shape
// sniplette's cmd.ExitError gives its CLI exit codes.
package coreerr

import "fmt"

// Kind classifies an Error into one of the semantic categories from the
// error-handling design.
type Kind int

const (
	Unknown Kind = iota
	SourceNotFound
	UnsupportedType
	InvalidFormat
	EncryptedInput
	ToolNotFound
	SpawnFailed
	ToolFailed
	DeadlineExceeded
	SizeLimitExceeded
	InputDimensionExceeded
	NoSizeImprovement
	PerceptualRejection
	Cancelled
	ConfigurationError
	IOFailure
	EncodeFailed
)

func (k Kind) String() string {
	switch k {
	case SourceNotFound:
		return "SourceNotFound"
	case UnsupportedType:
		return "UnsupportedType"
	case InvalidFormat:
		return "InvalidFormat"
	case EncryptedInput:
		return "EncryptedInput"
	case ToolNotFound:
		return "ToolNotFound"
	case SpawnFailed:
		return "SpawnFailed"
	case ToolFailed:
		return "ToolFailed"
	case DeadlineExceeded:
		return "DeadlineExceeded"
	case SizeLimitExceeded:
		return "SizeLimitExceeded"
	case InputDimensionExceeded:
		return "InputDimensionExceeded"
	case NoSizeImprovement:
		return "NoSizeImprovement"
	case PerceptualRejection:
		return "PerceptualRejection"
	case Cancelled:
		return "Cancelled"
	case ConfigurationError:
		return "ConfigurationError"
	case IOFailure:
		return "IOFailure"
	case EncodeFailed:
		return "EncodeFailed"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type returned by engine components.
type Error struct {
	Kind    Kind
	Message string
	Err     error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error carrying a wrapped cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error; otherwise returns Unknown.
func KindOf(err error) Kind {
	var e *Error
	if asError(err, &e) {
		return e.Kind
	}
	return Unknown
}

// asError is a tiny errors.As shim kept local to avoid importing errors
// in this small file twice; behaves identically to errors.As for *Error.
func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// IsTerminalSuccess reports whether kind represents a condition the
// coordinator must surface as Succeeded-with-source rather than Failed
// (spec section 7: NoSizeImprovement and PerceptualRejection never fail).
func IsTerminalSuccess(kind Kind) bool {
	return kind == NoSizeImprovement || kind == PerceptualRejection
}
