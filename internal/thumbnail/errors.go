package thumbnail

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes thumbnail pipeline failures.
type ErrorKind int

const (
	// KindUnknown is returned by KindOf for errors that did not come from this package.
	KindUnknown ErrorKind = iota
	// KindUnsupportedFormat indicates the file content matches none of the supported containers.
	KindUnsupportedFormat
	// KindInvalidConstraint indicates the bounding box is missing or non-positive.
	KindInvalidConstraint
	// KindDecode indicates a recognized container whose content is corrupt or truncated.
	KindDecode
	// KindEncode indicates the still resize/encode step failed.
	KindEncode
	// KindEncoderUnavailable indicates the external video toolchain could not be located.
	KindEncoderUnavailable
	// KindTranscode indicates the external video toolchain ran and failed.
	KindTranscode
	// KindIO indicates a filesystem read or write failure.
	KindIO
	// KindSameInputOutput indicates the thumbnail would overwrite its own source.
	KindSameInputOutput
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnsupportedFormat:
		return "unsupported format"
	case KindInvalidConstraint:
		return "invalid constraint"
	case KindDecode:
		return "decode error"
	case KindEncode:
		return "encode error"
	case KindEncoderUnavailable:
		return "encoder unavailable"
	case KindTranscode:
		return "transcode error"
	case KindIO:
		return "io error"
	case KindSameInputOutput:
		return "same input and output path"
	default:
		return "unknown error"
	}
}

// Sentinels for errors.Is. Matching is by kind only.
var (
	ErrUnsupportedFormat  = &Error{Kind: KindUnsupportedFormat}
	ErrInvalidConstraint  = &Error{Kind: KindInvalidConstraint}
	ErrDecode             = &Error{Kind: KindDecode}
	ErrEncode             = &Error{Kind: KindEncode}
	ErrEncoderUnavailable = &Error{Kind: KindEncoderUnavailable}
	ErrTranscode          = &Error{Kind: KindTranscode}
	ErrIO                 = &Error{Kind: KindIO}
	ErrSameInputOutput    = &Error{Kind: KindSameInputOutput}
)

// Error is the single error type returned by the pipeline.
type Error struct {
	Kind    ErrorKind
	Path    string
	Message string
	Err     error

	// ExitCode is the external encoder's exit status for KindTranscode, -1 otherwise.
	ExitCode int
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Message != "" {
		msg = e.Message
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", e.Path, msg)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the ErrorKind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnknown
}

func newError(kind ErrorKind, path, message string, err error) *Error {
	return &Error{
		Kind:     kind,
		Path:     path,
		Message:  message,
		Err:      err,
		ExitCode: -1,
	}
}
