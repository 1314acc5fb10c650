// Package galleryerr defines the error taxonomy shared by every gallery
// component and the translation from that taxonomy to HTTP status codes.
package galleryerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies which branch of the error taxonomy an Error belongs to.
type Kind int

const (
	// KindInvalidPath signals a rejected path (traversal, malformed input).
	KindInvalidPath Kind = iota
	// KindNotFound signals a missing source file or expected cache entry.
	KindNotFound
	// KindInvalidSize signals an unrecognized size token.
	KindInvalidSize
	// KindForbidden signals an authorization failure.
	KindForbidden
	// KindCodecError signals a decode/encode/watermark/ICC failure.
	KindCodecError
	// KindIoError signals an underlying filesystem failure.
	KindIoError
	// KindSerdeError signals persisted JSON corruption.
	KindSerdeError
)

func (k Kind) String() string {
	switch k {
	case KindInvalidPath:
		return "InvalidPath"
	case KindNotFound:
		return "NotFound"
	case KindInvalidSize:
		return "InvalidSize"
	case KindForbidden:
		return "Forbidden"
	case KindCodecError:
		return "CodecError"
	case KindIoError:
		return "IoError"
	case KindSerdeError:
		return "SerdeError"
	default:
		return "Unknown"
	}
}

// Error is the gallery core's uniform error type. Phase is set only for
// KindCodecError and names the pipeline stage that failed (decode, encode,
// watermark, icc).
type Error struct {
	Kind  Kind
	Phase string
	Err   error
}

func (e *Error) Error() string {
	if e.Phase != "" {
		return fmt.Sprintf("%s(%s): %v", e.Kind, e.Phase, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, galleryerr.New(KindNotFound, nil)) style sentinel
// comparisons based solely on Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New wraps err (which may be nil) as an Error of the given kind.
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Codec builds a KindCodecError naming the failing phase.
func Codec(phase string, err error) *Error {
	return &Error{Kind: KindCodecError, Phase: phase, Err: err}
}

// Is reports whether err's Kind matches kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// HTTPStatus maps an error produced anywhere in the gallery core to an HTTP
// status code, per the propagation policy in §7.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindInvalidPath, KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidSize:
		return http.StatusBadRequest
	case KindCodecError, KindIoError, KindSerdeError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
