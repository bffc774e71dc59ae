package gateway

import (
	"errors"
	"fmt"

	"github.com/ironsheep/scan-workbench/internal/model"
)

// ErrInvalidArgument matches every gateway error of kind KindInvalidArgument.
var ErrInvalidArgument = model.ErrInvalidArgument

// Kind classifies a gateway failure.
type Kind string

const (
	// KindInvalidArgument means the request was malformed: bad settings, an
	// unknown export format, a region outside the image.
	KindInvalidArgument Kind = "INVALID_ARGUMENT"

	// KindBackend means the backend accepted the request but could not
	// complete it: unreadable file, OCR failure, write failure.
	KindBackend Kind = "BACKEND_FAILED"

	// KindTransport means the request or response could not cross the
	// boundary to the backend.
	KindTransport Kind = "TRANSPORT_FAILED"
)

// Error is a classified gateway failure. Op names the gateway operation.
type Error struct {
	Op      string
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s (caused by: %v)", e.Op, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports invalid-argument errors as ErrInvalidArgument even when the
// cause came from the wire and carries no sentinel.
func (e *Error) Is(target error) bool {
	return target == ErrInvalidArgument && e.Kind == KindInvalidArgument
}

// Factory functions for each kind

func NewInvalidArgumentError(op string, cause error) *Error {
	return &Error{Op: op, Kind: KindInvalidArgument, Message: "invalid argument", Cause: cause}
}

func NewBackendError(op, message string, cause error) *Error {
	return &Error{Op: op, Kind: KindBackend, Message: message, Cause: cause}
}

func NewTransportError(op, message string, cause error) *Error {
	return &Error{Op: op, Kind: KindTransport, Message: message, Cause: cause}
}

// KindOf returns the kind of the first gateway error in err's chain, or ""
// when err carries none.
func KindOf(err error) Kind {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Kind
	}
	return ""
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	return KindOf(err) == KindTransport
}

// IsBackend reports whether err is a backend failure.
func IsBackend(err error) bool {
	return KindOf(err) == KindBackend
}

// classify wraps err from an in-process operation: sentinel-tagged
// validation failures become invalid-argument errors, anything else is a
// backend failure.
func classify(op, message string, err error) error {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return err
	}
	if errors.Is(err, model.ErrInvalidArgument) {
		return NewInvalidArgumentError(op, err)
	}
	return NewBackendError(op, message, err)
}
