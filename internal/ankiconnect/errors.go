package ankiconnect

import (
	"errors"
	"fmt"
)

// Kind classifies a failed call so the MCP caller can decide what to do
// about it without parsing message text.
type Kind string

const (
	// KindValidation means the local input was rejected before any
	// network call was made.
	KindValidation Kind = "validation_error"
	// KindConnectivity means the AnkiConnect endpoint was unreachable.
	KindConnectivity Kind = "connectivity_error"
	// KindTimeout means the configured deadline elapsed.
	KindTimeout Kind = "timeout_error"
	// KindTransport means AnkiConnect answered with a non-2xx HTTP status.
	KindTransport Kind = "transport_error"
	// KindProtocol means the response body was not a valid
	// {result, error} envelope.
	KindProtocol Kind = "protocol_error"
	// KindRemoteAction means AnkiConnect itself reported a failure; the
	// message is the remote text, verbatim.
	KindRemoteAction Kind = "remote_action_error"
	// KindConfiguration is only produced at startup.
	KindConfiguration Kind = "configuration_error"
)

// Error is the single error type this package returns. Message holds the
// human-readable description; for KindRemoteAction it is exactly what the
// endpoint sent back. Status is set for KindTransport only.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Validationf builds a KindValidation error. Handlers use it for argument
// problems caught before dispatch.
func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// KindOf reports the failure kind of err, or the empty string when err did
// not originate in this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// MessageOf extracts the human-readable message from err, falling back to
// err.Error() for foreign errors.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
