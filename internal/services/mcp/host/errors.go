package host

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a transport failure. It is the discriminator written to
// synthesized error records so callers can tell "we never reached MuseScore"
// apart from "MuseScore rejected the command".
type ErrorKind string

const (
	// KindUnavailable means the websocket could not be opened.
	KindUnavailable ErrorKind = "unavailable"
	// KindTransport means a write or read on an open channel failed.
	KindTransport ErrorKind = "transport"
	// KindTimeout means the host did not answer within the request bound.
	KindTimeout ErrorKind = "timeout"
	// KindCanceled means the caller abandoned the round trip.
	KindCanceled ErrorKind = "canceled"
	// KindMalformedReply means the host answered with something other than a
	// JSON object.
	KindMalformedReply ErrorKind = "malformed_reply"
	// KindInvalidRequest means the envelope could not be encoded; nothing was sent.
	KindInvalidRequest ErrorKind = "invalid_request"
)

// Error is a transport failure with its kind and the operation that failed.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target matches this error by kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// KindOf extracts the failure kind from err. Errors that did not originate in
// this package are reported as KindTransport.
func KindOf(err error) ErrorKind {
	var hostErr *Error
	if errors.As(err, &hostErr) {
		return hostErr.Kind
	}
	return KindTransport
}

// ErrorReply converts a transport failure into the synthesized record returned
// to tool callers in place of a host reply.
func ErrorReply(err error) Reply {
	if err == nil {
		return Reply{}
	}
	return Reply{
		ErrorField: err.Error(),
		KindField:  string(KindOf(err)),
	}
}

const (
	// ErrorField carries the human-readable message of a synthesized record.
	ErrorField = "error"
	// KindField carries the ErrorKind of a synthesized record.
	KindField = "kind"
)
