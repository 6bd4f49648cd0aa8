// Package apperr defines the error kinds shared across the ingestion,
// scoring, and read-serving paths so the HTTP adapter can map them to a
// status code in one place instead of string-sniffing underlying errors.
package apperr

import "errors"

// Kind classifies an error for callers that need to react differently
// (retry, surface to the client, drop and count) without inspecting text.
type Kind int

const (
	// KindUnknown is the zero value; not a wrapped apperr.
	KindUnknown Kind = iota
	// KindInvalidInput marks caller-supplied parameters that are out of
	// range or malformed. Never retried.
	KindInvalidInput
	// KindNotFound marks a lookup against a wallet, run, or other entity
	// that does not exist.
	KindNotFound
	// KindNotReady marks a read against a graph or illicit set that has
	// not been built yet.
	KindNotReady
	// KindTransientStorage marks a DB or bus failure that the consumer
	// should retry and that reads should surface as unavailable.
	KindTransientStorage
	// KindPoisonRecord marks a bus record that could not be normalized.
	// Dropped permanently, counted, never retried.
	KindPoisonRecord
	// KindBusy marks a rejected request because a scoring run is already
	// in flight.
	KindBusy
	// KindFatal marks an unhandled condition; the consumer records
	// telemetry and re-raises for its supervisor to restart it.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindNotReady:
		return "not_ready"
	case KindTransientStorage:
		return "transient_storage"
	case KindPoisonRecord:
		return "poison_record"
	case KindBusy:
		return "busy"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with a Kind so callers can branch on it
// via errors.As without parsing messages.
type Error struct {
	kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

// Kind returns the classification of the error.
func (e *Error) Kind() Kind { return e.kind }

// New builds a Kind-classified error with no wrapped cause.
func New(kind Kind, msg string) error {
	return &Error{kind: kind, msg: msg}
}

// Wrap builds a Kind-classified error around an existing cause.
func Wrap(kind Kind, msg string, cause error) error {
	if cause == nil {
		return New(kind, msg)
	}
	return &Error{kind: kind, msg: msg, err: cause}
}

// KindOf returns the Kind of err if it (or something it wraps) is an
// *Error, and KindUnknown otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindUnknown
}

// Is reports whether err is classified with the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
