// Package errs defines the error kinds the front end maps to HTTP status
// codes, so handlers never hardcode a status literal for a domain failure.
package errs

import (
	"errors"
	"net/http"
)

// Kind identifies the category of a domain error, independent of its message.
type Kind int

const (
	// KindInternal is the zero value so an unwrapped error defaults to 500.
	KindInternal Kind = iota
	KindUnauthorized
	KindNotFound
	KindPayloadTooLarge
	KindRateLimited
	KindBadRequest
	KindUpgradeRejected
)

// Error wraps an underlying cause with the Kind used to pick an HTTP status.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error for the given kind and operation.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the Kind carried by err, defaulting to KindInternal when
// err does not wrap an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// StatusCode maps a Kind to the HTTP status the front end returns.
func StatusCode(kind Kind) int {
	switch kind {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUpgradeRejected:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

var (
	// ErrNotFound is returned by the store engine when a key has no visible record.
	ErrNotFound = New(KindNotFound, "store: key not found", nil)
)
