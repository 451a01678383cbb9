package shared

import (
	"errors"
	"fmt"
)

// ErrorKind categorises pipeline failures.
type ErrorKind int

const (
	UnknownError ErrorKind = iota
	ConfigurationError
	RemoteFetchError
	SchemaError
	MissingRateError
	PersistenceError
)

// String stringifies the provided error kind.
func (k ErrorKind) String() string {
	switch k {
	case ConfigurationError:
		return "ConfigurationError"
	case RemoteFetchError:
		return "RemoteFetchError"
	case SchemaError:
		return "SchemaError"
	case MissingRateError:
		return "MissingRateError"
	case PersistenceError:
		return "PersistenceError"
	default:
		return "UnknownError"
	}
}

var (
	// ErrConfiguration matches configuration errors via errors.Is.
	ErrConfiguration = &Error{Kind: ConfigurationError}
	// ErrRemoteFetch matches remote fetch errors via errors.Is.
	ErrRemoteFetch = &Error{Kind: RemoteFetchError}
	// ErrSchema matches schema errors via errors.Is.
	ErrSchema = &Error{Kind: SchemaError}
	// ErrMissingRate matches missing rate errors via errors.Is.
	ErrMissingRate = &Error{Kind: MissingRateError}
	// ErrPersistence matches persistence errors via errors.Is.
	ErrPersistence = &Error{Kind: PersistenceError}
)

// Error is a categorised pipeline error.
type Error struct {
	// Kind is the error category.
	Kind ErrorKind
	// Msg describes the failure.
	Msg string
	// Err is the underlying cause, if any.
	Err error
	// StatusCode is the remote status code for remote fetch errors.
	StatusCode int
	// Body is the remote response body for remote fetch errors.
	Body string
}

// Error returns the error message.
func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d: %s)", e.StatusCode, e.Body)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the target is an error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.Kind == e.Kind
}

// KindOf returns the kind of the first categorised error in the chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return UnknownError
}

// NewConfigurationError creates a configuration error.
func NewConfigurationError(msg string, err error) *Error {
	return &Error{Kind: ConfigurationError, Msg: msg, Err: err}
}

// NewRemoteFetchError creates a remote fetch error carrying the remote status and body.
func NewRemoteFetchError(msg string, status int, body string, err error) *Error {
	return &Error{Kind: RemoteFetchError, Msg: msg, StatusCode: status, Body: body, Err: err}
}

// NewSchemaError creates a schema error.
func NewSchemaError(msg string, err error) *Error {
	return &Error{Kind: SchemaError, Msg: msg, Err: err}
}

// NewMissingRateError creates a missing rate error naming the absent currency.
func NewMissingRateError(currency string) *Error {
	return &Error{Kind: MissingRateError, Msg: fmt.Sprintf("no exchange rate for target currency %s", currency)}
}

// NewPersistenceError creates a persistence error.
func NewPersistenceError(msg string, err error) *Error {
	return &Error{Kind: PersistenceError, Msg: msg, Err: err}
}
