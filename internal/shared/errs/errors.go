// Package errs defines the error taxonomy shared across the generation and
// delivery pipeline. Errors carry a Kind so the API layer can map them to
// HTTP statuses without string matching.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for propagation policy decisions.
type Kind int

const (
	KindValidation Kind = iota
	KindNotFound
	KindAuthorization
	KindGeneration
	KindPersistence
	KindBuild
	KindDeploy
	KindBusy
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAuthorization:
		return "authorization"
	case KindGeneration:
		return "generation"
	case KindPersistence:
		return "persistence"
	case KindBuild:
		return "build"
	case KindDeploy:
		return "deploy"
	case KindBusy:
		return "busy"
	default:
		return "internal"
	}
}

// Error is a kinded error with an optional wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a kinded error.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf creates a kinded error with formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Validation reports bad or ambiguous input. Rejected before any write.
func Validation(msg string) *Error { return New(KindValidation, msg) }

// NotFound reports an absent application or message.
func NotFound(msg string) *Error { return New(KindNotFound, msg) }

// Authorization reports an ownership mismatch.
func Authorization(msg string) *Error { return New(KindAuthorization, msg) }

// Generation reports a provider failure or timeout.
func Generation(msg string, err error) *Error { return Wrap(KindGeneration, msg, err) }

// Persistence reports an artifact or record write failure after a successful
// generation. On-disk state is the contract, so this surfaces to the caller.
func Persistence(msg string, err error) *Error { return Wrap(KindPersistence, msg, err) }

// Build reports an external build step failure. The deploy directory is left
// untouched.
func Build(msg string, err error) *Error { return Wrap(KindBuild, msg, err) }

// Deploy reports a publish failure.
func Deploy(msg string, err error) *Error { return Wrap(KindDeploy, msg, err) }

// KindOf extracts the Kind of an error, defaulting to KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error kind to an HTTP status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAuthorization:
		return http.StatusForbidden
	case KindBusy:
		return http.StatusConflict
	case KindGeneration, KindPersistence, KindBuild, KindDeploy:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
