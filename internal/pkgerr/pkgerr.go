// Package pkgerr defines the closed error-kind taxonomy shared by every
// service and the status codes the gateway maps it to.
package pkgerr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind is the closed set of error categories surfaced to clients.
type Kind string

const (
	KindNotFound       Kind = "URL_NOT_FOUND"
	KindExpired        Kind = "URL_EXPIRED"
	KindInvalidInput   Kind = "INVALID_INPUT"
	KindGenerationFail Kind = "URL_GENERATION_FAILED"
	KindInternal       Kind = "INTERNAL_SERVER_ERROR"
)

// HTTPStatus maps a Kind to the HTTP status code the gateway responds with.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindNotFound, KindExpired:
		return http.StatusNotFound
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindGenerationFail, KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Error is the structured error type passed across service and RPC
// boundaries. It carries a closed Kind so callers can recover the original
// category instead of collapsing every failure into a generic 500.
type Error struct {
	Kind    Kind   `json:"errorCode"`
	Message string `json:"message"`
	cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// As extracts a *Error from err, if any, matching the standard errors.As contract.
func As(err error) (*Error, bool) {
	var pe *Error
	ok := errors.As(err, &pe)
	return pe, ok
}

// KindOf returns the Kind of err if it is (or wraps) a *Error, otherwise KindInternal.
func KindOf(err error) Kind {
	if pe, ok := As(err); ok {
		return pe.Kind
	}
	return KindInternal
}

var allKinds = []Kind{KindNotFound, KindExpired, KindInvalidInput, KindGenerationFail, KindInternal}

// ParseKind recovers a Kind from text containing a "KIND: message" part. RPC
// errors cross go-micro's client/server boundary as a generic error whose
// text embeds the original Error.Error() output (behind prefixes such as
// rpcjson's "call svc.method: "), losing the concrete type; ParseKind lets
// the gateway recover the Kind from that text to map it to an HTTP status.
// The earliest "KIND:" marker in the text wins; with none, it returns
// KindInternal.
func ParseKind(message string) Kind {
	best, bestAt := KindInternal, -1
	for _, k := range allKinds {
		if i := strings.Index(message, string(k)+":"); i >= 0 && (bestAt < 0 || i < bestAt) {
			best, bestAt = k, i
		}
	}
	return best
}
