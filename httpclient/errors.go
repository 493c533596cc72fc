package httpclient

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies a failed request.
type Kind string

const (
	KindTimeout     Kind = "timeout"
	KindConnection  Kind = "connection"
	KindAuth        Kind = "auth"
	KindNotFound    Kind = "not_found"
	KindRateLimit   Kind = "rate_limit"
	KindInvalid     Kind = "invalid"
	KindServer      Kind = "server"
	KindCircuitOpen Kind = "circuit_open"
)

// retryable lists the kinds worth another attempt.
var retryable = map[Kind]bool{
	KindTimeout:    true,
	KindConnection: true,
	KindRateLimit:  true,
	KindServer:     true,
}

// Error is a classified request failure. Status is zero when no response
// arrived.
type Error struct {
	Kind   Kind
	Status int
	Body   []byte
	Err    error
}

func (e *Error) Error() string {
	msg := "no detail"
	switch {
	case e.Err != nil:
		msg = e.Err.Error()
	case e.Status > 0:
		msg = http.StatusText(e.Status)
	}
	if e.Status > 0 {
		return fmt.Sprintf("httpclient: %s (HTTP %d): %s", e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("httpclient: %s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the request may succeed if repeated.
func (e *Error) Retryable() bool {
	if e.Kind == KindServer && e.Status < 500 {
		return false
	}
	return retryable[e.Kind]
}

func failure(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func invalidf(format string, args ...any) *Error {
	return failure(KindInvalid, fmt.Errorf(format, args...))
}

// transportError classifies an error from http.Client.Do.
func transportError(err error, ctxDone bool) *Error {
	var ne net.Error
	if ctxDone || (errors.As(err, &ne) && ne.Timeout()) {
		return failure(KindTimeout, err)
	}
	return failure(KindConnection, err)
}

// FromStatus classifies a response status. It returns nil for 2xx.
func FromStatus(status int, body []byte) *Error {
	var kind Kind
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuth
	case status == http.StatusNotFound:
		kind = KindNotFound
	case status == http.StatusTooManyRequests:
		kind = KindRateLimit
	case status >= 400 && status < 500:
		kind = KindInvalid
	default:
		kind = KindServer
	}
	return &Error{Kind: kind, Status: status, Body: body}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

func is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

func IsTimeout(err error) bool     { return is(err, KindTimeout) }
func IsConnection(err error) bool  { return is(err, KindConnection) }
func IsAuth(err error) bool        { return is(err, KindAuth) }
func IsNotFound(err error) bool    { return is(err, KindNotFound) }
func IsRateLimit(err error) bool   { return is(err, KindRateLimit) }
func IsServerError(err error) bool { return is(err, KindServer) }
func IsCircuitOpen(err error) bool { return is(err, KindCircuitOpen) }

// IsRetryable reports whether err is a retryable *Error.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable()
}
