package idserver

import (
	"errors"
	"fmt"
)

// errNullBody is returned for a literal `null` body: a response object was
// expected and none was sent.
var errNullBody = errors.New("response body is null")

var errBodyTooLarge = errors.New("response too large")

// TransportError means no usable HTTP response was received (dial failure,
// timeout, cancellation, rate limiter wait aborted).
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError means a response arrived but its body didn't match the
// expected shape.
type DecodeError struct {
	StatusCode int
	Body       []byte
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode response (status %d): %v", e.StatusCode, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
