package api

import (
	"errors"
	"fmt"
	"net/http"
)

// TransportError reports a request that did not produce a successful HTTP
// status, including requests that never got a response (StatusCode 0).
type TransportError struct {
	Method     string
	Path       string
	StatusCode int
	// Message is the server supplied message when the error body carried one.
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	var detail string
	switch {
	case e.StatusCode == 0 && e.Err != nil:
		detail = e.Err.Error()
	case e.Message != "":
		detail = fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	default:
		detail = fmt.Sprintf("HTTP %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s %s: %s", e.Method, e.Path, detail)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports a successful HTTP exchange whose JSON body flags an
// application level failure.
type ProtocolError struct {
	Path    string
	Status  string
	Message string
}

func (e *ProtocolError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "request failed"
	}
	if e.Status != "" {
		return fmt.Sprintf("%s: status %q: %s", e.Path, e.Status, msg)
	}
	return fmt.Sprintf("%s: %s", e.Path, msg)
}

// ValidationError reports input rejected before any request was made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// MessageOf returns the text an operator should see for err: the server
// message when there is one, the validation message for local checks, and
// fallback otherwise.
func MessageOf(err error, fallback string) string {
	var te *TransportError
	var pe *ProtocolError
	var ve *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve) && ve.Message != "":
		return ve.Message
	case errors.As(err, &pe) && pe.Message != "":
		return pe.Message
	case errors.As(err, &te) && te.Message != "":
		return te.Message
	default:
		return fallback
	}
}
