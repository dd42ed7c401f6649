// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package nomaderr defines the error-kind taxonomy shared by the
// coordinator, the laptop server, and the relay, and the HTTP status
// each kind maps to.
package nomaderr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an Error for HTTP-status mapping and caller branching.
type Kind int

const (
	// Other is the zero value: an unclassified failure.
	Other Kind = iota
	AlreadyExists
	NotFound
	CommandFailed
	Timeout
	Config
	Io
)

func (k Kind) String() string {
	switch k {
	case AlreadyExists:
		return "AlreadyExists"
	case NotFound:
		return "NotFound"
	case CommandFailed:
		return "CommandFailed"
	case Timeout:
		return "Timeout"
	case Config:
		return "Config"
	case Io:
		return "Io"
	default:
		return "Other"
	}
}

// Error is the sum-of-kinds error every boundary function in this
// module returns on failure.
type Error struct {
	Kind    Kind
	Message string
	// Seconds is set only for Kind == Timeout.
	Seconds float64
	Cause   error
}

func (e *Error) Error() string {
	switch e.Kind {
	case Timeout:
		return fmt.Sprintf("command timed out after %gs", e.Seconds)
	default:
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
		}
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func NewAlreadyExists(message string) *Error { return New(AlreadyExists, message) }
func NewNotFound(message string) *Error      { return New(NotFound, message) }
func NewConfig(message string) *Error        { return New(Config, message) }
func NewOther(message string) *Error         { return New(Other, message) }

// NewCommandFailed wraps a subprocess's captured stderr.
func NewCommandFailed(stderr string) *Error {
	return &Error{Kind: CommandFailed, Message: stderr}
}

// NewTimeout reports a subprocess that exceeded its deadline.
func NewTimeout(seconds float64) *Error {
	return &Error{Kind: Timeout, Seconds: seconds, Message: fmt.Sprintf("timed out after %gs", seconds)}
}

// KindOf extracts the Kind of err, defaulting to Other for plain errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Other
}

// HTTPStatus maps an error's Kind to the status code defined in the
// wire protocol: 400 bad input, 401 auth, 404 unknown target, 409
// conflict, 429 rate-limited (relay only, not produced here), 502 bad
// upstream (proxy, not produced here), 500 otherwise.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case AlreadyExists:
		return http.StatusConflict
	case NotFound:
		return http.StatusNotFound
	case CommandFailed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
