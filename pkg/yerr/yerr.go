// Package yerr defines the provider's error taxonomy (spec.md §7): a small
// closed set of numeric codes returned on the wire, wrapped in a Go error
// so internal callers can still use errors.Is/errors.As.
package yerr

import (
	"errors"
	"fmt"
)

// Code is a wire-level return code. Zero is success.
type Code int

const (
	OK Code = iota
	InvalidArgs
	InvalidToken
	InvalidProvider
	InvalidDatabase
	InvalidBackend
	InvalidConfig
	InvalidID
	KeyNotFound
	BufferSize
	OpUnsupported
	NonContig
	MidNotListening
	FromMercury
	FromArgobots
	Allocation
	Other
)

var names = map[Code]string{
	OK:              "OK",
	InvalidArgs:     "INVALID_ARGS",
	InvalidToken:    "INVALID_TOKEN",
	InvalidProvider: "INVALID_PROVIDER",
	InvalidDatabase: "INVALID_DATABASE",
	InvalidBackend:  "INVALID_BACKEND",
	InvalidConfig:   "INVALID_CONFIG",
	InvalidID:       "INVALID_ID",
	KeyNotFound:     "KEY_NOT_FOUND",
	BufferSize:      "BUFFER_SIZE",
	OpUnsupported:   "OP_UNSUPPORTED",
	NonContig:       "NONCONTIG",
	MidNotListening: "MID_NOT_LISTENING",
	FromMercury:     "FROM_MERCURY",
	FromArgobots:    "FROM_ARGOBOTS",
	Allocation:      "ALLOCATION",
	Other:           "OTHER",
}

func (c Code) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return fmt.Sprintf("CODE(%d)", int(c))
}

// Error pairs a Code with an optional underlying cause.
type Error struct {
	Code  Code
	Cause error
}

func New(code Code) *Error { return &Error{Code: code} }

func Wrap(code Code, cause error) *Error {
	return &Error{Code: code, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Cause)
	}
	return e.Code.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// CodeOf extracts the Code from err, returning Other if err does not carry
// one.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var ye *Error
	if errors.As(err, &ye) {
		return ye.Code
	}
	return Other
}
