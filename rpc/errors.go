// Package rpc
// Author: momentics <momentics@gmail.com>
//
// Structured protocol errors.

package rpc

import "fmt"

// Error is the wire error object {"code","message"}. Handlers may return an
// *Error to choose their own code; any other error maps to CodeHandlerError.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewError creates a new structured error.
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a structured error with a formatted message.
func Errorf(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}
