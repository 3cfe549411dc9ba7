// Package domain defines core types, ports, and errors for the group sync engine.
package domain

import "fmt"

// NotFoundError indicates a directory resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// AuthError indicates authentication or session establishment failed.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string { return e.Message }

// ValidationError indicates invalid input or configuration.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// AlreadyMemberError indicates an add-member call hit an existing membership.
// Callers treat it as success, not failure.
type AlreadyMemberError struct {
	Message string
}

func (e *AlreadyMemberError) Error() string { return e.Message }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrAuth creates an AuthError with a formatted message.
func ErrAuth(format string, args ...interface{}) *AuthError {
	return &AuthError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrAlreadyMember creates an AlreadyMemberError with a formatted message.
func ErrAlreadyMember(format string, args ...interface{}) *AlreadyMemberError {
	return &AlreadyMemberError{Message: fmt.Sprintf(format, args...)}
}
