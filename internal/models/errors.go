package models

import "fmt"

// Code classifies an AppError.
type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeRejected        Code = "REJECTED"
	CodeUnavailable     Code = "UNAVAILABLE"
	CodeInternal        Code = "INTERNAL"
)

// AppError is an error with a stable code the local API maps to a status.
type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// NewError builds an AppError without a cause.
func NewError(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// WrapError builds an AppError around cause.
func WrapError(code Code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}
