// Package domain defines the error taxonomy shared by the assistant components.
package domain

import (
	"errors"
	"fmt"
)

// ErrorType classifies assistant failures.
type ErrorType string

const (
	ErrorTypeConnectivity ErrorType = "connectivity"
	ErrorTypeRemote       ErrorType = "remote"
	ErrorTypeStore        ErrorType = "store"
	ErrorTypeVoice        ErrorType = "voice"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeConfig       ErrorType = "config"
)

// Error is a typed failure with context.
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new typed error.
func NewError(errType ErrorType, message string, err error) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

func RemoteError(message string, err error) *Error {
	return NewError(ErrorTypeRemote, message, err)
}

func StoreError(message string, err error) *Error {
	return NewError(ErrorTypeStore, message, err)
}

func VoiceError(message string, err error) *Error {
	return NewError(ErrorTypeVoice, message, err)
}

func ValidationError(message string, err error) *Error {
	return NewError(ErrorTypeValidation, message, err)
}

func ConfigError(message string, err error) *Error {
	return NewError(ErrorTypeConfig, message, err)
}

// IsType reports whether err (or anything it wraps) is an *Error of the given type.
func IsType(err error, errType ErrorType) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Type == errType
	}
	return false
}

// UserMessage returns the text shown to the user for a failure. Remote errors
// expose the server's message without the type prefix.
func UserMessage(err error) string {
	var de *Error
	if errors.As(err, &de) {
		if de.Type == ErrorTypeRemote && de.Err != nil {
			return de.Err.Error()
		}
		return de.Message
	}
	return err.Error()
}
