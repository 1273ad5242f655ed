package domain

import (
	"errors"
	"fmt"
)

// ErrorKind separates caller mistakes from failures of the service itself.
type ErrorKind int

const (
	KindClient ErrorKind = iota
	KindService
)

func (k ErrorKind) String() string {
	if k == KindClient {
		return "client"
	}
	return "service"
}

// Error is the error type returned by the core services. Two errors are
// considered equal by errors.Is when their codes match.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Wrap returns a copy of e carrying cause.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, Err: cause}
}

func clientError(code, message string) *Error {
	return &Error{Kind: KindClient, Code: code, Message: message}
}

func serviceError(code, message string) *Error {
	return &Error{Kind: KindService, Code: code, Message: message}
}

var (
	ErrInvalidRequest     = clientError("A000001", "invalid request")
	ErrInvalidURL         = clientError("A000002", "origin url is not a valid http(s) url")
	ErrLinkNotFound       = clientError("A000100", "short link not found")
	ErrGroupNotFound      = clientError("A000200", "group not found")
	ErrGroupQuotaExceeded = clientError("A000201", "group quota exceeded")
	ErrUsernameTaken      = clientError("A000300", "username is already taken")
	ErrUserExists         = clientError("A000301", "user already exists")
	ErrUserNotFound       = clientError("A000302", "user not found")
	ErrResourceBusy       = clientError("A000400", "resource is busy, try again later")

	ErrCodeGenerationExhausted = serviceError("B000100", "too many short link generation attempts")
	ErrDuplicateCode           = serviceError("B000101", "short link code already exists")
	ErrFilterUnavailable       = serviceError("B000102", "short link registry unavailable, try again later")
)

// IsClientError reports whether err (or anything it wraps) is a client error.
func IsClientError(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindClient
}
