package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeNotFound           = "not_found"
	CodeValidationFailed   = "validation_failed"
	CodeUpstreamDegraded   = "upstream_degraded"
	CodeUpstreamFatal      = "upstream_fatal"
	CodePersistenceFailure = "persistence_failure"
	CodeInternal           = "internal_error"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func NotFound(format string, args ...any) *Error {
	return New(http.StatusNotFound, CodeNotFound, fmt.Errorf(format, args...))
}

func ValidationFailed(format string, args ...any) *Error {
	return New(http.StatusBadRequest, CodeValidationFailed, fmt.Errorf(format, args...))
}

// UpstreamDegraded marks a recoverable collaborator failure. Callers log it and continue.
func UpstreamDegraded(err error) *Error {
	return New(http.StatusOK, CodeUpstreamDegraded, err)
}

func UpstreamFatal(err error) *Error {
	return New(http.StatusBadGateway, CodeUpstreamFatal, err)
}

func PersistenceFailure(err error) *Error {
	return New(http.StatusInternalServerError, CodePersistenceFailure, err)
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Code != "" {
		return ae.Code
	}
	return CodeInternal
}

func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) && ae.Status != 0 {
		return ae.Status
	}
	return http.StatusInternalServerError
}

func Is(err error, code string) bool {
	return CodeOf(err) == code
}
