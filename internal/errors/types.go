package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// ConfigurationError reports a fatal startup problem such as missing
// credentials or an incomplete index. It is never recovered mid-session.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error (%s): %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError wraps err as a ConfigurationError for field.
func NewConfigurationError(field string, err error) *ConfigurationError {
	return &ConfigurationError{Field: field, Err: err}
}

// CollaboratorError reports a failed call to an external collaborator
// (generation, embedding or vector search).
type CollaboratorError struct {
	Component string // e.g. "followup", "diagnosis", "retriever"
	Op        string // e.g. "complete", "embed", "search"
	Err       error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Component, e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// NewCollaboratorError wraps err as a CollaboratorError. A nil err yields nil.
func NewCollaboratorError(component, op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *CollaboratorError
	if errors.As(err, &existing) {
		return err
	}
	return &CollaboratorError{Component: component, Op: op, Err: err}
}

// IsConfiguration reports whether err is a ConfigurationError.
func IsConfiguration(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// IsCollaborator reports whether err is a CollaboratorError.
func IsCollaborator(err error) bool {
	var collabErr *CollaboratorError
	return errors.As(err, &collabErr)
}

// TransientError marks a failure that may succeed when retried.
type TransientError struct {
	Err        error
	StatusCode int
	Message    string
}

func (e *TransientError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("transient error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// PermanentError marks a failure that retrying cannot fix.
type PermanentError struct {
	Err        error
	StatusCode int
	Message    string
}

func (e *PermanentError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("permanent error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// DegradedError is returned when a dependency is short-circuited, for
// example by an open circuit breaker.
type DegradedError struct {
	Err     error
	Message string
}

func (e *DegradedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("degraded error: %v", e.Err)
}

func (e *DegradedError) Unwrap() error {
	return e.Err
}

// NewTransientError creates a transient error.
func NewTransientError(err error, message string) *TransientError {
	return &TransientError{Err: err, Message: message}
}

// NewPermanentError creates a permanent error.
func NewPermanentError(err error, message string) *PermanentError {
	return &PermanentError{Err: err, Message: message}
}

// NewDegradedError creates a degraded error.
func NewDegradedError(err error, message string) *DegradedError {
	return &DegradedError{Err: err, Message: message}
}

// FromStatus classifies an upstream HTTP status code.
func FromStatus(status int, err error) error {
	if err == nil {
		return nil
	}
	if IsTransientStatus(status) {
		return &TransientError{Err: err, StatusCode: status}
	}
	return &PermanentError{Err: err, StatusCode: status}
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) {
		return false
	}
	var transientErr *TransientError
	if errors.As(err, &transientErr) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return isNetworkError(err) || isSyscallError(err)
}

// IsPermanent reports whether err was explicitly marked permanent.
func IsPermanent(err error) bool {
	var permanentErr *PermanentError
	return errors.As(err, &permanentErr)
}

// IsDegraded reports whether err comes from a short-circuited dependency.
func IsDegraded(err error) bool {
	var degradedErr *DegradedError
	return errors.As(err, &degradedErr)
}

// IsTransientStatus reports whether an HTTP status is retryable.
func IsTransientStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}

	lower := strings.ToLower(err.Error())
	for _, pattern := range []string{"connection refused", "connection reset", "broken pipe", "i/o timeout"} {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

func isSyscallError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.EPIPE,
			syscall.ETIMEDOUT, syscall.ENETUNREACH, syscall.EHOSTUNREACH:
			return true
		}
	}
	return false
}

// UserMessage converts an error into a short message safe to show a patient.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case IsConfiguration(err):
		return "The symptom checker is not configured correctly. Please contact the operator."
	case IsDegraded(err):
		return "The assistant is temporarily unavailable. Please try again in a moment."
	case IsCollaborator(err):
		return "Something went wrong while contacting the medical assistant. Please try again."
	default:
		return "An unexpected error occurred. Please try again."
	}
}
