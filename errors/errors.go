package errors

import (
	"fmt"
	"net/http"
	"time"

	pkgerrors "github.com/pkg/errors"
)

// Kind classifies an AppError so callers can branch on the outcome
// without inspecting messages.
type Kind string

const (
	KindInvalidInput          Kind = "invalid_input"
	KindRateLimited           Kind = "rate_limited"
	KindTranscriptUnavailable Kind = "transcript_unavailable"
	KindNoActiveSession       Kind = "no_active_session"
	KindModelError            Kind = "model_error"
	KindStorageError          Kind = "storage_error"
	KindNotFound              Kind = "not_found"
	KindInternal              Kind = "internal"
)

type AppError struct {
	Kind       Kind          `json:"kind"`
	Code       int           `json:"-"`
	Message    string        `json:"error"`
	Op         string        `json:"-"`
	Err        error         `json:"-"`
	RetryAfter time.Duration `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// E builds an AppError of the given kind with the kind's default status code.
func E(kind Kind, op string, err error, message string) *AppError {
	return &AppError{
		Kind:    kind,
		Code:    statusFor(kind),
		Message: message,
		Op:      op,
		Err:     err,
	}
}

func InvalidInput(op string, err error, message string) *AppError {
	return E(KindInvalidInput, op, err, message)
}

func RateLimited(op string, retryAfter time.Duration, message string) *AppError {
	e := E(KindRateLimited, op, nil, message)
	e.RetryAfter = retryAfter
	return e
}

func TranscriptUnavailable(op string, err error, message string) *AppError {
	return E(KindTranscriptUnavailable, op, err, message)
}

func NoActiveSession(op string, err error, message string) *AppError {
	return E(KindNoActiveSession, op, err, message)
}

func ModelError(op string, err error, message string) *AppError {
	return E(KindModelError, op, err, message)
}

func StorageError(op string, err error, message string) *AppError {
	return E(KindStorageError, op, err, message)
}

func NotFound(op string, err error, message string) *AppError {
	return E(KindNotFound, op, err, message)
}

func Internal(op string, err error, message string) *AppError {
	return E(KindInternal, op, err, message)
}

// KindOf returns the kind of the outermost AppError in err's chain,
// or KindInternal for errors that carry none.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if pkgerrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// As is a shorthand for extracting the AppError from err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if pkgerrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func IsInvalidInput(err error) bool          { return KindOf(err) == KindInvalidInput }
func IsRateLimited(err error) bool           { return KindOf(err) == KindRateLimited }
func IsTranscriptUnavailable(err error) bool { return KindOf(err) == KindTranscriptUnavailable }
func IsNoActiveSession(err error) bool       { return KindOf(err) == KindNoActiveSession }
func IsModelError(err error) bool            { return KindOf(err) == KindModelError }
func IsStorageError(err error) bool          { return KindOf(err) == KindStorageError }
func IsNotFound(err error) bool              { return KindOf(err) == KindNotFound }

func statusFor(kind Kind) int {
	switch kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindTranscriptUnavailable:
		return http.StatusUnprocessableEntity
	case KindNoActiveSession, KindNotFound:
		return http.StatusNotFound
	case KindModelError:
		return http.StatusBadGateway
	case KindStorageError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
