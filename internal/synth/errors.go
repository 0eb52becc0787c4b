package synth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrMissingAPIKey is returned before any request is made without a key.
	ErrMissingAPIKey = errors.New("ElevenLabs API key is not configured")

	// ErrUnauthorized matches remote errors caused by a rejected key.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited matches remote errors with a 429 status.
	ErrRateLimited = errors.New("rate limited")

	// ErrQuotaExceeded matches remote errors that look like exhausted quota.
	// The match is based on the service's message text and is best effort.
	ErrQuotaExceeded = errors.New("quota exceeded")
)

// Class groups remote failures by HTTP status.
type Class int

const (
	ClassOther Class = iota
	ClassAuth
	ClassRateLimit
	ClassBadRequest
)

// String returns the string representation of the class
func (c Class) String() string {
	switch c {
	case ClassAuth:
		return "auth"
	case ClassRateLimit:
		return "rate-limit"
	case ClassBadRequest:
		return "bad-request"
	default:
		return "other"
	}
}

// RemoteError is a non-success response from the service.
type RemoteError struct {
	Status  int
	Code    string // service status code, e.g. "quota_exceeded"
	Message string
}

// Error implements the error interface
func (e *RemoteError) Error() string {
	return fmt.Sprintf("TTS API error (%d): %s", e.Status, e.Message)
}

// Class returns the failure class for the status.
func (e *RemoteError) Class() Class {
	switch e.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ClassAuth
	case http.StatusTooManyRequests:
		return ClassRateLimit
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ClassBadRequest
	default:
		return ClassOther
	}
}

// Is lets errors.Is match the package sentinels.
func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrQuotaExceeded:
		return e.quota()
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	case ErrUnauthorized:
		return e.Class() == ClassAuth
	}
	return false
}

func (e *RemoteError) quota() bool {
	return strings.Contains(strings.ToLower(e.Code), "quota") ||
		strings.Contains(strings.ToLower(e.Message), "quota")
}

// IsQuota reports whether err looks like exhausted quota.
func IsQuota(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}
