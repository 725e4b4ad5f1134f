package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidURL        = errors.New("invalid video URL")
	ErrServerAddress     = errors.New("invalid server address")
	ErrRequestBuild      = errors.New("failed to build request")
	ErrTransport         = errors.New("transport error")
	ErrMalformedResponse = errors.New("invalid response")
	ErrSaveFailed        = errors.New("failed to save file")
	ErrPermissionDenied  = errors.New("media library access denied")
	ErrBusy              = errors.New("a download is already in progress")
)

// InvalidURLError is returned when a URL is empty or does not belong to its
// service. It matches ErrInvalidURL with errors.Is.
type InvalidURLError struct {
	Service string
}

func (e *InvalidURLError) Error() string {
	service := e.Service
	if service == "" {
		service = "video"
	}
	return fmt.Sprintf("invalid %s URL", service)
}

func (e *InvalidURLError) Is(target error) bool {
	return target == ErrInvalidURL
}

// JobFailedError is returned when the server reports a job as failed.
type JobFailedError struct {
	Message string
}

func (e *JobFailedError) Error() string {
	return e.Message
}

// NewJobFailed wraps a server message, substituting "unknown error" when empty.
func NewJobFailed(msg string) *JobFailedError {
	if msg == "" {
		msg = "unknown error"
	}
	return &JobFailedError{Message: msg}
}

// Message returns the text shown to the user for err. Malformed responses
// always read "invalid response" and server failures carry the server text.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var jobErr *JobFailedError
	if errors.As(err, &jobErr) {
		return jobErr.Message
	}
	if errors.Is(err, ErrMalformedResponse) {
		return ErrMalformedResponse.Error()
	}
	return err.Error()
}

// Wrap annotates cause with a taxonomy sentinel so errors.Is keeps working.
func Wrap(kind error, cause error) error {
	if cause == nil {
		return kind
	}
	return fmt.Errorf("%w: %v", kind, cause)
}
