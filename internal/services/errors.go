package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/damacus/iron-gallery/internal/encryption"
)

var (
	ErrAuth         = errors.New("credentials rejected")
	ErrNetwork      = errors.New("network error")
	ErrProtocol     = errors.New("unexpected response")
	ErrPathNotFound = errors.New("path not found")
	ErrDecryption   = encryption.ErrDecryption
)

// BackendError carries the provider's raw status and message.
// errors.Is matches it against its Kind sentinel and the wrapped cause.
type BackendError struct {
	Kind    error
	Backend string
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *BackendError) Error() string {
	switch e.Kind {
	case ErrAuth:
		if e.Backend == "s3" {
			return fmt.Sprintf("Invalid S3 credentials (status: %d): %s", e.Status, e.Message)
		}
		return fmt.Sprintf("Invalid API key (status: %d): %s", e.Status, e.Message)
	case ErrProtocol:
		return fmt.Sprintf("Unknown API response (status: %d): %s", e.Status, e.Message)
	case ErrNetwork:
		if e.Message != "" {
			return "Network error: " + e.Message
		}
		if e.Err != nil {
			return "Network error: " + e.Err.Error()
		}
		return "Network error"
	}
	if e.Err != nil {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Message
}

func (e *BackendError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func authError(op string, status int, msg string) error {
	return &BackendError{Kind: ErrAuth, Op: op, Status: status, Message: msg}
}

func protocolError(op string, status int, msg string) error {
	return &BackendError{Kind: ErrProtocol, Op: op, Status: status, Message: msg}
}

func networkError(op string, status int, body string, err error) error {
	return &BackendError{Kind: ErrNetwork, Op: op, Status: status, Message: body, Err: err}
}

// PathNotFound reports an unresolvable navigation segment
func PathNotFound(path string) error {
	return fmt.Errorf("%w: %s", ErrPathNotFound, path)
}

// Describe turns an error into the single message shown at the view boundary
func Describe(err error) string {
	var be *BackendError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "Request cancelled"
	case errors.As(err, &be):
		return be.Error()
	case errors.Is(err, ErrPathNotFound):
		return "Folder not found: " + err.Error()
	case errors.Is(err, ErrDecryption):
		return "Unable to decrypt file, check the password"
	}
	return "Unknown error: " + err.Error()
}
