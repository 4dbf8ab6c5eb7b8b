// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/deck-engine/internal/httputil"
)

// ErrCancelled marks a call stopped by its context. It is an outcome, not a
// provider failure.
var ErrCancelled = errors.New("llm: call cancelled")

// retryablePhrases are provider message fragments that mark transient
// failures regardless of status code.
var retryablePhrases = []string{
	"overloaded",
	"unavailable",
	"resource_exhausted",
	"rate limit",
	"too many requests",
	"internal server error",
	"high demand",
}

// APIError is a failed provider response.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// ExhaustedError reports that every configured credential ran out of
// retries on transient failures.
type ExhaustedError struct {
	Credentials int
	Attempts    int
	Err         error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("llm: %d attempt(s) across %d credential(s) failed: %v", e.Attempts, e.Credentials, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a transient provider failure: HTTP
// 429/500/503, or a message naming overload, unavailability, or rate
// limiting. Cancellation is never retryable.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrCancelled) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && httputil.RetryableStatus(apiErr.StatusCode) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, phrase := range retryablePhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// IsCancelled reports whether err is a cancellation outcome.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

func cancelled(cause error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}
