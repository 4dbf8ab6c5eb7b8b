// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across stages: the backoff
// policy used between retried provider calls and the status codes worth
// retrying.
package httputil

import (
	"context"
	"math"
	"math/rand/v2"
	"net/http"
	"time"
)

const (
	defaultBaseDelay = time.Second
	defaultMaxDelay  = 32 * time.Second
	defaultJitter    = time.Second
)

// Policy computes exponential backoff delays with additive jitter.
type Policy struct {
	// BaseDelay is multiplied by 2^attempt.
	BaseDelay time.Duration

	// MaxDelay caps every delay, jitter included.
	MaxDelay time.Duration

	// Jitter is the exclusive upper bound of the uniform random delay added
	// to each backoff. Zero disables jitter.
	Jitter time.Duration
}

// DefaultPolicy returns the provider backoff: 2 s, 4 s, 8 s, 16 s, 32 s
// (plus up to 1 s of jitter), capped at 32 s.
func DefaultPolicy() Policy {
	return Policy{
		BaseDelay: defaultBaseDelay,
		MaxDelay:  defaultMaxDelay,
		Jitter:    defaultJitter,
	}
}

// Delay returns the wait after the attempt-th consecutive failure, attempt
// starting at 1: min(2^attempt * BaseDelay + U[0, Jitter), MaxDelay).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	backoff := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if p.Jitter > 0 {
		backoff += float64(rand.Int64N(int64(p.Jitter)))
	}
	if p.MaxDelay > 0 && backoff > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(backoff)
}

// Wait blocks for d or until ctx is done, returning ctx.Err() in the latter
// case.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryableStatus reports whether a provider HTTP status is transient:
// 429 Too Many Requests, 500 Internal Server Error, or 503 Service
// Unavailable.
func RetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
		return true
	}
	return false
}
