// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm sends model requests with retry, exponential backoff,
// credential failover, cancellation, and usage metering. It knows nothing
// about decks or plans.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pdiddy/deck-engine/internal/httputil"
	"github.com/pdiddy/deck-engine/pkg/types"
)

const defaultMaxRetries = 5

// ErrNoCredentials is returned by New when no credential is configured.
var ErrNoCredentials = errors.New("llm: no credentials configured")

// Backend sends one request to a provider with the given credential. A
// backend never retries; it returns whatever usage the provider reported
// alongside any error.
type Backend interface {
	Provider() types.Provider
	Send(ctx context.Context, credential string, req Request) (*Response, error)
}

// Caller is what the planner and producer depend on.
type Caller interface {
	Call(ctx context.Context, req Request) (*Response, error)
}

// UsageSink receives token usage for every provider response that carried it.
type UsageSink interface {
	RecordUsage(u types.Usage)
}

// UsageSinkFunc adapts a function to UsageSink.
type UsageSinkFunc func(u types.Usage)

// RecordUsage calls f(u).
func (f UsageSinkFunc) RecordUsage(u types.Usage) { f(u) }

// Config configures a Client.
type Config struct {
	// Model is used when a request leaves Model empty.
	Model string

	// Credentials are tried in order: primary first.
	Credentials []string

	// MaxRetries is the number of attempts per credential for retryable
	// failures. Zero means 5.
	MaxRetries int

	// Policy computes the wait between attempts. The zero value means
	// httputil.DefaultPolicy().
	Policy httputil.Policy

	UsageSink UsageSink
	Logger    *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithSleep replaces the backoff wait. Tests use it to observe delays
// without sleeping.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// Client is a resilient model client. Its credential rotation position is
// instance state, so independent clients never interfere.
type Client struct {
	backend     Backend
	model       string
	credentials []string
	maxRetries  int
	policy      httputil.Policy
	sink        UsageSink
	logger      *slog.Logger
	sleep       func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	active int
}

// New returns a Client over backend.
func New(backend Backend, cfg Config, opts ...Option) (*Client, error) {
	var creds []string
	for _, c := range cfg.Credentials {
		if c != "" {
			creds = append(creds, c)
		}
	}
	if len(creds) == 0 {
		return nil, ErrNoCredentials
	}

	c := &Client{
		backend:     backend,
		model:       cfg.Model,
		credentials: creds,
		maxRetries:  cfg.MaxRetries,
		policy:      cfg.Policy,
		sink:        cfg.UsageSink,
		logger:      cfg.Logger,
		sleep:       httputil.Wait,
	}
	if c.maxRetries <= 0 {
		c.maxRetries = defaultMaxRetries
	}
	if c.policy == (httputil.Policy{}) {
		c.policy = httputil.DefaultPolicy()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ActiveCredential returns the index of the credential the next call starts
// with.
func (c *Client) ActiveCredential() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Call sends req. Retryable failures are retried up to MaxRetries times per
// credential with exponential backoff; when a credential exhausts its budget
// the client rotates to the next one, using each credential at most once per
// call. Terminal failures return immediately. A done ctx aborts both the
// request and the backoff wait with an error matching ErrCancelled.
func (c *Client) Call(ctx context.Context, req Request) (*Response, error) {
	if req.Model == "" {
		req.Model = c.model
	}

	start := c.ActiveCredential()
	n := len(c.credentials)
	total := 0
	var lastErr error

	for i := 0; i < n; i++ {
		idx := (start + i) % n
		if i > 0 {
			c.rotate((idx - 1 + n) % n)
			c.logger.Warn("rotating credential",
				"provider", c.backend.Provider(),
				"credential", idx,
				"cause", lastErr)
		}

		for attempt := 1; attempt <= c.maxRetries; attempt++ {
			if err := ctx.Err(); err != nil {
				return nil, cancelled(err)
			}

			total++
			resp, err := c.backend.Send(ctx, c.credentials[idx], req)
			c.report(req.Model, resp)

			if err == nil {
				return resp, nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, cancelled(ctxErr)
			}
			if !IsRetryable(err) {
				return nil, err
			}

			lastErr = err
			if attempt == c.maxRetries {
				break
			}

			delay := c.policy.Delay(attempt)
			c.logger.Debug("retrying model call",
				"provider", c.backend.Provider(),
				"credential", idx,
				"attempt", attempt,
				"delay", delay,
				"error", err)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, cancelled(err)
			}
		}
	}

	return nil, &ExhaustedError{Credentials: n, Attempts: total, Err: lastErr}
}

// rotate advances the active index past from unless another call already
// moved it.
func (c *Client) rotate(from int) {
	n := len(c.credentials)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == from {
		c.active = (from + 1) % n
	}
}

func (c *Client) report(model string, resp *Response) {
	if resp == nil || resp.Usage.IsZero() || c.sink == nil {
		return
	}
	u := resp.Usage
	if u.Provider == "" {
		u.Provider = string(c.backend.Provider())
	}
	if u.Model == "" {
		u.Model = model
	}
	c.sink.RecordUsage(u)
}

var _ Caller = (*Client)(nil)

// String describes the client for logs.
func (c *Client) String() string {
	return fmt.Sprintf("llm.Client{provider=%s model=%s credentials=%d}", c.backend.Provider(), c.model, len(c.credentials))
}
