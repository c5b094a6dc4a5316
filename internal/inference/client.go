package inference

import (
	"context"
	"time"

	"symptomguide/internal/logging"
)

// Client is the resilient inference-call wrapper. Each Invoke acquires a
// credential from the pool, sends the operation's request with a bounded
// timeout, and hands the raw completion to the operation's normalizer. On
// transport failure, empty/malformed payload, or schema violation it waits
// a fixed backoff and retries with a fresh credential, up to MaxAttempts
// total attempts; exhaustion yields an UnavailableError carrying the last
// underlying error.
type Client struct {
	pool     *Pool
	provider Provider

	maxAttempts int
	backoff     time.Duration
	callTimeout time.Duration

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// ClientOptions configures the retry policy.
type ClientOptions struct {
	MaxAttempts int           // total attempts per Invoke (default 3)
	Backoff     time.Duration // fixed wait between attempts (default 6s)
	CallTimeout time.Duration // per provider call (default 30s)
}

// NewClient creates a client over a credential pool and provider.
func NewClient(pool *Pool, provider Provider, opts ClientOptions) *Client {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 6 * time.Second
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 30 * time.Second
	}
	return &Client{
		pool:        pool,
		provider:    provider,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
		callTimeout: opts.CallTimeout,
		sleep:       sleepCtx,
	}
}

// Pool exposes the credential pool, mainly for wiring checks.
func (c *Client) Pool() *Pool {
	return c.pool
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Normalizer coerces a raw completion into a typed domain object. It fills
// defaults for anything optional and returns a *SchemaError only when a
// required field is absent or mis-shaped.
type Normalizer[T any] func(raw string) (T, error)

// Invoke runs one inference operation end to end: build is assumed done
// (spec is the built request), the pool supplies a fresh credential per
// attempt, and normalize validates the payload. Schema violations are
// retried exactly like transport failures.
func Invoke[T any](ctx context.Context, c *Client, op Operation, spec RequestSpec, normalize Normalizer[T]) (T, error) {
	var zero T
	var lastErr error

	timer := logging.StartTimer(logging.CategoryAPI, string(op))
	defer timer.Stop()

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			logging.API("%s: attempt %d/%d after error: %v", op, attempt, c.maxAttempts, lastErr)
			if err := c.sleep(ctx, c.backoff); err != nil {
				return zero, &UnavailableError{Operation: op, Attempts: attempt - 1, Last: lastErr}
			}
		}

		credential := c.pool.Acquire()

		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		raw, err := c.provider.Complete(callCtx, credential, spec)
		cancel()

		if err != nil {
			lastErr = err
			continue
		}

		result, err := normalize(raw)
		if err != nil {
			// Only schema violations are retryable here; anything else
			// from a normalizer is a programming error and escapes.
			if IsSchemaError(err) {
				logging.APIDebug("%s: %v", op, err)
				lastErr = err
				continue
			}
			return zero, err
		}

		return result, nil
	}

	return zero, &UnavailableError{Operation: op, Attempts: c.maxAttempts, Last: lastErr}
}
