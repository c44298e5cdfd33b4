// Package remote wraps calls to rate limited external endpoints with
// classification, exponential backoff and proactive rate limiting.
package remote

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/dtroode/kurisync/internal/logger"
	"github.com/dtroode/kurisync/internal/metrics"
	"github.com/dtroode/kurisync/internal/model"
)

// Kind is the failure class of a remote error.
type Kind int

const (
	KindOther Kind = iota
	KindRateLimited
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindRejected:
		return "rejected"
	default:
		return "error"
	}
}

// Classifier maps an endpoint error to its failure class.
type Classifier func(err error) Kind

// Config controls retries and rate limiting.
type Config struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	Jitter      float64
	MinSpacing  time.Duration
	// RateLimit is the number of attempts allowed per second, 0 disables it.
	RateLimit float64
	Burst     int
}

// DefaultConfig returns the retry settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		BackoffBase: time.Second,
		BackoffMax:  time.Minute,
		Jitter:      0.1,
		MinSpacing:  time.Second,
		Burst:       1,
	}
}

// Caller executes remote operations with retries. It is safe for concurrent use.
type Caller struct {
	cfg      Config
	classify Classifier
	limiter  *rate.Limiter
	logger   *logger.Logger
	metrics  *metrics.Metrics
	newTimer func() backoff.Timer
	random   func() float64
}

// Option customizes a Caller.
type Option func(*Caller)

// WithMetrics records attempts and backoff waits.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Caller) { c.metrics = m }
}

// WithTimer replaces the timer used between retries.
func WithTimer(newTimer func() backoff.Timer) Option {
	return func(c *Caller) { c.newTimer = newTimer }
}

// WithRandom replaces the jitter source, which must return values in [0, 1).
func WithRandom(random func() float64) Option {
	return func(c *Caller) { c.random = random }
}

// New creates a Caller that classifies errors with classify.
func New(cfg Config, classify Classifier, logger *logger.Logger, opts ...Option) *Caller {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	c := &Caller{
		cfg:      cfg,
		classify: classify,
		limiter:  rate.NewLimiter(limit, burst),
		logger:   logger,
		newTimer: func() backoff.Timer { return nil },
		random:   rand.Float64,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Caller) backOff(ctx context.Context) backoff.BackOff {
	p := &policy{
		base:    c.cfg.BackoffBase,
		max:     c.cfg.BackoffMax,
		jitter:  c.cfg.Jitter,
		spacing: c.cfg.MinSpacing,
		random:  c.random,
	}
	return backoff.WithContext(backoff.WithMaxRetries(p, uint64(c.cfg.MaxAttempts-1)), ctx)
}

func (c *Caller) observe(operation, outcome string) {
	if c.metrics != nil {
		c.metrics.RemoteCalls.WithLabelValues(operation, outcome).Inc()
	}
}

// Call runs fn against target until it succeeds, fails with a non-retryable
// error or the attempt budget is spent. Only rate limited failures are
// retried. Rejections wrap model.ErrRejected, an exhausted budget wraps
// model.ErrRetriesExhausted and any other error is returned unchanged.
func Call[T any](ctx context.Context, c *Caller, target, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		zero     T
		result   T
		attempt  int
		lastKind Kind
	)

	op := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			lastKind = KindOther
			return backoff.Permanent(fmt.Errorf("failed to wait for rate limiter: %w", err))
		}

		attempt++
		log := c.logger.With("operation", operation, "target", target, "attempt", attempt)
		log.Debug("remote call attempt")

		v, err := fn(ctx)
		if err == nil {
			result = v
			c.observe(operation, "success")
			log.Debug("remote call succeeded")
			return nil
		}

		lastKind = c.classify(err)
		c.observe(operation, lastKind.String())

		switch lastKind {
		case KindRateLimited:
			log.Warn("remote call rate limited", "error", err)
			return fmt.Errorf("%w: %w", model.ErrTransient, err)
		case KindRejected:
			log.Error("remote call rejected", "error", err)
			return backoff.Permanent(fmt.Errorf("%w: %s on %s: %w", model.ErrRejected, operation, target, err))
		default:
			log.Error("remote call failed", "error", err)
			return backoff.Permanent(err)
		}
	}

	notify := func(_ error, wait time.Duration) {
		if c.metrics != nil {
			c.metrics.RemoteBackoff.WithLabelValues(operation).Observe(wait.Seconds())
		}
		c.logger.Info("retrying remote call", "operation", operation, "target", target, "attempt", attempt, "wait", wait)
	}

	err := backoff.RetryNotifyWithTimer(op, c.backOff(ctx), notify, c.newTimer())
	if err == nil {
		return result, nil
	}

	if lastKind == KindRateLimited && ctx.Err() == nil {
		c.observe(operation, "exhausted")
		c.logger.Error("remote call retries exhausted", "operation", operation, "target", target, "attempts", attempt)
		return zero, fmt.Errorf("%w: %s on %s after %d attempts: %w", model.ErrRetriesExhausted, operation, target, attempt, err)
	}

	return zero, err
}
