// Package retry runs one remote load cycle: sequential attempts with
// exponential backoff and an optional per-attempt timeout.
//
// Attempts never overlap. A timed-out attempt is abandoned: its context is
// cancelled, but a loader that ignores the context may still finish later.
// Each attempt carries a generation number and results are read from one
// shared channel, so a late result from an abandoned attempt is recognised
// and dropped instead of being taken for the current attempt's.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vietddude/shell/internal/core/domain"
)

// AttemptFunc observes a failed attempt. attempt is 1-based.
type AttemptFunc func(attempt int, err error)

// Option configures AttemptLoad.
type Option func(*options)

type options struct {
	name      string
	clock     Clock
	log       *slog.Logger
	onAttempt AttemptFunc
	onStale   func(generation uint64)
}

// WithName labels logs and the exhausted error with the remote's name.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithClock replaces the timer source.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the logger. It is used as is: the remote's name is only
// added to the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithOnAttempt registers an observer for failed attempts.
func WithOnAttempt(fn AttemptFunc) Option {
	return func(o *options) { o.onAttempt = fn }
}

// WithOnStale registers an observer for discarded results of abandoned attempts.
func WithOnStale(fn func(generation uint64)) Option {
	return func(o *options) { o.onStale = fn }
}

type result struct {
	generation uint64
	module     domain.Module
	err        error
}

type cycle struct {
	load       domain.Loader
	policy     Policy
	opts       options
	generation uint64
	results    chan result
}

// AttemptLoad calls load until it succeeds or the policy is exhausted. It
// returns the first successful module, or an *ExhaustedError wrapping the
// last attempt's error. Cancelling ctx stops the cycle between or during
// attempts and returns ctx.Err().
func AttemptLoad(
	ctx context.Context,
	load domain.Loader,
	policy Policy,
	opts ...Option,
) (domain.Module, error) {
	if load == nil {
		return nil, errors.New("retry: nil loader")
	}
	if err := Validate(policy); err != nil {
		return nil, fmt.Errorf("retry: %w", err)
	}

	o := options{clock: RealClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = slog.Default().With("remote", o.name)
	}

	c := &cycle{
		load:   load,
		policy: policy,
		opts:   o,
		// One slot per possible attempt: abandoned attempts can always deliver.
		results: make(chan result, MaxAttempts(policy)),
	}
	return c.run(ctx)
}

func (c *cycle) run(ctx context.Context) (domain.Module, error) {
	log := c.opts.log

	for attempt := 1; ; attempt++ {
		module, err := c.try(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				log.Info("Remote loaded after retry", "attempt", attempt)
			}
			return module, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		if c.opts.onAttempt != nil {
			c.opts.onAttempt(attempt, err)
		}

		if attempt > c.policy.MaxRetries {
			log.Warn("Remote load exhausted", "attempts", attempt, "error", err)
			return nil, &ExhaustedError{Remote: c.opts.name, Attempts: attempt, Err: err}
		}

		delay := Delay(c.policy, attempt+1)
		log.Debug("Remote load failed, backing off",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.opts.clock.After(delay):
		}
	}
}

func (c *cycle) try(ctx context.Context, attempt int) (domain.Module, error) {
	if c.policy.AttemptTimeout <= 0 {
		return safeLoad(ctx, c.load)
	}

	c.generation++
	gen := c.generation

	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		module, err := safeLoad(attemptCtx, c.load)
		c.results <- result{generation: gen, module: module, err: err}
	}()

	timeout := c.opts.clock.After(c.policy.AttemptTimeout)
	for {
		select {
		case res := <-c.results:
			if res.generation != gen {
				c.discard(res)
				continue
			}
			return res.module, res.err
		case <-timeout:
			return nil, &TimeoutError{Attempt: attempt, After: c.policy.AttemptTimeout}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (c *cycle) discard(res result) {
	c.opts.log.Debug("Discarding result of abandoned attempt",
		"generation", res.generation,
		"current", c.generation,
	)
	if c.opts.onStale != nil {
		c.opts.onStale(res.generation)
	}
}

// safeLoad turns a panicking loader into a failed attempt.
func safeLoad(ctx context.Context, load domain.Loader) (module domain.Module, err error) {
	defer func() {
		if r := recover(); r != nil {
			module = nil
			err = fmt.Errorf("loader panicked: %v", r)
		}
	}()
	return load(ctx)
}
