// Package lazy defers a remote's load until first use and caches the outcome.
//
// A Factory loads at most once: concurrent first callers join the same
// in-flight load, and once it settles the component (or the terminal error)
// is reused for the factory's lifetime. Starting over means discarding the
// factory and creating a new one.
package lazy

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vietddude/shell/internal/core/domain"
	"github.com/vietddude/shell/internal/loading/retry"
)

// ErrPending is returned by Poll while the load has not settled.
var ErrPending = errors.New("remote module is still loading")

// State is the settlement state of a factory.
type State int

const (
	StatePending State = iota
	StateResolved
	StateRejected
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateResolved:
		return "resolved"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// SettleFunc observes the single settlement of a factory.
type SettleFunc func(component domain.Component, err error, elapsed time.Duration)

// Option configures a Factory.
type Option func(*Factory)

// WithLogger sets the logger. It should already carry the remote's name;
// the default logger is scoped to it.
func WithLogger(l *slog.Logger) Option {
	return func(f *Factory) { f.log = l }
}

// WithRetryOptions passes options through to retry.AttemptLoad.
func WithRetryOptions(opts ...retry.Option) Option {
	return func(f *Factory) { f.retryOpts = append(f.retryOpts, opts...) }
}

// WithOnSettle registers a settlement observer. It is not called for a
// factory that was abandoned before its load settled. Observers run in the
// order they were registered.
func WithOnSettle(fn SettleFunc) Option {
	return func(f *Factory) {
		prev := f.onSettle
		if prev == nil {
			f.onSettle = fn
			return
		}
		f.onSettle = func(c domain.Component, err error, elapsed time.Duration) {
			prev(c, err, elapsed)
			fn(c, err, elapsed)
		}
	}
}

// Factory is the deferred component reference of one remote.
type Factory struct {
	desc      domain.RemoteDescriptor
	log       *slog.Logger
	retryOpts []retry.Option
	onSettle  SettleFunc

	ctx    context.Context
	cancel context.CancelFunc
	group  singleflight.Group

	mu        sync.RWMutex
	state     State
	component domain.Component
	err       error
	abandoned bool
}

// New creates a factory for desc. Nothing is loaded until Poll or Wait.
func New(desc domain.RemoteDescriptor, opts ...Option) *Factory {
	ctx, cancel := context.WithCancel(context.Background())
	f := &Factory{
		desc:   desc,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.log == nil {
		f.log = slog.Default().With("remote", desc.Name)
	}
	return f
}

// Poll returns the component without blocking. It starts the load on first
// use and returns ErrPending until the load settles.
func (f *Factory) Poll() (domain.Component, error) {
	if out, ok := f.settled(); ok {
		return out.component, out.err
	}
	// Joins the in-flight load, or starts one. The result is read from f.
	f.group.DoChan(f.desc.Name, f.load)
	return nil, ErrPending
}

// Wait blocks until the load settles or ctx is done.
func (f *Factory) Wait(ctx context.Context) (domain.Component, error) {
	if out, ok := f.settled(); ok {
		return out.component, out.err
	}

	select {
	case res := <-f.group.DoChan(f.desc.Name, f.load):
		c, _ := res.Val.(domain.Component)
		return c, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// State reports whether the load is pending, resolved or rejected.
func (f *Factory) State() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// Abandon stops any pending backoff and drops a settlement that arrives
// later. The factory must not be used afterwards.
func (f *Factory) Abandon() {
	f.mu.Lock()
	f.abandoned = true
	f.mu.Unlock()
	f.cancel()
}

type outcome struct {
	component domain.Component
	err       error
}

func (f *Factory) settled() (outcome, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.abandoned {
		return outcome{err: context.Canceled}, true
	}
	if f.state == StatePending {
		return outcome{}, false
	}
	return outcome{component: f.component, err: f.err}, true
}

func (f *Factory) load() (any, error) {
	if out, ok := f.settled(); ok {
		return out.component, out.err
	}

	start := time.Now()
	opts := append([]retry.Option{
		retry.WithName(f.desc.Name),
		retry.WithLogger(f.log),
	}, f.retryOpts...)

	module, err := retry.AttemptLoad(f.ctx, f.desc.Load, f.desc.Policy, opts...)
	var component domain.Component
	if err == nil {
		component, err = Normalize(f.desc.Name, module)
	}

	if !f.settle(component, err) {
		f.log.Debug("Dropping settlement of abandoned factory")
		return nil, context.Canceled
	}

	if f.onSettle != nil {
		f.onSettle(component, err, time.Since(start))
	}
	return component, err
}

func (f *Factory) settle(component domain.Component, err error) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.abandoned || f.state != StatePending {
		return false
	}
	if err != nil {
		f.state = StateRejected
		f.err = err
	} else {
		f.state = StateResolved
		f.component = component
	}
	return true
}
