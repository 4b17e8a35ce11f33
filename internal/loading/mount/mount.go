// Package mount ties a remote's lazy factory, failure boundary and remount
// control together for one mount point.
//
// A Mount renders its remote behind a boundary whose reset keys are the
// route identity and the remount key. Retry bumps the remount key and starts
// a fresh load cycle on a new factory; a route change after a failed load
// does the same without counting as a retry.
package mount

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/shell/internal/core/domain"
	"github.com/vietddude/shell/internal/infra/storage"
	"github.com/vietddude/shell/internal/loading/boundary"
	"github.com/vietddude/shell/internal/loading/fallback"
	"github.com/vietddude/shell/internal/loading/lazy"
)

// ErrUnmounted is returned when rendering a mount after Unmount.
var ErrUnmounted = errors.New("mount is unmounted")

const (
	defaultSuspenseWait = 2 * time.Second
	historySize         = 10
	storeTimeout        = 500 * time.Millisecond
)

// Option configures a Mount.
type Option func(*Mount)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Mount) { m.log = l }
}

// WithSession labels the mount with the session that owns it.
func WithSession(id string) Option {
	return func(m *Mount) { m.sessionID = id }
}

// WithStore mirrors every phase change into repo. Records expire after ttl.
func WithStore(repo storage.MountRepository, ttl time.Duration) Option {
	return func(m *Mount) {
		m.store = repo
		m.storeTTL = ttl
	}
}

// WithSuspenseWait bounds how long Render waits for a pending load before
// it writes the loading placeholder. Zero writes the placeholder at once.
func WithSuspenseWait(d time.Duration) Option {
	return func(m *Mount) { m.suspenseWait = d }
}

// WithLinks sets the URLs the fallback's retry control and the placeholder's
// poller point at.
func WithLinks(retryURL, stateURL string) Option {
	return func(m *Mount) {
		m.retryURL = retryURL
		m.stateURL = stateURL
	}
}

// WithDev shows error messages inline instead of in a collapsible dump.
func WithDev(dev bool) Option {
	return func(m *Mount) { m.dev = dev }
}

// WithPlaceholder replaces the loading placeholder.
func WithPlaceholder(fn func(w io.Writer) error) Option {
	return func(m *Mount) { m.placeholder = fn }
}

// WithLazyOptions passes options to every factory the mount creates.
func WithLazyOptions(opts ...lazy.Option) Option {
	return func(m *Mount) { m.lazyOpts = append(m.lazyOpts, opts...) }
}

// WithOnError is called once per boundary failure.
func WithOnError(fn func(remote string, err error)) Option {
	return func(m *Mount) { m.onError = fn }
}

// WithOnTransition registers a callback for phase changes. It runs with the
// mount locked and must not call back into the mount.
func WithOnTransition(fn func(t Transition)) Option {
	return func(m *Mount) { m.onTransition = fn }
}

// WithOnRetry is called after every manual retry with the new state.
func WithOnRetry(fn func(remote string, st OrchestratorState)) Option {
	return func(m *Mount) { m.onRetry = fn }
}

// Mount is the recovery orchestrator of one (session, remote) pair.
type Mount struct {
	desc         domain.RemoteDescriptor
	sessionID    string
	log          *slog.Logger
	store        storage.MountRepository
	storeTTL     time.Duration
	suspenseWait time.Duration
	retryURL     string
	stateURL     string
	dev          bool
	placeholder  func(w io.Writer) error
	lazyOpts     []lazy.Option
	onError      func(string, error)
	onTransition func(Transition)
	onRetry      func(string, OrchestratorState)

	boundary *boundary.Boundary

	// storeMu serializes store writes. It is taken before mu and never while
	// mu is held.
	storeMu sync.Mutex

	// mu is never held while the boundary renders: the boundary calls back
	// into the mount on error and reset.
	mu         sync.Mutex
	state      OrchestratorState
	phase      Phase
	err        error
	factory    *lazy.Factory
	generation uint64
	history    history
	mounted    bool
	lastUsed   time.Time
	route      any
	routeSeen  bool
	record     *domain.MountRecord
	version    uint64
	written    uint64
}

// New creates a mount in the Loading phase. Nothing is fetched until the
// first Render.
func New(desc domain.RemoteDescriptor, opts ...Option) *Mount {
	m := &Mount{
		desc:         desc,
		log:          slog.Default(),
		suspenseWait: defaultSuspenseWait,
		phase:        domain.PhaseLoading,
		history:      history{size: historySize},
		mounted:      true,
		lastUsed:     time.Now(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With("remote", desc.Name)

	m.boundary = boundary.New(
		boundary.WithLogger(m.log),
		boundary.WithFallback(fallback.For(m.view)),
		boundary.WithOnError(m.handleRenderFailure),
		boundary.WithOnReset(m.handleReset),
	)

	m.mu.Lock()
	m.replaceFactory()
	m.mirror()
	m.mu.Unlock()
	m.flush()
	return m
}

// Remote returns the mounted remote's descriptor.
func (m *Mount) Remote() domain.RemoteDescriptor {
	return m.desc
}

// Render writes the remote, its loading placeholder or its fallback to w.
// routeIdentity is one of the boundary's reset keys and must be comparable.
func (m *Mount) Render(ctx context.Context, w io.Writer, routeIdentity any, props domain.Props) error {
	m.mu.Lock()
	if !m.mounted {
		m.mu.Unlock()
		return ErrUnmounted
	}
	m.lastUsed = time.Now()
	// A load can fail while only the placeholder was written, so the boundary
	// never saw the failure and will not reset on the new route.
	if m.routeSeen && m.factory.State() == lazy.StateRejected &&
		boundary.KeysChanged([]any{m.route}, []any{routeIdentity}) {
		m.replaceFactory()
		m.transition(domain.PhaseLoading, nil, "route changed")
	}
	m.route, m.routeSeen = routeIdentity, true
	keys := []any{routeIdentity, m.state.RemountKey}
	m.mu.Unlock()

	err := m.boundary.Render(w, keys, func(w io.Writer) error {
		return m.renderRemote(ctx, w, props)
	})
	m.flush()
	return err
}

func (m *Mount) renderRemote(ctx context.Context, w io.Writer, props domain.Props) error {
	m.mu.Lock()
	f, gen := m.factory, m.generation
	m.mu.Unlock()

	_, err := f.Poll()
	if errors.Is(err, lazy.ErrPending) && m.suspenseWait > 0 {
		wctx, cancel := context.WithTimeout(ctx, m.suspenseWait)
		_, _ = f.Wait(wctx)
		cancel()
	}
	// Still in flight, abandoned by a concurrent retry, or the client left.
	if f.State() == lazy.StatePending {
		return m.renderPlaceholder(w)
	}
	component, err := f.Poll()
	if err != nil {
		return err
	}

	if err := component.Render(ctx, w, props); err != nil {
		return err
	}

	m.mu.Lock()
	if gen == m.generation {
		m.transition(domain.PhaseLoaded, nil, "rendered")
	}
	m.mu.Unlock()
	return nil
}

func (m *Mount) renderPlaceholder(w io.Writer) error {
	if m.placeholder != nil {
		return m.placeholder(w)
	}
	return fallback.RenderPlaceholder(w, fallback.Placeholder{
		Remote:      m.desc.Name,
		DisplayName: m.desc.DisplayName,
		StateURL:    m.stateURL,
	})
}

// Retry discards the current load cycle and starts a fresh one. The next
// Render clears a failed boundary because the remount key changed.
func (m *Mount) Retry() OrchestratorState {
	m.mu.Lock()
	m.state.RemountKey++
	m.state.RetryCount++
	st := m.state
	if m.mounted {
		m.replaceFactory()
		if m.phase == domain.PhaseLoading {
			m.mirror()
		} else {
			m.transition(domain.PhaseLoading, nil, "manual retry")
		}
	}
	m.mu.Unlock()
	m.flush()

	m.log.Info("Remote retry requested",
		"remount_key", st.RemountKey,
		"retry_count", st.RetryCount,
	)
	if m.onRetry != nil {
		m.onRetry(m.desc.Name, st)
	}
	return st
}

// State returns the remount counters.
func (m *Mount) State() OrchestratorState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Status returns the combined phase of the mount.
func (m *Mount) Status() domain.MountStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status()
}

// History returns the most recent phase changes, oldest first.
func (m *Mount) History() []Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history.snapshot()
}

// LastUsed reports when the mount last rendered.
func (m *Mount) LastUsed() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastUsed
}

// Unmount stops any pending load cycle and removes the mirrored record.
// Settlements arriving later are ignored.
func (m *Mount) Unmount() {
	m.mu.Lock()
	if !m.mounted {
		m.mu.Unlock()
		return
	}
	m.mounted = false
	m.factory.Abandon()
	m.mu.Unlock()

	if m.store != nil {
		// Waits for an in-flight write so the record is not saved back.
		m.storeMu.Lock()
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		if err := m.store.Delete(ctx, m.sessionID, m.desc.Name); err != nil {
			m.log.Warn("Failed to delete mount record", "session", m.sessionID, "error", err)
		}
		cancel()
		m.storeMu.Unlock()
	}
	m.log.Debug("Remote unmounted", "session", m.sessionID)
}

// handleRenderFailure runs inside the boundary when children fail. Render
// flushes the new status.
func (m *Mount) handleRenderFailure(err error) {
	m.mu.Lock()
	if m.mounted {
		m.transition(domain.PhaseFailed, err, "boundary caught "+string(domain.Classify(err)))
	}
	m.mu.Unlock()

	if m.onError != nil {
		m.onError(m.desc.Name, err)
	}
}

// handleReset runs inside the boundary when a reset key changed while failed.
func (m *Mount) handleReset(cleared error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.mounted {
		return
	}
	// A rejected factory caches its error; a new cycle needs a new factory.
	if m.factory.State() == lazy.StateRejected {
		m.replaceFactory()
	}
	m.transition(domain.PhaseLoading, nil, "reset keys changed")
}

// replaceFactory abandons the current factory and installs a new one bound
// to the next generation. Callers hold mu.
func (m *Mount) replaceFactory() {
	if m.factory != nil {
		m.factory.Abandon()
	}
	m.generation++
	gen := m.generation

	opts := append([]lazy.Option{lazy.WithLogger(m.log)}, m.lazyOpts...)
	opts = append(opts, lazy.WithOnSettle(func(_ domain.Component, err error, elapsed time.Duration) {
		m.settled(gen, err, elapsed)
	}))
	m.factory = lazy.New(m.desc, opts...)
}

func (m *Mount) settled(gen uint64, err error, elapsed time.Duration) {
	m.mu.Lock()
	switch {
	case !m.mounted || gen != m.generation:
		m.log.Debug("Ignoring settlement of superseded load",
			"generation", gen,
			"current", m.generation,
		)
	case err != nil:
		m.transition(domain.PhaseFailed, err, "load failed")
	default:
		m.log.Debug("Remote module resolved", "elapsed", elapsed)
		m.transition(domain.PhaseLoaded, nil, "load resolved")
	}
	m.mu.Unlock()
	m.flush()
}

// transition moves the mount to phase to. Callers hold mu. Re-entering the
// current phase only refreshes the error.
func (m *Mount) transition(to Phase, err error, reason string) {
	if m.phase == to {
		if to == domain.PhaseFailed && m.err == nil {
			m.err = err
			m.mirror()
		}
		return
	}

	t := NewTransition(m.desc.Name, m.phase, to, reason, err)
	if !t.IsValid() {
		m.log.Warn("Invalid mount transition",
			"from", t.From,
			"to", t.To,
			"reason", reason,
		)
		return
	}

	m.phase = to
	m.err = err
	m.history.record(t)
	m.log.Debug("Mount transition", "from", t.From, "to", t.To, "reason", reason)

	m.mirror()
	if m.onTransition != nil {
		m.onTransition(t)
	}
}

// mirror records the current status for the next flush. Callers hold mu.
func (m *Mount) mirror() {
	if m.store == nil {
		return
	}
	m.record = domain.NewMountRecord(m.sessionID, m.desc.Name, m.status())
	m.version++
}

// flush writes the latest mirrored status to the store. Callers must not
// hold mu.
func (m *Mount) flush() {
	if m.store == nil {
		return
	}
	m.mu.Lock()
	dirty := m.version != m.written
	m.mu.Unlock()
	if !dirty {
		return
	}

	m.storeMu.Lock()
	defer m.storeMu.Unlock()

	m.mu.Lock()
	rec, version, mounted := m.record, m.version, m.mounted
	done := version == m.written
	m.mu.Unlock()
	if done || !mounted {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := m.store.Save(ctx, rec, m.storeTTL); err != nil {
		m.log.Warn("Failed to mirror mount state", "session", m.sessionID, "error", err)
	}

	m.mu.Lock()
	m.written = version
	m.mu.Unlock()
}

func (m *Mount) status() domain.MountStatus {
	return domain.MountStatus{
		Phase:      m.phase,
		Err:        m.err,
		RemountKey: m.state.RemountKey,
		RetryCount: m.state.RetryCount,
	}
}

// view builds the fallback input. It runs inside the boundary render.
func (m *Mount) view() fallback.View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fallback.View{
		Remote:      m.desc.Name,
		DisplayName: m.desc.DisplayName,
		RetryCount:  m.state.RetryCount,
		OriginHint:  m.desc.OriginHint,
		RetryURL:    m.retryURL,
		Dev:         m.dev,
	}
}
