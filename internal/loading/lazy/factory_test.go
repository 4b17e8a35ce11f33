package lazy

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vietddude/shell/internal/core/domain"
	"github.com/vietddude/shell/internal/loading/retry"
)

type page struct{ name string }

func (p *page) Render(ctx context.Context, w io.Writer, props domain.Props) error {
	_, err := io.WriteString(w, p.name)
	return err
}

type instantClock struct{}

func (instantClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

func descriptor(load domain.Loader) domain.RemoteDescriptor {
	return domain.RemoteDescriptor{
		Name:   "blog",
		Load:   load,
		Policy: retry.Policy{MaxRetries: 2, BaseDelay: time.Millisecond, BackoffFactor: 1},
	}
}

// =============================================================================
// Normalize Tests
// =============================================================================

func TestNormalize_DefaultAndBareExportsMatch(t *testing.T) {
	comp := &page{name: "blog"}

	fromDefault, err := Normalize("blog", domain.Namespace{Default: comp})
	if err != nil {
		t.Fatalf("default export: %v", err)
	}
	fromBare, err := Normalize("blog", comp)
	if err != nil {
		t.Fatalf("bare export: %v", err)
	}

	if fromDefault != fromBare || fromBare != domain.Component(comp) {
		t.Errorf("expected both shapes to normalize to the same component")
	}
}

func TestNormalize_AcceptedShapes(t *testing.T) {
	comp := &page{name: "resume"}

	shapes := map[string]domain.Module{
		"namespace pointer": &domain.Namespace{Default: comp},
		"map default":       map[string]any{"default": comp},
		"plain func": func(ctx context.Context, w io.Writer, props domain.Props) error {
			return nil
		},
	}

	for name, mod := range shapes {
		if c, err := Normalize("resume", mod); err != nil || c == nil {
			t.Errorf("%s: expected a component, got %v, %v", name, c, err)
		}
	}
}

func TestNormalize_RejectsUnknownShapes(t *testing.T) {
	shapes := map[string]domain.Module{
		"nil":               nil,
		"string":            "<div>blog</div>",
		"empty namespace":   domain.Namespace{},
		"map without entry": map[string]any{"Page": "x"},
	}

	for name, mod := range shapes {
		_, err := Normalize("blog", mod)
		if !errors.Is(err, domain.ErrInvalidExport) {
			t.Errorf("%s: expected ErrInvalidExport, got %v", name, err)
		}
	}
}

// =============================================================================
// Factory Tests
// =============================================================================

func TestFactory_PollPendingThenResolved(t *testing.T) {
	release := make(chan struct{})
	comp := &page{name: "blog"}
	f := New(descriptor(func(ctx context.Context) (domain.Module, error) {
		<-release
		return domain.Namespace{Default: comp}, nil
	}))

	if _, err := f.Poll(); !errors.Is(err, ErrPending) {
		t.Fatalf("expected ErrPending, got %v", err)
	}
	if f.State() != StatePending {
		t.Errorf("expected pending, got %s", f.State())
	}

	close(release)
	got, err := f.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if got != domain.Component(comp) {
		t.Errorf("expected the default export, got %v", got)
	}

	polled, err := f.Poll()
	if err != nil || polled != domain.Component(comp) {
		t.Errorf("expected cached component from Poll, got %v, %v", polled, err)
	}
}

func TestFactory_ConcurrentCallersShareOneLoad(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	f := New(descriptor(func(ctx context.Context) (domain.Module, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return &page{name: "blog"}, nil
	}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.Poll()
			_, _ = f.Wait(context.Background())
		}()
	}

	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < 3; i++ {
		if _, err := f.Poll(); err != nil {
			t.Fatalf("Poll after resolve failed: %v", err)
		}
	}

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected 1 loader call, got %d", got)
	}
}

func TestFactory_RejectionIsCached(t *testing.T) {
	var calls int32
	f := New(descriptor(func(ctx context.Context) (domain.Module, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("503 from remote")
	}), WithRetryOptions(retry.WithClock(instantClock{})))

	_, err := f.Wait(context.Background())
	if !errors.Is(err, domain.ErrLoadFailed) {
		t.Fatalf("expected load failure, got %v", err)
	}
	if f.State() != StateRejected {
		t.Errorf("expected rejected, got %s", f.State())
	}

	if _, err := f.Poll(); !errors.Is(err, domain.ErrLoadFailed) {
		t.Errorf("expected cached rejection, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected 3 loader calls for one cycle, got %d", got)
	}
}

func TestFactory_InvalidExportIsNotRetried(t *testing.T) {
	var calls int32
	f := New(descriptor(func(ctx context.Context) (domain.Module, error) {
		atomic.AddInt32(&calls, 1)
		return 42, nil
	}))

	_, err := f.Wait(context.Background())
	if !errors.Is(err, domain.ErrInvalidExport) {
		t.Fatalf("expected ErrInvalidExport, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 loader call, got %d", calls)
	}
}

func TestFactory_OnSettle(t *testing.T) {
	settled := make(chan error, 1)
	f := New(descriptor(func(ctx context.Context) (domain.Module, error) {
		return &page{name: "portfolio"}, nil
	}), WithOnSettle(func(c domain.Component, err error, elapsed time.Duration) {
		settled <- err
	}))

	if _, err := f.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	select {
	case err := <-settled:
		if err != nil {
			t.Errorf("expected successful settlement, got %v", err)
		}
	default:
		t.Fatal("OnSettle was not called")
	}
}

func TestFactory_OnSettleObserversChain(t *testing.T) {
	var order []string
	f := New(descriptor(func(ctx context.Context) (domain.Module, error) {
		return nil, errors.New("boom")
	}),
		WithRetryOptions(retry.WithClock(instantClock{})),
		WithOnSettle(func(domain.Component, error, time.Duration) { order = append(order, "first") }),
		WithOnSettle(func(domain.Component, error, time.Duration) { order = append(order, "second") }),
	)

	if _, err := f.Wait(context.Background()); err == nil {
		t.Fatal("expected rejection")
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("expected both observers in order, got %v", order)
	}
}

func TestFactory_ScopedLoggerLabelsRemoteOnce(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})).
		With("remote", "blog")

	f := New(descriptor(func(ctx context.Context) (domain.Module, error) {
		return nil, errors.New("503 from remote")
	}),
		WithLogger(log),
		WithRetryOptions(retry.WithClock(instantClock{})),
	)
	if _, err := f.Wait(context.Background()); err == nil {
		t.Fatal("expected rejection")
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) < 3 {
		t.Fatalf("expected backoff and exhaustion lines, got %q", buf.String())
	}
	for _, line := range lines {
		if n := strings.Count(line, "remote=blog"); n != 1 {
			t.Errorf("expected one remote label, got %d in %q", n, line)
		}
	}
}

func TestFactory_AbandonDropsLateSettlement(t *testing.T) {
	release := make(chan struct{})
	var called atomic.Bool
	f := New(descriptor(func(ctx context.Context) (domain.Module, error) {
		<-release
		return &page{name: "blog"}, nil
	}), WithOnSettle(func(domain.Component, error, time.Duration) {
		called.Store(true)
	}))

	_, _ = f.Poll()
	f.Abandon()
	close(release)

	if _, err := f.Wait(context.Background()); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled from abandoned factory, got %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if called.Load() {
		t.Error("OnSettle must not run for an abandoned factory")
	}
	if f.State() != StatePending {
		t.Errorf("abandoned factory must not settle, got %s", f.State())
	}
}
