// Package boundary isolates a failing subtree of a page.
//
// A Boundary catches failures raised synchronously while its children
// render: a returned error or a panic on the rendering goroutine. Failures on
// goroutines the children start themselves cannot be recovered here and must
// be reported by returning an error from the render call.
//
// States:
//
//	Ok ──(children fail)──▶ Failed(err) ──(reset keys change)──▶ Ok
//
// A failed boundary renders its fallback and never calls its children until
// one of the reset keys changes. It never clears on its own.
package boundary

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"reflect"
	"runtime/debug"
	"sync"

	"github.com/vietddude/shell/internal/core/domain"
)

// RenderFunc renders the guarded subtree.
type RenderFunc func(w io.Writer) error

// FallbackFunc renders the failed display state.
type FallbackFunc func(w io.Writer, err error) error

// State is a snapshot of the boundary.
type State struct {
	Failed bool
	Err    error
}

// PanicError wraps a value recovered from a panicking render.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%v: %v", domain.ErrRenderPanic, e.Value)
}

// Is reports the error as a render panic.
func (e *PanicError) Is(target error) bool {
	return target == domain.ErrRenderPanic
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Option configures a Boundary.
type Option func(*Boundary)

// WithFallback sets the failed-state renderer.
func WithFallback(fn FallbackFunc) Option {
	return func(b *Boundary) { b.fallback = fn }
}

// WithOnError is called once per Ok -> Failed transition.
func WithOnError(fn func(err error)) Option {
	return func(b *Boundary) { b.onError = fn }
}

// WithOnReset is called once per Failed -> Ok transition with the cleared error.
func WithOnReset(fn func(cleared error)) Option {
	return func(b *Boundary) { b.onReset = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Boundary) { b.log = l }
}

// Boundary guards one subtree. Renders are serialized.
type Boundary struct {
	fallback FallbackFunc
	onError  func(error)
	onReset  func(error)
	log      *slog.Logger

	mu     sync.Mutex
	state  State
	keys   []any
	seeded bool
}

// New creates a boundary in the Ok state.
func New(opts ...Option) *Boundary {
	b := &Boundary{
		fallback: defaultFallback,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// State returns the current state.
func (b *Boundary) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Render renders children into w, or the fallback when the boundary is
// failed. resetKeys are compared pairwise with the previous call's keys; any
// change clears a failure before rendering. Output of failing children is
// discarded. The returned error only reports failures to write to w.
func (b *Boundary) Render(w io.Writer, resetKeys []any, children RenderFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.seeded && b.state.Failed && KeysChanged(b.keys, resetKeys) {
		cleared := b.state.Err
		b.state = State{}
		b.log.Debug("Boundary reset", "keys", resetKeys, "cleared", cleared)
		if b.onReset != nil {
			b.onReset(cleared)
		}
	}
	b.keys = append(b.keys[:0:0], resetKeys...)
	b.seeded = true

	if b.state.Failed {
		return b.fallback(w, b.state.Err)
	}

	var buf bytes.Buffer
	if err := run(&buf, children); err != nil {
		b.state = State{Failed: true, Err: err}
		b.log.Warn("Boundary caught render failure", "error", err)
		if b.onError != nil {
			b.onError(err)
		}
		return b.fallback(w, err)
	}

	_, err := buf.WriteTo(w)
	return err
}

func run(w io.Writer, children RenderFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return children(w)
}

// KeysChanged reports whether two reset-key tuples differ. Elements are
// compared shallowly with ==; an element whose type is not comparable always
// counts as changed.
func KeysChanged(prev, next []any) bool {
	if len(prev) != len(next) {
		return true
	}
	for i := range prev {
		if !shallowEqual(prev[i], next[i]) {
			return true
		}
	}
	return false
}

func shallowEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

func defaultFallback(w io.Writer, err error) error {
	_, werr := fmt.Fprintf(w, "<div role=\"alert\">Something went wrong: %s</div>",
		template.HTMLEscapeString(err.Error()))
	return werr
}
