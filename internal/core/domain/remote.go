package domain

import (
	"context"
	"io"
	"time"
)

// Props are the values the shell hands to a remote's root component.
type Props map[string]any

// Component is the renderable root a remote exports.
type Component interface {
	Render(ctx context.Context, w io.Writer, props Props) error
}

// ComponentFunc adapts a plain function to Component.
type ComponentFunc func(ctx context.Context, w io.Writer, props Props) error

// Render calls f.
func (f ComponentFunc) Render(ctx context.Context, w io.Writer, props Props) error {
	return f(ctx, w, props)
}

// Module is whatever a transport resolves a remote to. It is either a
// Component (bare export) or a value carrying a default export; the lazy
// factory normalizes it before anything renders it.
type Module any

// DefaultExporter is implemented by module namespaces that carry a default export.
type DefaultExporter interface {
	DefaultExport() Component
}

// Namespace is a module object with a default export and optional named exports.
type Namespace struct {
	Default Component
	Named   map[string]Component
}

// DefaultExport returns the namespace's default export.
func (n Namespace) DefaultExport() Component {
	return n.Default
}

// Loader resolves a remote module. Transports supply it; the shell treats it
// as opaque and may call it several times per load cycle.
type Loader func(ctx context.Context) (Module, error)

// RetryPolicy bounds the retries of one load cycle.
type RetryPolicy struct {
	MaxRetries     int
	BaseDelay      time.Duration
	BackoffFactor  float64
	AttemptTimeout time.Duration // 0 = disabled
}

// RemoteDescriptor describes one remote. Created once at startup.
type RemoteDescriptor struct {
	Name        string
	DisplayName string
	OriginHint  string // diagnostic-only label
	Route       string // route subtree owned by the remote, e.g. "/blog/"
	Load        Loader
	Policy      RetryPolicy
}
