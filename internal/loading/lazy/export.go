package lazy

import (
	"context"
	"fmt"
	"io"

	"github.com/vietddude/shell/internal/core/domain"
)

// Normalize reduces a loaded module to the component it exports. A non-nil
// default export wins; otherwise the module itself must be a component.
// Any other shape fails with domain.ErrInvalidExport instead of rendering nothing.
func Normalize(remote string, mod domain.Module) (domain.Component, error) {
	if exporter, ok := mod.(domain.DefaultExporter); ok {
		if c := exporter.DefaultExport(); c != nil {
			return c, nil
		}
	}

	switch m := mod.(type) {
	case domain.Component:
		if m != nil {
			return m, nil
		}
	case func(context.Context, io.Writer, domain.Props) error:
		if m != nil {
			return domain.ComponentFunc(m), nil
		}
	case map[string]any:
		if c, ok := m["default"].(domain.Component); ok && c != nil {
			return c, nil
		}
		return nil, fmt.Errorf("%w: remote %q exports %d keys but no component under \"default\"",
			domain.ErrInvalidExport, remote, len(m))
	}

	if mod == nil {
		return nil, fmt.Errorf("%w: remote %q resolved to nothing", domain.ErrInvalidExport, remote)
	}
	return nil, fmt.Errorf("%w: remote %q resolved to %T, want a component or a default export",
		domain.ErrInvalidExport, remote, mod)
}
