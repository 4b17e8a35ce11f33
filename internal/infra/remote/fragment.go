package remote

import (
	"context"
	"io"

	"github.com/vietddude/shell/internal/core/domain"
)

// Fragment is a server-rendered remote component: markup produced by the
// remote's own deployment and inserted into the shell's page as is.
type Fragment struct {
	HTML string
	Head string
}

var _ domain.Component = (*Fragment)(nil)

// Render writes the fragment's markup.
func (f *Fragment) Render(ctx context.Context, w io.Writer, props domain.Props) error {
	_, err := io.WriteString(w, f.HTML)
	return err
}
