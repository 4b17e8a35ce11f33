package boundary

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/vietddude/shell/internal/core/domain"
)

func fallback(w io.Writer, err error) error {
	_, werr := fmt.Fprintf(w, "fallback:%v", err)
	return werr
}

func TestBoundary_RendersChildrenWhenOk(t *testing.T) {
	b := New(WithFallback(fallback))
	var buf bytes.Buffer

	err := b.Render(&buf, []any{"/blog", uint64(0)}, func(w io.Writer) error {
		_, err := io.WriteString(w, "<article>post</article>")
		return err
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if buf.String() != "<article>post</article>" {
		t.Errorf("unexpected output %q", buf.String())
	}
	if b.State().Failed {
		t.Error("boundary should be ok")
	}
}

func TestBoundary_FailureIsStickyUntilKeysChange(t *testing.T) {
	var caught []error
	var cleared []error
	b := New(
		WithFallback(fallback),
		WithOnError(func(err error) { caught = append(caught, err) }),
		WithOnReset(func(err error) { cleared = append(cleared, err) }),
	)
	boom := errors.New("boom")
	calls := 0
	failing := func(w io.Writer) error {
		calls++
		_, _ = io.WriteString(w, "<partial")
		return boom
	}

	var buf bytes.Buffer
	_ = b.Render(&buf, []any{"/blog", uint64(0)}, failing)
	if buf.String() != "fallback:boom" {
		t.Errorf("expected fallback without partial output, got %q", buf.String())
	}
	if st := b.State(); !st.Failed || !errors.Is(st.Err, boom) {
		t.Fatalf("expected Failed(boom), got %+v", st)
	}

	// Same keys: stays failed, children are not rendered.
	for i := 0; i < 3; i++ {
		buf.Reset()
		_ = b.Render(&buf, []any{"/blog", uint64(0)}, failing)
		if buf.String() != "fallback:boom" {
			t.Errorf("render %d: expected fallback, got %q", i, buf.String())
		}
	}
	if calls != 1 {
		t.Errorf("children must not render while failed, got %d calls", calls)
	}
	if len(caught) != 1 {
		t.Errorf("expected OnError once, got %d", len(caught))
	}

	// Changed key: clears on the very next render.
	buf.Reset()
	err := b.Render(&buf, []any{"/blog/hello", uint64(0)}, func(w io.Writer) error {
		_, err := io.WriteString(w, "ok")
		return err
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if buf.String() != "ok" || b.State().Failed {
		t.Errorf("expected reset to Ok, got %q (%+v)", buf.String(), b.State())
	}
	if len(cleared) != 1 || !errors.Is(cleared[0], boom) {
		t.Errorf("expected OnReset with boom, got %v", cleared)
	}
}

func TestBoundary_RemountKeyResets(t *testing.T) {
	b := New(WithFallback(fallback))
	var buf bytes.Buffer

	_ = b.Render(&buf, []any{"/resume", uint64(3)}, func(io.Writer) error { return errors.New("x") })
	_ = b.Render(&buf, []any{"/resume", uint64(4)}, func(io.Writer) error { return nil })

	if b.State().Failed {
		t.Error("remount key change should clear the failure")
	}
}

func TestBoundary_CatchesPanic(t *testing.T) {
	var caught error
	b := New(WithFallback(fallback), WithOnError(func(err error) { caught = err }))
	var buf bytes.Buffer

	err := b.Render(&buf, []any{"/portfolio"}, func(io.Writer) error {
		var m map[string]int
		m["crash"]++
		return nil
	})
	if err != nil {
		t.Fatalf("Render must contain the panic, got %v", err)
	}

	var pe *PanicError
	if !errors.As(caught, &pe) {
		t.Fatalf("expected PanicError, got %v", caught)
	}
	if !errors.Is(caught, domain.ErrRenderPanic) {
		t.Error("expected ErrRenderPanic")
	}
	if len(pe.Stack) == 0 {
		t.Error("expected a stack trace")
	}
	if domain.Classify(caught) != domain.FailureRender {
		t.Errorf("expected render classification, got %q", domain.Classify(caught))
	}
	if !strings.HasPrefix(buf.String(), "fallback:") {
		t.Errorf("expected fallback output, got %q", buf.String())
	}
}

func TestBoundary_DefaultFallbackEscapes(t *testing.T) {
	b := New()
	var buf bytes.Buffer
	_ = b.Render(&buf, nil, func(io.Writer) error { return errors.New("<script>") })

	if strings.Contains(buf.String(), "<script>") {
		t.Errorf("default fallback must escape the error, got %q", buf.String())
	}
}

func TestKeysChanged(t *testing.T) {
	slice := []int{1}
	tests := []struct {
		name   string
		prev   []any
		next   []any
		expect bool
	}{
		{"equal", []any{"/a", uint64(1)}, []any{"/a", uint64(1)}, false},
		{"first differs", []any{"/a", uint64(1)}, []any{"/b", uint64(1)}, true},
		{"second differs", []any{"/a", uint64(1)}, []any{"/a", uint64(2)}, true},
		{"length differs", []any{"/a"}, []any{"/a", uint64(1)}, true},
		{"type differs", []any{1}, []any{int64(1)}, true},
		{"nil pair", []any{nil}, []any{nil}, false},
		{"uncomparable", []any{slice}, []any{slice}, true},
		{"both empty", nil, []any{}, false},
	}

	for _, tt := range tests {
		if got := KeysChanged(tt.prev, tt.next); got != tt.expect {
			t.Errorf("%s: KeysChanged = %v, want %v", tt.name, got, tt.expect)
		}
	}
}
