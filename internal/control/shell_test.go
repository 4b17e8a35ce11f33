package control

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/shell/internal/core/config"
	"github.com/vietddude/shell/internal/core/domain"
)

const cookieName = "shell_session"

// remoteServer serves an entry document, or 503 while down is set.
type remoteServer struct {
	*httptest.Server
	down  atomic.Bool
	calls atomic.Int32
}

func newRemoteServer(t *testing.T, html string) *remoteServer {
	t.Helper()
	rs := &remoteServer{}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.calls.Add(1)
		if rs.down.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"default": map[string]string{"html": html}})
	}))
	t.Cleanup(rs.Close)
	return rs
}

func remoteConfig(name, url string) config.RemoteConfig {
	zero := 0
	return config.RemoteConfig{
		Name:        name,
		DisplayName: strings.ToUpper(name[:1]) + name[1:],
		Route:       "/" + name,
		URL:         url,
		OriginHint:  name + ".example.com",
		Retry: config.RetryConfig{
			Retries:   &zero,
			BaseDelay: time.Millisecond,
			Factor:    1,
		},
	}
}

func newTestShell(t *testing.T, remotes ...config.RemoteConfig) *Shell {
	t.Helper()
	cfg := config.AppConfig{
		Server:       config.ServerConfig{Port: 0, ShutdownTimeout: time.Second},
		SuspenseWait: 2 * time.Second,
		Session: config.SessionConfig{
			Backend: config.BackendMemory,
			TTL:     time.Hour,
			Cookie:  cookieName,
		},
		Remotes: remotes,
	}
	s, err := NewShell(cfg)
	require.NoError(t, err)
	t.Cleanup(s.Registry().Close)
	return s
}

func do(t *testing.T, s *Shell, method, target, session string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	if session != "" {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: session})
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestShell_HomeIssuesSession(t *testing.T) {
	blog := newRemoteServer(t, "<article>blog</article>")
	s := newTestShell(t, remoteConfig("blog", blog.URL))

	rec := do(t, s, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<a href="/blog">Blog</a>`)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, cookieName, cookies[0].Name)
	_, err := uuid.Parse(cookies[0].Value)
	assert.NoError(t, err)

	// A known session is kept.
	rec = do(t, s, http.MethodGet, "/", cookies[0].Value, nil)
	assert.Empty(t, rec.Result().Cookies())
	assert.Equal(t, int32(0), blog.calls.Load(), "the home page must not load any remote")
}

func TestShell_RendersRemoteInsideChrome(t *testing.T) {
	blog := newRemoteServer(t, "<article>blog</article>")
	resume := newRemoteServer(t, "<article>resume</article>")
	s := newTestShell(t, remoteConfig("blog", blog.URL), remoteConfig("resume", resume.URL))
	sid := uuid.NewString()

	rec := do(t, s, http.MethodGet, "/blog/post-1", sid, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<article>blog</article>")
	assert.Contains(t, body, `<a href="/resume">Resume</a>`)
	assert.Contains(t, body, `aria-current="page"`)
	assert.Equal(t, int32(0), resume.calls.Load())
}

func TestShell_FailedRemoteIsContained(t *testing.T) {
	blog := newRemoteServer(t, "<article>blog</article>")
	blog.down.Store(true)
	s := newTestShell(t, remoteConfig("blog", blog.URL), remoteConfig("resume", newRemoteServer(t, "r").URL))
	sid := uuid.NewString()

	rec := do(t, s, http.MethodGet, "/blog", sid, nil)
	require.Equal(t, http.StatusOK, rec.Code, "a failed remote must not fail the page")
	body := rec.Body.String()
	assert.Contains(t, body, `data-failure="load"`)
	assert.Contains(t, body, "Blog is unavailable")
	assert.Contains(t, body, `action="/_shell/remotes/blog/retry"`)
	assert.Contains(t, body, `<a href="/resume">Resume</a>`, "chrome must stay usable")
	assert.Contains(t, body, "origin: blog.example.com")
	assert.Equal(t, int32(1), blog.calls.Load())

	// Rendering again on the same route does not reload.
	do(t, s, http.MethodGet, "/blog", sid, nil)
	assert.Equal(t, int32(1), blog.calls.Load())
}

func TestShell_RetryRecovers(t *testing.T) {
	blog := newRemoteServer(t, "<article>blog</article>")
	blog.down.Store(true)
	s := newTestShell(t, remoteConfig("blog", blog.URL))
	sid := uuid.NewString()

	do(t, s, http.MethodGet, "/blog/post-1?nav=a", sid, nil)
	blog.down.Store(false)

	header := http.Header{"Referer": []string{"http://example.com/blog/post-1?nav=a"}}
	rec := do(t, s, http.MethodPost, "/_shell/remotes/blog/retry", sid, header)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/blog/post-1?nav=a", rec.Header().Get("Location"))

	rec = do(t, s, http.MethodGet, "/blog/post-1?nav=a", sid, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<article>blog</article>")

	m, ok := s.Registry().Get(sid, "blog")
	require.True(t, ok)
	st := m.Status()
	assert.Equal(t, domain.PhaseLoaded, st.Phase)
	assert.Equal(t, 1, st.RetryCount)
	assert.Equal(t, uint64(1), st.RemountKey)
}

func TestShell_RetryWithoutMountRedirects(t *testing.T) {
	s := newTestShell(t, remoteConfig("blog", newRemoteServer(t, "b").URL))

	rec := do(t, s, http.MethodPost, "/_shell/remotes/blog/retry", uuid.NewString(), nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/blog", rec.Header().Get("Location"))

	rec = do(t, s, http.MethodPost, "/_shell/remotes/nope/retry", uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestShell_StateEndpoint(t *testing.T) {
	s := newTestShell(t, remoteConfig("blog", newRemoteServer(t, "<p>b</p>").URL))
	sid := uuid.NewString()

	rec := do(t, s, http.MethodGet, "/_shell/remotes/blog/state", sid, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	do(t, s, http.MethodGet, "/blog", sid, nil)
	rec = do(t, s, http.MethodGet, "/_shell/remotes/blog/state", sid, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.MountRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, sid, got.SessionID)
	assert.Equal(t, "blog", got.Remote)
	assert.Equal(t, domain.PhaseLoaded, got.Phase)
	assert.Empty(t, got.Error)
}

func TestShell_LeavingSubtreeUnmounts(t *testing.T) {
	s := newTestShell(t, remoteConfig("blog", newRemoteServer(t, "<p>b</p>").URL))
	sid := uuid.NewString()

	do(t, s, http.MethodGet, "/blog", sid, nil)
	_, ok := s.Registry().Get(sid, "blog")
	require.True(t, ok)

	rec := do(t, s, http.MethodGet, "/nowhere", sid, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Page not found")
	_, ok = s.Registry().Get(sid, "blog")
	assert.False(t, ok)
}

func TestShell_Health(t *testing.T) {
	s := newTestShell(t, remoteConfig("blog", newRemoteServer(t, "<p>b</p>").URL))

	rec := do(t, s, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status"`)
}

func TestReturnPath(t *testing.T) {
	tests := []struct {
		name    string
		referer string
		want    string
	}{
		{"no referer", "", "/blog"},
		{"same host", "http://example.com/blog/x?nav=1", "/blog/x?nav=1"},
		{"relative", "/blog/y", "/blog/y"},
		{"foreign host", "http://evil.test/blog", "/blog"},
		{"protocol relative", "http://example.com//evil.test", "/blog"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/_shell/remotes/blog/retry", nil)
			if tt.referer != "" {
				req.Header.Set("Referer", tt.referer)
			}
			assert.Equal(t, tt.want, returnPath(req, "/blog"))
		})
	}
}

func TestProbe(t *testing.T) {
	ok := newRemoteServer(t, "<p>ok</p>")
	down := newRemoteServer(t, "")
	down.down.Store(true)

	okDesc, _ := Descriptor(remoteConfig("ok", ok.URL))
	downDesc, _ := Descriptor(remoteConfig("down", down.URL))

	results := Probe(context.Background(), []domain.RemoteDescriptor{okDesc, downDesc})
	require.Len(t, results, 2)

	assert.Equal(t, "ok", results[0].Remote)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 1, results[0].Attempts)

	assert.Equal(t, "down", results[1].Remote)
	assert.ErrorIs(t, results[1].Err, domain.ErrRemoteUnavailable)
	assert.Equal(t, 1, results[1].Attempts)
}
