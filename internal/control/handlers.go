package control

import (
	"bytes"
	"encoding/json"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/vietddude/shell/internal/core/domain"
	"github.com/vietddude/shell/internal/shell/health"
)

func (s *Shell) routes() http.Handler {
	mux := http.NewServeMux()
	health.Register(mux, s.healthMon)
	mux.HandleFunc("POST "+shellPrefix+"{name}/retry", s.handleRetry)
	mux.HandleFunc("GET "+shellPrefix+"{name}/state", s.handleState)
	mux.HandleFunc("GET /", s.handlePage)
	return mux
}

// handlePage renders the chrome and, when the path belongs to a remote, the
// remote's region. A failing remote never fails the page.
func (s *Shell) handlePage(w http.ResponseWriter, r *http.Request) {
	sessionID := s.session(w, r)
	path := r.URL.Path

	m, ok := s.registry.Navigate(sessionID, path)
	page := layoutData{Title: "Home", Path: path}
	for _, desc := range s.registry.Remotes() {
		page.Nav = append(page.Nav, navLink{
			Name:  desc.DisplayName,
			Route: desc.Route,
		})
	}

	status := http.StatusOK
	switch {
	case ok:
		desc := m.Remote()
		page.Title = desc.DisplayName
		page.Active = desc.Route

		var region bytes.Buffer
		props := domain.Props{
			"path":    path,
			"query":   r.URL.Query(),
			"session": sessionID,
		}
		if err := m.Render(r.Context(), &region, s.identity.Identify(r), props); err != nil {
			// The session left the subtree concurrently.
			s.log.Debug("Mount render skipped", "remote", desc.Name, "session", sessionID, "error", err)
			region.Reset()
		}
		page.Region = template.HTML(region.String())
	case path == "/":
		page.Home = true
	default:
		status = http.StatusNotFound
		page.Title = "Not found"
		page.NotFound = true
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := layoutTemplate.Execute(w, page); err != nil {
		s.log.Warn("Failed to write page", "path", path, "error", err)
	}
}

// handleRetry is the target of the fallback's retry control. It starts a
// fresh load cycle for the session's mount and sends the user back.
func (s *Shell) handleRetry(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	desc, ok := s.registry.Remote(name)
	if !ok {
		http.NotFound(w, r)
		return
	}

	sessionID := s.session(w, r)
	if m, ok := s.registry.Get(sessionID, name); ok {
		m.Retry()
	}

	http.Redirect(w, r, returnPath(r, desc.Route), http.StatusSeeOther)
}

// handleState reports the session's mount of a remote. The loading
// placeholder polls it.
func (s *Shell) handleState(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	sessionID := s.session(w, r)

	m, ok := s.registry.Get(sessionID, name)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "remote is not mounted"})
		return
	}
	writeJSON(w, http.StatusOK, domain.NewMountRecord(sessionID, name, m.Status()))
}

// session returns the request's session ID, issuing a cookie if needed.
func (s *Shell) session(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(s.cfg.Session.Cookie); err == nil {
		if _, perr := uuid.Parse(c.Value); perr == nil {
			return c.Value
		}
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Session.Cookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// returnPath picks the local page to go back to after a retry.
func returnPath(r *http.Request, fallback string) string {
	ref := r.Referer()
	if ref == "" {
		return fallback
	}
	u, err := url.Parse(ref)
	if err != nil || (u.Host != "" && u.Host != r.Host) {
		return fallback
	}
	if !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
		return fallback
	}
	if u.RawQuery != "" {
		return u.Path + "?" + u.RawQuery
	}
	return u.Path
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
