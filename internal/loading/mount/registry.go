package mount

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vietddude/shell/internal/core/domain"
)

// ErrUnknownRemote is returned for a remote name that was not registered.
var ErrUnknownRemote = errors.New("unknown remote")

// OptionsFunc builds the options of a new mount.
type OptionsFunc func(sessionID string, desc domain.RemoteDescriptor) []Option

// Info is a snapshot of one live mount.
type Info struct {
	SessionID string
	Remote    string
	Status    domain.MountStatus
	LastUsed  time.Time
}

type session struct {
	mounts   map[string]*Mount
	lastSeen time.Time
}

// Registry owns the mounts of every session. A session holds at most one
// mount per remote, and a mount lives while the session's route stays in the
// remote's subtree.
type Registry struct {
	remotes   []domain.RemoteDescriptor
	byName    map[string]domain.RemoteDescriptor
	mountOpts OptionsFunc
	log       *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// NewRegistry creates a registry for remotes. Route prefixes are matched
// longest first.
func NewRegistry(remotes []domain.RemoteDescriptor, mountOpts OptionsFunc) (*Registry, error) {
	r := &Registry{
		byName:    make(map[string]domain.RemoteDescriptor, len(remotes)),
		mountOpts: mountOpts,
		log:       slog.Default().With("component", "mounts"),
		now:       time.Now,
		sessions:  make(map[string]*session),
	}
	for _, desc := range remotes {
		if _, dup := r.byName[desc.Name]; dup {
			return nil, fmt.Errorf("duplicate remote %q", desc.Name)
		}
		if desc.Load == nil {
			return nil, fmt.Errorf("remote %q has no loader", desc.Name)
		}
		r.byName[desc.Name] = desc
		r.remotes = append(r.remotes, desc)
	}
	sort.SliceStable(r.remotes, func(i, j int) bool {
		return len(strings.TrimSuffix(r.remotes[i].Route, "/")) > len(strings.TrimSuffix(r.remotes[j].Route, "/"))
	})
	return r, nil
}

// Remotes returns the registered remotes sorted by name.
func (r *Registry) Remotes() []domain.RemoteDescriptor {
	out := make([]domain.RemoteDescriptor, len(r.remotes))
	copy(out, r.remotes)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Remote returns the descriptor registered under name.
func (r *Registry) Remote(name string) (domain.RemoteDescriptor, bool) {
	desc, ok := r.byName[name]
	return desc, ok
}

// Match returns the remote whose route subtree contains path.
func (r *Registry) Match(path string) (domain.RemoteDescriptor, bool) {
	for _, desc := range r.remotes {
		if desc.Route != "" && InSubtree(desc.Route, path) {
			return desc, true
		}
	}
	return domain.RemoteDescriptor{}, false
}

// Navigate records that sessionID is now at path. Mounts of remotes whose
// subtree no longer contains path are unmounted. It returns the mount of the
// remote owning path, creating it if needed.
func (r *Registry) Navigate(sessionID, path string) (*Mount, bool) {
	desc, matched := r.Match(path)

	r.mu.Lock()
	s := r.session(sessionID)
	var left []*Mount
	for name, m := range s.mounts {
		if !matched || name != desc.Name {
			left = append(left, m)
			delete(s.mounts, name)
		}
	}
	var m *Mount
	if matched {
		m = r.mountLocked(s, sessionID, desc)
	}
	r.mu.Unlock()

	for _, old := range left {
		r.log.Debug("Route left remote subtree", "session", sessionID, "remote", old.Remote().Name, "path", path)
		old.Unmount()
	}
	return m, matched
}

// Acquire returns the session's mount of remote, creating it if needed.
func (r *Registry) Acquire(sessionID, remote string) (*Mount, error) {
	desc, ok := r.byName[remote]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRemote, remote)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mountLocked(r.session(sessionID), sessionID, desc), nil
}

// Get returns the session's mount of remote if it exists.
func (r *Registry) Get(sessionID, remote string) (*Mount, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	s.lastSeen = r.now()
	m, ok := s.mounts[remote]
	return m, ok
}

// Leave unmounts the session's mount of remote.
func (r *Registry) Leave(sessionID, remote string) bool {
	r.mu.Lock()
	var m *Mount
	if s, ok := r.sessions[sessionID]; ok {
		m = s.mounts[remote]
		delete(s.mounts, remote)
	}
	r.mu.Unlock()

	if m == nil {
		return false
	}
	m.Unmount()
	return true
}

// Sweep unmounts every session idle for longer than idle and returns the
// number of sessions removed.
func (r *Registry) Sweep(idle time.Duration) int {
	threshold := r.now().Add(-idle)

	r.mu.Lock()
	var stale []*Mount
	removed := 0
	for id, s := range r.sessions {
		if s.lastSeen.After(threshold) {
			continue
		}
		for _, m := range s.mounts {
			stale = append(stale, m)
		}
		delete(r.sessions, id)
		removed++
	}
	r.mu.Unlock()

	for _, m := range stale {
		m.Unmount()
	}
	return removed
}

// Snapshot lists every live mount.
func (r *Registry) Snapshot() []Info {
	r.mu.Lock()
	type pair struct {
		id string
		m  *Mount
	}
	var mounts []pair
	for id, s := range r.sessions {
		for _, m := range s.mounts {
			mounts = append(mounts, pair{id, m})
		}
	}
	r.mu.Unlock()

	out := make([]Info, 0, len(mounts))
	for _, p := range mounts {
		out = append(out, Info{
			SessionID: p.id,
			Remote:    p.m.Remote().Name,
			Status:    p.m.Status(),
			LastUsed:  p.m.LastUsed(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SessionID != out[j].SessionID {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].Remote < out[j].Remote
	})
	return out
}

// Sessions returns the number of tracked sessions.
func (r *Registry) Sessions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close unmounts everything.
func (r *Registry) Close() {
	r.mu.Lock()
	var all []*Mount
	for _, s := range r.sessions {
		for _, m := range s.mounts {
			all = append(all, m)
		}
	}
	r.sessions = make(map[string]*session)
	r.mu.Unlock()

	for _, m := range all {
		m.Unmount()
	}
}

func (r *Registry) session(id string) *session {
	s, ok := r.sessions[id]
	if !ok {
		s = &session{mounts: make(map[string]*Mount)}
		r.sessions[id] = s
	}
	s.lastSeen = r.now()
	return s
}

func (r *Registry) mountLocked(s *session, sessionID string, desc domain.RemoteDescriptor) *Mount {
	if m, ok := s.mounts[desc.Name]; ok {
		return m
	}
	var opts []Option
	if r.mountOpts != nil {
		opts = r.mountOpts(sessionID, desc)
	}
	m := New(desc, append(opts, WithSession(sessionID))...)
	s.mounts[desc.Name] = m
	r.log.Debug("Remote mounted", "session", sessionID, "remote", desc.Name)
	return m
}
