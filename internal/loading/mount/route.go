package mount

import (
	"net/http"
	"strings"
)

// RouteIdentity derives the per-navigation identity of a request. Two
// requests of the same navigation must yield equal values; any navigation
// must yield a value different from the previous one. Values are compared
// with == and must be comparable.
type RouteIdentity interface {
	Identify(r *http.Request) any
}

// RouteIdentityFunc adapts a function to RouteIdentity.
type RouteIdentityFunc func(r *http.Request) any

// Identify calls f.
func (f RouteIdentityFunc) Identify(r *http.Request) any {
	return f(r)
}

// NavKeyParam is the query parameter carrying the client's navigation key.
const NavKeyParam = "nav"

// NavKeyIdentity identifies a navigation by path and, when present, the
// navigation key query parameter. Re-entering the same path with a new key
// counts as a new navigation.
type NavKeyIdentity struct{}

type navKey struct {
	Path string
	Key  string
}

// Identify implements RouteIdentity.
func (NavKeyIdentity) Identify(r *http.Request) any {
	path := strings.TrimSuffix(r.URL.Path, "/")
	if path == "" {
		path = "/"
	}
	return navKey{Path: path, Key: r.URL.Query().Get(NavKeyParam)}
}

// InSubtree reports whether path lies in the route subtree rooted at route.
func InSubtree(route, path string) bool {
	root := strings.TrimSuffix(route, "/")
	if root == "" {
		return true
	}
	return path == root || strings.HasPrefix(path, root+"/")
}
