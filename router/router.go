// Package router resolves page paths to views.
//
// Routes are patterns made of path segments. A segment is either a literal
// ("dashboard") or a capture (":id"); captured values are handed to the view
// as Params so views never re-parse the URL. Patterns without captures are
// exact matches and always win over capture patterns. Among capture patterns
// the one with more literal segments wins, then the one registered first.
package router

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

type Params map[string]string

func (p Params) Get(name string) string {
	return p[name]
}

// Request is what a view gets to work with.
type Request struct {
	Context context.Context
	Path    string
	Params  Params
	Query   url.Values
}

// View produces the markup for one screen.
type View func(req Request) string

type segment struct {
	literal string
	capture string
}

func (s segment) isCapture() bool {
	return s.capture != ""
}

type Route struct {
	Pattern  string
	segments []segment
	literals int
	order    int
	view     View
}

// match reports whether parts satisfies the route, returning the captures.
func (r *Route) match(parts []string) (Params, bool) {
	if len(parts) != len(r.segments) {
		return nil, false
	}
	params := Params{}
	for i, seg := range r.segments {
		if seg.isCapture() {
			if parts[i] == "" {
				return nil, false
			}
			value, err := url.PathUnescape(parts[i])
			if err != nil {
				return nil, false
			}
			params[seg.capture] = value
			continue
		}
		if seg.literal != parts[i] {
			return nil, false
		}
	}
	return params, true
}

type Router struct {
	mu       sync.RWMutex
	routes   map[string]*Route
	patterns []*Route
	notFound View
	seq      int
	logger   *log.Entry
}

func defaultNotFound(req Request) string {
	return "<h1>Not Found</h1>"
}

// New creates a router that renders notFound for unknown paths. A nil
// notFound falls back to a bare heading.
func New(notFound View) *Router {
	if notFound == nil {
		notFound = defaultNotFound
	}
	return &Router{
		routes:   make(map[string]*Route),
		notFound: notFound,
		logger:   log.WithFields(log.Fields{"module": "router"}),
	}
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return []string{}
	}
	return strings.Split(trimmed, "/")
}

func parsePattern(pattern string) ([]segment, string, int) {
	parts := splitPath(pattern)
	segments := make([]segment, 0, len(parts))
	literals := 0
	for _, part := range parts {
		if strings.HasPrefix(part, ":") && len(part) > 1 {
			segments = append(segments, segment{capture: part[1:]})
			continue
		}
		segments = append(segments, segment{literal: part})
		literals++
	}
	return segments, "/" + strings.Join(parts, "/"), literals
}

// AddRoute registers view under pattern. Registering the same pattern again
// replaces the earlier view.
func (r *Router) AddRoute(pattern string, view View) {
	segments, key, literals := parsePattern(pattern)

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.routes[key]; ok {
		r.logger.Debugf("Replacing view for route %s", key)
		existing.view = view
		return
	}

	r.seq++
	route := &Route{
		Pattern:  key,
		segments: segments,
		literals: literals,
		order:    r.seq,
		view:     view,
	}
	r.routes[key] = route

	if literals == len(segments) {
		return
	}
	r.patterns = append(r.patterns, route)
	sort.SliceStable(r.patterns, func(i, j int) bool {
		if r.patterns[i].literals != r.patterns[j].literals {
			return r.patterns[i].literals > r.patterns[j].literals
		}
		return r.patterns[i].order < r.patterns[j].order
	})
}

// SetNotFound replaces the fallback view.
func (r *Router) SetNotFound(view View) {
	if view == nil {
		view = defaultNotFound
	}
	r.mu.Lock()
	r.notFound = view
	r.mu.Unlock()
}

// Match finds the route for path. The returned route is nil when nothing
// matched.
func (r *Router) Match(path string) (*Route, Params) {
	parts := splitPath(path)
	key := "/" + strings.Join(parts, "/")

	r.mu.RLock()
	defer r.mu.RUnlock()

	if route, ok := r.routes[key]; ok && route.literals == len(route.segments) {
		return route, Params{}
	}
	for _, route := range r.patterns {
		if params, ok := route.match(parts); ok {
			return route, params
		}
	}
	return nil, nil
}

// Resolve renders target, a path with an optional query string.
func (r *Router) Resolve(ctx context.Context, target string) string {
	if ctx == nil {
		ctx = context.Background()
	}

	u, err := url.Parse(target)
	if err != nil {
		r.logger.Warnf("Unparseable path %q: %v", target, err)
		return r.fallback()(Request{Context: ctx, Path: target, Params: Params{}, Query: url.Values{}})
	}

	req := Request{
		Context: ctx,
		Path:    u.Path,
		Query:   u.Query(),
	}

	route, params := r.Match(u.Path)
	if route == nil {
		r.logger.Debugf("No route for %s", u.Path)
		req.Params = Params{}
		return r.fallback()(req)
	}

	r.mu.RLock()
	view := route.view
	r.mu.RUnlock()

	req.Params = params
	return view(req)
}

func (r *Router) fallback() View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.notFound
}

// Routes lists registered patterns in lookup order: exact routes sorted
// alphabetically, then capture routes by precedence.
func (r *Router) Routes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exact := []string{}
	for key, route := range r.routes {
		if route.literals == len(route.segments) {
			exact = append(exact, key)
		}
	}
	sort.Strings(exact)

	for _, route := range r.patterns {
		exact = append(exact, route.Pattern)
	}
	return exact
}
