package router

import (
	"context"
	"sync"
	"sync/atomic"
)

type State int

const (
	Idle State = iota
	Resolving
)

func (s State) String() string {
	switch s {
	case Resolving:
		return "resolving"
	default:
		return "idle"
	}
}

// Container is the root element a navigator renders into.
type Container interface {
	Replace(markup string)
}

// Frame is an in-memory Container safe for concurrent use.
type Frame struct {
	mu     sync.RWMutex
	markup string
}

func (f *Frame) Replace(markup string) {
	f.mu.Lock()
	f.markup = markup
	f.mu.Unlock()
}

func (f *Frame) Markup() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.markup
}

// Navigator ties a router, a history and a root container together.
// Views run while the navigator's lock is held and must not navigate the
// same navigator.
type Navigator struct {
	mu      sync.Mutex
	router  *Router
	history *History
	root    Container
	state   atomic.Int32
}

func NewNavigator(router *Router, history *History, root Container) *Navigator {
	if history == nil {
		history = NewHistory(0)
	}
	if root == nil {
		root = &Frame{}
	}
	return &Navigator{
		router:  router,
		history: history,
		root:    root,
	}
}

// Navigate pushes path onto the history and renders it.
func (n *Navigator) Navigate(ctx context.Context, path string) string {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.history.Push(path)
	return n.handleRoute(ctx)
}

// Replace swaps the current history entry for path and renders it.
func (n *Navigator) Replace(ctx context.Context, path string) string {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.history.Replace(path)
	return n.handleRoute(ctx)
}

// HandleRoute renders the current history entry into the root container.
func (n *Navigator) HandleRoute(ctx context.Context) string {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.handleRoute(ctx)
}

// Back moves one entry back and re-renders. It reports false, rendering
// nothing, when there is no earlier entry.
func (n *Navigator) Back(ctx context.Context) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.history.Back() {
		return "", false
	}
	return n.handleRoute(ctx), true
}

func (n *Navigator) Forward(ctx context.Context) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.history.Forward() {
		return "", false
	}
	return n.handleRoute(ctx), true
}

// Step moves the history cursor by delta entries without rendering, stopping
// at either end. It reports whether the cursor moved.
func (n *Navigator) Step(delta int) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	moved := false
	for ; delta < 0 && n.history.Back(); delta++ {
		moved = true
	}
	for ; delta > 0 && n.history.Forward(); delta-- {
		moved = true
	}
	return moved
}

// Current returns the path of the current history entry, or "/" when
// nothing has been visited yet.
func (n *Navigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()

	if path, ok := n.history.Current(); ok {
		return path
	}
	return "/"
}

func (n *Navigator) CanGoBack() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.history.CanGoBack()
}

func (n *Navigator) CanGoForward() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.history.CanGoForward()
}

// State can be read from inside a view without deadlocking.
func (n *Navigator) State() State {
	return State(n.state.Load())
}

func (n *Navigator) handleRoute(ctx context.Context) string {
	path, ok := n.history.Current()
	if !ok {
		path = "/"
	}

	n.state.Store(int32(Resolving))
	markup := n.router.Resolve(ctx, path)
	n.root.Replace(markup)
	n.state.Store(int32(Idle))

	return markup
}
