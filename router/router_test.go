package router

import (
	"context"
	"reflect"
	"testing"
)

func static(markup string) View {
	return func(req Request) string { return markup }
}

func TestRouterResolvesRegisteredPaths(t *testing.T) {
	r := New(static("not found"))
	r.AddRoute("/", static("home"))
	r.AddRoute("/dashboard", static("dashboard"))
	r.AddRoute("/editor", static("editor"))

	tests := []struct {
		path string
		want string
	}{
		{"/", "home"},
		{"", "home"},
		{"/dashboard", "dashboard"},
		{"/dashboard/", "dashboard"},
		{"/editor?url=abc", "editor"},
		{"/missing", "not found"},
		{"/dashboard/extra", "not found"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := r.Resolve(context.Background(), tt.path); got != tt.want {
				t.Errorf("Resolve(%q) = %q; want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestRouterCaptureParams(t *testing.T) {
	r := New(nil)
	r.AddRoute("/u/:id", func(req Request) string { return "user " + req.Params.Get("id") })
	r.AddRoute("/p/:code/tracks/:n", func(req Request) string {
		return req.Params.Get("code") + "#" + req.Params.Get("n")
	})

	tests := []struct {
		path string
		want string
	}{
		{"/u/alice", "user alice"},
		{"/u/with%20space", "user with space"},
		{"/p/Ab3dE/tracks/7", "Ab3dE#7"},
		{"/u/", defaultNotFound(Request{})},
		{"/u", defaultNotFound(Request{})},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := r.Resolve(context.Background(), tt.path); got != tt.want {
				t.Errorf("Resolve(%q) = %q; want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestRouterQueryReachesView(t *testing.T) {
	r := New(nil)
	r.AddRoute("/search", func(req Request) string { return req.Query.Get("query") })

	if got := r.Resolve(context.Background(), "/search?query=bjork"); got != "bjork" {
		t.Errorf("Resolve() = %q; want bjork", got)
	}
}

func TestRouterLiteralBeatsCapture(t *testing.T) {
	r := New(nil)
	r.AddRoute("/u/:id", static("capture"))
	r.AddRoute("/u/me", static("literal"))
	r.AddRoute("/:section/:id", static("generic"))

	tests := []struct {
		path string
		want string
	}{
		{"/u/me", "literal"},
		{"/u/bob", "capture"},
		{"/p/bob", "generic"},
	}
	for _, tt := range tests {
		if got := r.Resolve(context.Background(), tt.path); got != tt.want {
			t.Errorf("Resolve(%q) = %q; want %q", tt.path, got, tt.want)
		}
	}
}

func TestRouterCaptureRegistrationOrder(t *testing.T) {
	r := New(nil)
	r.AddRoute("/x/:a", static("first"))
	r.AddRoute("/x/:b", static("second"))

	if got := r.Resolve(context.Background(), "/x/1"); got != "first" {
		t.Errorf("Resolve() = %q; want first", got)
	}
}

func TestRouterLastRegistrationWins(t *testing.T) {
	r := New(nil)
	r.AddRoute("/dashboard", static("old"))
	r.AddRoute("/dashboard/", static("new"))

	if got := r.Resolve(context.Background(), "/dashboard"); got != "new" {
		t.Errorf("Resolve() = %q; want new", got)
	}

	r.AddRoute("/u/:id", static("old user"))
	r.AddRoute("/u/:id", static("new user"))
	if got := r.Resolve(context.Background(), "/u/a"); got != "new user" {
		t.Errorf("Resolve() = %q; want new user", got)
	}
	if n := len(r.Routes()); n != 2 {
		t.Errorf("len(Routes()) = %d; want 2", n)
	}
}

func TestRouterSetNotFound(t *testing.T) {
	r := New(nil)
	if got := r.Resolve(context.Background(), "/nope"); got != "<h1>Not Found</h1>" {
		t.Errorf("default not found = %q", got)
	}

	r.SetNotFound(func(req Request) string { return "lost: " + req.Path })
	if got := r.Resolve(context.Background(), "/nope"); got != "lost: /nope" {
		t.Errorf("custom not found = %q", got)
	}
}

func TestRouterRoutes(t *testing.T) {
	r := New(nil)
	r.AddRoute("/u/:id", nil)
	r.AddRoute("/dashboard", nil)
	r.AddRoute("/", nil)
	r.AddRoute("/:a/:b", nil)
	r.AddRoute("/p/:code/edit", nil)

	want := []string{"/", "/dashboard", "/p/:code/edit", "/u/:id", "/:a/:b"}
	if got := r.Routes(); !reflect.DeepEqual(got, want) {
		t.Errorf("Routes() = %v; want %v", got, want)
	}
}

func TestRouterNilContext(t *testing.T) {
	r := New(nil)
	r.AddRoute("/", func(req Request) string {
		if req.Context == nil {
			return "nil"
		}
		return "ok"
	})
	if got := r.Resolve(nil, "/"); got != "ok" {
		t.Errorf("Resolve(nil ctx) = %q; want ok", got)
	}
}
