package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"tunefeed/models"
)

var fastRetry = RetryPolicy{Attempts: 3, Multiplier: time.Millisecond, MinWait: time.Millisecond, MaxWait: 2 * time.Millisecond}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, WithRetryPolicy(fastRetry))
}

func TestGetUser(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/alice" {
			t.Errorf("path = %s; want /users/alice", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":           "spotify123",
			"custom_url":   "alice",
			"display_name": "Alice",
			"avatar_url":   nil,
		})
	})

	user, err := client.GetUser(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if user.ID != "spotify123" || user.DisplayName != "Alice" || user.AvatarURL != "" {
		t.Errorf("GetUser() = %+v", user)
	}
	if user.Slug() != "alice" {
		t.Errorf("Slug() = %q; want alice", user.Slug())
	}
}

func TestGetUserNotFound(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"User not found"}`))
	})

	_, err := client.GetUser(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v; want ErrNotFound", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d; 404 must not be retried", calls.Load())
	}
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[{"track_name":"Song","artist_name":"Band","played_at":"2024-05-01T10:00:00Z","album_art":"a.jpg"}]`))
	})

	tracks, err := client.RecentTracks(context.Background(), "alice")
	if err != nil {
		t.Fatalf("RecentTracks: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d; want 3", calls.Load())
	}
	if len(tracks) != 1 || tracks[0].TrackName != "Song" {
		t.Errorf("tracks = %+v", tracks)
	}
}

func TestRetryGivesUp(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"boom"}`))
	})

	_, err := client.TopTracks(context.Background(), "alice")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("err = %v; want *StatusError", err)
	}
	if statusErr.StatusCode != 500 || statusErr.Detail != "boom" {
		t.Errorf("statusErr = %+v", statusErr)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d; want 3", calls.Load())
	}
}

func TestClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	if _, err := client.CurrentlyPlaying(context.Background(), "alice"); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d; want 1", calls.Load())
	}
}

func TestCurrentlyPlayingIdle(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"is_playing": false}`))
	})

	np, err := client.CurrentlyPlaying(context.Background(), "alice")
	if err != nil {
		t.Fatalf("CurrentlyPlaying: %v", err)
	}
	if np.IsPlaying || np.TrackName != "" {
		t.Errorf("np = %+v; want idle", np)
	}
}

func TestSearchUsers(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if got := r.URL.Query().Get("query"); got != "sigur rós" {
			t.Errorf("query = %q", got)
		}
		w.Write([]byte(`[{"id":"u1","display_name":"Sigur","avatar_url":null}]`))
	})

	users, err := client.SearchUsers(context.Background(), "")
	if err != nil || len(users) != 0 {
		t.Fatalf("SearchUsers(\"\") = %v, %v", users, err)
	}
	if calls.Load() != 0 {
		t.Fatalf("empty query hit the backend")
	}

	users, err = client.SearchUsers(context.Background(), "sigur rós")
	if err != nil {
		t.Fatalf("SearchUsers: %v", err)
	}
	if len(users) != 1 || users[0].ID != "u1" {
		t.Errorf("users = %+v", users)
	}
}

func TestAuthCallback(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/auth/callback" {
			t.Errorf("got %s %s", r.Method, r.URL.Path)
		}
		var req models.AuthRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Code != "abc" || req.CustomURL != "alice" {
			t.Errorf("req = %+v", req)
		}
		w.Write([]byte(`{"success": true, "user_id": "alice"}`))
	})

	result, err := client.AuthCallback(context.Background(), models.AuthRequest{Code: "abc", CustomURL: "alice"})
	if err != nil {
		t.Fatalf("AuthCallback: %v", err)
	}
	if result.UserID != "alice" {
		t.Errorf("UserID = %q", result.UserID)
	}
}

func TestAuthCallbackNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	if _, err := client.AuthCallback(context.Background(), models.AuthRequest{Code: "x"}); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d; want 1", calls.Load())
	}
}

func TestPathEscaping(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/check-url/a%2Fb" {
			t.Errorf("escaped path = %s", r.URL.EscapedPath())
		}
		w.Write([]byte(`{"available": false, "reason": "Invalid URL format"}`))
	})

	availability, err := client.CheckURL(context.Background(), "a/b")
	if err != nil {
		t.Fatalf("CheckURL: %v", err)
	}
	if availability.Available || availability.Reason == "" {
		t.Errorf("availability = %+v", availability)
	}
}

func TestRetryPolicyWait(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 4 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := DefaultRetryPolicy.wait(tt.attempt); got != tt.want {
			t.Errorf("wait(%d) = %v; want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{Attempts: 5, Multiplier: time.Hour, MinWait: time.Hour}

	calls := 0
	err := policy.Do(ctx, func() error {
		calls++
		cancel()
		return errors.New("transient")
	}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v; want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d; want 1", calls)
	}
}
