// Package backendtest runs an in-process fake of the activity service for
// tests of the packages above the backend client.
package backendtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"tunefeed/models"
)

// Server serves a fixed user, alice, plus whatever tests add. Paths listed
// in Failing answer 503.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	users     map[string]models.User
	playlists map[string]models.PlaylistDetail
	taken     map[string]bool
	failing   map[string]bool
	hits      map[string]int
	authCodes map[string]string
	lastAuth  models.AuthRequest
}

var Alice = models.User{ID: "alice123", CustomURL: "alice", DisplayName: "Alice"}

func NewServer(t *testing.T) *Server {
	t.Helper()
	s := &Server{
		users:     map[string]models.User{"alice": Alice, "alice123": Alice},
		playlists: map[string]models.PlaylistDetail{},
		taken:     map[string]bool{"alice": true},
		failing:   map[string]bool{},
		hits:      map[string]int{},
		authCodes: map[string]string{"good-code": "alice", "id-code": "alice123"},
	}
	s.playlists["Ab3dE"] = models.PlaylistDetail{
		PlaylistName: "Trip hop",
		TotalTracks:  1,
		Owner:        models.PlaylistOwner{DisplayName: "Alice", ProfileURL: "alice"},
		Tracks:       []models.PlaylistTrack{{TrackName: "Teardrop", ArtistName: "Massive Attack", DurationMS: 330000}},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Fail makes path answer 503 until Recover is called.
func (s *Server) Fail(path string) {
	s.mu.Lock()
	s.failing[path] = true
	s.mu.Unlock()
}

func (s *Server) Recover(path string) {
	s.mu.Lock()
	delete(s.failing, path)
	s.mu.Unlock()
}

// Hits reports how many requests reached path.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *Server) LastAuth() models.AuthRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAuth
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	failing := s.failing[r.URL.Path]
	s.mu.Unlock()

	if failing {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": "unavailable"})
		return
	}

	path := r.URL.Path
	switch {
	case path == "/health":
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	case path == "/auth/callback" && r.Method == http.MethodPost:
		s.authCallback(w, r)
	case path == "/users/search":
		s.search(w, r)
	case strings.HasPrefix(path, "/check-url/"):
		s.mu.Lock()
		taken := s.taken[strings.TrimPrefix(path, "/check-url/")]
		s.mu.Unlock()
		if taken {
			writeJSON(w, http.StatusOK, models.URLAvailability{Available: false})
			return
		}
		writeJSON(w, http.StatusOK, models.URLAvailability{Available: true})
	case strings.HasPrefix(path, "/playlists/"):
		s.mu.Lock()
		detail, ok := s.playlists[strings.TrimPrefix(path, "/playlists/")]
		s.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Playlist not found"})
			return
		}
		writeJSON(w, http.StatusOK, detail)
	case strings.HasPrefix(path, "/users/"):
		s.user(w, strings.Split(strings.TrimPrefix(path, "/users/"), "/"))
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not Found"})
	}
}

func (s *Server) user(w http.ResponseWriter, parts []string) {
	s.mu.Lock()
	user, ok := s.users[strings.ToLower(parts[0])]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "User not found"})
		return
	}
	if len(parts) == 1 {
		writeJSON(w, http.StatusOK, user)
		return
	}

	switch parts[1] {
	case "currently-playing":
		writeJSON(w, http.StatusOK, models.NowPlaying{IsPlaying: true, TrackName: "Teardrop", ArtistName: "Massive Attack"})
	case "recent-tracks":
		writeJSON(w, http.StatusOK, []models.RecentTrack{
			{TrackName: "Angel", ArtistName: "Massive Attack", PlayedAt: "2024-05-01T10:00:00Z"},
		})
	case "top-tracks":
		writeJSON(w, http.StatusOK, []models.TopTrack{{TrackName: "Unfinished Sympathy", ArtistName: "Massive Attack"}})
	case "top-artists":
		writeJSON(w, http.StatusOK, []models.TopArtist{{ArtistName: "Portishead"}})
	case "playlists":
		writeJSON(w, http.StatusOK, []models.Playlist{{Name: "Trip hop", URL: "Ab3dE", TotalTracks: 1}})
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not Found"})
	}
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	query := strings.ToLower(r.URL.Query().Get("query"))
	results := []models.UserSummary{}
	s.mu.Lock()
	seen := map[string]bool{}
	for _, u := range s.users {
		if seen[u.ID] {
			continue
		}
		if strings.Contains(strings.ToLower(u.ID), query) || strings.Contains(strings.ToLower(u.DisplayName), query) {
			seen[u.ID] = true
			results = append(results, models.UserSummary{ID: u.ID, DisplayName: u.DisplayName, AvatarURL: u.AvatarURL})
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) authCallback(w http.ResponseWriter, r *http.Request) {
	var req models.AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Code parameter is required"})
		return
	}
	s.mu.Lock()
	s.lastAuth = req
	userID, ok := s.authCodes[req.Code]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "Failed to get token"})
		return
	}
	if req.CustomURL != "" {
		userID = req.CustomURL
	}
	writeJSON(w, http.StatusOK, models.AuthResult{Success: true, UserID: userID})
}
