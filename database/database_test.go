package database

import (
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSessionLifecycle(t *testing.T) {
	db := newTestDB(t)

	if rec, err := db.GetSession("missing"); err != nil || rec != nil {
		t.Fatalf("GetSession(missing) = %v, %v; want nil, nil", rec, err)
	}

	if err := db.SaveSession("tok", "alice", time.Now()); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	rec, err := db.GetSession("tok")
	if err != nil || rec == nil {
		t.Fatalf("GetSession = %v, %v", rec, err)
	}
	if rec.UserID != "alice" {
		t.Errorf("UserID = %q; want alice", rec.UserID)
	}
	if time.Since(rec.CreatedAt) > time.Minute {
		t.Errorf("CreatedAt = %v; want recent", rec.CreatedAt)
	}

	if err := db.SaveSession("tok", "bob", time.Now()); err != nil {
		t.Fatalf("SaveSession overwrite: %v", err)
	}
	rec, _ = db.GetSession("tok")
	if rec.UserID != "bob" {
		t.Errorf("UserID after overwrite = %q; want bob", rec.UserID)
	}

	if err := db.DeleteSession("tok"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if rec, _ := db.GetSession("tok"); rec != nil {
		t.Errorf("session still present after delete: %+v", rec)
	}
}

func TestPruneSessions(t *testing.T) {
	db := newTestDB(t)

	db.SaveSession("old", "alice", time.Now().Add(-48*time.Hour))
	db.SaveSession("new", "bob", time.Now().Add(-48*time.Hour))
	if err := db.TouchSession("new", time.Now()); err != nil {
		t.Fatalf("TouchSession: %v", err)
	}

	n, err := db.PruneSessions(time.Now().Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("PruneSessions: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d; want 1", n)
	}
	if rec, _ := db.GetSession("old"); rec != nil {
		t.Error("old session survived prune")
	}
	if rec, _ := db.GetSession("new"); rec == nil {
		t.Error("new session was pruned")
	}
}

func TestConcurrentWrites(t *testing.T) {
	db := newTestDB(t)

	kinds := []string{"user", "recent-tracks", "top-tracks", "top-artists", "playlists"}
	errs := make(chan error, len(kinds)*10)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		for _, kind := range kinds {
			wg.Add(1)
			go func(kind string) {
				defer wg.Done()
				errs <- db.PutResponse("alice", kind, []byte(`[]`))
			}(kind)
		}
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("PutResponse: %v", err)
		}
	}
	for _, kind := range kinds {
		if r, _ := db.GetResponse("alice", kind); r == nil {
			t.Errorf("%s row missing", kind)
		}
	}
}

func TestResponseCacheLastWriteWins(t *testing.T) {
	db := newTestDB(t)

	if r, err := db.GetResponse("alice", "top-tracks"); err != nil || r != nil {
		t.Fatalf("GetResponse on empty cache = %v, %v", r, err)
	}

	db.PutResponse("alice", "top-tracks", []byte(`[1]`))
	db.PutResponse("alice", "top-tracks", []byte(`[2]`))
	db.PutResponse("alice", "playlists", []byte(`[3]`))

	r, err := db.GetResponse("alice", "top-tracks")
	if err != nil || r == nil {
		t.Fatalf("GetResponse = %v, %v", r, err)
	}
	if string(r.Body) != `[2]` {
		t.Errorf("Body = %s; want [2]", r.Body)
	}

	if err := db.DeleteResponses("alice"); err != nil {
		t.Fatalf("DeleteResponses: %v", err)
	}
	if r, _ := db.GetResponse("alice", "playlists"); r != nil {
		t.Error("cache entry survived DeleteResponses")
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"2024-05-01T10:00:00.123456789Z", false},
		{"2024-05-01T10:00:00Z", false},
		{"2024-05-01 10:00:00", false},
		{"2024-05-01 10:00:00.5 +0000 UTC", false},
		{"yesterday", true},
	}
	for _, tt := range tests {
		if _, err := parseTime(tt.in); (err != nil) != tt.wantErr {
			t.Errorf("parseTime(%q) err = %v; wantErr %v", tt.in, err, tt.wantErr)
		}
	}
}
