package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetBackendTimeout(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want int
	}{
		{"empty", "", 10},
		{"invalid", "abc", 10},
		{"zero", "0", 10},
		{"negative", "-1", 10},
		{"valid", "5", 5},
		{"max", "60", 60},
		{"over", "61", 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("BACKEND_TIMEOUT_SECONDS", tt.env)
			if got := getBackendTimeout(0); got != tt.want {
				t.Errorf("getBackendTimeout() = %d; want %d", got, tt.want)
			}
		})
	}
}

func TestGetCacheTTL(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		fromFile int
		want     int
	}{
		{"empty", "", 0, 1},
		{"file", "", 15, 15},
		{"env beats file", "3", 15, 3},
		{"invalid env", "foo", 15, 1},
		{"over", "120", 0, 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CACHE_TTL_MINUTES", tt.env)
			if got := getCacheTTL(tt.fromFile); got != tt.want {
				t.Errorf("getCacheTTL() = %d; want %d", got, tt.want)
			}
		})
	}
}

func TestGetRequestsPerSecond(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want float64
	}{
		{"empty", "", 20},
		{"invalid", "fast", 20},
		{"negative", "-2", 20},
		{"fraction", "0.5", 0.5},
		{"valid", "100", 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("BACKEND_RPS", tt.env)
			if got := getRequestsPerSecond(0); got != tt.want {
				t.Errorf("getRequestsPerSecond() = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestGetHistoryLimit(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want int
	}{
		{"empty", "", 50},
		{"zero", "0", 50},
		{"min", "1", 1},
		{"max", "500", 500},
		{"over", "501", 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SESSION_HISTORY_LIMIT", tt.env)
			if got := getHistoryLimit(0); got != tt.want {
				t.Errorf("getHistoryLimit() = %d; want %d", got, tt.want)
			}
		})
	}
}

func TestNewConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[backend]
base_url = "https://api.example.com/"
cache_ttl_minutes = 5

[session]
cookie_name = "from_file"
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("BACKEND_URL", "")
	t.Setenv("CACHE_TTL_MINUTES", "")
	t.Setenv("SESSION_COOKIE", "")
	t.Setenv("PORT", "9090")

	if err := NewConfig(path); err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	if Config.Backend.BaseURL != "https://api.example.com" {
		t.Errorf("BaseURL = %q; want trailing slash trimmed", Config.Backend.BaseURL)
	}
	if Config.Backend.CacheTTLMinutes != 5 {
		t.Errorf("CacheTTLMinutes = %d; want 5", Config.Backend.CacheTTLMinutes)
	}
	if Config.Session.CookieName != "from_file" {
		t.Errorf("CookieName = %q; want from_file", Config.Session.CookieName)
	}
	if Config.Options.Port != "9090" {
		t.Errorf("Port = %q; want env override 9090", Config.Options.Port)
	}
}

func TestNewConfigMissingFile(t *testing.T) {
	if err := NewConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
