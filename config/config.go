package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type ConfigStruct struct {
	Backend  BackendConfig  `toml:"backend"`
	Spotify  SpotifyConfig  `toml:"spotify"`
	Database DatabaseConfig `toml:"database"`
	Session  SessionConfig  `toml:"session"`
	Options  Options        `toml:"options"`
	Sentry   SentryConfig   `toml:"sentry"`
}

type BackendConfig struct {
	BaseURL           string  `toml:"base_url"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	CacheTTLMinutes   int     `toml:"cache_ttl_minutes"`
}

type SpotifyConfig struct {
	ClientID    string `toml:"client_id"`
	RedirectURI string `toml:"redirect_uri"`
	ShowDialog  bool   `toml:"show_dialog"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type SessionConfig struct {
	CookieName   string `toml:"cookie_name"`
	CookieSecure bool   `toml:"cookie_secure"`
	TTLHours     int    `toml:"ttl_hours"`
	HistoryLimit int    `toml:"history_limit"`
}

type Options struct {
	Port     string `toml:"port"`
	LogLevel string `toml:"log_level"`
	Release  string `toml:"release"`
}

type SentryConfig struct {
	DSN string `toml:"dsn"`
}

func (b *BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSeconds) * time.Second
}

func (b *BackendConfig) CacheTTL() time.Duration {
	return time.Duration(b.CacheTTLMinutes) * time.Minute
}

func (s *SessionConfig) TTL() time.Duration {
	return time.Duration(s.TTLHours) * time.Hour
}

func (s *SentryConfig) IsEnabled() bool {
	return s.DSN != ""
}

var Config *ConfigStruct

// NewConfig builds the global config. Values from the TOML file at path (if
// any) are applied first and environment variables override them.
func NewConfig(path string) error {
	config := &ConfigStruct{}
	if path != "" {
		if err := loadFile(path, config); err != nil {
			return err
		}
	}

	config.Backend.BaseURL = strings.TrimRight(getString("BACKEND_URL", config.Backend.BaseURL, "http://localhost:8000"), "/")
	config.Backend.TimeoutSeconds = getBackendTimeout(config.Backend.TimeoutSeconds)
	config.Backend.RequestsPerSecond = getRequestsPerSecond(config.Backend.RequestsPerSecond)
	config.Backend.CacheTTLMinutes = getCacheTTL(config.Backend.CacheTTLMinutes)

	config.Spotify.ClientID = getString("SPOTIFY_CLIENT_ID", config.Spotify.ClientID, "")
	config.Spotify.RedirectURI = getString("SPOTIFY_REDIRECT_URI", config.Spotify.RedirectURI, "http://localhost:8080/callback")
	config.Spotify.ShowDialog = getBool("SPOTIFY_SHOW_DIALOG", config.Spotify.ShowDialog)

	config.Database.Path = getString("DB_PATH", config.Database.Path, "/app/data/tunefeed.db")

	config.Session.CookieName = getString("SESSION_COOKIE", config.Session.CookieName, "tunefeed_session")
	config.Session.CookieSecure = getBool("SESSION_COOKIE_SECURE", config.Session.CookieSecure)
	config.Session.TTLHours = getSessionTTL(config.Session.TTLHours)
	config.Session.HistoryLimit = getHistoryLimit(config.Session.HistoryLimit)

	config.Options.Port = getString("PORT", config.Options.Port, "8080")
	config.Options.LogLevel = getString("LOG_LEVEL", config.Options.LogLevel, "info")
	config.Options.Release = getString("RELEASE", config.Options.Release, "")

	config.Sentry.DSN = getString("SENTRY_DSN", config.Sentry.DSN, "")

	Config = config
	return nil
}

func loadFile(path string, config *ConfigStruct) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := toml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func getString(env, fromFile, fallback string) string {
	if v := os.Getenv(env); v != "" {
		return v
	}
	if fromFile != "" {
		return fromFile
	}
	return fallback
}

func getBool(env string, fromFile bool) bool {
	v := os.Getenv(env)
	if v == "" {
		return fromFile
	}
	return v == "true"
}

// getInt reads env, falling back to fromFile and then def. Non-positive
// values are treated as unset.
func getInt(env string, fromFile, def int) int {
	if s := os.Getenv(env); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
		return def
	}
	if fromFile > 0 {
		return fromFile
	}
	return def
}

func getBackendTimeout(fromFile int) int {
	timeout := getInt("BACKEND_TIMEOUT_SECONDS", fromFile, 10)
	if timeout > 60 {
		return 60
	}
	return timeout
}

func getRequestsPerSecond(fromFile float64) float64 {
	if s := os.Getenv("BACKEND_RPS"); s != "" {
		rps, err := strconv.ParseFloat(s, 64)
		if err != nil || rps <= 0 {
			return 20
		}
		return rps
	}
	if fromFile > 0 {
		return fromFile
	}
	return 20
}

func getCacheTTL(fromFile int) int {
	ttl := getInt("CACHE_TTL_MINUTES", fromFile, 1)
	if ttl > 60 {
		return 60 // data older than an hour is not worth showing as "recent"
	}
	return ttl
}

func getSessionTTL(fromFile int) int {
	return getInt("SESSION_TTL_HOURS", fromFile, 24*30)
}

func getHistoryLimit(fromFile int) int {
	limit := getInt("SESSION_HISTORY_LIMIT", fromFile, 50)
	if limit > 500 {
		return 500
	}
	return limit
}
