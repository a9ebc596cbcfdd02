package models

// Field names follow the backend's JSON payloads.

type User struct {
	ID          string `json:"id"`
	CustomURL   string `json:"custom_url"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// Slug is the path segment used for the user's profile page.
func (u User) Slug() string {
	if u.CustomURL != "" {
		return u.CustomURL
	}
	return u.ID
}

type UserSummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

type NowPlaying struct {
	IsPlaying  bool   `json:"is_playing"`
	TrackName  string `json:"track_name,omitempty"`
	ArtistName string `json:"artist_name,omitempty"`
	AlbumArt   string `json:"album_art,omitempty"`
}

type RecentTrack struct {
	TrackName  string `json:"track_name"`
	ArtistName string `json:"artist_name"`
	PlayedAt   string `json:"played_at"`
	AlbumArt   string `json:"album_art"`
}

type TopTrack struct {
	TrackName  string `json:"track_name"`
	ArtistName string `json:"artist_name"`
	AlbumName  string `json:"album_name"`
	AlbumArt   string `json:"album_art"`
	Popularity int    `json:"popularity"`
}

type TopArtist struct {
	ArtistName  string `json:"artist_name"`
	ArtistImage string `json:"artist_image"`
	Popularity  int    `json:"popularity"`
}

type Playlist struct {
	Name        string `json:"name"`
	CoverImage  string `json:"cover_image"`
	URL         string `json:"url"`
	TotalTracks int    `json:"total_tracks"`
}

type PlaylistOwner struct {
	DisplayName string `json:"display_name"`
	ProfileURL  string `json:"profile_url"`
}

type PlaylistTrack struct {
	TrackName  string `json:"track_name"`
	ArtistName string `json:"artist_name"`
	AlbumName  string `json:"album_name"`
	AlbumArt   string `json:"album_art"`
	DurationMS int    `json:"duration"`
}

type PlaylistDetail struct {
	PlaylistName string          `json:"playlist_name"`
	CoverImage   string          `json:"cover_image"`
	TotalTracks  int             `json:"total_tracks"`
	SpotifyURL   string          `json:"spotify_url"`
	Owner        PlaylistOwner   `json:"owner"`
	Tracks       []PlaylistTrack `json:"tracks"`
}

type URLAvailability struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

type AuthRequest struct {
	Code        string `json:"code"`
	CustomURL   string `json:"custom_url,omitempty"`
	RedirectURI string `json:"redirect_uri,omitempty"`
}

type AuthResult struct {
	Success bool   `json:"success"`
	UserID  string `json:"user_id"`
}

// Activity is everything the dashboard and profile pages show for one user.
// A nil slice with a non-nil entry in Errors means that section failed.
// Stale marks sections served from the response cache after a failed fetch.
type Activity struct {
	User         User
	NowPlaying   *NowPlaying
	RecentTracks []RecentTrack
	TopTracks    []TopTrack
	TopArtists   []TopArtist
	Playlists    []Playlist
	Errors       map[string]error
	Stale        map[string]bool
}
