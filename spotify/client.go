package spotify

import (
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"
	spotifyclient "github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"tunefeed/config"
)

// Scopes the backend needs to read listening activity and playlists.
var Scopes = []string{
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopeUserReadRecentlyPlayed,
	spotifyauth.ScopeUserReadCurrentlyPlaying,
	spotifyauth.ScopeUserTopRead,
	spotifyauth.ScopePlaylistReadPrivate,
}

// Authorizer builds links to Spotify's consent screen. The code Spotify
// redirects back with is exchanged by the backend, not here.
type Authorizer struct {
	auth        *spotifyauth.Authenticator
	redirectURI string
	showDialog  bool
}

func NewAuthorizer(cfg config.SpotifyConfig) *Authorizer {
	if cfg.ClientID == "" {
		log.Warn("SPOTIFY_CLIENT_ID is not set; login links will be rejected by Spotify")
	}
	return &Authorizer{
		auth: spotifyauth.New(
			spotifyauth.WithClientID(cfg.ClientID),
			spotifyauth.WithRedirectURL(cfg.RedirectURI),
			spotifyauth.WithScopes(Scopes...),
		),
		redirectURI: cfg.RedirectURI,
		showDialog:  cfg.ShowDialog,
	}
}

func (a *Authorizer) AuthURL(state string) string {
	if a.showDialog {
		return a.auth.AuthURL(state, oauth2.SetAuthURLParam("show_dialog", "true"))
	}
	return a.auth.AuthURL(state)
}

func (a *Authorizer) RedirectURI() string {
	return a.redirectURI
}

type SpotifyRequest struct {
	UserID     spotifyclient.ID
	TrackID    spotifyclient.ID
	PlaylistID spotifyclient.ID
	ArtistID   spotifyclient.ID
	AlbumID    spotifyclient.ID
}

// ParseSpotifyURL extracts the id from an open.spotify.com link. Unknown
// resource kinds return an empty request without error.
func ParseSpotifyURL(url string) (SpotifyRequest, error) {
	if strings.HasPrefix(url, "https://open.spotify.com/") {
		parts := strings.Split(url, "/")
		if len(parts) < 5 {
			log.Warnf("Invalid Spotify URL format (too few parts): %s", url)
			return SpotifyRequest{}, errors.New("invalid Spotify URL")
		}

		// Localised links look like /intl-de/track/<id>
		if strings.HasPrefix(parts[3], "intl-") {
			parts = append(parts[:3], parts[4:]...)
			if len(parts) < 5 {
				return SpotifyRequest{}, errors.New("invalid Spotify URL")
			}
		}

		request := SpotifyRequest{}

		// Strip query parameters from ID (e.g., ?si=tracking_id)
		id := spotifyclient.ID(strings.Split(parts[4], "?")[0])

		switch parts[3] {
		case "user":
			request.UserID = id
		case "playlist":
			request.PlaylistID = id
		case "artist":
			request.ArtistID = id
		case "track":
			request.TrackID = id
		case "album":
			request.AlbumID = id
		}
		log.Tracef("Parsed Spotify %s URL: %s", parts[3], id)

		return request, nil
	}

	return SpotifyRequest{}, errors.New("invalid Spotify URL")
}
