package services

import (
	"context"

	"github.com/andrsj/spotify-playlist-merger/internal/models"
	"golang.org/x/oauth2"
)

// Service defines the remote catalog operations the ingestion and merge
// pipelines are built on: paginated reads of track collections, playlist
// lookups, and batched playlist writes.
type Service interface {
	// CurrentUser retrieves the authenticated user's profile.
	CurrentUser(ctx context.Context) (*models.User, error)

	// GetPlaylist retrieves a playlist's metadata by ID.
	GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error)

	// GetPlaylists retrieves all playlists on the authenticated user's account.
	GetPlaylists(ctx context.Context) ([]models.Playlist, error)

	// PlaylistTracksPage reads one page of a playlist's tracks. Every page
	// carries the playlist's reported track total.
	PlaylistTracksPage(ctx context.Context, playlistID string, offset, limit int) (*models.TrackPage, error)

	// SavedTracksPage reads one page of the user's saved tracks.
	SavedTracksPage(ctx context.Context, offset, limit int) (*models.TrackPage, error)

	// CreatePlaylist creates a new private playlist under the user's account.
	CreatePlaylist(ctx context.Context, name, description string) (*models.Playlist, error)

	// AddPlaylistTracks appends up to 100 track URIs to a playlist.
	AddPlaylistTracks(ctx context.Context, playlistID string, uris []string) error

	// AudioFeatures retrieves audio feature summaries for up to 100 tracks.
	// Tracks the catalog has no analysis for are omitted from the result.
	AudioFeatures(ctx context.Context, trackIDs []string) ([]models.AudioFeatures, error)

	// Name returns the service display name (e.g. "Spotify").
	Name() string
}

// OAuthService extends [Service] for providers authenticating with the OAuth2
// authorization code flow.
type OAuthService interface {
	Service

	// GetAuthURL returns the provider's authorization URL for user login.
	// The state token should be cryptographically random for CSRF protection.
	GetAuthURL(state string) string

	// GetOAuthConfig returns the OAuth2 config the callback server exchanges
	// authorization codes with.
	GetOAuthConfig() *oauth2.Config

	// Authenticate installs a previously issued token. When the token carries
	// a refresh token, expired access tokens are refreshed transparently.
	Authenticate(ctx context.Context, token *oauth2.Token) error
}
