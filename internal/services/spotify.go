// Spotify API implementation of [Service]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/andrsj/spotify-playlist-merger/internal/models"
	"github.com/andrsj/spotify-playlist-merger/internal/retry"
	"github.com/andrsj/spotify-playlist-merger/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// MaxWriteBatch is the largest track batch the playlist write endpoint accepts.
	MaxWriteBatch = 100

	// MaxFeaturesBatch is the largest id list the audio features endpoint accepts.
	MaxFeaturesBatch = 100

	// MaxPlaylistTracksPage is the largest page the playlist tracks endpoint serves.
	MaxPlaylistTracksPage = 100

	// MaxSavedTracksPage is the largest page the saved tracks endpoint serves.
	MaxSavedTracksPage = 50
)

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type externalIDs struct {
	ISRC string `json:"isrc"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	Album       SpotifyAlbum    `json:"album"`
	DurationMS  int             `json:"duration_ms"`
	Explicit    bool            `json:"explicit"`
	ExternalIDs externalIDs     `json:"external_ids"`
	Popularity  int             `json:"popularity"`
	URI         string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	ReleaseDate string         `json:"release_date"`
	TotalTracks int            `json:"total_tracks"`
	Images      []SpotifyImage `json:"images"`
	URI         string         `json:"uri"`
}

// Owner identifies the account a playlist belongs to.
type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type playlistTracks struct {
	Total int `json:"total"`
}

// SpotifyPlaylist represents a Spotify playlist.
type SpotifyPlaylist struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Owner       Owner          `json:"owner"`
	Public      bool           `json:"public"`
	Tracks      playlistTracks `json:"tracks"`
	Images      []SpotifyImage `json:"images"`
	URI         string         `json:"uri"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
type SpotifyPlaylistTrack struct {
	AddedAt string       `json:"added_at"`
	IsLocal bool         `json:"is_local"`
	Track   SpotifyTrack `json:"track"`
}

// SpotifyPaginatedPlaylistTracks represents one page of a playlist's tracks.
type SpotifyPaginatedPlaylistTracks struct {
	Items  []SpotifyPlaylistTrack `json:"items"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
	Next   *string                `json:"next"`
}

// SpotifySavedTrack represents a track saved in the user's library.
type SpotifySavedTrack struct {
	AddedAt string       `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
}

// SpotifyPaginatedSavedTracks represents one page of the user's saved tracks.
type SpotifyPaginatedSavedTracks struct {
	Items  []SpotifySavedTrack `json:"items"`
	Total  int                 `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
	Next   *string             `json:"next"`
}

type simplePlaylistTracks struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Owner       Owner                `json:"owner"`
	Public      bool                 `json:"public"`
	Tracks      simplePlaylistTracks `json:"tracks"`
	URI         string               `json:"uri"`
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items  []SpotifySimplePlaylist `json:"items"`
	Total  int                     `json:"total"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
	Next   *string                 `json:"next"`
}

// SpotifyAudioFeatures represents the audio analysis summary of a track.
type SpotifyAudioFeatures struct {
	ID               string  `json:"id"`
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Key              int     `json:"key"`
	Loudness         float64 `json:"loudness"`
	Mode             int     `json:"mode"`
	Speechiness      float64 `json:"speechiness"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
	Liveness         float64 `json:"liveness"`
	Valence          float64 `json:"valence"`
	Tempo            float64 `json:"tempo"`
	DurationMS       int     `json:"duration_ms"`
	TimeSignature    int     `json:"time_signature"`
}

// SpotifyService implements the [Service] interface for Spotify API interactions.
// Uses [oauth2] for authentication and provides methods for playlist and track operations.
type SpotifyService struct {
	config     *oauth2.Config
	token      *oauth2.Token
	httpClient *http.Client
	baseURL    string

	mu             sync.Mutex
	userID         string
	onTokenRefresh func(*oauth2.Token)
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://127.0.0.1:8080/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"playlist-read-private",
			"playlist-read-collaborative",
			"playlist-modify-public",
			"playlist-modify-private",
			"user-library-read",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:     config,
		httpClient: http.DefaultClient,
		baseURL:    spotifyBaseURL,
	}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// GetOAuthConfig returns the OAuth2 config for the callback server's code exchange.
func (s *SpotifyService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// Authenticate installs token and builds an HTTP client that attaches and
// refreshes it automatically. Refreshed tokens are reported through the
// callback registered with [SpotifyService.SetTokenRefreshCallback].
func (s *SpotifyService) Authenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || (token.AccessToken == "" && token.RefreshToken == "") {
		return fmt.Errorf("%w: no token to install", shared.ErrNotAuthenticated)
	}

	s.token = token
	source := &refreshableTokenSource{
		source:   s.config.TokenSource(ctx, token),
		callback: s.notifyTokenRefresh,
	}
	s.httpClient = oauth2.NewClient(ctx, source)
	return nil
}

// SetTokenRefreshCallback registers fn to be invoked whenever the underlying
// token source hands out a new access token, so callers can persist it.
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTokenRefresh = fn
}

func (s *SpotifyService) notifyTokenRefresh(token *oauth2.Token) {
	s.mu.Lock()
	fn := s.onTokenRefresh
	s.mu.Unlock()
	s.token = token
	if fn != nil {
		fn(token)
	}
}

// refreshableTokenSource wraps an [oauth2.TokenSource] and reports every token
// change to a callback.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)

	mu   sync.Mutex
	last *oauth2.Token
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	changed := r.last == nil || r.last.AccessToken != token.AccessToken
	r.last = token
	r.mu.Unlock()

	if changed && r.callback != nil {
		r.callback(token)
	}
	return token, nil
}

// doRequest performs an authenticated request against the Spotify API,
// classifying failures for the retry policy. A JSON-encodable body may be
// passed for POST endpoints; result, when non-nil, receives the decoded
// response.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	if s.token == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &retry.Error{Class: retry.ClassTransient, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: status 401 from %s", shared.ErrTokenExpired, endpoint)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, endpoint)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		apiErr := &retry.Error{
			Class:  retry.ClassifyStatus(resp.StatusCode),
			Status: resp.StatusCode,
			Err:    fmt.Errorf("%w: %s %s returned %d", shared.ErrAPIRequest, method, endpoint, resp.StatusCode),
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			apiErr.RetryAfter = parseRetryAfter(resp.Header)
		}
		return apiErr
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return &retry.Error{Class: retry.ClassData, Err: fmt.Errorf("failed to decode response: %w", err)}
		}
	}
	return nil
}

// parseRetryAfter reads the Retry-After header in seconds. Zero means the
// header was absent or unparsable and the policy's default applies.
func parseRetryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// CurrentUser retrieves the current authenticated user's profile.
func (s *SpotifyService) CurrentUser(ctx context.Context) (*models.User, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &models.User{ID: user.ID, DisplayName: user.DisplayName}, nil
}

// GetPlaylist retrieves a playlist's metadata by ID.
func (s *SpotifyService) GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	var sp SpotifyPlaylist
	endpoint := fmt.Sprintf("/playlists/%s", url.PathEscape(playlistID))
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &sp); err != nil {
		return nil, err
	}
	pl := mapPlaylist(sp)
	return &pl, nil
}

// GetPlaylists retrieves all playlists on the authenticated user's account.
func (s *SpotifyService) GetPlaylists(ctx context.Context) ([]models.Playlist, error) {
	var all []models.Playlist
	limit := 50
	offset := 0

	for {
		endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", limit, offset)
		var page SpotifyPaginatedPlaylists
		if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}

		for _, sp := range page.Items {
			all = append(all, models.Playlist{
				ID:          sp.ID,
				Name:        sp.Name,
				Description: sp.Description,
				TrackCount:  sp.Tracks.Total,
				Public:      sp.Public,
				Owner:       ownerName(sp.Owner),
			})
		}

		if page.Next == nil {
			break
		}
		offset += limit
	}

	return all, nil
}

// PlaylistTracksPage reads one page of a playlist's tracks. Local files and
// entries the catalog no longer resolves (missing track id) are dropped here,
// before anything downstream sees them.
func (s *SpotifyService) PlaylistTracksPage(ctx context.Context, playlistID string, offset, limit int) (*models.TrackPage, error) {
	if limit <= 0 || limit > MaxPlaylistTracksPage {
		limit = MaxPlaylistTracksPage
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks?offset=%d&limit=%d", url.PathEscape(playlistID), offset, limit)
	var page SpotifyPaginatedPlaylistTracks
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
		return nil, err
	}

	out := &models.TrackPage{Total: page.Total}
	for _, item := range page.Items {
		if item.Track.ID == "" {
			continue
		}
		out.Items = append(out.Items, mapTrack(item.Track, item.AddedAt))
	}
	return out, nil
}

// SavedTracksPage reads one page of the user's saved tracks.
func (s *SpotifyService) SavedTracksPage(ctx context.Context, offset, limit int) (*models.TrackPage, error) {
	if limit <= 0 || limit > MaxSavedTracksPage {
		limit = MaxSavedTracksPage
	}

	endpoint := fmt.Sprintf("/me/tracks?offset=%d&limit=%d", offset, limit)
	var page SpotifyPaginatedSavedTracks
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
		return nil, err
	}

	out := &models.TrackPage{Total: page.Total}
	for _, item := range page.Items {
		if item.Track.ID == "" {
			continue
		}
		out.Items = append(out.Items, mapTrack(item.Track, item.AddedAt))
	}
	return out, nil
}

// CreatePlaylist creates a new private playlist under the current user.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, name, description string) (*models.Playlist, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: playlist name required", shared.ErrInvalidArgument)
	}

	userID, err := s.currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"name":        name,
		"description": description,
		"public":      false,
	}

	var sp SpotifyPlaylist
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(userID))
	if err := s.doRequest(ctx, http.MethodPost, endpoint, body, &sp); err != nil {
		return nil, err
	}
	pl := mapPlaylist(sp)
	return &pl, nil
}

// AddPlaylistTracks appends up to [MaxWriteBatch] track URIs to a playlist.
func (s *SpotifyService) AddPlaylistTracks(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) == 0 {
		return fmt.Errorf("%w: no track URIs provided", shared.ErrInvalidArgument)
	}
	if len(uris) > MaxWriteBatch {
		return fmt.Errorf("%w: %d URIs exceeds the %d per-call maximum", shared.ErrInvalidArgument, len(uris), MaxWriteBatch)
	}

	body := map[string]any{"uris": uris}
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	return s.doRequest(ctx, http.MethodPost, endpoint, body, nil)
}

// AudioFeatures retrieves audio feature summaries for up to
// [MaxFeaturesBatch] tracks. Tracks without analysis come back null from the
// API and are omitted here.
func (s *SpotifyService) AudioFeatures(ctx context.Context, trackIDs []string) ([]models.AudioFeatures, error) {
	if len(trackIDs) == 0 {
		return nil, fmt.Errorf("%w: no track IDs provided", shared.ErrInvalidArgument)
	}
	if len(trackIDs) > MaxFeaturesBatch {
		return nil, fmt.Errorf("%w: %d IDs exceeds the %d per-call maximum", shared.ErrInvalidArgument, len(trackIDs), MaxFeaturesBatch)
	}

	endpoint := fmt.Sprintf("/audio-features?ids=%s", url.QueryEscape(strings.Join(trackIDs, ",")))

	var response struct {
		AudioFeatures []*SpotifyAudioFeatures `json:"audio_features"`
	}
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	out := make([]models.AudioFeatures, 0, len(response.AudioFeatures))
	for _, f := range response.AudioFeatures {
		if f == nil || f.ID == "" {
			continue
		}
		out = append(out, models.AudioFeatures{
			TrackID:          f.ID,
			Danceability:     f.Danceability,
			Energy:           f.Energy,
			Key:              f.Key,
			Loudness:         f.Loudness,
			Mode:             f.Mode,
			Speechiness:      f.Speechiness,
			Acousticness:     f.Acousticness,
			Instrumentalness: f.Instrumentalness,
			Liveness:         f.Liveness,
			Valence:          f.Valence,
			Tempo:            f.Tempo,
			DurationMS:       f.DurationMS,
			TimeSignature:    f.TimeSignature,
		})
	}
	return out, nil
}

// currentUserID resolves and caches the authenticated user's id.
func (s *SpotifyService) currentUserID(ctx context.Context) (string, error) {
	s.mu.Lock()
	cached := s.userID
	s.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	user, err := s.CurrentUser(ctx)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.userID = user.ID
	s.mu.Unlock()
	return user.ID, nil
}

func mapPlaylist(sp SpotifyPlaylist) models.Playlist {
	return models.Playlist{
		ID:          sp.ID,
		Name:        sp.Name,
		Description: sp.Description,
		TrackCount:  sp.Tracks.Total,
		Public:      sp.Public,
		Owner:       ownerName(sp.Owner),
	}
}

func ownerName(o Owner) string {
	if o.DisplayName != "" {
		return o.DisplayName
	}
	return o.ID
}

func mapTrack(st SpotifyTrack, addedAt string) models.Track {
	t := models.Track{
		ID:          st.ID,
		Name:        st.Name,
		Album:       st.Album.Name,
		AlbumID:     st.Album.ID,
		ReleaseDate: st.Album.ReleaseDate,
		DurationMS:  st.DurationMS,
		Popularity:  st.Popularity,
		Explicit:    st.Explicit,
		ISRC:        st.ExternalIDs.ISRC,
	}
	if len(st.Artists) > 0 {
		t.Artist = st.Artists[0].Name
		t.ArtistID = st.Artists[0].ID
	}
	if ts, err := time.Parse(time.RFC3339, addedAt); err == nil {
		t.AddedAt = ts.UTC()
	}
	return t
}
