// Package services defines the [Service] interface for the remote music
// catalog and implements it for Spotify.
//
// # Service Interface
//
// [Service] covers exactly what the pipelines need: paginated track reads
// (playlists and the saved-tracks library), playlist listing and creation,
// batched track writes, and audio feature lookups. Page reads return the
// collection total with every page, so callers page without a separate
// count call.
//
// # Spotify Implementation
//
// [SpotifyService] uses OAuth2 authorization code flow for authentication.
// The [oauth2] client refreshes expired access tokens transparently when a
// refresh token is present; register a callback with
// [SpotifyService.SetTokenRefreshCallback] to persist refreshed tokens.
//
// Remote failures come back classified for the retry policy:
//   - [shared.ErrNotAuthenticated] : Authenticate() not called
//   - [shared.ErrTokenExpired] : token rejected (401), reauthorization needed
//   - [shared.ErrPlaylistNotFound] : playlist ID not found (404)
//   - [retry.Error] : rate limits (with the Retry-After hint), server faults,
//     network errors, and undecodable payloads
//
// # API Mappings
//
// Provider JSON is converted to the domain types at this layer:
// [SpotifyPlaylist] → [models.Playlist], [SpotifyTrack] → [models.Track]
// (primary artist only, ISRC from external_ids, added_at normalized to UTC).
// Playlist entries without a track id (local files, removed tracks) are
// dropped during mapping and never reach storage.
package services
