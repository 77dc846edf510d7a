package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Checkpoints CheckpointConfig  `toml:"checkpoints"`
	Fetch       FetchConfig       `toml:"fetch"`
	Write       WriteConfig       `toml:"write"`
	Retry       RetryConfig       `toml:"retry"`
	Server      ServerConfig      `toml:"server"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials and the persisted OAuth token.
type SpotifyConfig struct {
	ClientID     string    `toml:"client_id"`
	ClientSecret string    `toml:"client_secret"`
	RedirectURI  string    `toml:"redirect_uri"`
	AccessToken  string    `toml:"access_token,omitempty"`
	RefreshToken string    `toml:"refresh_token,omitempty"`
	TokenExpiry  time.Time `toml:"token_expiry,omitempty"`
}

// Map returns the credential fields keyed the way [services.NewSpotifyService] expects.
func (s SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
	}
}

// Update copies a freshly issued [oauth2.Token] into the config for persistence.
// The refresh token is retained when the provider omits it from a refresh response.
func (s *SpotifyConfig) Update(token *oauth2.Token) error {
	if token == nil {
		return fmt.Errorf("%w: nil token", ErrInvalidInput)
	}
	s.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		s.RefreshToken = token.RefreshToken
	}
	s.TokenExpiry = token.Expiry
	return nil
}

// Token rebuilds the persisted [oauth2.Token], or nil when no token is stored.
func (s SpotifyConfig) Token() *oauth2.Token {
	if s.AccessToken == "" && s.RefreshToken == "" {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		Expiry:       s.TokenExpiry,
		TokenType:    "Bearer",
	}
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// CheckpointConfig locates the per-job checkpoint files.
type CheckpointConfig struct {
	Dir string `toml:"dir"`
}

// FetchConfig tunes the paginated fetcher. The checkpoint cadence is fixed
// at [pipeline.DefaultSaveEvery] pages and intentionally not configurable.
type FetchConfig struct {
	PageSize int `toml:"page_size"`
}

// WriteConfig tunes the batched writer.
type WriteConfig struct {
	BatchSize     int `toml:"batch_size"`
	PlaylistLimit int `toml:"playlist_limit"`
	PaceMS        int `toml:"pace_ms"`
}

// RetryConfig bounds remote call retries.
type RetryConfig struct {
	MaxAttempts int `toml:"max_attempts"`
}

// ServerConfig contains the OAuth callback listener settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
// Empty Spotify credential fields fall back to the SPOTIFY_CLIENT_ID,
// SPOTIFY_CLIENT_SECRET, and SPOTIFY_REDIRECT_URI environment variables.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	config.applyEnv()
	return &config, nil
}

// SaveConfig writes the configuration back to the specified path as TOML.
func SaveConfig(path string, config *Config) error {
	data, err := toml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	config.applyEnv()
	return &config
}

// CreateConfigFile creates a config file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: config file already exists at %s", ErrInvalidInput, path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnv fills empty credential fields from the environment, so a .env
// file can carry secrets that never land in the config file.
func (c *Config) applyEnv() {
	sp := &c.Credentials.Spotify
	if sp.ClientID == "" {
		sp.ClientID = os.Getenv("SPOTIFY_CLIENT_ID")
	}
	if sp.ClientSecret == "" {
		sp.ClientSecret = os.Getenv("SPOTIFY_CLIENT_SECRET")
	}
	if sp.RedirectURI == "" {
		if uri := os.Getenv("SPOTIFY_REDIRECT_URI"); uri != "" {
			sp.RedirectURI = uri
		}
	}
}
