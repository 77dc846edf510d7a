package main

import (
	"context"
	"os"

	"github.com/andrsj/spotify-playlist-merger/internal/checkpoint"
	"github.com/andrsj/spotify-playlist-merger/internal/repositories"
	"github.com/andrsj/spotify-playlist-merger/internal/services"
	"github.com/andrsj/spotify-playlist-merger/internal/shared"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// defaultConfigPath is where the CLI looks for its configuration unless a
// command's --config flag says otherwise.
const defaultConfigPath = "merger.toml"

func main() {
	godotenv.Load()

	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat(defaultConfigPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(defaultConfigPath); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config, using defaults", "error", err)
		}
	}

	var spotifyService services.Service
	if config.Credentials.Spotify.ClientID != "" && config.Credentials.Spotify.ClientSecret != "" {
		if svc, err := services.NewSpotifyService(config.Credentials.Spotify.Map()); err == nil {
			if token := config.Credentials.Spotify.Token(); token != nil {
				if err := svc.Authenticate(context.Background(), token); err != nil {
					logger.Warn("failed to install saved token", "error", err)
				}
				svc.SetTokenRefreshCallback(func(token *oauth2.Token) {
					if err := config.Credentials.Spotify.Update(token); err != nil {
						return
					}
					if err := shared.SaveConfig(defaultConfigPath, config); err != nil {
						logger.Warn("failed to persist refreshed token", "error", err)
					}
				})
			}
			spotifyService = svc
		}
	}

	// The canonical store only wires up once `merger setup` has created it;
	// until then the merge engine stays nil and commands say so.
	var trackRepo *repositories.TrackRepository
	var featureRepo *repositories.AudioFeatureRepository
	var store *checkpoint.Store
	if _, err := os.Stat(config.Database.Path); err == nil {
		if db, err := shared.NewDatabase(config.Database.Path); err == nil {
			shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
			trackRepo = repositories.NewTrackRepository(db)
			featureRepo = repositories.NewAudioFeatureRepository(db)
			if s, err := checkpoint.NewStore(config.Checkpoints.Dir, logger); err == nil {
				store = s
			}
		} else {
			logger.Warn("failed to open database", "path", config.Database.Path, "error", err)
		}
	}

	runner := NewRunner(RunnerOpts{
		Config:   config,
		Spotify:  spotifyService,
		Tracks:   trackRepo,
		Features: featureRepo,
		Store:    store,
		Logger:   logger,
	})

	app := &cli.Command{
		Name:     "merger",
		Usage:    "Ingest, deduplicate, and merge Spotify playlists",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
