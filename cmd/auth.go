package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/andrsj/spotify-playlist-merger/internal/server"
	"github.com/andrsj/spotify-playlist-merger/internal/services"
	"github.com/andrsj/spotify-playlist-merger/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// AuthLogin runs the OAuth2 authorization code flow for Spotify.
//
// Starts a local HTTP callback server, opens the browser for user
// authorization, exchanges the code for tokens, and persists them to the
// config file.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	config := r.config
	if configPath != defaultConfigPath {
		loaded, err := shared.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		config = loaded
	}

	if config.Credentials.Spotify.ClientID == "" || config.Credentials.Spotify.ClientSecret == "" {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in %s or the environment", shared.ErrMissingCredentials, configPath)
	}

	spotifyService, err := services.NewSpotifyService(config.Credentials.Spotify.Map())
	if err != nil {
		return fmt.Errorf("failed to create Spotify service: %w", err)
	}

	token, err := r.doOAuth(ctx, config, spotifyService, "authorization")
	if err != nil {
		return err
	}

	if err := spotifyService.Authenticate(ctx, token); err != nil {
		return fmt.Errorf("failed to install token: %w", err)
	}

	if err := config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}

	if err := shared.SaveConfig(configPath, config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	r.config = config
	r.spotify = spotifyService

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n\n", configPath)
	r.writePlain("You can now run: merger playlists\n")

	return nil
}

// AuthStatus verifies the stored token by fetching the Spotify profile.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	if r.spotify == nil {
		return fmt.Errorf("%w: Spotify service not initialized (set credentials, then run 'merger auth login')", shared.ErrServiceUnavailable)
	}

	if r.config.Credentials.Spotify.Token() == nil {
		r.writePlain("✗ Not authenticated. Run 'merger auth login' first.\n")
		return nil
	}

	r.logger.Info("checking auth status")

	user, err := r.spotify.CurrentUser(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrTokenExpired) {
			r.writePlain("✗ Access token expired. Run 'merger auth login' to reauthorize.\n")
			return nil
		}
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if useJSON {
		return r.writeJSON(user, pretty)
	}

	r.writePlain("✓ Authenticated as %s (%s)\n", user.DisplayName, user.ID)
	if expiry := r.config.Credentials.Spotify.TokenExpiry; !expiry.IsZero() {
		r.writePlain("  Access token expires %s\n", expiry.Local().Format(time.RFC1123))
	}

	return nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
// and exchanges the delivered code for a token.
func (r *Runner) doOAuth(ctx context.Context, config *shared.Config, oauthSrv services.OAuthService, prefix string) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL := oauthSrv.GetAuthURL(state)
	oauthHandler := server.NewOAuthHandler(state)
	router := server.NewRouter()
	router.Handler(oauthHandler)

	serverAddr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth callback server for %s at %v", prefix, serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for Spotify %s...\n", prefix)
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(2 * time.Minute)
	defer timeout.Stop()

	var result server.CallbackResult

	select {
	case result = <-oauthHandler.Result():
		// Got the callback
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, result.Error())
	}

	token, err := oauthSrv.GetOAuthConfig().Exchange(ctx, result.Code)
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange failed: %v", shared.ErrAuthFailed, err)
	}

	return token, nil
}

// handleAuthError checks whether err is a token expiration and runs the
// reauthorization flow. Returns true when the caller should retry its
// operation once.
func (r *Runner) handleAuthError(ctx context.Context, err error, cmd *cli.Command) (bool, error) {
	if err == nil {
		return false, nil
	}

	if !errors.Is(err, shared.ErrTokenExpired) {
		return false, err
	}

	r.writePlainln("⚠ Access token expired. Starting reauthorization...")

	configPath := cmd.String("config")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	oauthSrv, ok := r.spotify.(services.OAuthService)
	if !ok {
		return true, fmt.Errorf("%w: service does not support reauthorization", shared.ErrAuthFailed)
	}

	token, err := r.doOAuth(ctx, r.config, oauthSrv, "reauthorization")
	if err != nil {
		return true, fmt.Errorf("reauthorization failed: %w", err)
	}

	if err := oauthSrv.Authenticate(ctx, token); err != nil {
		return true, fmt.Errorf("failed to authenticate with new tokens: %w", err)
	}

	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return true, fmt.Errorf("failed to update spotify configuration: %w", err)
	}

	if err := shared.SaveConfig(configPath, r.config); err != nil {
		return true, fmt.Errorf("failed to save config: %w", err)
	}

	r.writePlainln("✓ Reauthorized. Retrying operation...")

	return true, nil
}
