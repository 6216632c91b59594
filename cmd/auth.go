package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/songsort/internal/server"
	"github.com/desertthunder/songsort/internal/services"
	"github.com/desertthunder/songsort/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultAuthTimeout = 2 * time.Minute

// AuthSpotify performs the OAuth2 authorization code flow for Spotify.
//
// Starts a local HTTP server at the redirect URI, opens the browser for user authorization,
// and saves the exchanged tokens to the config file.
func (r *Runner) AuthSpotify(ctx context.Context, cmd *cli.Command) error {
	spotify := r.config.Credentials.Spotify
	if spotify.ClientID == "" || spotify.ClientSecret == "" {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in %s", shared.ErrMissingCredentials, r.configPath)
	}

	svc, err := services.NewSpotifyService(spotify.Map())
	if err != nil {
		return fmt.Errorf("failed to create Spotify service: %w", err)
	}

	state, err := shared.GenerateState()
	if err != nil {
		return fmt.Errorf("failed to generate state token: %w", err)
	}

	redirect := svc.OAuthConfig().RedirectURL
	handler := server.NewOAuthHandler(svc, state, server.CallbackPath(redirect))
	addr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	srv := server.NewCallbackServer(addr, handler, r.logger)
	if err := srv.Start(); err != nil {
		return err
	}

	authURL := svc.GetAuthURL(state)
	if cmd.Bool("no-browser") {
		r.writePlain("Open this URL in your browser:\n%s\n\n", authURL)
	} else {
		r.writePlain("→ Opening browser for Spotify authorization...\n")
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warn("failed to open browser automatically", "error", err)
			r.writePlain("⚠ Could not open browser automatically.\nPlease open this URL in your browser:\n%s\n\n", authURL)
		}
	}

	timeout := cmd.Duration("timeout")
	r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)

	token, err := srv.Wait(ctx, timeout)
	if err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}

	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	r.writePlain("\n✓ Authorization successful\n")
	r.writePlain("✓ Tokens saved to %s\n\n", r.configPath)
	r.writePlain("You can now use: songsort run\n")
	return nil
}

// AuthStatus reports which credentials are present without contacting any service.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	spotify := r.config.Credentials.Spotify
	llm := r.config.Credentials.LLM

	check := func(ok bool) string {
		if ok {
			return "✓"
		}
		return "✗"
	}

	r.writePlain("Config: %s\n\n", r.configPath)
	r.writePlain("%s Spotify client credentials\n", check(spotify.ClientID != "" && spotify.ClientSecret != ""))

	token := spotify.Token()
	switch {
	case token == nil:
		r.writePlain("✗ Spotify token (run `songsort auth spotify`)\n")
	case token.RefreshToken == "":
		r.writePlain("✓ Spotify access token (no refresh token; it will not be renewed)\n")
	case !token.Expiry.IsZero():
		r.writePlain("✓ Spotify token (expires %s, refreshed automatically)\n", token.Expiry.Local().Format(time.RFC1123))
	default:
		r.writePlain("✓ Spotify token\n")
	}

	r.writePlain("%s LLM API key\n", check(llm.APIKey != ""))
	r.writePlain("  LLM model: %s\n", llm.Model)
	r.writePlain("  LLM endpoint: %s\n", llm.BaseURL)
	return nil
}
