package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/desertthunder/songsort/internal/shared"
	"golang.org/x/oauth2"
)

// OAuthTokenProvider hands out access tokens from a saved OAuth token,
// refreshing it through Spotify when it expires.
type OAuthTokenProvider struct {
	source      oauth2.TokenSource
	onRefresh   func(*oauth2.Token) error
	refreshable bool

	mu   sync.Mutex
	last string
}

// NewOAuthTokenProvider wraps token in a refreshing [oauth2.TokenSource].
//
// onRefresh, when set, is called with every token that differs from the previous one
// so it can be saved back to the config file.
func NewOAuthTokenProvider(ctx context.Context, svc *SpotifyService, token *oauth2.Token, onRefresh func(*oauth2.Token) error) (*OAuthTokenProvider, error) {
	if token == nil {
		return nil, fmt.Errorf("%w: run `songsort auth spotify` first", shared.ErrNotAuthenticated)
	}
	if svc.config == nil {
		return nil, fmt.Errorf("%w: oauth client not configured", shared.ErrMissingCredentials)
	}

	return &OAuthTokenProvider{
		source:      oauth2.ReuseTokenSource(token, svc.config.TokenSource(ctx, token)),
		onRefresh:   onRefresh,
		refreshable: token.RefreshToken != "",
		last:        token.AccessToken,
	}, nil
}

// AccessToken returns a valid access token.
func (p *OAuthTokenProvider) AccessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	token, err := p.source.Token()
	if err != nil {
		if !p.refreshable {
			return "", fmt.Errorf("%w: %w: run `songsort auth spotify` again", shared.ErrAuthFailed, shared.ErrNoRefreshToken)
		}
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return "", fmt.Errorf("%w: %w: %v", shared.ErrAuthFailed, shared.ErrRefreshFailed, err)
		}
		return "", fmt.Errorf("%w: token refresh: %v", shared.ErrNetwork, err)
	}

	if token.AccessToken != p.last {
		p.last = token.AccessToken
		if p.onRefresh != nil {
			if err := p.onRefresh(token); err != nil {
				return "", fmt.Errorf("failed to save refreshed token: %w", err)
			}
		}
	}

	return token.AccessToken, nil
}
