// Spotify implementation of [LikedLister] and the OAuth authorization code flow
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/desertthunder/songsort/internal/models"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// DefaultRedirectURI matches the callback server's default address.
	DefaultRedirectURI = "http://localhost:8888/callback"

	// MaxPageSize is the largest page /me/tracks accepts.
	MaxPageSize = 50
)

// SpotifyArtist represents a simplified Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyAlbum represents a simplified Spotify album.
type SpotifyAlbum struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	Popularity int             `json:"popularity"`
	URI        string          `json:"uri"`
}

// SpotifySavedTrack represents a track saved in the user's library.
//
// Track is nil for items Spotify can no longer resolve.
type SpotifySavedTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPaginatedTracks represents a paginated response of saved tracks.
type SpotifyPaginatedTracks struct {
	Items  []SpotifySavedTrack `json:"items"`
	Total  int                 `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
	Next   *string             `json:"next"`
}

// ToTrack converts a saved track into the stored record.
func (s SpotifySavedTrack) ToTrack() models.Track {
	if s.Track == nil {
		return models.Track{}
	}

	artists := make([]string, 0, len(s.Track.Artists))
	for _, a := range s.Track.Artists {
		artists = append(artists, a.Name)
	}

	t := models.NewTrack(s.Track.ID, s.Track.Name, artists, s.Track.Album.Name, s.Track.URI)
	t.Popularity = s.Track.Popularity
	t.DurationMS = s.Track.DurationMS
	t.AddedAt = s.AddedAt
	if s.Track.Album.ReleaseDate != "" {
		t.ReleaseDate = s.Track.Album.ReleaseDate
	}
	return t
}

// SpotifyService lists liked songs and drives the OAuth authorization code flow.
type SpotifyService struct {
	config     *oauth2.Config
	httpClient *http.Client
	baseURL    string
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("missing client_id in credentials")
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("missing client_secret in credentials")
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = DefaultRedirectURI
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       []string{"user-library-read"},
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

// NewSpotifyLister returns a service that can only list liked songs with an externally supplied token.
func NewSpotifyLister() *SpotifyService {
	return &SpotifyService{httpClient: http.DefaultClient, baseURL: spotifyBaseURL}
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// OAuthConfig returns the OAuth2 configuration, or nil for a listing-only service.
func (s *SpotifyService) OAuthConfig() *oauth2.Config {
	return s.config
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return token, nil
}

// ListLiked fetches one page of the user's saved tracks from /me/tracks.
func (s *SpotifyService) ListLiked(ctx context.Context, token string, offset, limit int) (*LikedPage, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var response SpotifyPaginatedTracks
	if err := s.doRequest(ctx, token, "/me/tracks?"+q.Encode(), &response); err != nil {
		return nil, err
	}

	page := &LikedPage{
		Items:   make([]models.Track, 0, len(response.Items)),
		Total:   response.Total,
		HasMore: response.Next != nil,
	}
	for _, item := range response.Items {
		page.Items = append(page.Items, item.ToTrack())
	}
	return page, nil
}

// doRequest performs an authenticated GET against the Spotify Web API.
func (s *SpotifyService) doRequest(ctx context.Context, token, endpoint string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return transportError(ctx, "spotify", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError("spotify", resp, readError(resp.Body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
