// Package services implements the HTTP collaborators of the categorization pipeline.
//
// # Interfaces
//
// The pipeline depends only on three small interfaces:
//   - [TokenProvider] : yields a bearer token for Spotify
//   - [LikedLister] : pages through the user's liked songs
//   - [Completer] : sends one prompt to an LLM and returns the raw reply
//
// # Spotify
//
// [SpotifyService] lists /me/tracks and drives the OAuth2 authorization code flow.
// [OAuthTokenProvider] wraps a saved token in an [oauth2.TokenSource] that refreshes it
// and reports new tokens so they can be written back to config.toml.
//
// # LLM
//
// [OpenAIService] posts to /chat/completions on any OpenAI-compatible base URL.
//
// # Error Handling
//
// Non-2xx responses are mapped onto the shared taxonomy:
//   - 429 : [*shared.RateLimitError] carrying the Retry-After wait
//   - 401, 403 : [shared.ErrTokenExpired] / [shared.ErrAuthFailed] (fatal)
//   - 404 or model_not_found : [shared.ErrInvalidModel] (LLM only)
//   - 5xx : [shared.ErrServiceUnavailable]
//   - transport failures : [shared.ErrNetwork]
package services
