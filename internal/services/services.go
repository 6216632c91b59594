package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/songsort/internal/models"
	"github.com/desertthunder/songsort/internal/shared"
)

// TokenProvider supplies a bearer token for the listing endpoint.
//
// Failures are reported as [shared.ErrAuthFailed] and are fatal to a run.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// LikedPage is one page of the user's liked songs.
//
// Items keeps entries without an ID (local files, unavailable tracks) so the
// caller can tell a short page from a full one.
type LikedPage struct {
	Items   []models.Track
	Total   int
	HasMore bool
}

// LikedLister pages through the user's liked songs.
type LikedLister interface {
	ListLiked(ctx context.Context, token string, offset, limit int) (*LikedPage, error)
}

// CompletionRequest is a single-turn chat completion.
type CompletionRequest struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
}

// Completer sends a prompt to an LLM and returns the raw text of the reply.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// StaticTokenProvider returns a fixed access token, as given by SPOTIFY_ACCESS_TOKEN.
type StaticTokenProvider struct {
	Token string
}

func (p StaticTokenProvider) AccessToken(ctx context.Context) (string, error) {
	if p.Token == "" {
		return "", fmt.Errorf("%w: no access token", shared.ErrNotAuthenticated)
	}
	return p.Token, nil
}

// transportError classifies an [http.Client.Do] failure, preferring the context's error when it was canceled.
func transportError(ctx context.Context, service string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %s request failed: %v", shared.ErrNetwork, service, err)
}

// statusError maps a non-2xx response to the shared error taxonomy.
func statusError(service string, resp *http.Response, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &shared.RateLimitError{
			Service:    service,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s returned 401: %s", shared.ErrTokenExpired, service, msg)
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s returned 403: %s", shared.ErrAuthFailed, service, msg)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s returned %d: %s", shared.ErrServiceUnavailable, service, resp.StatusCode, msg)
	default:
		return fmt.Errorf("%w: %s returned %d: %s", shared.ErrAPIRequest, service, resp.StatusCode, msg)
	}
}

// readError drains at most 4KiB of an error body.
func readError(r io.Reader) []byte {
	b, _ := io.ReadAll(io.LimitReader(r, 4096))
	return b
}

// parseRetryAfter reads a Retry-After header given in seconds or as an HTTP date.
//
// Returns zero when the header is missing or unparseable.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
