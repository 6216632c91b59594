package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/songsort/internal/models"
	"github.com/desertthunder/songsort/internal/services"
	"github.com/desertthunder/songsort/internal/shared"
	"golang.org/x/time/rate"
)

const (
	DefaultPageSize    = 50
	defaultFetchRPS    = 10.0
	defaultFetchTries  = 3
	defaultFetchDelay  = time.Second
	maxFetchRetryDelay = 30 * time.Second
)

// FetcherOptions tunes liked-songs paging. Zero values take the defaults.
type FetcherOptions struct {
	PageSize          int
	MaxAttempts       int
	RetryDelay        time.Duration
	RequestsPerSecond float64 // negative disables pacing
	Sleep             shared.SleepFunc
}

// Fetcher pages through the user's liked songs.
type Fetcher struct {
	tokens  services.TokenProvider
	lister  services.LikedLister
	opts    FetcherOptions
	limiter *rate.Limiter
	backoff shared.Backoff
	logger  *log.Logger

	// OnPage, when set, is called after every page with the running count.
	OnPage func(fetched, total int)
}

// NewFetcher creates a Fetcher that asks tokens for a bearer token before each page request.
func NewFetcher(tokens services.TokenProvider, lister services.LikedLister, opts FetcherOptions, logger *log.Logger) *Fetcher {
	if opts.PageSize <= 0 || opts.PageSize > services.MaxPageSize {
		opts.PageSize = DefaultPageSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultFetchTries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultFetchDelay
	}
	if opts.RequestsPerSecond == 0 {
		opts.RequestsPerSecond = defaultFetchRPS
	}

	return &Fetcher{
		tokens:  tokens,
		lister:  lister,
		opts:    opts,
		limiter: newLimiter(opts.RequestsPerSecond),
		backoff: shared.Backoff{
			Attempts: opts.MaxAttempts,
			Base:     opts.RetryDelay,
			Max:      maxFetchRetryDelay,
			Sleep:    opts.Sleep,
			Logger:   logger,
		},
		logger: logger,
	}
}

// newLimiter returns a limiter allowing rps events per second, or an unlimited one when rps < 0.
func newLimiter(rps float64) *rate.Limiter {
	if rps < 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// Fetch returns every liked song in listing order.
//
// Paging stops at the first short page or when the provider reports no more items.
// Items without an ID are skipped. A track listed twice keeps its first position and
// the attributes of its last listing. Authentication failures are returned at once.
func (f *Fetcher) Fetch(ctx context.Context) ([]models.Track, error) {
	var (
		order   []string
		byID    = make(map[string]models.Track)
		offset  int
		skipped int
	)

	for {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		var page *services.LikedPage
		err := f.backoff.Retry(ctx, "fetch liked songs", func(attempt int) error {
			token, err := f.tokens.AccessToken(ctx)
			if err != nil {
				return err
			}
			page, err = f.lister.ListLiked(ctx, token, offset, f.opts.PageSize)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch liked songs at offset %d: %w", offset, err)
		}

		for _, item := range page.Items {
			if item.ID == "" {
				skipped++
				f.logger.Warn("skipping track without ID", "name", item.Name, "offset", offset)
				continue
			}
			if _, seen := byID[item.ID]; !seen {
				order = append(order, item.ID)
			}
			byID[item.ID] = item
		}

		offset += len(page.Items)
		f.logger.Debug("fetched page", "offset", offset, "total", page.Total)
		if f.OnPage != nil {
			f.OnPage(len(order), page.Total)
		}

		if len(page.Items) < f.opts.PageSize || !page.HasMore {
			break
		}
	}

	tracks := make([]models.Track, 0, len(order))
	for _, id := range order {
		tracks = append(tracks, byID[id])
	}

	f.logger.Info("fetched liked songs", "songs", len(tracks), "skipped", skipped)
	return tracks, nil
}
