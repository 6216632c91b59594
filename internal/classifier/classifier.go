package classifier

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/songsort/internal/models"
	"github.com/desertthunder/songsort/internal/services"
	"github.com/desertthunder/songsort/internal/shared"
)

const (
	DefaultBatchSize   = 20
	MaxBatchSize       = 50
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 2 * time.Second
	DefaultTemperature = 0.3
	DefaultMaxHints    = 50

	maxRetryDelay = time.Minute
)

// Options tunes a [Classifier]. Zero values take the defaults above.
type Options struct {
	Model       string
	BatchSize   int
	MaxAttempts int
	RetryDelay  time.Duration
	Temperature *float64 // nil means DefaultTemperature
	MaxHints    int
	Sleep       shared.SleepFunc
	Now         func() time.Time
}

func (o Options) withDefaults() Options {
	switch {
	case o.BatchSize <= 0:
		o.BatchSize = DefaultBatchSize
	case o.BatchSize > MaxBatchSize:
		o.BatchSize = MaxBatchSize
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.Temperature == nil {
		t := DefaultTemperature
		o.Temperature = &t
	}
	if o.MaxHints <= 0 {
		o.MaxHints = DefaultMaxHints
	}
	if o.Sleep == nil {
		o.Sleep = shared.Sleep
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// BatchResult holds the outcome of one classified batch.
type BatchResult struct {
	Assignments map[string]models.Assignment
	Malformed   []string
}

// Classifier turns batches of tracks into category assignments.
type Classifier struct {
	llm     services.Completer
	opts    Options
	backoff shared.Backoff
	logger  *log.Logger
}

// New creates a Classifier that sends prompts through llm.
func New(llm services.Completer, opts Options, logger *log.Logger) *Classifier {
	opts = opts.withDefaults()
	return &Classifier{
		llm:  llm,
		opts: opts,
		backoff: shared.Backoff{
			Attempts: opts.MaxAttempts,
			Base:     opts.RetryDelay,
			Max:      maxRetryDelay,
			Sleep:    opts.Sleep,
			Logger:   logger,
		},
		logger: logger,
	}
}

// Model returns the model identifier sent with every request.
func (c *Classifier) Model() string {
	return c.opts.Model
}

// BatchSize returns the effective batch size after defaults and clamping.
func (c *Classifier) BatchSize() int {
	return c.opts.BatchSize
}

// Batches splits tracks into consecutive batches of at most BatchSize, preserving order.
func (c *Classifier) Batches(tracks []models.Track) [][]models.Track {
	var batches [][]models.Track
	for start := 0; start < len(tracks); start += c.opts.BatchSize {
		end := min(start+c.opts.BatchSize, len(tracks))
		batches = append(batches, tracks[start:end])
	}
	return batches
}

// ClassifyBatch sends one prompt for batch and parses the reply.
//
// Request failures are retried for the whole batch. When attempts run out, or the failure
// cannot be retried, the returned error wraps [shared.ErrBatchSkipped] and the cause.
// A canceled context is returned as is.
func (c *Classifier) ClassifyBatch(ctx context.Context, batch []models.Track, hints []string) (BatchResult, error) {
	result := BatchResult{Assignments: make(map[string]models.Assignment, len(batch))}
	if len(batch) == 0 {
		return result, nil
	}

	req := services.CompletionRequest{
		Model:       c.opts.Model,
		System:      SystemPrompt,
		Prompt:      BuildPrompt(batch, hints, c.opts.MaxHints),
		Temperature: *c.opts.Temperature,
	}

	var reply string
	err := c.backoff.Retry(ctx, "classify batch", func(attempt int) error {
		var err error
		reply, err = c.llm.Complete(ctx, req)
		return err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		return result, fmt.Errorf("%w: %w", shared.ErrBatchSkipped, err)
	}

	now := c.opts.Now().UTC()
	for _, r := range Parse(reply, batch) {
		if r.Status != StatusOK {
			c.logger.Debug("malformed entry", "track", r.ID, "reason", r.Reason)
			result.Malformed = append(result.Malformed, r.ID)
			continue
		}

		a := r.Assignment
		a.Model = c.opts.Model
		a.AssignedAt = now
		result.Assignments[r.ID] = a
	}

	return result, nil
}
