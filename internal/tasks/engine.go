package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/songsort/internal/classifier"
	"github.com/desertthunder/songsort/internal/models"
	"github.com/desertthunder/songsort/internal/shared"
	"github.com/desertthunder/songsort/internal/store"
	"github.com/desertthunder/songsort/internal/summary"
	"golang.org/x/time/rate"
)

// RunRecorder stores finished run reports. Implemented by repositories.RunRepository.
type RunRecorder interface {
	Record(ctx context.Context, report *models.Report) error
}

// EngineConfig wires an [Engine].
type EngineConfig struct {
	Fetcher     *Fetcher
	Songs       *store.SongStore
	Categories  *store.CategoryStore
	Classifier  *classifier.Classifier
	SummaryPath string

	// Reclassify queues every known song instead of only the uncategorized ones.
	Reclassify bool
	// BatchesPerSecond paces LLM requests; negative disables pacing, zero means one per second.
	BatchesPerSecond float64

	Recorder RunRecorder // optional
	Logger   *log.Logger
	Now      func() time.Time
}

// Engine runs the pipeline:
//
//	FETCH → MERGE_SONGS → COMPUTE_DELTA → CLASSIFY_BATCHES ⇄ MERGE_ASSIGNMENTS → SUMMARIZE → DONE
//
// An empty delta goes straight to SUMMARIZE.
type Engine struct {
	cfg     EngineConfig
	limiter *rate.Limiter
	logger  *log.Logger
	now     func() time.Time
}

// NewEngine creates an Engine from cfg.
func NewEngine(cfg EngineConfig) *Engine {
	rps := cfg.BatchesPerSecond
	if rps == 0 {
		rps = 1
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{cfg: cfg, limiter: newLimiter(rps), logger: cfg.Logger, now: now}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run executes one pipeline run and returns its report.
//
// Fetch failures return before any file is written. A skipped batch is recorded in the
// report and does not fail the run; a rejected LLM credential or model stops further
// batches, still writes the summary, and returns an error. The report is returned
// together with any error.
func (e *Engine) Run(ctx context.Context, progress chan<- ProgressUpdate) (*models.Report, error) {
	report := &models.Report{
		RunID:     shared.GenerateID(),
		StartedAt: e.now().UTC(),
		Model:     e.cfg.Classifier.Model(),
	}
	logger := shared.WithLogger(e.logger, "run", report.RunID[:8])

	fail := func(err error) (*models.Report, error) {
		report.Error = err.Error()
		e.finish(ctx, report, logger)
		return report, err
	}

	e.cfg.Fetcher.OnPage = func(fetched, total int) {
		e.sendProgress(progress, fetchPageUpdate(fetched, total))
	}
	tracks, err := e.cfg.Fetcher.Fetch(ctx)
	if err != nil {
		return fail(err)
	}
	report.Fetched = len(tracks)

	e.sendProgress(progress, mergeSongsUpdate(len(tracks)))
	library, delta, err := e.cfg.Songs.Merge(tracks)
	if err != nil {
		return fail(err)
	}
	report.NewSongs = len(delta)

	assignments, err := e.cfg.Categories.Load()
	if err != nil {
		return fail(err)
	}
	if orphans := store.Orphans(library, assignments); len(orphans) > 0 {
		logger.Warn("dropping categories for unknown songs", "count", len(orphans), "tracks", orphans)
		if assignments, err = e.cfg.Categories.Prune(orphans); err != nil {
			return fail(err)
		}
	}

	queue := store.Unclassified(library, assignments)
	if e.cfg.Reclassify {
		queue = library.IDs()
	}
	report.Queued = len(queue)
	e.sendProgress(progress, deltaUpdate(len(queue), library.Len()))
	logger.Info("computed delta", "queued", len(queue), "songs", library.Len(), "reclassify", e.cfg.Reclassify)

	var stopped error
	if len(queue) > 0 {
		out, err := e.classify(ctx, library, queue, assignments, report, progress, logger)
		if err != nil {
			return fail(err)
		}
		assignments, stopped = out.assignments, out.stopped
	}

	e.sendProgress(progress, summarizeUpdate())
	s := summary.Build(assignments, library)
	if err := summary.Write(e.cfg.SummaryPath, s); err != nil {
		return fail(err)
	}
	report.Categories = s.TotalCategories
	report.Unclassified = len(store.Unclassified(library, assignments))

	logger.Info("summary written", "path", e.cfg.SummaryPath, "categories", s.TotalCategories, "songs", s.TotalSongs)
	for _, c := range s.Top(15) {
		logger.Debug("top category", "label", c.Label, "songs", c.Count)
	}

	if stopped != nil {
		return fail(fmt.Errorf("classification stopped: %w", stopped))
	}

	e.finish(ctx, report, logger)
	e.sendProgress(progress, doneUpdate(report))
	return report, nil
}

type classifyOutcome struct {
	assignments store.Assignments
	stopped     error // set when a rejected credential or model ended classification early
}

// classify runs every batch of queue, merging results after each one.
//
// The returned error is reserved for failures that end the run at once: cancellation and
// store writes.
func (e *Engine) classify(
	ctx context.Context,
	library *store.Library,
	queue []string,
	assignments store.Assignments,
	report *models.Report,
	progress chan<- ProgressUpdate,
	logger *log.Logger,
) (classifyOutcome, error) {
	batches := e.cfg.Classifier.Batches(library.Lookup(queue))
	report.Batches = len(batches)
	hints := assignments.Labels()

	for i, batch := range batches {
		step := i + 1
		blog := shared.WithLogger(logger, "batch", step)

		if err := e.limiter.Wait(ctx); err != nil {
			return classifyOutcome{assignments: assignments}, err
		}

		e.sendProgress(progress, classifyUpdate(step, len(batches), len(batch)))
		result, err := e.cfg.Classifier.ClassifyBatch(ctx, batch, hints)
		if err != nil {
			if ctx.Err() != nil {
				return classifyOutcome{assignments: assignments}, err
			}

			e.skip(report, step, batch, err)
			e.sendProgress(progress, skippedUpdate(step, len(batches), err))
			blog.Warn("batch skipped", "songs", len(batch), "error", err)

			if shared.IsFatal(err) || errors.Is(err, shared.ErrInvalidModel) {
				for j := i + 1; j < len(batches); j++ {
					e.skip(report, j+1, batches[j], err)
				}
				return classifyOutcome{assignments: assignments, stopped: err}, nil
			}
			continue
		}

		updates := make(store.Assignments, len(result.Assignments))
		for id, a := range result.Assignments {
			if library.Has(id) {
				updates[id] = a
			}
		}

		merged, err := e.cfg.Categories.Merge(updates)
		if err != nil {
			return classifyOutcome{assignments: assignments}, err
		}
		assignments = merged

		report.Classified += len(updates)
		report.Malformed += len(result.Malformed)
		if len(result.Malformed) > 0 {
			blog.Warn("unparseable entries left uncategorized", "tracks", result.Malformed)
		}
		e.sendProgress(progress, mergedUpdate(step, len(batches), len(updates), len(result.Malformed)))
		hints = assignments.Labels()
	}

	return classifyOutcome{assignments: assignments}, nil
}

func (e *Engine) skip(report *models.Report, step int, batch []models.Track, err error) {
	ids := make([]string, len(batch))
	for i, t := range batch {
		ids[i] = t.ID
	}
	report.FailedBatches++
	report.Skipped += len(batch)
	report.SkippedBatches = append(report.SkippedBatches, models.SkippedBatch{Batch: step, TrackIDs: ids, Reason: err.Error()})
}

// finish stamps the report and hands it to the recorder. Recording failures are only logged.
func (e *Engine) finish(ctx context.Context, report *models.Report, logger *log.Logger) {
	report.FinishedAt = e.now().UTC()
	if e.cfg.Recorder == nil {
		return
	}
	if err := e.cfg.Recorder.Record(context.WithoutCancel(ctx), report); err != nil {
		logger.Warn("failed to record run", "error", err)
	}
}
