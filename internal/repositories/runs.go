package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/songsort/internal/models"
)

// RunRepository persists [models.Report] values.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `
	id, started_at, finished_at, model, fetched, new_songs, queued, classified,
	malformed, skipped, batches, failed_batches, unclassified, categories, error
`

// Record inserts a finished run and its skipped batches in one transaction.
func (r *RunRepository) Record(ctx context.Context, report *models.Report) error {
	if report == nil || report.RunID == "" {
		return fmt.Errorf("cannot record a run without an ID")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.RunID,
		report.StartedAt.UTC(),
		nullTime(report.FinishedAt),
		report.Model,
		report.Fetched,
		report.NewSongs,
		report.Queued,
		report.Classified,
		report.Malformed,
		report.Skipped,
		report.Batches,
		report.FailedBatches,
		report.Unclassified,
		report.Categories,
		report.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, b := range report.SkippedBatches {
		ids, err := json.Marshal(b.TrackIDs)
		if err != nil {
			return fmt.Errorf("failed to encode track IDs: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO skipped_batches (run_id, batch, track_ids, reason) VALUES (?, ?, ?, ?)",
			report.RunID, b.Batch, string(ids), b.Reason,
		)
		if err != nil {
			return fmt.Errorf("failed to insert skipped batch %d: %w", b.Batch, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// Get retrieves a run by ID together with its skipped batches.
func (r *RunRepository) Get(ctx context.Context, id string) (*models.Report, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	report, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	batches, err := r.skippedBatches(ctx, id)
	if err != nil {
		return nil, err
	}
	report.SkippedBatches = batches
	return report, nil
}

// List returns the most recent runs first. A limit of zero or less returns every run.
//
// Skipped batches are not loaded; use Get for the full record.
func (r *RunRepository) List(ctx context.Context, limit int) ([]*models.Report, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY started_at DESC, id"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var reports []*models.Report
	for rows.Next() {
		report, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return reports, nil
}

// Delete removes a run and, by cascade, its skipped batches.
func (r *RunRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return checkAffected(result, "run", id)
}

// Prune deletes runs that started before cutoff and returns how many were removed.
func (r *RunRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM runs WHERE started_at < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n, nil
}

func (r *RunRepository) skippedBatches(ctx context.Context, runID string) ([]models.SkippedBatch, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT batch, track_ids, reason FROM skipped_batches WHERE run_id = ? ORDER BY batch", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query skipped batches: %w", err)
	}
	defer rows.Close()

	var batches []models.SkippedBatch
	for rows.Next() {
		var (
			b   models.SkippedBatch
			ids string
		)
		if err := rows.Scan(&b.Batch, &ids, &b.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan skipped batch: %w", err)
		}
		if err := json.Unmarshal([]byte(ids), &b.TrackIDs); err != nil {
			return nil, fmt.Errorf("failed to decode track IDs for batch %d: %w", b.Batch, err)
		}
		batches = append(batches, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return batches, nil
}

// scanRun scans a runs row selected with runColumns.
func scanRun(row scanner) (*models.Report, error) {
	var (
		report     models.Report
		startedAt  time.Time
		finishedAt sql.NullTime
	)

	err := row.Scan(
		&report.RunID, &startedAt, &finishedAt, &report.Model,
		&report.Fetched, &report.NewSongs, &report.Queued, &report.Classified,
		&report.Malformed, &report.Skipped, &report.Batches, &report.FailedBatches,
		&report.Unclassified, &report.Categories, &report.Error,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	report.StartedAt = startedAt.UTC()
	report.FinishedAt = timeOrZero(finishedAt)
	return &report, nil
}
