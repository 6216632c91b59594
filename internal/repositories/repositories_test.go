package repositories

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/desertthunder/songsort/internal/models"
	"github.com/desertthunder/songsort/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	shared.ConfigureDatabase(db, 1, 1)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func newReport(id string, started time.Time) *models.Report {
	return &models.Report{
		RunID:         id,
		StartedAt:     started,
		FinishedAt:    started.Add(90 * time.Second),
		Model:         "gpt-4o-mini",
		Fetched:       120,
		NewSongs:      5,
		Queued:        7,
		Classified:    5,
		Malformed:     0,
		Skipped:       2,
		Batches:       2,
		FailedBatches: 1,
		Unclassified:  2,
		Categories:    14,
		SkippedBatches: []models.SkippedBatch{
			{Batch: 2, TrackIDs: []string{"a", "b"}, Reason: "batch skipped: service unavailable"},
		},
	}
}

func TestRunRepository(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Record And Get", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		report := newReport("run-1", base)

		if err := repo.Record(ctx, report); err != nil {
			t.Fatalf("failed to record run: %v", err)
		}

		got, err := repo.Get(ctx, "run-1")
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}

		if !got.StartedAt.Equal(report.StartedAt) || !got.FinishedAt.Equal(report.FinishedAt) {
			t.Errorf("timestamps = %v / %v, want %v / %v", got.StartedAt, got.FinishedAt, report.StartedAt, report.FinishedAt)
		}
		if got.Classified != 5 || got.FailedBatches != 1 || got.Categories != 14 || got.Model != "gpt-4o-mini" {
			t.Errorf("unexpected counters %+v", got)
		}
		if !reflect.DeepEqual(got.SkippedBatches, report.SkippedBatches) {
			t.Errorf("skipped batches = %+v, want %+v", got.SkippedBatches, report.SkippedBatches)
		}
	})

	t.Run("Failed Run Without Finish Time", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		report := &models.Report{RunID: "run-f", StartedAt: base, Error: "authentication failed"}

		if err := repo.Record(ctx, report); err != nil {
			t.Fatalf("failed to record run: %v", err)
		}

		got, err := repo.Get(ctx, "run-f")
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if !got.FinishedAt.IsZero() {
			t.Errorf("expected zero finish time, got %v", got.FinishedAt)
		}
		if got.Status() != "failed" || len(got.SkippedBatches) != 0 {
			t.Errorf("unexpected run %+v", got)
		}
	})

	t.Run("List Newest First", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		for i, id := range []string{"old", "mid", "new"} {
			if err := repo.Record(ctx, newReport(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
				t.Fatalf("failed to record %s: %v", id, err)
			}
		}

		all, err := repo.List(ctx, 0)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		var ids []string
		for _, r := range all {
			ids = append(ids, r.RunID)
		}
		if !reflect.DeepEqual(ids, []string{"new", "mid", "old"}) {
			t.Errorf("List() order = %v", ids)
		}

		limited, err := repo.List(ctx, 2)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(limited) != 2 {
			t.Errorf("expected 2 runs, got %d", len(limited))
		}
	})

	t.Run("Delete Cascades", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewRunRepository(db)
		if err := repo.Record(ctx, newReport("run-1", base)); err != nil {
			t.Fatalf("failed to record run: %v", err)
		}

		if err := repo.Delete(ctx, "run-1"); err != nil {
			t.Fatalf("failed to delete run: %v", err)
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM skipped_batches").Scan(&count); err != nil {
			t.Fatalf("failed to count skipped batches: %v", err)
		}
		if count != 0 {
			t.Errorf("expected skipped batches to be deleted, got %d", count)
		}
	})

	t.Run("Prune", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		for i, id := range []string{"a", "b", "c"} {
			if err := repo.Record(ctx, newReport(id, base.AddDate(0, 0, i))); err != nil {
				t.Fatalf("failed to record %s: %v", id, err)
			}
		}

		n, err := repo.Prune(ctx, base.AddDate(0, 0, 2))
		if err != nil {
			t.Fatalf("failed to prune: %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2 pruned runs, got %d", n)
		}
		if _, err := repo.Get(ctx, "c"); err != nil {
			t.Errorf("newest run should survive: %v", err)
		}
	})
}

func TestRunRepositoryErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("Get", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			repo := NewRunRepository(setupTestDB(t))

			_, err := repo.Get(ctx, "nonexistent")
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	})

	t.Run("Record", func(t *testing.T) {
		t.Run("MissingID", func(t *testing.T) {
			repo := NewRunRepository(setupTestDB(t))
			if err := repo.Record(ctx, &models.Report{}); err == nil {
				t.Fatal("expected error for report without ID")
			}
		})

		t.Run("Duplicate", func(t *testing.T) {
			repo := NewRunRepository(setupTestDB(t))
			report := newReport("run-1", time.Now().UTC())
			if err := repo.Record(ctx, report); err != nil {
				t.Fatalf("failed to record run: %v", err)
			}
			if err := repo.Record(ctx, report); err == nil {
				t.Fatal("expected error when recording the same run twice")
			}
		})

		t.Run("ClosedDatabase", func(t *testing.T) {
			db := setupTestDB(t)
			repo := NewRunRepository(db)
			db.Close()

			if err := repo.Record(ctx, newReport("run-1", time.Now().UTC())); err == nil {
				t.Fatal("expected error with closed database")
			}
		})
	})

	t.Run("Delete", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			repo := NewRunRepository(setupTestDB(t))
			if err := repo.Delete(ctx, "nonexistent"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	})
}
