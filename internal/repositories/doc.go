// Package repositories implements SQLite persistence for run history.
//
// [RunRepository] stores one row per pipeline run in the runs table, with the batches that
// were skipped during the run in skipped_batches. It satisfies tasks.RunRecorder so the
// engine can record reports as runs finish.
//
// The schema is created by shared.RunMigrations. Deleting a run cascades to its skipped
// batches through the foreign key.
package repositories
