package models

import "time"

// SkippedBatch records a batch whose classification was abandoned.
type SkippedBatch struct {
	Batch    int      `json:"batch"`
	TrackIDs []string `json:"track_ids"`
	Reason   string   `json:"reason"`
}

// Report summarizes one pipeline run.
type Report struct {
	RunID          string         `json:"run_id"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
	Model          string         `json:"model"`
	Fetched        int            `json:"fetched"`
	NewSongs       int            `json:"new_songs"`
	Queued         int            `json:"queued"`
	Classified     int            `json:"classified"`
	Malformed      int            `json:"malformed"`
	Skipped        int            `json:"skipped"`
	Batches        int            `json:"batches"`
	FailedBatches  int            `json:"failed_batches"`
	Unclassified   int            `json:"unclassified"`
	Categories     int            `json:"categories"`
	Error          string         `json:"error,omitempty"`
	SkippedBatches []SkippedBatch `json:"skipped_batches,omitempty"`
}

// Duration returns how long the run took, or zero while it is still running.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failed reports whether the run stopped on a fatal error.
func (r *Report) Failed() bool {
	return r.Error != ""
}

// Status returns a one-word outcome: "failed", "partial" when batches or tracks were left over, or "ok".
func (r *Report) Status() string {
	switch {
	case r.Failed():
		return "failed"
	case r.FailedBatches > 0 || r.Malformed > 0:
		return "partial"
	default:
		return "ok"
	}
}
