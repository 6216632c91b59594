package tasks

import (
	"fmt"

	"github.com/desertthunder/songsort/internal/models"
)

// ProgressUpdate represents a progress event during a pipeline run.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Pipeline phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Pipeline phase enumeration
type Phase int

const (
	Fetch Phase = iota
	MergeSongs
	ComputeDelta
	ClassifyBatches
	MergeAssignments
	Summarize
	Done
)

func (p Phase) String() string {
	switch p {
	case Fetch:
		return "fetch"
	case MergeSongs:
		return "merge_songs"
	case ComputeDelta:
		return "compute_delta"
	case ClassifyBatches:
		return "classify_batches"
	case MergeAssignments:
		return "merge_assignments"
	case Summarize:
		return "summarize"
	case Done:
		return "done"
	default:
		return ""
	}
}

func fetchPageUpdate(fetched, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Fetch,
		Step:    fetched,
		Total:   total,
		Message: fmt.Sprintf("Fetched %d songs so far...", fetched),
	}
}

func mergeSongsUpdate(fetched int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MergeSongs,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Merging %d fetched songs into the library...", fetched),
	}
}

func deltaUpdate(queued, known int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ComputeDelta,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d uncategorized songs out of %d total", queued, known),
	}
}

func classifyUpdate(step, total, size int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ClassifyBatches,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Categorizing %d songs...", step, total, size),
	}
}

func mergedUpdate(step, total, classified, malformed int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MergeAssignments,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %d categorized, %d unparseable", step, total, classified, malformed),
	}
}

func skippedUpdate(step, total int, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ClassifyBatches,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ batch skipped: %v", step, total, err),
	}
}

func summarizeUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   Summarize,
		Step:    1,
		Total:   1,
		Message: "Generating categorization summary...",
	}
}

func doneUpdate(report *models.Report) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Done,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Done: %d new songs, %d categorized, %d still uncategorized", report.NewSongs, report.Classified, report.Unclassified),
		Data:    report,
	}
}
