package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running job.
//
// Sent to the CLI layer for display; never blocks the orchestration.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	FetchSource Phase = iota
	MatchItems
	Mapping
	Creating
	Migrating
	TransferFiles
	Finished
)

func (p Phase) String() string {
	switch p {
	case FetchSource:
		return "fetch_source"
	case MatchItems:
		return "match_items"
	case Mapping:
		return "mapping"
	case Creating:
		return "creating"
	case Migrating:
		return "migrating"
	case TransferFiles:
		return "transfer_files"
	case Finished:
		return "finished"
	default:
		return ""
	}
}

func fetchSourceUpdate(name string, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetched list %q (%d tasks)", name, count),
	}
}

func matchItemsUpdate(step, total int, taskName string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MatchItems,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s", step, total, taskName),
	}
}

func mappingUpdate(fieldCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Mapping,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Planned %d field mappings", fieldCount),
	}
}

func creatingUpdate(boardName, boardID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Creating,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Board created: %s (ID: %s)", boardName, boardID),
	}
}

func migratingUpdate(step, total int, taskName string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Migrating,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s", step, total, taskName),
	}
}

func transferUpdate(step, total int, fileName string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   TransferFiles,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Uploading %s", step, total, fileName),
	}
}

func finishedUpdate(jobID string, successful, failed, skipped int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Finished,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Job %s finished: %d ok, %d failed, %d skipped", jobID, successful, failed, skipped),
	}
}
