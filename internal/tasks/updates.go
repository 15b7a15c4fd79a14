package tasks

import "fmt"

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Current int    // Items finished so far within phase
	Total   int    // Total items in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchBasics Phase = iota
	FetchList
	FetchDetail
	FetchDone
)

func (p Phase) String() string {
	switch p {
	case FetchBasics:
		return "fetch_basics"
	case FetchList:
		return "fetch_list"
	case FetchDetail:
		return "fetch_detail"
	case FetchDone:
		return "fetch_done"
	default:
		return ""
	}
}

func basicsUpdate(step, total int, op basicOperation) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchBasics,
		Current: step,
		Total:   total,
		Message: op.message,
	}
}

func listingUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchList,
		Message: "Fetching dataset list...",
	}
}

func listedUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchList,
		Current: 1,
		Total:   1,
		Message: fmt.Sprintf("Found %d datasets", count),
	}
}

func detailCompletedUpdate(step, total int, id string, skipped bool) ProgressUpdate {
	mark := "✓"
	if skipped {
		mark = "="
	}
	return ProgressUpdate{
		Phase:   FetchDetail,
		Current: step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s", step, total, mark, id),
	}
}

func detailFailedUpdate(step, total int, id string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchDetail,
		Current: step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, id, err),
	}
}

func doneUpdate(res *FetchResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchDone,
		Current: res.Total,
		Total:   res.Total,
		Message: fmt.Sprintf("Fetched %d, skipped %d, failed %d", res.Fetched, res.Skipped, res.Failed),
		Data:    res,
	}
}
