package tasks

import "fmt"

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
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
	StoreSource
	CreateTarget
	WriteTracks
	FetchFeatures
)

func (p Phase) String() string {
	switch p {
	case FetchSource:
		return "fetch_source"
	case StoreSource:
		return "store_source"
	case CreateTarget:
		return "create_target"
	case WriteTracks:
		return "write_tracks"
	case FetchFeatures:
		return "fetch_features"
	default:
		return ""
	}
}

func fetchSourceUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching tracks from %s...", step, total, name),
	}
}

func fetchPagesUpdate(done, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    done,
		Total:   total,
		Message: fmt.Sprintf("%s: %d/%d tracks", name, done, total),
	}
}

func storeSourceUpdate(step, total int, source string, tracks int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   StoreSource,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Storing %d tracks for %s...", tracks, source),
	}
}

func createTargetUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreateTarget,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Creating playlist: %s", name),
	}
}

func targetCreatedUpdate(step, total int, target CreatedTarget) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreateTarget,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Playlist created: %s (ID: %s)", target.Name, target.ID),
		Data:    target,
	}
}

func writeTracksUpdate(done, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteTracks,
		Step:    done,
		Total:   total,
		Message: fmt.Sprintf("%s: %d/%d tracks added", name, done, total),
	}
}

func featuresUpdate(done, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchFeatures,
		Step:    done,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching audio features...", done, total),
	}
}
