package tasks

import (
	"fmt"

	"github.com/desertthunder/lbx/internal/shared"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchReferences Phase = iota
	ResolveRecordings
	MatchTracks
	PlanPlaylist
	ReconcilePlaylist
	Completed
)

func (p Phase) String() string {
	switch p {
	case FetchReferences:
		return "fetch_references"
	case ResolveRecordings:
		return "resolve_recordings"
	case MatchTracks:
		return "match_tracks"
	case PlanPlaylist:
		return "plan_playlist"
	case ReconcilePlaylist:
		return "reconcile_playlist"
	case Completed:
		return "completed"
	default:
		return ""
	}
}

func fetchReferencesUpdate(source string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchReferences,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Fetching %s from ListenBrainz...", source),
	}
}

func foundReferencesUpdate(source string, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchReferences,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d recordings in %s", count, source),
	}
}

func resolveUpdate(total int, strategy ResolveStrategy) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveRecordings,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Resolving %d recordings (%s)...", total, strategy),
	}
}

func resolvedUpdate(c Counts) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveRecordings,
		Step:    c.Attempted,
		Total:   c.Attempted,
		Message: fmt.Sprintf("Resolved %d of %d recordings", c.Succeeded, c.Attempted),
		Data:    c,
	}
}

func matchUpdate(step, total int, res ArtistResolution) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MatchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s - %s", step, total, res.ArtistName, shared.Truncate(res.TrackTitle, 60)),
	}
}

func planUpdate(name string, plan Plan) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PlanPlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Playlist %q: %s (%s)", name, plan.Strategy, plan.Reason),
		Data:    plan,
	}
}

func reconcileUpdate(name string, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReconcilePlaylist,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Reconciling playlist %q with %d tracks...", name, total),
	}
}

func completedUpdate(result *RunResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Completed,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Playlist %q: %d added, %d skipped", result.Playlist, result.Report.Added, result.Report.Skipped),
		Data:    result,
	}
}
