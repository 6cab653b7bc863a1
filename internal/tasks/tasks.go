package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/lbx/internal/services"
)

// ArtistResolution is the catalog view of one recording reference.
//
// Empty strings are null values. Err records why a reference did not resolve.
type ArtistResolution struct {
	Ref        string // Recording reference (MBID)
	ArtistID   string // Artist MBID of the first credit
	ArtistName string // Credited artist name
	TrackTitle string // Recording title
	Err        error  // Lookup failure, nil when resolved
}

// Resolved reports whether the reference resolved to an artist.
func (r ArtistResolution) Resolved() bool {
	return r.ArtistID != ""
}

// Resolutions maps each distinct recording reference to its resolution.
type Resolutions map[string]ArtistResolution

// Counts tallies the resolutions.
func (r Resolutions) Counts() Counts {
	c := Counts{Attempted: len(r)}
	for _, res := range r {
		if res.Resolved() {
			c.Succeeded++
		}
	}
	c.Failed = c.Attempted - c.Succeeded
	return c
}

// MatchResult pairs a resolution with the library item it matched.
//
// ItemID is empty when no candidate cleared the minimum score; Score then holds the best score seen.
type MatchResult struct {
	Resolution ArtistResolution
	ItemID     string
	Score      int
	Track      services.LibraryTrack // Best candidate seen, set even when below threshold
}

// Matched reports whether the result carries a library item.
func (m MatchResult) Matched() bool {
	return m.ItemID != ""
}

// Counts reports attempted/succeeded/failed items for one stage.
type Counts struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Rate returns the success rate as a percentage.
func (c Counts) Rate() float64 {
	if c.Attempted == 0 {
		return 0
	}
	return float64(c.Succeeded) / float64(c.Attempted) * 100
}

func (c Counts) String() string {
	return fmt.Sprintf("%d/%d (%d failed)", c.Succeeded, c.Attempted, c.Failed)
}

// Report summarizes one pass through the pipeline.
type Report struct {
	Lookup     ResolveStrategy `json:"lookup"`
	Resolution Counts          `json:"resolution"`
	Match      Counts          `json:"match"`
	Write      Counts          `json:"write"`
	Added      int             `json:"added"`   // Members written to the playlist
	Skipped    int             `json:"skipped"` // References that did not reach the desired set
}

// PlaylistState is the observed remote playlist. CollectionID is empty when no playlist has the name.
type PlaylistState struct {
	CollectionID string
	Name         string
	Members      []services.Member
}

// ItemIDs returns member item ids in playlist order.
func (s PlaylistState) ItemIDs() []string {
	ids := make([]string, len(s.Members))
	for i, m := range s.Members {
		ids[i] = m.ItemID
	}
	return ids
}

// RunResult contains all data from one reconciliation pass.
type RunResult struct {
	ID         string        // Run id for log correlation
	Playlist   string        // Target playlist name
	Matches    []MatchResult // Per-reference outcomes in input order
	Plan       Plan          // Executed plan
	Report     Report        // Stage counts
	Success    bool          // Overall outcome
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns how long the pass took.
func (r *RunResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Pipeline defines the entry points exposed to the CLI and daemon.
type Pipeline interface {
	// ResolveAndMatch resolves refs and matches each resolution to a library track without touching any playlist.
	ResolveAndMatch(ctx context.Context, refs []string, progress chan<- ProgressUpdate) ([]MatchResult, Report)

	// Reconcile runs a full pass and converges the playlist called name onto the matched tracks.
	Reconcile(ctx context.Context, refs []string, name string, progress chan<- ProgressUpdate) (*RunResult, error)
}

// DesiredItems returns the matched item ids in input order. Duplicates are kept.
func DesiredItems(results []MatchResult) []string {
	items := make([]string, 0, len(results))
	for _, r := range results {
		if r.Matched() {
			items = append(items, r.ItemID)
		}
	}
	return items
}

// uniqueRefs drops repeated references, keeping first occurrences.
func uniqueRefs(refs []string) []string {
	seen := make(map[string]struct{}, len(refs))
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	return out
}

// detach returns a context that outlives parent's cancellation but still times out,
// so a call already issued can complete.
func detach(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(parent), timeout)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
