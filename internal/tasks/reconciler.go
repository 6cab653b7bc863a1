package tasks

import (
	"context"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lbx/internal/services"
	"github.com/desertthunder/lbx/internal/shared"
)

// DefaultSimilarityThreshold is the pinned legacy Jaccard threshold for a delta update.
const DefaultSimilarityThreshold = 0.8

// Strategy is how a playlist is converged onto its desired membership.
type Strategy int

const (
	StrategySkip    Strategy = iota // Membership already matches
	StrategyDelta                   // Remove and add individual members
	StrategyRebuild                 // Delete and recreate the playlist
)

func (s Strategy) String() string {
	switch s {
	case StrategySkip:
		return "skip"
	case StrategyDelta:
		return "delta"
	case StrategyRebuild:
		return "rebuild"
	default:
		return ""
	}
}

func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Plan is a reconciliation decision. It is recomputed on every pass.
type Plan struct {
	Strategy   Strategy `json:"strategy"`
	ToAdd      []string `json:"to_add"`    // Item ids to add, in desired order
	ToRemove   []string `json:"to_remove"` // Item ids to remove, in current order
	Similarity float64  `json:"similarity"`
	Reason     string   `json:"reason"`
}

// Decide compares current and desired item ids.
//
// Identical ordered lists are skipped. Otherwise a set similarity at or above threshold gives a
// delta and anything lower a rebuild.
func Decide(current, desired []string, threshold float64) Plan {
	if slices.Equal(current, desired) {
		return Plan{Strategy: StrategySkip, Similarity: 1, Reason: "membership unchanged"}
	}

	cur, want := setOf(current), setOf(desired)
	sim := jaccard(cur, want)

	if sim < threshold {
		return Plan{
			Strategy:   StrategyRebuild,
			ToAdd:      slices.Clone(desired),
			ToRemove:   slices.Clone(current),
			Similarity: sim,
			Reason:     fmt.Sprintf("similarity %.2f below %.2f", sim, threshold),
		}
	}

	plan := Plan{
		Strategy:   StrategyDelta,
		ToAdd:      []string{},
		ToRemove:   []string{},
		Similarity: sim,
		Reason:     fmt.Sprintf("similarity %.2f at or above %.2f", sim, threshold),
	}
	for _, id := range desired {
		if _, ok := cur[id]; !ok {
			plan.ToAdd = append(plan.ToAdd, id)
		}
	}
	for _, id := range current {
		if _, ok := want[id]; !ok {
			plan.ToRemove = append(plan.ToRemove, id)
		}
	}
	return plan
}

// ReconcilerOpts configures a [Reconciler].
type ReconcilerOpts struct {
	Threshold   float64       // Similarity needed for a delta update
	ItemDelay   time.Duration // Pause between individual membership calls
	SettleDelay time.Duration // Pause after deleting a stale playlist
	VerifyDelay time.Duration // Pause before checking a rebuilt playlist is visible
	Timeout     time.Duration // Per-call timeout
	Logger      *log.Logger
}

// Reconciler converges a named playlist onto a desired list of items.
//
// Passes for the same name must not overlap; callers serialize them.
type Reconciler struct {
	collections services.Collections
	opts        ReconcilerOpts
	logger      *log.Logger
}

// NewReconciler creates a Reconciler over collections.
func NewReconciler(collections services.Collections, opts ReconcilerOpts) *Reconciler {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultSimilarityThreshold
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultLookupTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Reconciler{collections: collections, opts: opts, logger: logger}
}

// ApplyResult reports what a reconciliation pass wrote.
type ApplyResult struct {
	Plan         Plan
	CollectionID string
	Added        int
	Removed      int
	Failed       int
	Verified     bool
}

// Counts tallies the membership writes.
func (r *ApplyResult) Counts() Counts {
	return Counts{
		Attempted: r.Added + r.Removed + r.Failed,
		Succeeded: r.Added + r.Removed,
		Failed:    r.Failed,
	}
}

// State reads the playlist called name. A missing playlist is an empty state, not an error.
func (r *Reconciler) State(ctx context.Context, name string) (PlaylistState, error) {
	state := PlaylistState{Name: name}

	cctx, cancel := detach(ctx, r.opts.Timeout)
	defer cancel()

	coll, err := r.collections.FindByName(cctx, name)
	if err != nil {
		return state, err
	}
	if coll == nil {
		return state, nil
	}

	members, err := r.collections.Members(cctx, coll.ID)
	if err != nil {
		return state, err
	}
	state.CollectionID = coll.ID
	state.Members = members
	return state, nil
}

// Plan decides how to converge state onto desired.
//
// A delta falls back to a rebuild when a member cannot be addressed individually.
func (r *Reconciler) Plan(state PlaylistState, desired []string) Plan {
	plan := Decide(state.ItemIDs(), desired, r.opts.Threshold)
	if plan.Strategy != StrategyDelta {
		return plan
	}

	if reason := unaddressable(state, plan); reason != "" {
		r.logger.Warn("delta update not possible, rebuilding instead", "playlist", state.Name, "reason", reason)
		return Plan{
			Strategy:   StrategyRebuild,
			ToAdd:      slices.Clone(desired),
			ToRemove:   state.ItemIDs(),
			Similarity: plan.Similarity,
			Reason:     "delta degraded: " + reason,
		}
	}
	return plan
}

func unaddressable(state PlaylistState, plan Plan) string {
	remove := setOf(plan.ToRemove)
	for _, m := range state.Members {
		if m.ItemID == "" {
			return fmt.Sprintf("member %q has no item id", m.Title)
		}
		if _, ok := remove[m.ItemID]; ok && m.EntryID == "" {
			return fmt.Sprintf("member %s has no playlist entry id", m.ItemID)
		}
	}
	return ""
}

// Preview reads the playlist and returns the plan without writing anything.
func (r *Reconciler) Preview(ctx context.Context, name string, desired []string) (PlaylistState, Plan, error) {
	state, err := r.State(ctx, name)
	if err != nil {
		return state, Plan{}, fmt.Errorf("%w: failed to read playlist %q: %v", shared.ErrReconcile, name, err)
	}
	return state, r.Plan(state, desired), nil
}

// Apply converges the playlist called name onto desired.
//
// Individual add and remove failures are logged and skipped. A rebuild succeeds when at least one
// member was written; a delta when at least one call succeeded or none was needed.
func (r *Reconciler) Apply(ctx context.Context, name string, desired []string) (*ApplyResult, error) {
	state, plan, err := r.Preview(ctx, name, desired)
	if err != nil {
		return nil, err
	}
	return r.Execute(ctx, state, plan)
}

// Execute carries out plan against the playlist observed as state. A rebuild writes plan.ToAdd in order.
func (r *Reconciler) Execute(ctx context.Context, state PlaylistState, plan Plan) (*ApplyResult, error) {
	res := &ApplyResult{Plan: plan, CollectionID: state.CollectionID}
	logger := r.logger.With("playlist", state.Name, "strategy", plan.Strategy)
	logger.Info("reconciling playlist", "current", len(state.Members), "add", len(plan.ToAdd), "remove", len(plan.ToRemove), "reason", plan.Reason)

	switch plan.Strategy {
	case StrategySkip:
		res.Verified = true
		return res, nil
	case StrategyDelta:
		return res, r.applyDelta(ctx, logger, state, plan, res)
	default:
		return res, r.rebuild(ctx, logger, state, plan.ToAdd, res)
	}
}

func (r *Reconciler) applyDelta(ctx context.Context, logger *log.Logger, state PlaylistState, plan Plan, res *ApplyResult) error {
	remove := setOf(plan.ToRemove)
	var entries []services.Member
	for _, m := range state.Members {
		if _, ok := remove[m.ItemID]; ok {
			entries = append(entries, m)
		}
	}

	if len(entries) == 0 && len(plan.ToAdd) == 0 {
		res.Verified = true
		return nil
	}

	calls := 0
	for _, m := range entries {
		if err := r.pace(ctx, calls); err != nil {
			break
		}
		calls++
		if err := r.call(ctx, func(cctx context.Context) error {
			return r.collections.RemoveItem(cctx, state.CollectionID, m.EntryID)
		}); err != nil {
			logger.Warn("failed to remove playlist entry", "item", m.ItemID, "entry", m.EntryID, "err", err)
			res.Failed++
			continue
		}
		res.Removed++
	}

	for _, id := range plan.ToAdd {
		if err := r.pace(ctx, calls); err != nil {
			break
		}
		calls++
		if err := r.call(ctx, func(cctx context.Context) error {
			return r.collections.AddItem(cctx, state.CollectionID, id)
		}); err != nil {
			logger.Warn("failed to add playlist item", "item", id, "err", err)
			res.Failed++
			continue
		}
		res.Added++
	}

	logger.Info("delta applied", "added", res.Added, "removed", res.Removed, "failed", res.Failed)
	if res.Added+res.Removed == 0 {
		return fmt.Errorf("%w: no delta operation succeeded for %q", shared.ErrReconcile, state.Name)
	}
	res.Verified = true
	return nil
}

func (r *Reconciler) rebuild(ctx context.Context, logger *log.Logger, state PlaylistState, desired []string, res *ApplyResult) error {
	if state.CollectionID != "" {
		if err := r.call(ctx, func(cctx context.Context) error {
			return r.collections.Delete(cctx, state.CollectionID)
		}); err != nil {
			return fmt.Errorf("%w: failed to delete playlist %q: %v", shared.ErrReconcile, state.Name, err)
		}
		logger.Debug("deleted stale playlist", "id", state.CollectionID)
		res.Removed = len(state.Members)
		res.CollectionID = ""

		if err := sleep(ctx, r.opts.SettleDelay); err != nil {
			return fmt.Errorf("%w: interrupted after deleting %q: %v", shared.ErrReconcile, state.Name, err)
		}
	}

	if len(desired) == 0 {
		logger.Info("playlist emptied")
		res.Verified = true
		return nil
	}

	var coll *services.Collection
	if err := r.call(ctx, func(cctx context.Context) error {
		var err error
		coll, err = r.collections.Create(cctx, state.Name, desired[0])
		return err
	}); err != nil {
		return fmt.Errorf("%w: failed to create playlist %q: %v", shared.ErrReconcile, state.Name, err)
	}
	res.CollectionID = coll.ID
	res.Added = 1

	for i, id := range desired[1:] {
		if err := r.pace(ctx, i+1); err != nil {
			break
		}
		if err := r.call(ctx, func(cctx context.Context) error {
			return r.collections.AddItem(cctx, coll.ID, id)
		}); err != nil {
			logger.Warn("failed to add playlist item", "item", id, "err", err)
			res.Failed++
			continue
		}
		res.Added++
	}

	logger.Info("playlist rebuilt", "id", coll.ID, "added", res.Added, "failed", res.Failed)
	res.Verified = r.verify(ctx, logger, state.Name)
	return nil
}

// verify checks the rebuilt playlist is visible. Absence is a propagation delay, not a failure.
func (r *Reconciler) verify(ctx context.Context, logger *log.Logger, name string) bool {
	if err := sleep(ctx, r.opts.VerifyDelay); err != nil {
		return false
	}

	var coll *services.Collection
	err := r.call(ctx, func(cctx context.Context) error {
		var err error
		coll, err = r.collections.FindByName(cctx, name)
		return err
	})
	if err != nil || coll == nil {
		logger.Warn("rebuilt playlist not visible yet", "err", err)
		return false
	}
	return true
}

// pace waits ItemDelay before every call but the first. It fails once ctx is done.
func (r *Reconciler) pace(ctx context.Context, calls int) error {
	if calls == 0 {
		return ctx.Err()
	}
	return sleep(ctx, r.opts.ItemDelay)
}

func (r *Reconciler) call(ctx context.Context, fn func(context.Context) error) error {
	cctx, cancel := detach(ctx, r.opts.Timeout)
	defer cancel()
	return fn(cctx)
}
