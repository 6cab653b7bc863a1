package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lbx/internal/services"
	"github.com/desertthunder/lbx/internal/shared"
)

// EngineOpts configures an [Engine].
type EngineOpts struct {
	User       string                        // ListenBrainz user whose feed is read
	Filter     services.RecommendationFilter // Applied to collaborative-filtering recommendations
	Resolver   ResolverOpts
	Matcher    MatcherOpts
	Reconciler ReconcilerOpts
	Logger     *log.Logger
}

// Engine implements [Pipeline] over the catalog, library, playlist and feed services.
type Engine struct {
	feed       services.Feed
	resolver   *Resolver
	matcher    *Matcher
	reconciler *Reconciler
	user       string
	filter     services.RecommendationFilter
	logger     *log.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEngine creates an Engine. feed may be nil when references are supplied directly.
func NewEngine(catalog services.Catalog, library services.Library, collections services.Collections, feed services.Feed, opts EngineOpts) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if opts.Resolver.Logger == nil {
		opts.Resolver.Logger = shared.WithLogger(logger, "stage", "resolve")
	}
	if opts.Matcher.Logger == nil {
		opts.Matcher.Logger = shared.WithLogger(logger, "stage", "match")
	}
	if opts.Reconciler.Logger == nil {
		opts.Reconciler.Logger = shared.WithLogger(logger, "stage", "reconcile")
	}

	return &Engine{
		feed:       feed,
		resolver:   NewResolver(catalog, opts.Resolver),
		matcher:    NewMatcher(library, opts.Matcher),
		reconciler: NewReconciler(collections, opts.Reconciler),
		user:       opts.User,
		filter:     opts.Filter,
		logger:     logger,
		locks:      make(map[string]*sync.Mutex),
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// lock returns the mutex serializing passes against the playlist called name.
func (e *Engine) lock(name string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[name]
	if !ok {
		l = &sync.Mutex{}
		e.locks[name] = l
	}
	return l
}

// ResolveAndMatch resolves refs, then matches each resolved recording against the library.
//
// Results follow the order of the distinct references in refs.
func (e *Engine) ResolveAndMatch(ctx context.Context, refs []string, progress chan<- ProgressUpdate) ([]MatchResult, Report) {
	refs = uniqueRefs(refs)
	report := Report{Lookup: e.resolver.Strategy(len(refs))}

	e.sendProgress(progress, resolveUpdate(len(refs), report.Lookup))
	resolutions := e.resolver.Resolve(ctx, refs)
	report.Resolution = resolutions.Counts()
	e.sendProgress(progress, resolvedUpdate(report.Resolution))

	results := make([]MatchResult, 0, len(refs))
	step := 0
	for _, ref := range refs {
		res := resolutions[ref]
		if !res.Resolved() {
			results = append(results, MatchResult{Resolution: res})
			continue
		}

		step++
		report.Match.Attempted++
		e.sendProgress(progress, matchUpdate(step, report.Resolution.Succeeded, res))

		if ctx.Err() != nil {
			results = append(results, MatchResult{Resolution: res})
			report.Match.Failed++
			continue
		}

		c := e.matcher.Match(ctx, res.TrackTitle, res.ArtistName, []string{res.ArtistID})
		results = append(results, MatchResult{Resolution: res, ItemID: c.ItemID, Score: c.Score, Track: c.Track})
		if c.ItemID != "" {
			report.Match.Succeeded++
		} else {
			report.Match.Failed++
		}
	}

	report.Skipped = len(refs) - report.Match.Succeeded
	e.logger.Info("matched recordings", "resolved", report.Resolution.Succeeded, "matched", report.Match.Succeeded, "skipped", report.Skipped)
	return results, report
}

// Plan resolves and matches refs, then returns the plan for the playlist called name without writing.
func (e *Engine) Plan(ctx context.Context, refs []string, name string, progress chan<- ProgressUpdate) ([]MatchResult, PlaylistState, Plan, error) {
	results, _ := e.ResolveAndMatch(ctx, refs, progress)
	state, plan, err := e.reconciler.Preview(ctx, name, DesiredItems(results))
	if err != nil {
		return results, state, plan, err
	}
	e.sendProgress(progress, planUpdate(name, plan))
	return results, state, plan, nil
}

// Reconcile runs one full pass for the playlist called name.
//
// The pass fails when nothing resolved, nothing matched, or the playlist could not be written.
// Passes for the same name are serialized.
func (e *Engine) Reconcile(ctx context.Context, refs []string, name string, progress chan<- ProgressUpdate) (*RunResult, error) {
	l := e.lock(name)
	l.Lock()
	defer l.Unlock()

	result := &RunResult{ID: shared.GenerateID(), Playlist: name, StartedAt: time.Now()}
	logger := e.logger.With("run", result.ID, "playlist", name)
	logger.Info("starting pass", "references", len(refs))

	defer func() {
		result.FinishedAt = time.Now()
	}()

	result.Matches, result.Report = e.ResolveAndMatch(ctx, refs, progress)

	if result.Report.Resolution.Succeeded == 0 {
		return result, fmt.Errorf("%w: 0 of %d recordings", shared.ErrNoResolutions, result.Report.Resolution.Attempted)
	}
	if result.Report.Match.Succeeded == 0 {
		return result, fmt.Errorf("%w: 0 of %d recordings", shared.ErrNoMatches, result.Report.Match.Attempted)
	}

	desired := DesiredItems(result.Matches)
	state, plan, err := e.reconciler.Preview(ctx, name, desired)
	if err != nil {
		return result, err
	}
	result.Plan = plan
	e.sendProgress(progress, planUpdate(name, plan))
	e.sendProgress(progress, reconcileUpdate(name, len(desired)))

	applied, err := e.reconciler.Execute(ctx, state, plan)
	if applied != nil {
		result.Report.Write = applied.Counts()
		result.Report.Added = applied.Added
	}
	if err != nil {
		logger.Error("pass failed", "err", err)
		return result, err
	}
	if plan.Strategy == StrategyRebuild && applied.Added == 0 {
		return result, fmt.Errorf("%w: %q", shared.ErrNothingAdded, name)
	}

	result.Success = true
	logger.Info("pass complete", "strategy", plan.Strategy, "added", result.Report.Added, "skipped", result.Report.Skipped)
	e.sendProgress(progress, completedUpdate(result))
	return result, nil
}

// Source names a feed of recording references.
type Source string

const (
	SourceRecommendations   Source = "recommendations"
	SourceWeeklyExploration Source = "weekly-exploration"
	SourceDailyJams         Source = "daily-jams"
	SourceWeeklyJams        Source = "weekly-jams"
)

// Sources lists every known source.
func Sources() []Source {
	return []Source{SourceRecommendations, SourceWeeklyExploration, SourceDailyJams, SourceWeeklyJams}
}

// Terms returns the playlist title terms for a generated-playlist source.
func (s Source) Terms() ([]string, bool) {
	switch s {
	case SourceWeeklyExploration:
		return services.WeeklyExplorationTerms, true
	case SourceDailyJams:
		return services.DailyJamsTerms, true
	case SourceWeeklyJams:
		return services.WeeklyJamsTerms, true
	default:
		return nil, false
	}
}

// ParseSource validates a source name.
func ParseSource(name string) (Source, error) {
	for _, s := range Sources() {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: unknown source %q", shared.ErrInvalidArgument, name)
}

// References reads the recording references for source from the feed.
func (e *Engine) References(ctx context.Context, source Source, progress chan<- ProgressUpdate) ([]string, error) {
	if e.feed == nil {
		return nil, fmt.Errorf("%w: feed service not initialized", shared.ErrServiceUnavailable)
	}

	e.sendProgress(progress, fetchReferencesUpdate(string(source)))

	var refs []string
	if source == SourceRecommendations {
		recs, err := e.feed.Recommendations(ctx, e.user)
		if err != nil {
			return nil, err
		}
		for _, r := range services.FilterRecommendations(recs, e.filter, time.Now()) {
			refs = append(refs, r.RecordingMBID)
		}
	} else {
		terms, ok := source.Terms()
		if !ok {
			return nil, fmt.Errorf("%w: unknown source %q", shared.ErrInvalidArgument, source)
		}
		pl, err := e.feed.FindPlaylist(ctx, e.user, terms)
		if err != nil {
			return nil, err
		}
		tracks, err := e.feed.PlaylistTracks(ctx, pl.ID)
		if err != nil {
			return nil, err
		}
		for _, t := range tracks {
			refs = append(refs, t.RecordingMBID)
		}
	}

	e.sendProgress(progress, foundReferencesUpdate(string(source), len(refs)))
	return refs, nil
}

// Sync reads source from the feed and reconciles the playlist called name.
func (e *Engine) Sync(ctx context.Context, source Source, name string, progress chan<- ProgressUpdate) (*RunResult, error) {
	refs, err := e.References(ctx, source, progress)
	if err != nil {
		return nil, err
	}
	return e.Reconcile(ctx, refs, name, progress)
}

// SyncAll syncs every configured playlist in turn. A failed playlist does not stop the rest.
func (e *Engine) SyncAll(ctx context.Context, playlists []shared.PlaylistConfig, progress chan<- ProgressUpdate) ([]*RunResult, error) {
	var (
		results []*RunResult
		errs    []error
	)
	for _, pc := range playlists {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		source, err := ParseSource(pc.Source)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		res, err := e.Sync(ctx, source, pc.Name, progress)
		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			e.logger.Warn("playlist sync failed", "source", source, "playlist", pc.Name, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", pc.Name, err))
		}
	}
	return results, errors.Join(errs...)
}

// Artist is one entry of the Lidarr import list.
type Artist struct {
	MusicBrainzID string `json:"MusicBrainzId"`
	Name          string `json:"title"`
}

// ArtistList resolves every recommendation to distinct artists in first-seen order.
// The playlist filter does not apply here.
func (e *Engine) ArtistList(ctx context.Context, progress chan<- ProgressUpdate) ([]Artist, error) {
	if e.feed == nil {
		return nil, fmt.Errorf("%w: feed service not initialized", shared.ErrServiceUnavailable)
	}

	e.sendProgress(progress, fetchReferencesUpdate(string(SourceRecommendations)))
	recs, err := e.feed.Recommendations(ctx, e.user)
	if err != nil {
		return nil, err
	}
	refs := make([]string, 0, len(recs))
	for _, r := range recs {
		refs = append(refs, r.RecordingMBID)
	}
	e.sendProgress(progress, foundReferencesUpdate(string(SourceRecommendations), len(refs)))

	refs = uniqueRefs(refs)
	e.sendProgress(progress, resolveUpdate(len(refs), e.resolver.Strategy(len(refs))))
	resolutions := e.resolver.Resolve(ctx, refs)
	e.sendProgress(progress, resolvedUpdate(resolutions.Counts()))

	seen := make(map[string]struct{})
	artists := make([]Artist, 0)
	for _, ref := range refs {
		res := resolutions[ref]
		if !res.Resolved() {
			continue
		}
		if _, ok := seen[res.ArtistID]; ok {
			continue
		}
		seen[res.ArtistID] = struct{}{}
		artists = append(artists, Artist{MusicBrainzID: res.ArtistID, Name: res.ArtistName})
	}

	if len(artists) == 0 && len(refs) > 0 {
		return artists, fmt.Errorf("%w: 0 of %d recordings", shared.ErrNoResolutions, len(refs))
	}
	return artists, nil
}
