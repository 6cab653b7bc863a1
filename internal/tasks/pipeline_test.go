package tasks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/lbx/internal/services"
	"github.com/desertthunder/lbx/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestEngine wires an engine where r1 and r3 resolve and match and r2 has no artist credit.
func newTestEngine(coll *mockCollections, feed services.Feed) (*Engine, *mockCatalog, *mockLibrary) {
	catalog := &mockCatalog{
		shared: true,
		recordings: map[string]*services.Recording{
			"r1": {ID: "r1", Title: "Windowlicker", ArtistID: "art-1", ArtistName: "Aphex Twin"},
			"r3": {ID: "r3", Title: "Roygbiv", ArtistID: "art-3", ArtistName: "Boards of Canada"},
			"r4": {ID: "r4", Title: "Xtal", ArtistID: "art-1", ArtistName: "Aphex Twin"},
		},
		errs: map[string]error{
			"r2": fmt.Errorf("%w: r2", shared.ErrNoArtistCredit),
		},
	}

	library := &mockLibrary{
		sections: []services.Section{{Key: "3", Title: "Music", Type: "artist"}},
		search: func(sectionKey, query string) ([]services.LibraryTrack, error) {
			switch {
			case strings.Contains(query, "Windowlicker"):
				return []services.LibraryTrack{{ID: "501", Title: "Windowlicker", Artist: "Aphex Twin", GUID: "mbid://art-1"}}, nil
			case strings.Contains(query, "Roygbiv"):
				return []services.LibraryTrack{{ID: "502", Title: "Roygbiv", Artist: "Boards of Canada"}}, nil
			default:
				return nil, nil
			}
		},
	}

	engine := NewEngine(catalog, library, coll, feed, EngineOpts{
		User:     "rob",
		Resolver: ResolverOpts{Limiter: NoopLimiter{}},
	})
	return engine, catalog, library
}

func drain(ch chan ProgressUpdate) []ProgressUpdate {
	var out []ProgressUpdate
	for {
		select {
		case u := <-ch:
			out = append(out, u)
		default:
			return out
		}
	}
}

func TestEngineResolveAndMatch(t *testing.T) {
	engine, _, _ := newTestEngine(newMockCollections(), nil)

	results, report := engine.ResolveAndMatch(context.Background(), []string{"r1", "r2", "r3", "r4", "r1"}, nil)
	require.Len(t, results, 4)

	assert.Equal(t, "r1", results[0].Resolution.Ref)
	assert.Equal(t, "501", results[0].ItemID)
	assert.Equal(t, 250, results[0].Score)

	assert.False(t, results[1].Resolution.Resolved())
	assert.False(t, results[1].Matched())
	assert.ErrorIs(t, results[1].Resolution.Err, shared.ErrNoArtistCredit)

	assert.Equal(t, "502", results[2].ItemID)
	assert.Equal(t, 200, results[2].Score)

	assert.False(t, results[3].Matched())

	assert.Equal(t, ResolveIndividual, report.Lookup)
	assert.Equal(t, Counts{Attempted: 4, Succeeded: 3, Failed: 1}, report.Resolution)
	assert.Equal(t, Counts{Attempted: 3, Succeeded: 2, Failed: 1}, report.Match)
	assert.Equal(t, 2, report.Skipped)
}

func TestEngineReconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("end to end against an empty playlist", func(t *testing.T) {
		coll := newMockCollections()
		engine, _, _ := newTestEngine(coll, nil)
		progress := make(chan ProgressUpdate, 100)

		result, err := engine.Reconcile(ctx, []string{"r1", "r2", "r3"}, "Discovery", progress)
		require.NoError(t, err)

		assert.True(t, result.Success)
		assert.NotEmpty(t, result.ID)
		assert.Equal(t, StrategyRebuild, result.Plan.Strategy)
		assert.Equal(t, 2, result.Report.Added)
		assert.Equal(t, 1, result.Report.Skipped)
		assert.Equal(t, []string{"create Discovery 501", "add pl-1 502"}, coll.callList())
		assert.Equal(t, []string{"501", "502"}, coll.items("Discovery"))
		assert.False(t, result.FinishedAt.Before(result.StartedAt))

		updates := drain(progress)
		require.NotEmpty(t, updates)
		assert.Equal(t, ResolveRecordings, updates[0].Phase)
		last := updates[len(updates)-1]
		assert.Equal(t, Completed, last.Phase)
		assert.Same(t, result, last.Data)
	})

	t.Run("second pass is a skip", func(t *testing.T) {
		coll := newMockCollections()
		engine, _, _ := newTestEngine(coll, nil)

		_, err := engine.Reconcile(ctx, []string{"r1", "r2", "r3"}, "Discovery", nil)
		require.NoError(t, err)

		result, err := engine.Reconcile(ctx, []string{"r1", "r2", "r3"}, "Discovery", nil)
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, StrategySkip, result.Plan.Strategy)
		assert.Zero(t, result.Report.Added)
		assert.Len(t, coll.callList(), 2)
	})

	t.Run("zero resolutions fail", func(t *testing.T) {
		coll := newMockCollections()
		engine, _, library := newTestEngine(coll, nil)

		result, err := engine.Reconcile(ctx, []string{"r2", "missing"}, "Discovery", nil)
		assert.ErrorIs(t, err, shared.ErrNoResolutions)
		assert.False(t, result.Success)
		assert.Empty(t, library.searchList())
		assert.Empty(t, coll.callList())
	})

	t.Run("zero matches fail", func(t *testing.T) {
		coll := newMockCollections()
		engine, _, _ := newTestEngine(coll, nil)

		result, err := engine.Reconcile(ctx, []string{"r4"}, "Discovery", nil)
		assert.ErrorIs(t, err, shared.ErrNoMatches)
		assert.False(t, result.Success)
		assert.Empty(t, coll.callList())
	})

	t.Run("create failure fails the pass", func(t *testing.T) {
		coll := newMockCollections()
		coll.createErr = shared.ErrAPIRequest
		engine, _, _ := newTestEngine(coll, nil)

		result, err := engine.Reconcile(ctx, []string{"r1", "r3"}, "Discovery", nil)
		assert.ErrorIs(t, err, shared.ErrReconcile)
		assert.False(t, result.Success)
		assert.Zero(t, result.Report.Added)
	})

	t.Run("progress channel never blocks", func(t *testing.T) {
		engine, _, _ := newTestEngine(newMockCollections(), nil)
		progress := make(chan ProgressUpdate)

		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = engine.Reconcile(ctx, []string{"r1", "r3"}, "Discovery", progress)
		}()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("reconcile blocked on an unread progress channel")
		}
	})
}

func TestEngineLock(t *testing.T) {
	engine, _, _ := newTestEngine(newMockCollections(), nil)
	assert.Same(t, engine.lock("a"), engine.lock("a"))
	assert.NotSame(t, engine.lock("a"), engine.lock("b"))

	t.Run("passes on one playlist are serialized", func(t *testing.T) {
		coll := newMockCollections()
		engine, _, _ := newTestEngine(coll, nil)

		var wg sync.WaitGroup
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = engine.Reconcile(context.Background(), []string{"r1", "r3"}, "Discovery", nil)
			}()
		}
		wg.Wait()

		// The first pass builds the playlist; every later pass sees it and skips.
		assert.Equal(t, []string{"create Discovery 501", "add pl-1 502"}, coll.callList())
	})
}

func TestSources(t *testing.T) {
	for _, s := range Sources() {
		got, err := ParseSource(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseSource("monthly-jams")
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)

	terms, ok := SourceDailyJams.Terms()
	assert.True(t, ok)
	assert.Equal(t, services.DailyJamsTerms, terms)

	_, ok = SourceRecommendations.Terms()
	assert.False(t, ok)
}

func TestEngineReferences(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	feed := &mockFeed{
		recs: []services.Recommendation{
			{RecordingMBID: "r1", AddedAt: now},
			{RecordingMBID: "r2", Listened: true, AddedAt: now},
			{RecordingMBID: "r3", AddedAt: now.AddDate(0, 0, -60)},
		},
		playlists: map[string]*services.FeedPlaylist{
			"weekly jams": {ID: "pl-wj", Title: "Weekly Jams for rob"},
		},
		tracks: map[string][]services.PlaylistTrack{
			"pl-wj": {{RecordingMBID: "r3"}, {RecordingMBID: "r1"}},
		},
	}

	t.Run("recommendations are filtered", func(t *testing.T) {
		coll := newMockCollections()
		catalog := &mockCatalog{}
		engine := NewEngine(catalog, &mockLibrary{}, coll, feed, EngineOpts{
			User:   "rob",
			Filter: services.RecommendationFilter{NullOnly: true, Days: 14},
		})

		refs, err := engine.References(ctx, SourceRecommendations, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"r1"}, refs)
	})

	t.Run("generated playlist", func(t *testing.T) {
		engine, _, _ := newTestEngine(newMockCollections(), feed)
		refs, err := engine.References(ctx, SourceWeeklyJams, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"r3", "r1"}, refs)
	})

	t.Run("missing playlist", func(t *testing.T) {
		engine, _, _ := newTestEngine(newMockCollections(), feed)
		_, err := engine.References(ctx, SourceDailyJams, nil)
		assert.ErrorIs(t, err, shared.ErrPlaylistNotFound)
	})

	t.Run("no feed", func(t *testing.T) {
		engine, _, _ := newTestEngine(newMockCollections(), nil)
		_, err := engine.References(ctx, SourceRecommendations, nil)
		assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
	})

	t.Run("Sync", func(t *testing.T) {
		coll := newMockCollections()
		engine, _, _ := newTestEngine(coll, feed)

		result, err := engine.Sync(ctx, SourceWeeklyJams, "Weekly Jams", nil)
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, []string{"502", "501"}, coll.items("Weekly Jams"))
	})

	t.Run("SyncAll continues past failures", func(t *testing.T) {
		coll := newMockCollections()
		engine, _, _ := newTestEngine(coll, feed)

		results, err := engine.SyncAll(ctx, []shared.PlaylistConfig{
			{Source: "daily-jams", Name: "Daily Jams"},
			{Source: "bogus", Name: "Bogus"},
			{Source: "weekly-jams", Name: "Weekly Jams"},
		}, nil)

		assert.ErrorIs(t, err, shared.ErrPlaylistNotFound)
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
		require.Len(t, results, 1)
		assert.Equal(t, "Weekly Jams", results[0].Playlist)
		assert.True(t, results[0].Success)
	})
}

func TestEngineArtistList(t *testing.T) {
	ctx := context.Background()

	t.Run("distinct artists in first-seen order", func(t *testing.T) {
		feed := &mockFeed{recs: []services.Recommendation{
			{RecordingMBID: "r4"},
			{RecordingMBID: "r2"},
			{RecordingMBID: "r3"},
			{RecordingMBID: "r1"},
		}}
		engine, _, _ := newTestEngine(newMockCollections(), feed)

		artists, err := engine.ArtistList(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, []Artist{
			{MusicBrainzID: "art-1", Name: "Aphex Twin"},
			{MusicBrainzID: "art-3", Name: "Boards of Canada"},
		}, artists)
	})

	t.Run("ignores playlist filter", func(t *testing.T) {
		now := time.Now()
		feed := &mockFeed{recs: []services.Recommendation{
			{RecordingMBID: "r1", Listened: true, AddedAt: now},
			{RecordingMBID: "r3", AddedAt: now.AddDate(0, 0, -60)},
		}}
		engine, _, _ := newTestEngine(newMockCollections(), feed)
		engine.filter = services.RecommendationFilter{NullOnly: true, Days: 14}

		artists, err := engine.ArtistList(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, []Artist{
			{MusicBrainzID: "art-1", Name: "Aphex Twin"},
			{MusicBrainzID: "art-3", Name: "Boards of Canada"},
		}, artists)

		refs, err := engine.References(ctx, SourceRecommendations, nil)
		require.NoError(t, err)
		assert.Empty(t, refs)
	})

	t.Run("empty feed", func(t *testing.T) {
		engine, _, _ := newTestEngine(newMockCollections(), &mockFeed{})
		artists, err := engine.ArtistList(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, artists)
	})

	t.Run("nothing resolved", func(t *testing.T) {
		feed := &mockFeed{recs: []services.Recommendation{{RecordingMBID: "r2"}}}
		engine, _, _ := newTestEngine(newMockCollections(), feed)
		_, err := engine.ArtistList(ctx, nil)
		assert.ErrorIs(t, err, shared.ErrNoResolutions)
	})
}
