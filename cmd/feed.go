package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/desertthunder/lbx/internal/services"
	"github.com/desertthunder/lbx/internal/shared"
	"github.com/desertthunder/lbx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// playlistLister is implemented by feeds that can enumerate generated playlists.
type playlistLister interface {
	CreatedFor(ctx context.Context, user string) ([]services.FeedPlaylist, error)
}

// FeedRecommendations prints the user's recommendations after the configured filters.
func (r *Runner) FeedRecommendations(ctx context.Context, cmd *cli.Command) error {
	user := r.config.ListenBrainz.User
	if user == "" {
		return fmt.Errorf("%w: listenbrainz.user", shared.ErrMissingArgument)
	}

	recs, err := r.feed.Recommendations(ctx, user)
	if err != nil {
		return err
	}
	total := len(recs)

	if !cmd.Bool("all") {
		recs = services.FilterRecommendations(recs, services.RecommendationFilter{
			NullOnly: r.config.ListenBrainz.NullOnly,
			Days:     r.config.ListenBrainz.DaysFilter,
		}, time.Now())
	}

	if cmd.Bool("json") {
		return r.writeJSON(recs, true)
	}

	r.writePlain("Found %d recommendations for %s (%d after filters)\n\n", total, user, len(recs))

	limit := int(cmd.Int("limit"))
	for i, rec := range recs {
		if limit > 0 && i >= limit {
			r.writePlain("... and %d more\n", len(recs)-limit)
			break
		}

		added := "unknown"
		if !rec.AddedAt.IsZero() {
			added = rec.AddedAt.Format(time.DateOnly)
		}
		listened := ""
		if rec.Listened {
			listened = " (listened)"
		}
		r.writePlain("%d. %s  score %.3f  added %s%s\n", i+1, rec.RecordingMBID, rec.Score, added, listened)
	}
	return nil
}

// FeedPlaylists prints the playlists ListenBrainz generated for the user.
func (r *Runner) FeedPlaylists(ctx context.Context, cmd *cli.Command) error {
	user := r.config.ListenBrainz.User
	if user == "" {
		return fmt.Errorf("%w: listenbrainz.user", shared.ErrMissingArgument)
	}

	lister, ok := r.feed.(playlistLister)
	if !ok {
		return fmt.Errorf("%w: feed cannot list playlists", shared.ErrNotImplemented)
	}

	playlists, err := lister.CreatedFor(ctx, user)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, true)
	}

	r.writePlain("Found %d playlists for %s\n\n", len(playlists), user)
	for i, pl := range playlists {
		r.writePlain("%d. %s\n", i+1, pl.Title)
		r.writePlain("   ID: %s", pl.ID)
		if pl.Date != "" {
			r.writePlain(" | Date: %s", pl.Date)
		}
		r.writePlain("\n")
	}
	return nil
}

// Artists resolves the recommendations to a Lidarr artist list and prints or saves it.
func (r *Runner) Artists(ctx context.Context, cmd *cli.Command) error {
	if r.config.ListenBrainz.User == "" {
		return fmt.Errorf("%w: listenbrainz.user", shared.ErrMissingArgument)
	}

	path := cmd.String("output")
	if path == "" {
		artists, err := r.engine.ArtistList(ctx, nil)
		if err != nil {
			return err
		}
		return r.writeJSON(artists, true)
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := r.watch(progressCh)

	artists, err := r.engine.ArtistList(ctx, progressCh)
	close(progressCh)
	<-done
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(artists, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write artist list: %w", err)
	}

	r.writePlain("💾 Saved %d artists to %s\n", len(artists), path)
	return nil
}
