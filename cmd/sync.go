package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/lbx/internal/formatter"
	"github.com/desertthunder/lbx/internal/shared"
	"github.com/desertthunder/lbx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// SyncRun reconciles one Plex playlist with a ListenBrainz source.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}

	source, err := tasks.ParseSource(cmd.String("source"))
	if err != nil {
		return err
	}
	name := cmd.String("name")
	if name == "" {
		name = r.playlistName(source)
	}

	if cmd.Bool("tui") {
		return r.syncTUI(ctx, shared.PlaylistConfig{Source: string(source), Name: name})
	}

	r.logger.Info("starting sync", "source", source, "playlist", name)
	r.writePlain("Syncing %s → %s\n\n", source, name)

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := r.watch(progressCh)

	result, err := r.engine.Sync(ctx, source, name, progressCh)
	close(progressCh)
	<-done

	if result != nil {
		r.writeRunSummary(result)
	}
	return err
}

// SyncAll reconciles every configured playlist. Failures are reported together at the end.
func (r *Runner) SyncAll(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}
	if len(r.config.Playlists) == 0 {
		return fmt.Errorf("%w: no playlists configured", shared.ErrInvalidConfig)
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := r.watch(progressCh)

	results, err := r.engine.SyncAll(ctx, r.config.Playlists, progressCh)
	close(progressCh)
	<-done

	for _, result := range results {
		r.writeRunSummary(result)
	}

	succeeded := 0
	for _, result := range results {
		if result.Success {
			succeeded++
		}
	}
	r.writePlainln("%d/%d playlists synced", succeeded, len(r.config.Playlists))
	return err
}

func (r *Runner) writeRunSummary(result *tasks.RunResult) {
	r.writePlain("\n")
	if result.Success {
		r.writePlainHeader("Sync Complete: " + result.Playlist)
	} else {
		r.writePlainHeader("Sync Failed: " + result.Playlist)
	}

	report := result.Report
	r.writePlain("Run: %s\n", result.ID)
	if result.Plan.Reason != "" {
		r.writePlain("Strategy: %s (%s)\n", result.Plan.Strategy, result.Plan.Reason)
	}
	r.writePlain("Lookup: %s\n", report.Lookup)
	r.writePlain("Resolved: %s\n", report.Resolution)
	r.writePlain("Matched: %s\n", report.Match)
	r.writePlain("Written: %s\n", report.Write)
	r.writePlain("Added: %d, Skipped: %d\n", report.Added, report.Skipped)
	r.writePlain("Duration: %s\n", result.Duration())

	var missing []tasks.MatchResult
	for _, m := range result.Matches {
		if !m.Matched() {
			missing = append(missing, m)
		}
	}
	if len(missing) > 0 {
		r.writePlain("\nNot added (%d):\n", len(missing))
		for _, m := range missing {
			if m.Resolution.Resolved() {
				r.writePlain("  - %s - %s\n", m.Resolution.ArtistName, m.Resolution.TrackTitle)
			} else {
				r.writePlain("  - %s (unresolved)\n", m.Resolution.Ref)
			}
		}
	}
}

// Resolve resolves and matches a source without writing, then renders the report.
func (r *Runner) Resolve(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}

	source, err := tasks.ParseSource(cmd.String("source"))
	if err != nil {
		return err
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	refs, err := r.engine.References(ctx, source, nil)
	if err != nil {
		return err
	}
	r.logger.Info("resolving", "source", source, "references", len(refs))

	results, report := r.engine.ResolveAndMatch(ctx, refs, nil)
	title := fmt.Sprintf("Matches for %s", source)

	if path := cmd.String("output"); path != "" {
		written, err := formatter.WriteMatches(format, path, title, results, report)
		if err != nil {
			return err
		}
		r.writePlain("✓ Report written to %s\n", written)
		return nil
	}

	data, err := formatter.RenderMatches(format, title, results, report)
	if err != nil {
		return err
	}
	return r.writePlain("%s", data)
}

// Plan prints the reconciliation plan for a playlist without mutating it.
func (r *Runner) Plan(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}

	source, err := tasks.ParseSource(cmd.String("source"))
	if err != nil {
		return err
	}
	name := cmd.String("name")
	if name == "" {
		name = r.playlistName(source)
	}

	refs, err := r.engine.References(ctx, source, nil)
	if err != nil {
		return err
	}

	results, state, plan, err := r.engine.Plan(ctx, refs, name, nil)
	if err != nil {
		return err
	}
	if len(tasks.DesiredItems(results)) == 0 {
		return fmt.Errorf("%w: %d recordings, none matched in Plex", shared.ErrNoMatches, len(results))
	}

	r.writePlain("%s", formatter.PlanToText(state, plan))
	return nil
}
