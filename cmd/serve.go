package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/desertthunder/lbx/internal/server"
	"github.com/desertthunder/lbx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the daemon until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.ValidateFeed(); err != nil {
		return err
	}
	plexConfigured := r.config.Plex.Configured()
	if plexConfigured {
		if err := r.config.ValidatePlex(); err != nil {
			return err
		}
	} else {
		r.logger.Warn("plex not configured, serving the artist list only")
	}

	cfg := r.config.Server
	if port := cmd.Int("port"); port > 0 {
		cfg.Port = int(port)
	}

	daemon := server.NewDaemon(r.engine, server.DaemonOpts{
		Addr:             cfg.Addr(),
		ArtistInterval:   cfg.ArtistInterval,
		PlaylistInterval: cfg.PlaylistInterval,
		Playlists:        r.config.Playlists,
		ArtistsOnly:      !plexConfigured,
		Health: server.HealthConfig{
			User:             r.config.ListenBrainz.User,
			PlexConfigured:   plexConfigured,
			ArtistInterval:   cfg.ArtistInterval.String(),
			PlaylistInterval: cfg.PlaylistInterval.String(),
		},
		Logger: shared.WithLogger(r.logger, "component", "daemon"),
	})

	r.logger.Info("daemon starting", "addr", cfg.Addr(), "artist_interval", cfg.ArtistInterval, "playlist_interval", cfg.PlaylistInterval)
	r.writePlain("🌐 Lidarr custom list: http://localhost:%d/\n", cfg.Port)
	r.writePlain("🏥 Health check: http://localhost:%d/health\n", cfg.Port)

	return daemon.Run(ctx)
}

// Health queries a running daemon and prints its status.
func (r *Runner) Health(ctx context.Context, cmd *cli.Command) error {
	url := cmd.String("url")
	if url == "" {
		url = fmt.Sprintf("http://127.0.0.1:%d/health", r.config.Server.Port)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", shared.ErrServiceUnavailable, resp.StatusCode)
	}

	var health struct {
		server.Health
		Playlists []struct {
			Name     string `json:"name"`
			Strategy string `json:"strategy"`
			Added    int    `json:"added"`
			Skipped  int    `json:"skipped"`
			Success  bool   `json:"success"`
		} `json:"playlists"`
	}
	if err := json.Unmarshal(body, &health); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrMalformedResponse, err)
	}

	r.writePlain("✓ %s\n", health.Status)
	r.writePlain("Initial processing complete: %v\n", health.Ready)
	r.writePlain("Message: %s\n", health.Message)
	r.writePlain("Artists: %d\n", health.ArtistCount)
	for _, pl := range health.Playlists {
		mark := "✓"
		if !pl.Success {
			mark = "✗"
		}
		r.writePlain("%s %s (%s): %d added, %d skipped\n", mark, pl.Name, pl.Strategy, pl.Added, pl.Skipped)
	}
	return nil
}
