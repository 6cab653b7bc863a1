package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/lbx/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the example configuration to the given path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("✓ Config written to %s\n", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set listenbrainz.user, plex.base_url and plex.token (or LB_USER, PLEX_BASE_URL, PLEX_TOKEN)\n")
	r.writePlain("2. Run 'lbx setup check' to validate\n")
	r.writePlain("3. Run 'lbx plan' to preview the first sync\n")
	return nil
}

// SetupCheck validates the effective configuration after environment overrides.
func (r *Runner) SetupCheck(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}

	mb := r.config.MusicBrainz
	catalog := "public MusicBrainz (rate limited)"
	if !mb.Shared() {
		catalog = fmt.Sprintf("mirror %s (%d concurrent lookups)", mb.Endpoint(), mb.PoolWidth())
	}

	r.writePlainHeader("Configuration OK")
	r.writePlain("ListenBrainz user: %s\n", r.config.ListenBrainz.User)
	r.writePlain("Catalog: %s\n", catalog)
	r.writePlain("Plex: %s\n", r.config.Plex.BaseURL)
	r.writePlain("Playlists:\n")
	for _, pl := range r.config.Playlists {
		r.writePlain("  • %s ← %s\n", pl.Name, pl.Source)
	}
	return nil
}
