package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lbx/internal/services"
	"github.com/desertthunder/lbx/internal/shared"
	"github.com/desertthunder/lbx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	configPath  string
	catalog     services.Catalog
	library     services.Library
	collections services.Collections
	feed        services.Feed
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
	engine      *tasks.Engine
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Services left nil are built from Config.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	Catalog     services.Catalog
	Library     services.Library
	Collections services.Collections
	Feed        services.Feed
	HTTPClient  *http.Client
	Logger      *log.Logger
	Output      io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	config := opts.Config
	if opts.Catalog == nil {
		opts.Catalog = services.NewMusicBrainzService(services.MusicBrainzOpts{
			BaseURL:    config.MusicBrainz.Endpoint(),
			UserAgent:  config.MusicBrainz.UserAgent,
			Shared:     config.MusicBrainz.Shared(),
			HTTPClient: opts.HTTPClient,
		})
	}
	if opts.Library == nil || opts.Collections == nil {
		plex := services.NewPlexService(config.Plex.BaseURL, config.Plex.Token, opts.HTTPClient)
		if opts.Library == nil {
			opts.Library = plex
		}
		if opts.Collections == nil {
			opts.Collections = plex
		}
	}
	if opts.Feed == nil {
		opts.Feed = services.NewListenBrainzService(config.ListenBrainz.BaseURL, config.ListenBrainz.Token, opts.HTTPClient)
	}

	r := &Runner{
		config:      config,
		configPath:  opts.ConfigPath,
		catalog:     opts.Catalog,
		library:     opts.Library,
		collections: opts.Collections,
		feed:        opts.Feed,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
	}
	r.engine = r.newEngine()
	return r
}

// engineOpts maps configuration onto pipeline tuning.
func engineOpts(config *shared.Config, logger *log.Logger) tasks.EngineOpts {
	opts := tasks.EngineOpts{
		User: config.ListenBrainz.User,
		Filter: services.RecommendationFilter{
			NullOnly: config.ListenBrainz.NullOnly,
			Days:     config.ListenBrainz.DaysFilter,
		},
		Resolver: tasks.ResolverOpts{
			PoolWidth: config.MusicBrainz.PoolWidth(),
			Timeout:   config.HTTP.RequestTimeout,
		},
		Matcher: tasks.MatcherOpts{
			MinScore:       config.Plex.MinScore,
			FuzzyThreshold: tasks.DefaultFuzzyThreshold,
			Timeout:        config.HTTP.RequestTimeout,
		},
		Reconciler: tasks.ReconcilerOpts{
			Threshold:   config.Plex.SimilarityThreshold,
			ItemDelay:   config.Plex.ItemDelay,
			SettleDelay: config.Plex.SettleDelay,
			VerifyDelay: config.Plex.VerifyDelay,
			Timeout:     config.HTTP.RequestTimeout,
		},
		Logger: logger,
	}
	if config.MusicBrainz.Shared() {
		opts.Resolver.Limiter = tasks.NewCatalogLimiter(config.MusicBrainz.MinInterval)
	}
	return opts
}

func (r *Runner) newEngine() *tasks.Engine {
	return tasks.NewEngine(r.catalog, r.library, r.collections, r.feed, engineOpts(r.config, r.logger))
}

// SetLogger swaps the logger and rebuilds the engine around it.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
	r.engine = r.newEngine()
}

func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
	return ctx, nil
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, syncCommand, resolveCommand, planCommand, feedCommand, artistsCommand, serveCommand, healthCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// playlistName returns the configured playlist name for source, falling back to the Plex default.
func (r *Runner) playlistName(source tasks.Source) string {
	for _, pl := range r.config.Playlists {
		if pl.Source == string(source) && pl.Name != "" {
			return pl.Name
		}
	}
	return r.config.Plex.PlaylistName
}

// watch prints progress updates until progress is closed. The returned channel closes once printing stops.
func (r *Runner) watch(progress <-chan tasks.ProgressUpdate) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			switch update.Phase {
			case tasks.FetchReferences:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.ResolveRecordings:
				r.writePlain("🔎 %s\n", update.Message)
			case tasks.MatchTracks:
				if update.Step == 1 {
					r.writePlain("\n🎯 Matching tracks in Plex...\n")
				}
				r.writePlain("   %s\n", update.Message)
			case tasks.PlanPlaylist:
				r.writePlain("\n🧭 %s\n", update.Message)
			case tasks.ReconcilePlaylist:
				r.writePlain("📝 %s\n", update.Message)
			case tasks.Completed:
				r.writePlain("✅ %s\n", update.Message)
			}
		}
	}()
	return done
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
