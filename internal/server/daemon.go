package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lbx/internal/shared"
	"github.com/desertthunder/lbx/internal/tasks"
)

// DefaultShutdownTimeout bounds graceful shutdown of the HTTP server.
const DefaultShutdownTimeout = 5 * time.Second

// DaemonOpts configures a [Daemon].
type DaemonOpts struct {
	Addr             string
	ArtistInterval   time.Duration // <= 0 runs the artist pass once
	PlaylistInterval time.Duration // <= 0 runs the playlist pass once
	ArtistsOnly      bool          // Serve the artist list without a playlist schedule
	Playlists        []shared.PlaylistConfig
	Health           HealthConfig
	ShutdownTimeout  time.Duration
	Logger           *log.Logger
}

// Daemon serves the artist list and health endpoints while running scheduled passes.
type Daemon struct {
	worker Worker
	opts   DaemonOpts
	state  *State
	router *BasicRouter
	logger *log.Logger
}

// NewDaemon wires the router, middleware and handlers around worker.
func NewDaemon(worker Worker, opts DaemonOpts) *Daemon {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}

	state := NewState()
	router := NewBasicRouter()
	router.Use(Recover(opts.Logger), Logging(opts.Logger))
	router.Handler(NewArtistHandler(state))
	router.Handler(NewHealthHandler(state, opts.Health))

	return &Daemon{
		worker: worker,
		opts:   opts,
		state:  state,
		router: router,
		logger: opts.Logger,
	}
}

// Handler returns the daemon's router.
func (d *Daemon) Handler() http.Handler {
	return d.router
}

// State returns the shared daemon state.
func (d *Daemon) State() *State {
	return d.state
}

// RefreshArtists runs one artist pass. The previous list is kept on failure.
func (d *Daemon) RefreshArtists(ctx context.Context) error {
	artists, err := d.worker.ArtistList(ctx, nil)
	if err != nil {
		d.state.SetMessage(fmt.Sprintf("artist pass failed: %v", err))
		return err
	}

	d.state.SetArtists(artists, time.Now())
	d.logger.Info("artist list updated", "count", len(artists))
	return nil
}

// SyncPlaylists runs one pass over every configured playlist.
func (d *Daemon) SyncPlaylists(ctx context.Context) error {
	results, err := d.worker.SyncAll(ctx, d.opts.Playlists, nil)
	d.state.SetPlaylists(results, time.Now())
	for _, r := range results {
		d.logger.Info("playlist pass finished", "playlist", r.Playlist, "run", r.ID, "strategy", r.Plan.Strategy, "added", r.Report.Added, "success", r.Success)
	}
	return err
}

// Run serves HTTP and runs the schedules until ctx is cancelled or the listener fails.
//
// The artist pass starts immediately. The first playlist pass waits for it so the two
// do not compete for the catalog's rate limit.
func (d *Daemon) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpServer := &http.Server{
		Addr:              d.opts.Addr,
		Handler:           d.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		d.logger.Info("starting HTTP server", "addr", d.opts.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	initial := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.schedule(runCtx, "artists", d.opts.ArtistInterval, d.RefreshArtists, initial)
	}()

	if d.opts.ArtistsOnly {
		d.logger.Info("plex not configured, skipping playlist schedule")
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case <-initial:
			case <-runCtx.Done():
				return
			}
			d.schedule(runCtx, "playlists", d.opts.PlaylistInterval, d.SyncPlaylists, nil)
		}()
	}

	var err error
	select {
	case <-ctx.Done():
		d.logger.Info("shutting down")
	case err = <-serverErrors:
		err = fmt.Errorf("server error: %w", err)
	}

	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), d.opts.ShutdownTimeout)
	defer stop()
	if serr := httpServer.Shutdown(shutdownCtx); serr != nil {
		d.logger.Warn("error shutting down server", "error", serr)
	}

	wg.Wait()
	return err
}

// schedule runs pass now and then every interval. done, when non-nil, is closed after the first run.
func (d *Daemon) schedule(ctx context.Context, name string, interval time.Duration, pass func(context.Context) error, done chan<- struct{}) {
	run := func() {
		start := time.Now()
		d.logger.Info("scheduled pass starting", "pass", name)
		if err := pass(ctx); err != nil && ctx.Err() == nil {
			d.logger.Error("scheduled pass failed", "pass", name, "err", err)
		}
		d.logger.Debug("scheduled pass done", "pass", name, "duration", time.Since(start))
	}

	run()
	if done != nil {
		close(done)
	}
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	d.logger.Debug("next pass scheduled", "pass", name, "in", interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}

var _ Worker = (*tasks.Engine)(nil)
