package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lbx/internal/shared"
	"github.com/desertthunder/lbx/internal/tasks"
)

type mockWorker struct {
	mu          sync.Mutex
	artists     []tasks.Artist
	artistErr   error
	results     []*tasks.RunResult
	syncErr     error
	artistCalls int
	syncCalls   int
	synced      chan struct{}
	playlists   []shared.PlaylistConfig
}

func (m *mockWorker) ArtistList(ctx context.Context, progress chan<- tasks.ProgressUpdate) ([]tasks.Artist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artistCalls++
	return m.artists, m.artistErr
}

func (m *mockWorker) SyncAll(ctx context.Context, playlists []shared.PlaylistConfig, progress chan<- tasks.ProgressUpdate) ([]*tasks.RunResult, error) {
	m.mu.Lock()
	m.syncCalls++
	m.playlists = playlists
	m.mu.Unlock()

	if m.synced != nil {
		select {
		case m.synced <- struct{}{}:
		default:
		}
	}
	return m.results, m.syncErr
}

func get(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBasicRouter(t *testing.T) {
	t.Run("middleware order", func(t *testing.T) {
		var order []string
		mw := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(mw("first"), mw("second"))
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}))

		get(t, router, http.MethodGet, "/ping")
		if strings.Join(order, ",") != "first,second,handler" {
			t.Errorf("unexpected order: %v", order)
		}
	})

	t.Run("method and path matching", func(t *testing.T) {
		state := NewState()
		router := NewBasicRouter()
		router.Handler(NewArtistHandler(state))

		tests := []struct {
			method string
			path   string
			want   int
		}{
			{http.MethodGet, "/", http.StatusOK},
			{http.MethodPost, "/", http.StatusMethodNotAllowed},
			{http.MethodGet, "/unknown", http.StatusNotFound},
		}

		for _, tt := range tests {
			t.Run(tt.method+" "+tt.path, func(t *testing.T) {
				if got := get(t, router, tt.method, tt.path).Code; got != tt.want {
					t.Errorf("expected %d, got %d", tt.want, got)
				}
			})
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("Logging", func(t *testing.T) {
		var buf bytes.Buffer
		logger := log.New(&buf)

		router := NewBasicRouter()
		router.Use(Logging(logger))
		router.Handler(NewArtistHandler(NewState()))
		router.Handler(NewHealthHandler(NewState(), HealthConfig{}))

		get(t, router, http.MethodGet, "/health")
		if buf.Len() != 0 {
			t.Errorf("expected health checks to be logged at debug level, got %q", buf.String())
		}

		get(t, router, http.MethodGet, "/")
		output := buf.String()
		if !strings.Contains(output, "path=/") || !strings.Contains(output, "status=200") {
			t.Errorf("expected request line, got %q", output)
		}
	})

	t.Run("Recover", func(t *testing.T) {
		router := NewBasicRouter()
		router.Use(Recover(log.New(&bytes.Buffer{})))
		router.Handle(http.MethodGet, "/boom", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		if got := get(t, router, http.MethodGet, "/boom").Code; got != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", got)
		}
	})
}

func TestArtistHandler(t *testing.T) {
	state := NewState()
	handler := NewArtistHandler(state)

	t.Run("empty array during initial processing", func(t *testing.T) {
		rec := get(t, handler, http.MethodGet, "/")
		if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
			t.Errorf("expected [], got %s", got)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
	})

	t.Run("lidarr list", func(t *testing.T) {
		state.SetArtists([]tasks.Artist{{MusicBrainzID: "art-1", Name: "Aphex Twin"}}, time.Now())

		var got []map[string]string
		if err := json.Unmarshal(get(t, handler, http.MethodGet, "/").Body.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(got) != 1 || got[0]["MusicBrainzId"] != "art-1" || got[0]["title"] != "Aphex Twin" {
			t.Errorf("unexpected list: %v", got)
		}
	})
}

func TestHealthHandler(t *testing.T) {
	state := NewState()
	handler := NewHealthHandler(state, HealthConfig{User: "rob", PlexConfigured: true, ArtistInterval: "24h0m0s"})

	type healthBody struct {
		Health
		Playlists []struct {
			Name     string `json:"name"`
			Strategy string `json:"strategy"`
			Added    int    `json:"added"`
		} `json:"playlists"`
	}

	decode := func(t *testing.T) healthBody {
		t.Helper()
		rec := get(t, handler, http.MethodGet, "/health")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var h healthBody
		if err := json.Unmarshal(rec.Body.Bytes(), &h); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		return h
	}

	t.Run("before first pass", func(t *testing.T) {
		h := decode(t)
		if h.Status != "healthy" || h.Ready {
			t.Errorf("unexpected health: %+v", h)
		}
		if h.ArtistsUpdated != nil {
			t.Errorf("expected null artists_updated, got %v", h.ArtistsUpdated)
		}
		if h.Config.User != "rob" || !h.Config.PlexConfigured {
			t.Errorf("unexpected config: %+v", h.Config)
		}
	})

	t.Run("after passes", func(t *testing.T) {
		now := time.Now()
		state.SetArtists([]tasks.Artist{{MusicBrainzID: "a"}, {MusicBrainzID: "b"}}, now)
		state.SetPlaylists([]*tasks.RunResult{{
			ID:       "run-1",
			Playlist: "Daily Jams",
			Plan:     tasks.Plan{Strategy: tasks.StrategyDelta},
			Report:   tasks.Report{Added: 3},
			Success:  true,
		}}, now)

		h := decode(t)
		if !h.Ready || h.ArtistCount != 2 || h.PlaylistsUpdated == nil {
			t.Errorf("unexpected health: %+v", h)
		}
		if len(h.Playlists) != 1 || h.Playlists[0].Strategy != "delta" || h.Playlists[0].Added != 3 {
			t.Errorf("unexpected playlists: %+v", h.Playlists)
		}
	})
}

func TestDaemon(t *testing.T) {
	ctx := context.Background()

	t.Run("failed artist pass keeps previous list", func(t *testing.T) {
		worker := &mockWorker{artists: []tasks.Artist{{MusicBrainzID: "art-1", Name: "Aphex Twin"}}}
		d := NewDaemon(worker, DaemonOpts{})

		if err := d.RefreshArtists(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		worker.artistErr = shared.ErrNoResolutions
		if err := d.RefreshArtists(ctx); !errors.Is(err, shared.ErrNoResolutions) {
			t.Fatalf("expected ErrNoResolutions, got %v", err)
		}

		artists, ready := d.State().Artists()
		if !ready || len(artists) != 1 {
			t.Errorf("expected previous list to survive, got %v (ready=%v)", artists, ready)
		}
		if msg := d.State().Snapshot().Message; !strings.Contains(msg, "artist pass failed") {
			t.Errorf("expected failure message, got %q", msg)
		}
	})

	t.Run("playlist pass records partial results", func(t *testing.T) {
		worker := &mockWorker{
			results: []*tasks.RunResult{{ID: "r1", Playlist: "Weekly Jams", Success: true}},
			syncErr: errors.New("Daily Jams: boom"),
		}
		playlists := []shared.PlaylistConfig{{Source: "weekly-jams", Name: "Weekly Jams"}, {Source: "daily-jams", Name: "Daily Jams"}}
		d := NewDaemon(worker, DaemonOpts{Playlists: playlists})

		if err := d.SyncPlaylists(ctx); err == nil {
			t.Error("expected error from failed playlist")
		}
		if len(worker.playlists) != 2 {
			t.Errorf("expected configured playlists to be passed through, got %v", worker.playlists)
		}
		if h := d.State().Snapshot(); len(h.Playlists) != 1 || h.Playlists[0].Name != "Weekly Jams" {
			t.Errorf("unexpected playlist statuses: %+v", h.Playlists)
		}
	})

	t.Run("run schedules passes and shuts down", func(t *testing.T) {
		worker := &mockWorker{
			artists: []tasks.Artist{{MusicBrainzID: "art-1"}},
			synced:  make(chan struct{}, 1),
		}
		d := NewDaemon(worker, DaemonOpts{Addr: "127.0.0.1:0"})

		runCtx, cancel := context.WithCancel(ctx)
		errCh := make(chan error, 1)
		go func() { errCh <- d.Run(runCtx) }()

		select {
		case <-worker.synced:
		case <-time.After(5 * time.Second):
			t.Fatal("playlist pass never ran")
		}
		cancel()

		select {
		case err := <-errCh:
			if err != nil {
				t.Errorf("expected clean shutdown, got %v", err)
			}
		case <-time.After(10 * time.Second):
			t.Fatal("daemon did not stop")
		}

		worker.mu.Lock()
		defer worker.mu.Unlock()
		if worker.artistCalls != 1 || worker.syncCalls != 1 {
			t.Errorf("expected one pass each, got artists=%d playlists=%d", worker.artistCalls, worker.syncCalls)
		}
	})

	t.Run("lidarr-only daemon skips playlist passes", func(t *testing.T) {
		worker := &mockWorker{artists: []tasks.Artist{{MusicBrainzID: "art-1", Name: "Aphex Twin"}}}
		d := NewDaemon(worker, DaemonOpts{
			Addr:        "127.0.0.1:0",
			ArtistsOnly: true,
			Health:      HealthConfig{User: "rob"},
		})

		runCtx, cancel := context.WithCancel(ctx)
		errCh := make(chan error, 1)
		go func() { errCh <- d.Run(runCtx) }()

		deadline := time.Now().Add(5 * time.Second)
		for {
			if _, ready := d.State().Artists(); ready {
				break
			}
			if time.Now().After(deadline) {
				cancel()
				t.Fatal("artist pass never ran")
			}
			time.Sleep(10 * time.Millisecond)
		}

		var got []map[string]string
		if err := json.Unmarshal(get(t, d.Handler(), http.MethodGet, "/").Body.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(got) != 1 || got[0]["MusicBrainzId"] != "art-1" {
			t.Errorf("unexpected list: %v", got)
		}

		cancel()
		select {
		case err := <-errCh:
			if err != nil {
				t.Errorf("expected clean shutdown, got %v", err)
			}
		case <-time.After(10 * time.Second):
			t.Fatal("daemon did not stop")
		}

		worker.mu.Lock()
		defer worker.mu.Unlock()
		if worker.syncCalls != 0 {
			t.Errorf("expected no playlist passes, got %d", worker.syncCalls)
		}
		if h := d.State().Snapshot(); h.Config.PlexConfigured || h.ArtistCount != 1 {
			t.Errorf("unexpected health: %+v", h)
		}
	})

	t.Run("listener failure stops the daemon", func(t *testing.T) {
		worker := &mockWorker{}
		d := NewDaemon(worker, DaemonOpts{Addr: "127.0.0.1:-1"})

		errCh := make(chan error, 1)
		go func() { errCh <- d.Run(ctx) }()

		select {
		case err := <-errCh:
			if err == nil || !strings.Contains(err.Error(), "server error") {
				t.Errorf("expected server error, got %v", err)
			}
		case <-time.After(10 * time.Second):
			t.Fatal("daemon did not stop")
		}
	})
}
