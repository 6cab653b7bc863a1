package server

import (
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/desertthunder/lbx/internal/tasks"
)

// State is the daemon's view of the latest scheduled passes. It is safe for concurrent use.
type State struct {
	mu               sync.RWMutex
	artists          []tasks.Artist
	ready            bool
	message          string
	artistsUpdated   time.Time
	playlistsUpdated time.Time
	playlists        []PlaylistStatus
}

// PlaylistStatus summarizes the last pass over one playlist.
type PlaylistStatus struct {
	Name     string         `json:"name"`
	RunID    string         `json:"run_id"`
	Strategy tasks.Strategy `json:"strategy"`
	Added    int            `json:"added"`
	Skipped  int            `json:"skipped"`
	Success  bool           `json:"success"`
}

// NewState returns a State that reports initial processing until the first artist pass lands.
func NewState() *State {
	return &State{message: "initial processing"}
}

// SetArtists replaces the artist list and marks initial processing complete.
func (s *State) SetArtists(artists []tasks.Artist, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.artists = slices.Clone(artists)
	s.ready = true
	s.message = "ok"
	s.artistsUpdated = at
}

// SetMessage records a status line, typically the last pass error.
func (s *State) SetMessage(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = msg
}

// SetPlaylists records the outcome of a playlist pass.
func (s *State) SetPlaylists(results []*tasks.RunResult, at time.Time) {
	statuses := make([]PlaylistStatus, 0, len(results))
	for _, r := range results {
		statuses = append(statuses, PlaylistStatus{
			Name:     r.Playlist,
			RunID:    r.ID,
			Strategy: r.Plan.Strategy,
			Added:    r.Report.Added,
			Skipped:  r.Report.Skipped,
			Success:  r.Success,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.playlists = statuses
	s.playlistsUpdated = at
}

// Artists returns a copy of the current list and whether initial processing finished.
func (s *State) Artists() ([]tasks.Artist, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.artists), s.ready
}

// Health is the /health response body.
type Health struct {
	Status           string           `json:"status"`
	Ready            bool             `json:"initial_processing_complete"`
	Message          string           `json:"message"`
	ArtistCount      int              `json:"artists_count"`
	ArtistsUpdated   *time.Time       `json:"artists_updated"`
	PlaylistsUpdated *time.Time       `json:"playlists_updated"`
	Playlists        []PlaylistStatus `json:"playlists"`
	Config           HealthConfig     `json:"config"`
}

// HealthConfig is the non-secret configuration echoed by /health.
type HealthConfig struct {
	User             string `json:"user"`
	PlexConfigured   bool   `json:"plex_configured"`
	ArtistInterval   string `json:"artist_interval"`
	PlaylistInterval string `json:"playlist_interval"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// Snapshot returns the health view of the state.
func (s *State) Snapshot() Health {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Health{
		Status:           "healthy",
		Ready:            s.ready,
		Message:          s.message,
		ArtistCount:      len(s.artists),
		ArtistsUpdated:   timePtr(s.artistsUpdated),
		PlaylistsUpdated: timePtr(s.playlistsUpdated),
		Playlists:        slices.Clone(s.playlists),
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

// ArtistHandler serves the Lidarr custom list: a JSON array of {"MusicBrainzId", "title"}.
//
// The array is empty, never null, until the first artist pass completes.
type ArtistHandler struct {
	state *State
}

// NewArtistHandler creates an [ArtistHandler] over state.
func NewArtistHandler(state *State) *ArtistHandler {
	return &ArtistHandler{state: state}
}

// Routes returns the HTTP routes this handler serves.
func (h *ArtistHandler) Routes() []string {
	return []string{"/"}
}

func (h *ArtistHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	artists, _ := h.state.Artists()
	if artists == nil {
		artists = []tasks.Artist{}
	}
	writeJSON(w, artists)
}

// HealthHandler always answers 200 while the process is up, even during initial processing.
type HealthHandler struct {
	state  *State
	config HealthConfig
}

// NewHealthHandler creates a [HealthHandler] over state.
func NewHealthHandler(state *State, config HealthConfig) *HealthHandler {
	return &HealthHandler{state: state, config: config}
}

// Routes returns the HTTP routes this handler serves.
func (h *HealthHandler) Routes() []string {
	return []string{"/health"}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	health := h.state.Snapshot()
	health.Config = h.config
	writeJSON(w, health)
}
