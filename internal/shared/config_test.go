package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.MusicBrainz.BaseURL != "https://musicbrainz.org/ws/2" {
			t.Errorf("expected public musicbrainz base URL, got %s", config.MusicBrainz.BaseURL)
		}

		if config.MusicBrainz.MinInterval != 1100*time.Millisecond {
			t.Errorf("expected min interval 1.1s, got %v", config.MusicBrainz.MinInterval)
		}

		if config.Server.Port != 8000 {
			t.Errorf("expected server port 8000, got %d", config.Server.Port)
		}

		if config.Plex.PlaylistName != "ListenBrainz Weekly Discovery" {
			t.Errorf("expected default playlist name, got %s", config.Plex.PlaylistName)
		}

		if config.ListenBrainz.DaysFilter != 14 {
			t.Errorf("expected days filter 14, got %d", config.ListenBrainz.DaysFilter)
		}

		if len(config.Playlists) != 4 {
			t.Errorf("expected 4 default playlists, got %d", len(config.Playlists))
		}

		if config.HTTP.RequestTimeout != 30*time.Second {
			t.Errorf("expected request timeout 30s, got %v", config.HTTP.RequestTimeout)
		}
	})

	t.Run("pinned legacy thresholds", func(t *testing.T) {
		config := DefaultConfig()

		if config.Plex.SimilarityThreshold != 0.8 {
			t.Errorf("expected similarity threshold 0.8, got %v", config.Plex.SimilarityThreshold)
		}
		if config.Plex.MinScore != 50 {
			t.Errorf("expected min score 50, got %d", config.Plex.MinScore)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Plex.BaseURL != defaultConfig.Plex.BaseURL {
			t.Errorf("created config plex base URL doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[listenbrainz]
user = "rob"

[musicbrainz]
mirror = "192.168.1.10:5000"
concurrency = 4

[plex]
base_url = "http://plex.local:32400"
token = "plex-token"
item_delay = "250ms"

[server]
port = 9000

[[playlists]]
source = "daily-jams"
name = "Jams"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.ListenBrainz.User != "rob" {
			t.Errorf("expected user rob, got %s", config.ListenBrainz.User)
		}

		if config.Plex.ItemDelay != 250*time.Millisecond {
			t.Errorf("expected item delay 250ms, got %v", config.Plex.ItemDelay)
		}

		if config.Plex.MinScore != 50 {
			t.Errorf("expected unset min score to keep default 50, got %d", config.Plex.MinScore)
		}

		if config.Server.Port != 9000 {
			t.Errorf("expected server port 9000, got %d", config.Server.Port)
		}

		if len(config.Playlists) != 1 || config.Playlists[0].Name != "Jams" {
			t.Errorf("expected configured playlists to replace defaults, got %+v", config.Playlists)
		}

		if config.MusicBrainz.Shared() {
			t.Error("expected mirror config to be unshared")
		}

		if got := config.MusicBrainz.Endpoint(); got != "http://192.168.1.10:5000/ws/2" {
			t.Errorf("expected mirror endpoint, got %s", got)
		}

		if config.MusicBrainz.PoolWidth() != 4 {
			t.Errorf("expected pool width 4, got %d", config.MusicBrainz.PoolWidth())
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}

func TestMusicBrainzConfig(t *testing.T) {
	tests := []struct {
		name       string
		cfg        MusicBrainzConfig
		wantShared bool
		wantURL    string
		wantWidth  int
	}{
		{
			name:       "public service",
			cfg:        MusicBrainzConfig{BaseURL: "https://musicbrainz.org/ws/2"},
			wantShared: true,
			wantURL:    "https://musicbrainz.org/ws/2",
			wantWidth:  10,
		},
		{
			name:       "mirror with scheme",
			cfg:        MusicBrainzConfig{Mirror: "https://mb.example.com/", Concurrency: 25},
			wantShared: false,
			wantURL:    "https://mb.example.com/ws/2",
			wantWidth:  10,
		},
		{
			name:       "mirror host only",
			cfg:        MusicBrainzConfig{Mirror: "mb.lan", Concurrency: 3},
			wantShared: false,
			wantURL:    "http://mb.lan/ws/2",
			wantWidth:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Shared(); got != tt.wantShared {
				t.Errorf("Shared() = %v, want %v", got, tt.wantShared)
			}
			if got := tt.cfg.Endpoint(); got != tt.wantURL {
				t.Errorf("Endpoint() = %v, want %v", got, tt.wantURL)
			}
			if got := tt.cfg.PoolWidth(); got != tt.wantWidth {
				t.Errorf("PoolWidth() = %v, want %v", got, tt.wantWidth)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := func(m map[string]string) func(string) (string, bool) {
		return func(k string) (string, bool) {
			v, ok := m[k]
			return v, ok
		}
	}

	t.Run("overrides", func(t *testing.T) {
		config := DefaultConfig()
		err := config.ApplyEnv(env(map[string]string{
			"LB_USER":                "alice",
			"METABRAINZ_TOKEN":       "lb-token",
			"PLEX_TOKEN":             "plex-token",
			"LOCAL_MB_MIRROR":        "true",
			"MB_MIRROR":              "10.0.0.2:5000",
			"HTTP_PORT":              "8080",
			"PLEX_UPDATE_INTERVAL":   "3600",
			"LIDARR_UPDATE_INTERVAL": "0",
		}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if config.ListenBrainz.User != "alice" {
			t.Errorf("expected user alice, got %s", config.ListenBrainz.User)
		}
		if config.ListenBrainz.Token != "lb-token" {
			t.Errorf("expected token lb-token, got %s", config.ListenBrainz.Token)
		}
		if config.MusicBrainz.Mirror != "10.0.0.2:5000" {
			t.Errorf("expected mirror 10.0.0.2:5000, got %s", config.MusicBrainz.Mirror)
		}
		if config.Server.Port != 8080 {
			t.Errorf("expected port 8080, got %d", config.Server.Port)
		}
		if config.Server.PlaylistInterval != time.Hour {
			t.Errorf("expected playlist interval 1h, got %v", config.Server.PlaylistInterval)
		}
		if config.Server.ArtistInterval != 0 {
			t.Errorf("expected artist interval 0, got %v", config.Server.ArtistInterval)
		}
	})

	t.Run("mirror ignored unless local", func(t *testing.T) {
		config := DefaultConfig()
		if err := config.ApplyEnv(env(map[string]string{"MB_MIRROR": "10.0.0.2"})); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !config.MusicBrainz.Shared() {
			t.Error("expected public service without LOCAL_MB_MIRROR")
		}
	})

	t.Run("invalid values", func(t *testing.T) {
		for _, kv := range [][2]string{{"HTTP_PORT", "eighty"}, {"LOCAL_MB_MIRROR", "maybe"}} {
			config := DefaultConfig()
			err := config.ApplyEnv(env(map[string]string{kv[0]: kv[1]}))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("%s=%s: expected ErrInvalidConfig, got %v", kv[0], kv[1], err)
			}
		}
	})
}

func TestValidate(t *testing.T) {
	t.Run("defaults are missing credentials", func(t *testing.T) {
		err := DefaultConfig().Validate()
		if !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("complete config", func(t *testing.T) {
		config := DefaultConfig()
		config.ListenBrainz.User = "alice"
		config.Plex.Token = "tok"
		if err := config.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("public service interval floor", func(t *testing.T) {
		config := DefaultConfig()
		config.ListenBrainz.User = "alice"
		config.Plex.Token = "tok"
		config.MusicBrainz.MinInterval = 500 * time.Millisecond
		if err := config.Validate(); err == nil {
			t.Error("expected error for sub-second interval against public service")
		}

		config.MusicBrainz.Mirror = "mb.lan"
		if err := config.Validate(); err != nil {
			t.Errorf("mirror should not enforce the interval floor: %v", err)
		}
	})

	t.Run("feed settings without plex", func(t *testing.T) {
		config := DefaultConfig()
		config.ListenBrainz.User = "alice"
		config.Plex.Token = ""
		if config.Plex.Configured() {
			t.Error("expected plex to be unconfigured without a token")
		}
		if err := config.ValidateFeed(); err != nil {
			t.Errorf("feed settings should not need plex: %v", err)
		}
		if err := config.ValidatePlex(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig from ValidatePlex, got %v", err)
		}
		if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig from Validate, got %v", err)
		}

		config.ListenBrainz.User = ""
		if err := config.ValidateFeed(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig without a user, got %v", err)
		}
	})
}
