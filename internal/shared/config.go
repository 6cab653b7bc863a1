package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// MaxMirrorConcurrency caps the lookup pool width against a private catalog mirror.
const MaxMirrorConcurrency = 10

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	ListenBrainz ListenBrainzConfig `toml:"listenbrainz"`
	MusicBrainz  MusicBrainzConfig  `toml:"musicbrainz"`
	Plex         PlexConfig         `toml:"plex"`
	HTTP         HTTPConfig         `toml:"http"`
	Server       ServerConfig       `toml:"server"`
	Playlists    []PlaylistConfig   `toml:"playlists"`
}

// ListenBrainzConfig contains the recommendation feed settings.
type ListenBrainzConfig struct {
	User       string `toml:"user"`
	Token      string `toml:"token"`
	BaseURL    string `toml:"base_url"`
	DaysFilter int    `toml:"days_filter"`
	NullOnly   bool   `toml:"null_only"`
}

// MusicBrainzConfig contains catalog lookup settings.
//
// An empty Mirror means the shared public service at BaseURL is used.
type MusicBrainzConfig struct {
	BaseURL     string        `toml:"base_url"`
	Mirror      string        `toml:"mirror"`
	Concurrency int           `toml:"concurrency"`
	MinInterval time.Duration `toml:"min_interval"`
	UserAgent   string        `toml:"user_agent"`
}

// PlexConfig contains Plex server credentials and reconciliation tuning.
type PlexConfig struct {
	BaseURL             string        `toml:"base_url"`
	Token               string        `toml:"token"`
	PlaylistName        string        `toml:"playlist_name"`
	SimilarityThreshold float64       `toml:"similarity_threshold"`
	MinScore            int           `toml:"min_score"`
	ItemDelay           time.Duration `toml:"item_delay"`
	SettleDelay         time.Duration `toml:"settle_delay"`
	VerifyDelay         time.Duration `toml:"verify_delay"`
}

// HTTPConfig contains outbound HTTP client settings.
type HTTPConfig struct {
	RequestTimeout time.Duration `toml:"request_timeout"`
}

// ServerConfig contains daemon HTTP server and scheduling settings.
type ServerConfig struct {
	Host             string        `toml:"host"`
	Port             int           `toml:"port"`
	ArtistInterval   time.Duration `toml:"artist_interval"`
	PlaylistInterval time.Duration `toml:"playlist_interval"`
}

// PlaylistConfig maps a recommendation source to a Plex playlist name.
type PlaylistConfig struct {
	Source string `toml:"source"`
	Name   string `toml:"name"`
}

// Endpoint returns the catalog web service root, preferring the mirror when set.
func (c MusicBrainzConfig) Endpoint() string {
	if c.Mirror == "" {
		return c.BaseURL
	}
	if strings.HasPrefix(c.Mirror, "http://") || strings.HasPrefix(c.Mirror, "https://") {
		return strings.TrimRight(c.Mirror, "/") + "/ws/2"
	}
	return "http://" + strings.TrimRight(c.Mirror, "/") + "/ws/2"
}

// Shared reports whether lookups go to the rate-limited public service.
func (c MusicBrainzConfig) Shared() bool {
	return c.Mirror == ""
}

// PoolWidth returns the configured mirror concurrency clamped to [1, MaxMirrorConcurrency].
func (c MusicBrainzConfig) PoolWidth() int {
	switch {
	case c.Concurrency <= 0:
		return MaxMirrorConcurrency
	case c.Concurrency > MaxMirrorConcurrency:
		return MaxMirrorConcurrency
	default:
		return c.Concurrency
	}
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	config.Playlists = nil
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if len(config.Playlists) == 0 {
		config.Playlists = DefaultConfig().Playlists
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides config values from environment variables using lookup.
//
// Pass [os.LookupEnv] in production. Interval variables are whole seconds.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, key, v)
		}
		*dst = n
		return nil
	}
	seconds := func(key string, dst *time.Duration) error {
		n := -1
		if err := num(key, &n); err != nil {
			return err
		}
		if n >= 0 {
			*dst = time.Duration(n) * time.Second
		}
		return nil
	}

	str("LB_USER", &c.ListenBrainz.User)
	str("METABRAINZ_TOKEN", &c.ListenBrainz.Token)
	str("PLEX_BASE_URL", &c.Plex.BaseURL)
	str("PLEX_TOKEN", &c.Plex.Token)
	str("PLEX_PLAYLIST_NAME", &c.Plex.PlaylistName)

	if v, ok := lookup("LOCAL_MB_MIRROR"); ok {
		local, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: LOCAL_MB_MIRROR=%q is not a boolean", ErrInvalidConfig, v)
		}
		if local {
			str("MB_MIRROR", &c.MusicBrainz.Mirror)
		} else {
			c.MusicBrainz.Mirror = ""
		}
	}

	if err := num("HTTP_PORT", &c.Server.Port); err != nil {
		return err
	}
	if err := num("PLEX_DAYS_FILTER", &c.ListenBrainz.DaysFilter); err != nil {
		return err
	}
	if err := seconds("LIDARR_UPDATE_INTERVAL", &c.Server.ArtistInterval); err != nil {
		return err
	}
	return seconds("PLEX_UPDATE_INTERVAL", &c.Server.PlaylistInterval)
}

// Validate checks that the settings needed to run a pipeline pass are present and in range.
func (c *Config) Validate() error {
	return invalid(append(c.feedProblems(), c.plexProblems()...))
}

// ValidateFeed checks only the settings the artist list needs. Plex may be left unset.
func (c *Config) ValidateFeed() error {
	return invalid(c.feedProblems())
}

// ValidatePlex checks the Plex connection and matching settings.
func (c *Config) ValidatePlex() error {
	return invalid(c.plexProblems())
}

// Configured reports whether both the server URL and token are set.
func (p PlexConfig) Configured() bool {
	return p.BaseURL != "" && p.Token != ""
}

func (c *Config) feedProblems() []string {
	var problems []string
	if c.ListenBrainz.User == "" {
		problems = append(problems, "listenbrainz.user is required")
	}
	if c.MusicBrainz.Shared() && c.MusicBrainz.MinInterval < time.Second {
		problems = append(problems, "musicbrainz.min_interval must be at least 1s for the public service")
	}
	for i, pl := range c.Playlists {
		if pl.Name == "" {
			problems = append(problems, fmt.Sprintf("playlists[%d].name is required", i))
		}
	}
	return problems
}

func (c *Config) plexProblems() []string {
	var problems []string
	if c.Plex.BaseURL == "" {
		problems = append(problems, "plex.base_url is required")
	}
	if c.Plex.Token == "" {
		problems = append(problems, "plex.token is required")
	}
	if c.Plex.SimilarityThreshold < 0 || c.Plex.SimilarityThreshold > 1 {
		problems = append(problems, "plex.similarity_threshold must be within [0, 1]")
	}
	if c.Plex.MinScore < 0 || c.Plex.MinScore > 250 {
		problems = append(problems, "plex.min_score must be within [0, 250]")
	}
	return problems
}

func invalid(problems []string) error {
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
