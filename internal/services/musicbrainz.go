// MusicBrainz web service [Catalog] implementation
//
// Response types based on https://musicbrainz.org/doc/MusicBrainz_API
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/lbx/internal/shared"
)

const (
	musicBrainzBaseURL   = "https://musicbrainz.org/ws/2"
	musicBrainzUserAgent = "lbx/0.1.0 ( https://github.com/desertthunder/lbx )"
)

// MusicBrainzArtist is the artist object inside an artist credit.
type MusicBrainzArtist struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	SortName string `json:"sort-name"`
}

// MusicBrainzArtistCredit is one credited artist on a recording.
type MusicBrainzArtistCredit struct {
	Name       string            `json:"name"`
	JoinPhrase string            `json:"joinphrase"`
	Artist     MusicBrainzArtist `json:"artist"`
}

// MusicBrainzRecording is the recording lookup response with inc=artists.
type MusicBrainzRecording struct {
	ID           string                    `json:"id"`
	Title        string                    `json:"title"`
	Length       int                       `json:"length"`
	ArtistCredit []MusicBrainzArtistCredit `json:"artist-credit"`
}

// MusicBrainzService implements [Catalog] against the public service or a private mirror.
type MusicBrainzService struct {
	baseURL    string
	userAgent  string
	shared     bool
	httpClient *http.Client
}

// MusicBrainzOpts contains configuration for a [MusicBrainzService].
type MusicBrainzOpts struct {
	BaseURL    string // Web service root, including /ws/2
	UserAgent  string
	Shared     bool // True for the rate-limited public instance
	HTTPClient *http.Client
}

// NewMusicBrainzService creates a catalog client. The base URL defaults to the public service.
func NewMusicBrainzService(opts MusicBrainzOpts) *MusicBrainzService {
	if opts.BaseURL == "" {
		opts.BaseURL = musicBrainzBaseURL
		opts.Shared = true
	}
	if opts.UserAgent == "" {
		opts.UserAgent = musicBrainzUserAgent
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &MusicBrainzService{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		userAgent:  opts.UserAgent,
		shared:     opts.Shared,
		httpClient: opts.HTTPClient,
	}
}

// Name returns the service name.
func (m *MusicBrainzService) Name() string {
	if m.shared {
		return "MusicBrainz"
	}
	return "MusicBrainz (mirror)"
}

// Shared reports whether requests go to the public, rate-limited instance.
func (m *MusicBrainzService) Shared() bool {
	return m.shared
}

func (m *MusicBrainzService) doRequest(ctx context.Context, endpoint string, params url.Values, result any) error {
	apiURL := m.baseURL + endpoint
	if len(params) > 0 {
		apiURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", m.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: musicbrainz API error: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrMalformedResponse, err)
	}

	return nil
}

// LookupRecording fetches the raw recording with its artist credits.
func (m *MusicBrainzService) LookupRecording(ctx context.Context, mbid string) (*MusicBrainzRecording, error) {
	if mbid == "" {
		return nil, fmt.Errorf("%w: empty recording MBID", shared.ErrInvalidInput)
	}

	params := url.Values{}
	params.Set("fmt", "json")
	params.Set("inc", "artists")

	var rec MusicBrainzRecording
	if err := m.doRequest(ctx, "/recording/"+url.PathEscape(mbid), params, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Recording resolves a recording MBID to its first credited artist and title.
func (m *MusicBrainzService) Recording(ctx context.Context, ref string) (*Recording, error) {
	rec, err := m.LookupRecording(ctx, ref)
	if err != nil {
		return nil, err
	}

	if len(rec.ArtistCredit) == 0 || rec.ArtistCredit[0].Artist.ID == "" {
		return nil, fmt.Errorf("%w: %s", shared.ErrNoArtistCredit, ref)
	}

	credit := rec.ArtistCredit[0]
	name := credit.Artist.Name
	if name == "" {
		name = credit.Name
	}

	return &Recording{
		ID:         ref,
		Title:      rec.Title,
		ArtistID:   credit.Artist.ID,
		ArtistName: name,
	}, nil
}
