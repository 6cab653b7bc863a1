// ListenBrainz API [Feed] implementation
//
// Response types based on https://listenbrainz.readthedocs.io/en/latest/users/api/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/lbx/internal/shared"
	"golang.org/x/oauth2"
)

const (
	listenBrainzBaseURL    = "https://api.listenbrainz.org"
	recommendationPageSize = 100
	playlistPageSize       = 50
	jspfTrackExtension     = "https://musicbrainz.org/doc/jspf#track"
	recordingURLPrefix     = "https://musicbrainz.org/recording/"
	recordingURNPrefix     = "musicbrainz:recording:"
	listenBrainzAuthType   = "Token"
)

// Created-for playlist title terms.
var (
	WeeklyExplorationTerms = []string{"weekly exploration"}
	DailyJamsTerms         = []string{"daily jams"}
	WeeklyJamsTerms        = []string{"weekly jams"}
)

// IdentifierKind tags the shape of a JSPF identifier field.
type IdentifierKind int

const (
	IdentifierNone IdentifierKind = iota
	IdentifierSingle
	IdentifierList
)

// Identifier is a JSPF track identifier, which the API emits as either a string or a list of strings.
//
// The shape is resolved once while decoding.
type Identifier struct {
	Kind   IdentifierKind
	Values []string
}

// UnmarshalJSON decodes a string, a list, or null. Non-string list elements are dropped.
func (id *Identifier) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*id = Identifier{}
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = Identifier{Kind: IdentifierSingle, Values: []string{s}}
	case '[':
		var raw []any
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		values := make([]string, 0, len(raw))
		for _, v := range raw {
			if s, ok := v.(string); ok {
				values = append(values, s)
			}
		}
		*id = Identifier{Kind: IdentifierList, Values: values}
	default:
		*id = Identifier{}
	}
	return nil
}

// RecordingMBID returns the first MusicBrainz recording id among the values, or "".
func (id Identifier) RecordingMBID() string {
	for _, v := range id.Values {
		if mbid, ok := strings.CutPrefix(v, recordingURLPrefix); ok && mbid != "" {
			return strings.TrimRight(mbid, "/")
		}
		if mbid, ok := strings.CutPrefix(v, recordingURNPrefix); ok && mbid != "" {
			return mbid
		}
	}
	return ""
}

// JSPFTrack is a track in a JSPF playlist.
type JSPFTrack struct {
	Title      string                     `json:"title"`
	Creator    string                     `json:"creator"`
	Album      string                     `json:"album"`
	Identifier Identifier                 `json:"identifier"`
	Extension  map[string]json.RawMessage `json:"extension"`
}

// RecordingMBID extracts the recording id from the identifier, falling back to the MusicBrainz track extension.
func (t JSPFTrack) RecordingMBID() string {
	if mbid := t.Identifier.RecordingMBID(); mbid != "" {
		return mbid
	}

	raw, ok := t.Extension[jspfTrackExtension]
	if !ok {
		return ""
	}
	var ext struct {
		RecordingMBID string `json:"recording_mbid"`
	}
	if err := json.Unmarshal(raw, &ext); err != nil {
		return ""
	}
	return ext.RecordingMBID
}

// JSPFPlaylist is a JSPF playlist body.
type JSPFPlaylist struct {
	Title      string      `json:"title"`
	Identifier string      `json:"identifier"`
	Date       string      `json:"date"`
	Creator    string      `json:"creator"`
	Track      []JSPFTrack `json:"track"`
}

type jspfEnvelope struct {
	Playlist JSPFPlaylist `json:"playlist"`
}

type playlistsResponse struct {
	Count     int            `json:"count"`
	Offset    int            `json:"offset"`
	Total     int            `json:"playlist_count"`
	Playlists []jspfEnvelope `json:"playlists"`
}

type recommendationItem struct {
	RecordingMBID    string          `json:"recording_mbid"`
	Score            float64         `json:"score"`
	LatestListenedAt json.RawMessage `json:"latest_listened_at"`
	AddedAt          json.RawMessage `json:"added_at"`
}

type recommendationResponse struct {
	Payload struct {
		MBIDs  []recommendationItem `json:"mbids"`
		Count  int                  `json:"count"`
		Offset int                  `json:"offset"`
		Total  int                  `json:"total_mbid_count"`
	} `json:"payload"`
}

// ListenBrainzService implements [Feed] against the ListenBrainz API.
type ListenBrainzService struct {
	baseURL    string
	httpClient *http.Client
}

// NewListenBrainzService creates a feed client. A non-empty token is sent as "Authorization: Token <token>".
func NewListenBrainzService(baseURL, token string, client *http.Client) *ListenBrainzService {
	if baseURL == "" {
		baseURL = listenBrainzBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	if token != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: listenBrainzAuthType})
		client = &http.Client{
			Timeout:   client.Timeout,
			Transport: &oauth2.Transport{Source: src, Base: client.Transport},
		}
	}

	return &ListenBrainzService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// Name returns the service name.
func (l *ListenBrainzService) Name() string {
	return "ListenBrainz"
}

// doRequest returns (false, nil) on 204 No Content, which the API uses for "nothing yet".
func (l *ListenBrainzService) doRequest(ctx context.Context, endpoint string, params url.Values, result any) (bool, error) {
	apiURL := l.baseURL + endpoint
	if len(params) > 0 {
		apiURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("%w: listenbrainz API error: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return false, fmt.Errorf("%w: %v", shared.ErrMalformedResponse, err)
	}
	return true, nil
}

// Recommendations pages through all collaborative-filtering recording recommendations for user.
func (l *ListenBrainzService) Recommendations(ctx context.Context, user string) ([]Recommendation, error) {
	if user == "" {
		return nil, fmt.Errorf("%w: listenbrainz user", shared.ErrMissingArgument)
	}

	var recs []Recommendation
	endpoint := fmt.Sprintf("/1/cf/recommendation/user/%s/recording", url.PathEscape(user))

	for offset := 0; ; offset += recommendationPageSize {
		params := url.Values{}
		params.Set("count", strconv.Itoa(recommendationPageSize))
		params.Set("offset", strconv.Itoa(offset))

		var page recommendationResponse
		ok, err := l.doRequest(ctx, endpoint, params, &page)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		for _, item := range page.Payload.MBIDs {
			recs = append(recs, item.toRecommendation())
		}

		if len(page.Payload.MBIDs) < recommendationPageSize {
			break
		}
	}

	return recs, nil
}

func (r recommendationItem) toRecommendation() Recommendation {
	rec := Recommendation{RecordingMBID: r.RecordingMBID, Score: r.Score}

	if v := bytes.TrimSpace(r.LatestListenedAt); len(v) > 0 && !bytes.Equal(v, []byte("null")) {
		rec.Listened = true
	}

	var ts float64
	if err := json.Unmarshal(r.AddedAt, &ts); err == nil && ts > 0 {
		sec := int64(ts)
		rec.AddedAt = time.Unix(sec, int64((ts-float64(sec))*float64(time.Second)))
	}

	return rec
}

// RecommendationFilter narrows a recommendation list.
type RecommendationFilter struct {
	NullOnly bool // Keep only recordings the listener has never played
	Days     int  // Keep only recommendations added within this many days; 0 keeps all
}

// FilterRecommendations applies f relative to now.
//
// Recommendations without an added timestamp survive the day filter.
func FilterRecommendations(recs []Recommendation, f RecommendationFilter, now time.Time) []Recommendation {
	cutoff := now.AddDate(0, 0, -f.Days)

	out := make([]Recommendation, 0, len(recs))
	for _, r := range recs {
		if f.NullOnly && r.Listened {
			continue
		}
		if f.Days > 0 && !r.AddedAt.IsZero() && r.AddedAt.Before(cutoff) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// CreatedFor pages through the playlists generated for user.
func (l *ListenBrainzService) CreatedFor(ctx context.Context, user string) ([]FeedPlaylist, error) {
	if user == "" {
		return nil, fmt.Errorf("%w: listenbrainz user", shared.ErrMissingArgument)
	}

	var playlists []FeedPlaylist
	endpoint := fmt.Sprintf("/1/user/%s/playlists/createdfor", url.PathEscape(user))

	for offset := 0; ; offset += playlistPageSize {
		params := url.Values{}
		params.Set("count", strconv.Itoa(playlistPageSize))
		params.Set("offset", strconv.Itoa(offset))

		var page playlistsResponse
		ok, err := l.doRequest(ctx, endpoint, params, &page)
		if err != nil {
			return nil, err
		}
		if !ok || len(page.Playlists) == 0 {
			break
		}

		for _, env := range page.Playlists {
			playlists = append(playlists, FeedPlaylist{
				ID:    playlistID(env.Playlist.Identifier),
				Title: env.Playlist.Title,
				Date:  env.Playlist.Date,
			})
		}

		if len(page.Playlists) < playlistPageSize {
			break
		}
	}

	return playlists, nil
}

// playlistID takes the trailing path segment of a playlist identifier URL.
func playlistID(identifier string) string {
	identifier = strings.TrimRight(identifier, "/")
	if i := strings.LastIndex(identifier, "/"); i >= 0 {
		return identifier[i+1:]
	}
	return identifier
}

// FindPlaylist returns the most recent created-for playlist whose title contains any of terms (case-insensitive).
func (l *ListenBrainzService) FindPlaylist(ctx context.Context, user string, terms []string) (*FeedPlaylist, error) {
	playlists, err := l.CreatedFor(ctx, user)
	if err != nil {
		return nil, err
	}

	matches := MatchPlaylists(playlists, terms)
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: no playlist matching %v for %s", shared.ErrPlaylistNotFound, terms, user)
	}
	return &matches[0], nil
}

// MatchPlaylists keeps playlists whose title contains any term, most recent date first.
func MatchPlaylists(playlists []FeedPlaylist, terms []string) []FeedPlaylist {
	var matches []FeedPlaylist
	for _, pl := range playlists {
		title := strings.ToLower(pl.Title)
		for _, term := range terms {
			if term != "" && strings.Contains(title, strings.ToLower(term)) {
				matches = append(matches, pl)
				break
			}
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Date > matches[j].Date
	})
	return matches
}

// Playlist fetches a JSPF playlist by MBID.
func (l *ListenBrainzService) Playlist(ctx context.Context, playlistID string) (*JSPFPlaylist, error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	var env jspfEnvelope
	ok, err := l.doRequest(ctx, "/1/playlist/"+url.PathEscape(playlistID), nil, &env)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}
	return &env.Playlist, nil
}

// PlaylistTracks lists the tracks of a playlist that carry a recording MBID, in playlist order.
func (l *ListenBrainzService) PlaylistTracks(ctx context.Context, playlistID string) ([]PlaylistTrack, error) {
	pl, err := l.Playlist(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	tracks := make([]PlaylistTrack, 0, len(pl.Track))
	for _, t := range pl.Track {
		mbid := t.RecordingMBID()
		if mbid == "" {
			continue
		}
		tracks = append(tracks, PlaylistTrack{
			RecordingMBID: mbid,
			Title:         t.Title,
			Creator:       t.Creator,
			Album:         t.Album,
		})
	}
	return tracks, nil
}
