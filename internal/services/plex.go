// Plex Media Server [Library] and [Collections] implementation
//
// Requests ask for JSON; every payload sits under a MediaContainer envelope.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/desertthunder/lbx/internal/shared"
)

const (
	plexTrackType   = "10"
	plexLibraryPath = "/com.plexapp.plugins.library/library/metadata/"
)

// PlexDirectory is a library section entry from /library/sections.
type PlexDirectory struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// PlexGUID is an external provenance identifier (mbid://, plex://, ...).
type PlexGUID struct {
	ID string `json:"id"`
}

// PlexMetadata is a track or playlist entry.
//
// PlaylistItemID is only present on playlist item listings.
type PlexMetadata struct {
	RatingKey        string      `json:"ratingKey"`
	Title            string      `json:"title"`
	GrandparentTitle string      `json:"grandparentTitle"`
	ParentTitle      string      `json:"parentTitle"`
	GUID             string      `json:"guid"`
	GUIDs            []PlexGUID  `json:"Guid"`
	LeafCount        int         `json:"leafCount"`
	PlaylistType     string      `json:"playlistType"`
	PlaylistItemID   json.Number `json:"playlistItemID"`
}

// PlexMediaContainer is the envelope around every Plex JSON response.
type PlexMediaContainer struct {
	Size              int             `json:"size"`
	MachineIdentifier string          `json:"machineIdentifier"`
	Directory         []PlexDirectory `json:"Directory"`
	Metadata          []PlexMetadata  `json:"Metadata"`
}

type plexResponse struct {
	MediaContainer PlexMediaContainer `json:"MediaContainer"`
}

// PlexService implements [Library] and [Collections] for a Plex Media Server.
type PlexService struct {
	baseURL    string
	token      string
	httpClient *http.Client

	mu        sync.Mutex
	machineID string
}

// NewPlexService creates a Plex client for the server at baseURL.
func NewPlexService(baseURL, token string, client *http.Client) *PlexService {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:32400"
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &PlexService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: client,
	}
}

// Name returns the service name.
func (p *PlexService) Name() string {
	return "Plex"
}

func (p *PlexService) doRequest(ctx context.Context, method, endpoint string, params url.Values, result any) error {
	apiURL := p.baseURL + endpoint
	if len(params) > 0 {
		apiURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Plex-Token", p.token)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %w: plex rejected the token", shared.ErrAPIRequest, shared.ErrMissingCredentials)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: plex API error: %s %s: status %d", shared.ErrAPIRequest, method, endpoint, resp.StatusCode)
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrMalformedResponse, err)
	}

	return nil
}

// MachineIdentifier returns the server's machine identifier, fetched once from /identity.
func (p *PlexService) MachineIdentifier(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.machineID != "" {
		return p.machineID, nil
	}

	var resp plexResponse
	if err := p.doRequest(ctx, http.MethodGet, "/identity", nil, &resp); err != nil {
		return "", err
	}
	if resp.MediaContainer.MachineIdentifier == "" {
		return "", fmt.Errorf("%w: plex identity has no machineIdentifier", shared.ErrMalformedResponse)
	}

	p.machineID = resp.MediaContainer.MachineIdentifier
	return p.machineID, nil
}

// ItemURI builds the server:// URI used to reference library items in playlist calls.
func (p *PlexService) ItemURI(ctx context.Context, itemID string) (string, error) {
	machineID, err := p.MachineIdentifier(ctx)
	if err != nil {
		return "", err
	}
	return "server://" + machineID + plexLibraryPath + itemID, nil
}

// Sections lists every library section on the server.
func (p *PlexService) Sections(ctx context.Context) ([]Section, error) {
	var resp plexResponse
	if err := p.doRequest(ctx, http.MethodGet, "/library/sections", nil, &resp); err != nil {
		return nil, err
	}

	sections := make([]Section, 0, len(resp.MediaContainer.Directory))
	for _, d := range resp.MediaContainer.Directory {
		sections = append(sections, Section{Key: d.Key, Title: d.Title, Type: d.Type})
	}
	return sections, nil
}

// Search runs a track search in one section.
func (p *PlexService) Search(ctx context.Context, sectionKey, query string) ([]LibraryTrack, error) {
	params := url.Values{}
	params.Set("type", plexTrackType)
	params.Set("query", query)
	params.Set("includeGuids", "1")

	var resp plexResponse
	endpoint := fmt.Sprintf("/library/sections/%s/search", url.PathEscape(sectionKey))
	if err := p.doRequest(ctx, http.MethodGet, endpoint, params, &resp); err != nil {
		return nil, err
	}

	tracks := make([]LibraryTrack, 0, len(resp.MediaContainer.Metadata))
	for _, md := range resp.MediaContainer.Metadata {
		tracks = append(tracks, md.toTrack())
	}
	return tracks, nil
}

func (md PlexMetadata) toTrack() LibraryTrack {
	ids := make([]string, 0, len(md.GUIDs)+1)
	if md.GUID != "" {
		ids = append(ids, md.GUID)
	}
	for _, g := range md.GUIDs {
		if g.ID != "" {
			ids = append(ids, g.ID)
		}
	}

	return LibraryTrack{
		ID:     md.RatingKey,
		Title:  md.Title,
		Artist: md.GrandparentTitle,
		Album:  md.ParentTitle,
		GUID:   strings.Join(ids, " "),
	}
}

// Playlists lists the server's audio playlists.
func (p *PlexService) Playlists(ctx context.Context) ([]Collection, error) {
	params := url.Values{}
	params.Set("playlistType", "audio")

	var resp plexResponse
	if err := p.doRequest(ctx, http.MethodGet, "/playlists", params, &resp); err != nil {
		return nil, err
	}

	playlists := make([]Collection, 0, len(resp.MediaContainer.Metadata))
	for _, md := range resp.MediaContainer.Metadata {
		playlists = append(playlists, Collection{ID: md.RatingKey, Title: md.Title, ItemCount: md.LeafCount})
	}
	return playlists, nil
}

// FindByName returns the first audio playlist titled exactly name, or nil.
func (p *PlexService) FindByName(ctx context.Context, name string) (*Collection, error) {
	playlists, err := p.Playlists(ctx)
	if err != nil {
		return nil, err
	}

	for _, pl := range playlists {
		if pl.Title == name {
			return &pl, nil
		}
	}
	return nil, nil
}

// Create makes a non-smart audio playlist containing seedItemID.
func (p *PlexService) Create(ctx context.Context, name, seedItemID string) (*Collection, error) {
	uri, err := p.ItemURI(ctx, seedItemID)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("type", "audio")
	params.Set("title", name)
	params.Set("smart", "0")
	params.Set("uri", uri)

	var resp plexResponse
	if err := p.doRequest(ctx, http.MethodPost, "/playlists", params, &resp); err != nil {
		return nil, err
	}
	if len(resp.MediaContainer.Metadata) == 0 {
		return nil, fmt.Errorf("%w: plex returned no playlist after create", shared.ErrMalformedResponse)
	}

	md := resp.MediaContainer.Metadata[0]
	return &Collection{ID: md.RatingKey, Title: md.Title, ItemCount: md.LeafCount}, nil
}

// AddItem appends one library item to a playlist.
func (p *PlexService) AddItem(ctx context.Context, collectionID, itemID string) error {
	uri, err := p.ItemURI(ctx, itemID)
	if err != nil {
		return err
	}

	params := url.Values{}
	params.Set("uri", uri)

	endpoint := fmt.Sprintf("/playlists/%s/items", url.PathEscape(collectionID))
	return p.doRequest(ctx, http.MethodPut, endpoint, params, nil)
}

// RemoveItem drops one playlist entry by its playlistItemID.
func (p *PlexService) RemoveItem(ctx context.Context, collectionID, entryID string) error {
	endpoint := fmt.Sprintf("/playlists/%s/items/%s", url.PathEscape(collectionID), url.PathEscape(entryID))
	return p.doRequest(ctx, http.MethodDelete, endpoint, nil, nil)
}

// Delete removes a playlist.
func (p *PlexService) Delete(ctx context.Context, collectionID string) error {
	endpoint := fmt.Sprintf("/playlists/%s", url.PathEscape(collectionID))
	return p.doRequest(ctx, http.MethodDelete, endpoint, nil, nil)
}

// Members lists a playlist's entries in playlist order.
func (p *PlexService) Members(ctx context.Context, collectionID string) ([]Member, error) {
	var resp plexResponse
	endpoint := fmt.Sprintf("/playlists/%s/items", url.PathEscape(collectionID))
	if err := p.doRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}

	members := make([]Member, 0, len(resp.MediaContainer.Metadata))
	for _, md := range resp.MediaContainer.Metadata {
		members = append(members, Member{
			ItemID:  md.RatingKey,
			EntryID: md.PlaylistItemID.String(),
			Title:   md.Title,
			Artist:  md.GrandparentTitle,
		})
	}
	return members, nil
}
