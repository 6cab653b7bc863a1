// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/lbx/internal/services"
	"github.com/desertthunder/lbx/internal/shared"
)

// Catalog is an in-memory [services.Catalog] keyed by recording MBID.
type Catalog struct {
	Recordings    map[string]*services.Recording
	SharedService bool
}

func (c *Catalog) Recording(ctx context.Context, ref string) (*services.Recording, error) {
	rec, ok := c.Recordings[ref]
	if !ok {
		return nil, fmt.Errorf("%w: recording %s: status 404", shared.ErrAPIRequest, ref)
	}
	if rec.ArtistID == "" {
		return nil, fmt.Errorf("%w: %s", shared.ErrNoArtistCredit, ref)
	}
	return rec, nil
}

func (c *Catalog) Shared() bool { return c.SharedService }
func (c *Catalog) Name() string { return "mock catalog" }

// Feed is an in-memory [services.Feed].
type Feed struct {
	Recs      []services.Recommendation
	Playlists []services.FeedPlaylist
	Tracks    map[string][]services.PlaylistTrack
}

func (f *Feed) Recommendations(ctx context.Context, user string) ([]services.Recommendation, error) {
	return f.Recs, nil
}

func (f *Feed) FindPlaylist(ctx context.Context, user string, terms []string) (*services.FeedPlaylist, error) {
	matches := services.MatchPlaylists(f.Playlists, terms)
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: no playlist matching %v", shared.ErrPlaylistNotFound, terms)
	}
	return &matches[0], nil
}

func (f *Feed) PlaylistTracks(ctx context.Context, playlistID string) ([]services.PlaylistTrack, error) {
	return f.Tracks[playlistID], nil
}

func (f *Feed) CreatedFor(ctx context.Context, user string) ([]services.FeedPlaylist, error) {
	return f.Playlists, nil
}

type plexPlaylist struct {
	title   string
	members []services.Member
}

// Plex is an in-memory media server with a single music section. It implements
// [services.Library] and [services.Collections].
//
// Search returns every track whose title or artist appears in the query.
type Plex struct {
	Tracks []services.LibraryTrack

	mu        sync.Mutex
	playlists map[string]*plexPlaylist
	nextID    int
	calls     []string
}

func (p *Plex) record(call string) {
	p.calls = append(p.calls, call)
}

// Calls returns the playlist write calls made so far, e.g. "create Daily Jams 501".
func (p *Plex) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *Plex) Sections(ctx context.Context) ([]services.Section, error) {
	return []services.Section{{Key: "1", Title: "Music", Type: "artist"}}, nil
}

func (p *Plex) Search(ctx context.Context, sectionKey, query string) ([]services.LibraryTrack, error) {
	q := strings.ToLower(query)
	var out []services.LibraryTrack
	for _, t := range p.Tracks {
		if strings.Contains(q, strings.ToLower(t.Title)) || (t.Artist != "" && strings.Contains(q, strings.ToLower(t.Artist))) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (p *Plex) track(itemID string) services.LibraryTrack {
	for _, t := range p.Tracks {
		if t.ID == itemID {
			return t
		}
	}
	return services.LibraryTrack{ID: itemID}
}

func (p *Plex) FindByName(ctx context.Context, name string) (*services.Collection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, pl := range p.playlists {
		if pl.title == name {
			return &services.Collection{ID: id, Title: pl.title, ItemCount: len(pl.members)}, nil
		}
	}
	return nil, nil
}

func (p *Plex) Create(ctx context.Context, name, seedItemID string) (*services.Collection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playlists == nil {
		p.playlists = make(map[string]*plexPlaylist)
	}
	p.nextID++
	id := strconv.Itoa(900 + p.nextID)
	p.playlists[id] = &plexPlaylist{title: name}
	p.add(id, seedItemID)
	p.record("create " + name + " " + seedItemID)
	return &services.Collection{ID: id, Title: name, ItemCount: 1}, nil
}

func (p *Plex) add(collectionID, itemID string) {
	p.nextID++
	t := p.track(itemID)
	pl := p.playlists[collectionID]
	pl.members = append(pl.members, services.Member{ItemID: itemID, EntryID: strconv.Itoa(p.nextID), Title: t.Title, Artist: t.Artist})
}

func (p *Plex) AddItem(ctx context.Context, collectionID, itemID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.playlists[collectionID]; !ok {
		return fmt.Errorf("%w: playlist %s: status 404", shared.ErrAPIRequest, collectionID)
	}
	p.add(collectionID, itemID)
	p.record("add " + collectionID + " " + itemID)
	return nil
}

func (p *Plex) RemoveItem(ctx context.Context, collectionID, entryID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	pl, ok := p.playlists[collectionID]
	if !ok {
		return fmt.Errorf("%w: playlist %s: status 404", shared.ErrAPIRequest, collectionID)
	}
	for i, m := range pl.members {
		if m.EntryID == entryID {
			pl.members = append(pl.members[:i], pl.members[i+1:]...)
			p.record("remove " + collectionID + " " + entryID)
			return nil
		}
	}
	return fmt.Errorf("%w: entry %s: status 404", shared.ErrAPIRequest, entryID)
}

func (p *Plex) Delete(ctx context.Context, collectionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.playlists, collectionID)
	p.record("delete " + collectionID)
	return nil
}

func (p *Plex) Members(ctx context.Context, collectionID string) ([]services.Member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pl, ok := p.playlists[collectionID]
	if !ok {
		return nil, fmt.Errorf("%w: playlist %s: status 404", shared.ErrAPIRequest, collectionID)
	}
	return append([]services.Member(nil), pl.members...), nil
}

var (
	_ services.Catalog     = (*Catalog)(nil)
	_ services.Feed        = (*Feed)(nil)
	_ services.Library     = (*Plex)(nil)
	_ services.Collections = (*Plex)(nil)
)

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
