package services

import (
	"context"
	"time"
)

// Catalog resolves recording references to artist and title metadata.
type Catalog interface {
	// Recording looks up a recording by MBID.
	//
	// Returns [shared.ErrNoArtistCredit] when the recording exists but carries no artist.
	Recording(ctx context.Context, ref string) (*Recording, error)

	// Shared reports whether the backing service is the rate-limited public instance.
	Shared() bool

	// Name returns the name of the service (e.g., "MusicBrainz")
	Name() string
}

// Library searches the target media server for candidate tracks.
type Library interface {
	// Sections lists the library sections on the server, music or otherwise.
	Sections(ctx context.Context) ([]Section, error)

	// Search issues a free-text track search scoped to one section.
	Search(ctx context.Context, sectionKey, query string) ([]LibraryTrack, error)
}

// Collections manages named audio playlists on the target media server.
//
// Membership changes are one item per call; the server has no batch write.
type Collections interface {
	// FindByName returns the playlist titled name, or nil when none exists.
	FindByName(ctx context.Context, name string) (*Collection, error)

	// Create makes a playlist seeded with exactly one item.
	Create(ctx context.Context, name, seedItemID string) (*Collection, error)

	// AddItem appends one item to a playlist.
	AddItem(ctx context.Context, collectionID, itemID string) error

	// RemoveItem drops one playlist entry, addressed by its entry id (not the item id).
	RemoveItem(ctx context.Context, collectionID, entryID string) error

	// Delete removes the playlist.
	Delete(ctx context.Context, collectionID string) error

	// Members lists the playlist's entries in order.
	Members(ctx context.Context, collectionID string) ([]Member, error)
}

// Feed supplies recording references from a listener's recommendations.
type Feed interface {
	// Recommendations pages through collaborative-filtering recommendations for user.
	Recommendations(ctx context.Context, user string) ([]Recommendation, error)

	// FindPlaylist returns the most recent generated playlist whose title contains one of terms.
	FindPlaylist(ctx context.Context, user string, terms []string) (*FeedPlaylist, error)

	// PlaylistTracks lists the tracks of a generated playlist that carry a recording MBID.
	PlaylistTracks(ctx context.Context, playlistID string) ([]PlaylistTrack, error)
}

// Recording is the catalog view of a recording reference.
type Recording struct {
	ID         string
	Title      string
	ArtistID   string
	ArtistName string
}

// Section is a library section on the media server.
type Section struct {
	Key   string
	Title string
	Type  string
}

// Music reports whether the section holds audio.
func (s Section) Music() bool {
	return s.Type == "artist" || s.Type == "music"
}

// LibraryTrack is a search candidate from the media server.
type LibraryTrack struct {
	ID     string
	Title  string
	Artist string
	Album  string
	GUID   string // Provenance identifiers (plex://, mbid://, ...) joined by spaces
}

// Collection is a playlist on the media server.
type Collection struct {
	ID        string
	Title     string
	ItemCount int
}

// Member is one entry of a playlist.
//
// ItemID is the library item; EntryID addresses this occurrence within the playlist.
type Member struct {
	ItemID  string
	EntryID string
	Title   string
	Artist  string
}

// Recommendation is one collaborative-filtering recommendation.
//
// AddedAt is zero when the feed did not supply a parseable timestamp.
type Recommendation struct {
	RecordingMBID string
	Score         float64
	Listened      bool
	AddedAt       time.Time
}

// FeedPlaylist is a playlist generated for a listener.
type FeedPlaylist struct {
	ID    string
	Title string
	Date  string
}

// PlaylistTrack is a track of a generated playlist.
type PlaylistTrack struct {
	RecordingMBID string
	Title         string
	Creator       string
	Album         string
}
