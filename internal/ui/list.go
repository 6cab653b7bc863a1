package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/lbx/internal/shared"
	"github.com/desertthunder/lbx/internal/tasks"
)

var (
	_ list.Item = playlistItem{}
	_ list.Item = matchItem{}
)

// playlistItem wraps [shared.PlaylistConfig] to implement [list.Item].
type playlistItem struct {
	playlist shared.PlaylistConfig
}

func (i playlistItem) FilterValue() string { return i.playlist.Name }
func (i playlistItem) Title() string       { return i.playlist.Name }
func (i playlistItem) Description() string { return "from " + i.playlist.Source }

// matchItem wraps [tasks.MatchResult] to implement [list.Item].
type matchItem struct {
	match tasks.MatchResult
}

func (i matchItem) FilterValue() string { return i.match.Resolution.TrackTitle }

func (i matchItem) Title() string {
	res := i.match.Resolution
	switch {
	case i.match.Matched():
		return styles.ok.Render("✓ ") + res.TrackTitle
	case res.Resolved():
		return styles.warn.Render("✗ ") + res.TrackTitle
	default:
		return styles.err.Render("✗ ") + res.Ref
	}
}

func (i matchItem) Description() string {
	res := i.match.Resolution
	switch {
	case i.match.Matched():
		return fmt.Sprintf("%s • item %s • score %d", res.ArtistName, i.match.ItemID, i.match.Score)
	case res.Resolved():
		return fmt.Sprintf("%s • no match (best score %d)", res.ArtistName, i.match.Score)
	case res.Err != nil:
		return res.Err.Error()
	default:
		return "unresolved"
	}
}
