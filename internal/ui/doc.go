// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI walks through one playlist sync:
//  1. [PlaylistListView] : Pick one of the configured playlists
//  2. [ConfirmView] : Confirm the sync
//  3. [SyncView] : Spinner, progress bar and the latest stage messages
//  4. [ResultView] : Report counts and the per-recording match list
//
// [Model.Start] skips the first two views when the playlist is given on the command line.
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the engine, which never blocks on a slow renderer.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
