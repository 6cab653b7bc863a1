package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the bindings shared by every view. Navigation inside lists is handled by
// [list.Model]; up and down exist only for the help line.
type keyMap struct {
	up      key.Binding
	down    key.Binding
	pick    key.Binding
	cancel  key.Binding
	confirm key.Binding
	decline key.Binding
	again   key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		pick:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "sync")),
		cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		confirm: key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "start")),
		decline: key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "cancel")),
		again:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "pick another")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// help returns the bindings shown under view v. again is offered only when there is a
// playlist list to go back to.
func (k keyMap) help(v ViewState, canPickAgain bool) []key.Binding {
	switch v {
	case PlaylistListView:
		return []key.Binding{k.up, k.down, k.pick, k.quit}
	case ConfirmView:
		return []key.Binding{k.confirm, k.decline, k.quit}
	case ResultView:
		bindings := []key.Binding{k.up, k.down, k.quit}
		if canPickAgain {
			bindings = append(bindings, k.again)
		}
		return bindings
	default:
		return []key.Binding{k.quit}
	}
}
