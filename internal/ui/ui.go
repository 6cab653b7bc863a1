package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/lbx/internal/shared"
	"github.com/desertthunder/lbx/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	ConfirmView
	SyncView
	ResultView
)

const recentLines = 5

// Syncer runs one playlist pass. [tasks.Engine] implements it.
type Syncer interface {
	Sync(ctx context.Context, source tasks.Source, name string, progress chan<- tasks.ProgressUpdate) (*tasks.RunResult, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	cancel       context.CancelFunc
	view         ViewState
	syncer       Syncer
	width        int
	height       int
	playlistList list.Model
	matchList    list.Model
	selected     shared.PlaylistConfig
	autostart    bool
	spinner      spinner.Model
	bar          progress.Model
	progressChan chan tasks.ProgressUpdate
	done         chan syncOutcome
	progress     tasks.ProgressUpdate
	recent       []string
	result       *tasks.RunResult
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a TUI model that lets the user pick one of playlists to sync.
func NewModel(ctx context.Context, syncer Syncer, playlists []shared.PlaylistConfig) *Model {
	items := make([]list.Item, len(playlists))
	for i, pl := range playlists {
		items[i] = playlistItem{playlist: pl}
	}

	playlistList := list.New(items, list.NewDefaultDelegate(), 0, 0)
	playlistList.Title = "Configured Playlists"

	matchList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	matchList.Title = "Matches"
	matchList.SetShowHelp(false)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.spinner

	return &Model{
		ctx:          ctx,
		view:         PlaylistListView,
		syncer:       syncer,
		playlistList: playlistList,
		matchList:    matchList,
		spinner:      s,
		bar:          progress.New(progress.WithSolidFill(styles.accent), progress.WithWidth(40)),
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

// Start skips selection and syncs pl as soon as the program starts.
func (m *Model) Start(pl shared.PlaylistConfig) *Model {
	m.selected = pl
	m.autostart = true
	m.view = SyncView
	return m
}

// Result returns the outcome of the last sync, if any.
func (m *Model) Result() (*tasks.RunResult, error) {
	return m.result, m.err
}

// Init starts the sync immediately when [Model.Start] was called.
func (m *Model) Init() tea.Cmd {
	if m.autostart {
		return tea.Batch(m.spinner.Tick, m.startSync())
	}
	return nil
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.playlistList.SetSize(msg.Width-4, msg.Height-8)
		m.matchList.SetSize(msg.Width-4, max(msg.Height-14, 4))
		m.bar.Width = min(max(msg.Width-8, 10), 60)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case SyncView:
			return m.handleSyncKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case spinner.TickMsg:
		if m.view != SyncView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		switch msg.kind {
		case MsgProgressUpdate:
			m.progress = msg.data.(tasks.ProgressUpdate)
			m.recent = append(m.recent, m.progress.Message)
			if len(m.recent) > recentLines {
				m.recent = m.recent[len(m.recent)-recentLines:]
			}
			return m, m.waitForProgress()

		case MsgSyncComplete:
			outcome := msg.data.(syncOutcome)
			m.finish(outcome)
			return m, nil
		}
	}

	return m.updateLists(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case PlaylistListView:
		return m.renderPlaylistList()
	case ConfirmView:
		return m.renderConfirm()
	case SyncView:
		return m.renderSync()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.playlistList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.playlistList, cmd = m.playlistList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.pick):
		if pl, ok := m.playlistList.SelectedItem().(playlistItem); ok {
			m.selected = pl.playlist
			m.view = ConfirmView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	case key.Matches(msg, m.keys.decline), key.Matches(msg, m.keys.cancel), key.Matches(msg, m.keys.quit):
		m.view = PlaylistListView
		return m, nil
	case key.Matches(msg, m.keys.confirm):
		m.view = SyncView
		return m, tea.Batch(m.spinner.Tick, m.startSync())
	}
	return m, nil
}

func (m *Model) handleSyncKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.quit) {
		if m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.again):
		if len(m.playlistList.Items()) == 0 {
			return m, nil
		}
		m.view = PlaylistListView
		m.result = nil
		m.err = nil
		m.recent = nil
		m.progress = tasks.ProgressUpdate{}
		return m, nil
	}

	var cmd tea.Cmd
	m.matchList, cmd = m.matchList.Update(msg)
	return m, cmd
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case PlaylistListView:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case ResultView:
		m.matchList, cmd = m.matchList.Update(msg)
	}
	return m, cmd
}

// startSync runs the selected pass in the background. The engine never sends after Sync
// returns, so the progress channel is closed once the outcome is stored.
func (m *Model) startSync() tea.Cmd {
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.done = make(chan syncOutcome, 1)

	progressChan, done, selected := m.progressChan, m.done, m.selected
	go func() {
		defer cancel()

		var outcome syncOutcome
		source, err := tasks.ParseSource(selected.Source)
		if err != nil {
			outcome.err = err
		} else {
			outcome.result, outcome.err = m.syncer.Sync(ctx, source, selected.Name, progressChan)
		}
		done <- outcome
		close(progressChan)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progressChan, done := m.progressChan, m.done
	return func() tea.Msg {
		if progressChan == nil {
			return syncCompleteMsg(nil, fmt.Errorf("%w: no sync running", shared.ErrInvalidArgument))
		}

		update, ok := <-progressChan
		if !ok {
			outcome := <-done
			return syncCompleteMsg(outcome.result, outcome.err)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) finish(outcome syncOutcome) {
	m.result = outcome.result
	m.err = outcome.err
	m.progressChan = nil
	m.done = nil
	m.view = ResultView

	var items []list.Item
	if m.result != nil {
		items = make([]list.Item, len(m.result.Matches))
		for i, match := range m.result.Matches {
			items[i] = matchItem{match: match}
		}
	}
	m.matchList.SetItems(items)
	m.matchList.ResetSelected()
}

// Percent maps an update onto overall progress across the pipeline phases.
func Percent(u tasks.ProgressUpdate) float64 {
	if u.Phase >= tasks.Completed {
		return 1
	}

	frac := 0.0
	if u.Total > 0 {
		frac = float64(u.Step) / float64(u.Total)
	}
	p := (float64(u.Phase) + min(max(frac, 0), 1)) / float64(tasks.Completed)
	return min(max(p, 0), 1)
}

func phaseLabel(p tasks.Phase) string {
	switch p {
	case tasks.FetchReferences:
		return "Fetching recommendations"
	case tasks.ResolveRecordings:
		return "Resolving recordings"
	case tasks.MatchTracks:
		return "Matching tracks"
	case tasks.PlanPlaylist:
		return "Planning playlist"
	case tasks.ReconcilePlaylist:
		return "Writing playlist"
	case tasks.Completed:
		return "Done"
	default:
		return "Processing"
	}
}

func (m *Model) renderPlaylistList() string {
	return fmt.Sprintf("%s\n\n%s", m.playlistList.View(), m.helpView())
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Sync '%s'?", m.selected.Name))
	info := fmt.Sprintf("Source: %s\nPlaylist: %s\n", m.selected.Source, m.selected.Name)
	return fmt.Sprintf("%s\n%s\n%s", title, info, m.helpView())
}

func (m *Model) renderSync() string {
	var b strings.Builder

	b.WriteString(styles.title.Render(fmt.Sprintf("Syncing '%s'", m.selected.Name)))
	b.WriteString("\n")

	phase := phaseLabel(m.progress.Phase)
	if m.progress.Total > 1 {
		phase = fmt.Sprintf("%s (%d/%d)", phase, m.progress.Step, m.progress.Total)
	}
	fmt.Fprintf(&b, "%s %s\n\n", m.spinner.View(), phase)
	fmt.Fprintf(&b, "%s\n\n", m.bar.ViewAs(Percent(m.progress)))

	for _, line := range m.recent {
		b.WriteString(styles.help.Render(line))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.helpView())
	return b.String()
}

func (m *Model) renderResult() string {
	var b strings.Builder

	switch {
	case m.err != nil:
		b.WriteString(styles.err.Render(fmt.Sprintf("✗ Sync failed: %v", m.err)))
	case m.result == nil:
		b.WriteString(styles.err.Render("No result available"))
	default:
		b.WriteString(styles.ok.Render(fmt.Sprintf("✓ Playlist '%s' synced", m.result.Playlist)))
	}
	b.WriteString("\n")

	if r := m.result; r != nil {
		summary := fmt.Sprintf(
			"Strategy: %s\nResolved: %s\nMatched: %s\nAdded: %d  Skipped: %d\nDuration: %s",
			r.Plan.Strategy,
			r.Report.Resolution,
			r.Report.Match,
			r.Report.Added,
			r.Report.Skipped,
			r.Duration().Round(time.Millisecond),
		)
		b.WriteString(styles.box.Render(summary))
		b.WriteString("\n\n")

		if r.Report.Skipped > 0 {
			b.WriteString(styles.warn.Render(fmt.Sprintf("%d recordings did not reach the playlist", r.Report.Skipped)))
			b.WriteString("\n")
		}
		if len(r.Matches) > 0 {
			b.WriteString(m.matchList.View())
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(m.helpView())
	return b.String()
}

func (m *Model) helpView() string {
	return m.help.ShortHelpView(m.keys.help(m.view, len(m.playlistList.Items()) > 0))
}
