package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/rdex/internal/auth"
	"github.com/desertthunder/rdex/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	StatusView ViewState = iota
	FetchView
	ResultView
)

// TokenService is what the status view needs from [auth.Manager].
type TokenService interface {
	Status(ctx context.Context, validate bool) []auth.HostStatus
	Refresh(ctx context.Context, host string) (auth.Token, error)
}

// DatasetFetcher is what the fetch view needs from [tasks.Fetcher].
type DatasetFetcher interface {
	FetchDatasets(ctx context.Context, prog chan<- tasks.ProgressUpdate, ids []string, opts tasks.BulkFetchOpts) (*tasks.FetchResult, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	tokens       TokenService
	fetcher      DatasetFetcher
	fetchOpts    tasks.BulkFetchOpts
	width        int
	height       int
	hosts        list.Model
	busy         string
	notice       string
	err          error
	progressChan chan tasks.ProgressUpdate
	waitDone     chan fetchData
	progress     tasks.ProgressUpdate
	result       *tasks.FetchResult
	fetchErr     error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model. fetcher may be nil, which disables the fetch view.
func NewModel(ctx context.Context, tokens TokenService, fetcher DatasetFetcher, opts tasks.BulkFetchOpts) *Model {
	hosts := list.New(nil, list.NewDefaultDelegate(), 80, 20)
	hosts.Title = "RDE tokens"
	hosts.SetShowHelp(false)
	hosts.SetFilteringEnabled(false)
	hosts.SetShowStatusBar(false)

	return &Model{
		ctx:       ctx,
		view:      StatusView,
		tokens:    tokens,
		fetcher:   fetcher,
		fetchOpts: opts,
		hosts:     hosts,
		busy:      "Validating tokens...",
		help:      help.New(),
		keys:      newKeyMap(),
	}
}

// Init loads token status and validates every present token.
func (m *Model) Init() tea.Cmd {
	return m.loadStatus(true)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.hosts.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case StatusView:
			return m.handleStatusKeys(msg)
		case FetchView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	var cmd tea.Cmd
	m.hosts, cmd = m.hosts.Update(msg)
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgStatusLoaded:
		data := msg.data.(statusData)
		m.busy = ""
		if data.validated && m.notice == "" {
			m.notice = "Tokens revalidated"
		}
		return m, m.hosts.SetItems(hostItems(data.statuses))

	case MsgTokenRefreshed:
		data := msg.data.(refreshData)
		if data.err != nil {
			m.busy = ""
			m.err = fmt.Errorf("refresh %s: %w", data.host, data.err)
			return m, nil
		}
		m.err = nil
		m.notice = "Refreshed " + data.host
		return m, m.loadStatus(true)

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgFetchComplete:
		data := msg.data.(fetchData)
		m.result = data.result
		m.fetchErr = data.err
		m.view = ResultView
		m.progressChan = nil
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case StatusView:
		return m.renderStatus()
	case FetchView:
		return m.renderFetch()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleStatusKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.busy != "" && !key.Matches(msg, m.keys.quit) {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.validate):
		m.busy = "Validating tokens..."
		m.notice = ""
		m.err = nil
		return m, m.loadStatus(true)
	case key.Matches(msg, m.keys.refresh):
		item, ok := m.hosts.SelectedItem().(hostItem)
		if !ok {
			return m, nil
		}
		if !item.status.CanRefresh {
			m.err = fmt.Errorf("%s has no refresh token; run rdex auth login", item.status.Host)
			return m, nil
		}
		m.busy = "Refreshing " + item.status.Host + "..."
		return m, m.refresh(item.status.Host)
	case key.Matches(msg, m.keys.fetch):
		if m.fetcher == nil {
			return m, nil
		}
		m.view = FetchView
		m.progress = tasks.ProgressUpdate{Message: "Starting..."}
		return m, m.startFetch()
	}

	var cmd tea.Cmd
	m.hosts, cmd = m.hosts.Update(msg)
	return m, cmd
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = StatusView
		m.result = nil
		m.fetchErr = nil
	}
	return m, nil
}

func (m *Model) loadStatus(validate bool) tea.Cmd {
	return func() tea.Msg {
		return statusLoadedMsg(m.tokens.Status(m.ctx, validate), validate)
	}
}

func (m *Model) refresh(host string) tea.Cmd {
	return func() tea.Msg {
		_, err := m.tokens.Refresh(m.ctx, host)
		return tokenRefreshedMsg(host, err)
	}
}

// startFetch runs the bulk fetch in the background. The channel is closed once the fetch returns,
// after which waitForProgress reports completion.
func (m *Model) startFetch() tea.Cmd {
	ch := make(chan tasks.ProgressUpdate, 50)
	m.progressChan = ch
	done := make(chan fetchData, 1)

	go func() {
		result, err := m.fetcher.FetchDatasets(m.ctx, ch, nil, m.fetchOpts)
		done <- fetchData{result, err}
		close(ch)
	}()

	m.waitDone = done
	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	ch, done := m.progressChan, m.waitDone
	return func() tea.Msg {
		if update, ok := <-ch; ok {
			return progressUpdateMsg(update)
		}
		data := <-done
		return fetchCompleteMsg(data.result, data.err)
	}
}

func (m *Model) renderStatus() string {
	var b strings.Builder
	b.WriteString(m.hosts.View())
	b.WriteString("\n")

	switch {
	case m.busy != "":
		b.WriteString(styles.muted.Render(m.busy))
	case m.err != nil:
		b.WriteString(styles.err.Render("Error: " + m.err.Error()))
	case m.notice != "":
		b.WriteString(styles.ok.Render(m.notice))
	}

	helpKeys := []key.Binding{m.keys.validate, m.keys.refresh}
	if m.fetcher != nil {
		helpKeys = append(helpKeys, m.keys.fetch)
	}
	helpKeys = append(helpKeys, m.keys.quit)
	b.WriteString("\n\n")
	b.WriteString(m.help.ShortHelpView(helpKeys))
	return b.String()
}

func (m *Model) renderFetch() string {
	title := styles.title.Render("Fetching datasets")

	phase := "Processing..."
	switch m.progress.Phase {
	case tasks.FetchList:
		phase = "Listing datasets..."
	case tasks.FetchDetail:
		phase = fmt.Sprintf("Fetching details (%d/%d)", m.progress.Current, m.progress.Total)
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, styles.muted.Render(m.progress.Message))
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit})

	if m.result == nil {
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(fmt.Sprintf("Fetch failed: %v", m.fetchErr)), helpView)
	}

	title := styles.ok.Render("✓ Fetch complete")
	if m.result.Failed > 0 || m.fetchErr != nil {
		title = styles.warn.Render("Fetch finished with errors")
	}
	info := fmt.Sprintf("\nTotal: %d\nFetched: %d\nSkipped: %d\nFailed: %d",
		m.result.Total, m.result.Fetched, m.result.Skipped, m.result.Failed)

	var failed string
	for _, f := range m.result.Failures {
		failed += fmt.Sprintf("\n  • %s: %v", f.ID, f.Err)
	}
	if m.fetchErr != nil {
		failed += "\n" + styles.err.Render(m.fetchErr.Error())
	}

	return fmt.Sprintf("%s\n%s%s\n\n%s", title, info, failed, helpView)
}
