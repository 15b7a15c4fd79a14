package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/rdex/internal/auth"
	"github.com/desertthunder/rdex/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgStatusLoaded MsgKind = iota
	MsgTokenRefreshed
	MsgProgressUpdate
	MsgFetchComplete
)

type statusData struct {
	statuses  []auth.HostStatus
	validated bool
}

type refreshData struct {
	host string
	err  error
}

type fetchData struct {
	result *tasks.FetchResult
	err    error
}

// statusLoadedMsg is the constructor for [MsgStatusLoaded]
func statusLoadedMsg(statuses []auth.HostStatus, validated bool) Msg {
	return Msg{kind: MsgStatusLoaded, data: statusData{statuses, validated}}
}

// tokenRefreshedMsg is the constructor for [MsgTokenRefreshed]
func tokenRefreshedMsg(host string, err error) Msg {
	return Msg{kind: MsgTokenRefreshed, data: refreshData{host, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// fetchCompleteMsg is the constructor for [MsgFetchComplete]
func fetchCompleteMsg(result *tasks.FetchResult, err error) Msg {
	return Msg{kind: MsgFetchComplete, data: fetchData{result, err}}
}
