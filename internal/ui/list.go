package ui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/rdex/internal/auth"
)

var (
	_ list.Item = hostItem{}
)

// hostItem wraps [auth.HostStatus] to implement [list.Item].
type hostItem struct {
	status auth.HostStatus
}

func (i hostItem) FilterValue() string { return i.status.Host }
func (i hostItem) Title() string       { return i.status.Host }
func (i hostItem) Description() string {
	st := i.status
	if !st.Present {
		if st.Error != "" {
			return styles.err.Render("unreadable: " + st.Error)
		}
		return styles.warn.Render("no token")
	}

	parts := []string{validity(st)}
	if !st.ExpiresAt.IsZero() {
		parts = append(parts, "expires "+st.ExpiresAt.Local().Format(time.DateTime))
	}
	if st.CanRefresh {
		parts = append(parts, "refreshable")
	}
	return strings.Join(parts, " • ")
}

func validity(st auth.HostStatus) string {
	switch {
	case st.Validated && st.Valid:
		return styles.ok.Render("valid")
	case st.Validated:
		return styles.err.Render("invalid")
	case st.Expired:
		return styles.warn.Render("expired")
	default:
		return "not checked"
	}
}

func hostItems(statuses []auth.HostStatus) []list.Item {
	items := make([]list.Item, len(statuses))
	for i, st := range statuses {
		items[i] = hostItem{status: st}
	}
	return items
}
