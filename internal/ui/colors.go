package ui

import (
	"github.com/charmbracelet/lipgloss"
)

const (
	colorAccent = "#005BAC"
	colorOK     = "#04B575"
	colorErr    = "#E5484D"
	colorWarn   = "#FFA500"
	colorMuted  = "#626262"
)

var styles = Palette{
	title: bold(colorAccent).MarginBottom(1),
	ok:    bold(colorOK),
	err:   bold(colorErr),
	warn:  fg(colorWarn),
	muted: fg(colorMuted).Italic(true),
}

// Palette is the TUI stylesheet, one [lipgloss.Style] per status
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	muted lipgloss.Style
}

func fg(color string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

func bold(color string) lipgloss.Style {
	return fg(color).Bold(true)
}
