package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up       key.Binding
	down     key.Binding
	validate key.Binding
	refresh  key.Binding
	fetch    key.Binding
	back     key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		validate: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "revalidate")),
		refresh:  key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "refresh token")),
		fetch:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "fetch datasets")),
		back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.validate, k.refresh, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down},
		{k.validate, k.refresh, k.fetch},
		{k.back, k.quit},
	}
}
