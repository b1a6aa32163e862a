package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Send    key.Binding
	Cancel  key.Binding
	Backend key.Binding
	Voice   key.Binding
	Listen  key.Binding
	Screen  key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Send:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "ask")),
		Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "stop answer")),
		Backend: key.NewBinding(key.WithKeys("ctrl+b"), key.WithHelp("ctrl+b", "switch backend")),
		Voice:   key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("ctrl+o", "next voice")),
		Listen:  key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "microphone")),
		Screen:  key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "screen share")),
		Quit:    key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.Cancel, k.Backend, k.Voice, k.Listen, k.Screen, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
