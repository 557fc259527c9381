package app

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard bindings.
type KeyMap struct {
	Create        key.Binding
	Reconnect     key.Binding
	Close         key.Binding
	Regions       key.Binding
	Stats         key.Binding
	Notifications key.Binding
	Help          key.Binding
	Up            key.Binding
	Down          key.Binding
	Submit        key.Binding
	Escape        key.Binding
	Quit          key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Create: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "create session"),
		),
		Reconnect: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reconnect by ARN"),
		),
		Close: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "close session"),
		),
		Regions: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "edit regions"),
		),
		Stats: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "toggle stats overlay"),
		),
		Notifications: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "notifications"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "scroll down"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "submit input"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close overlay / cancel"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// Bindings lists the keys shown in help.
func (k KeyMap) Bindings() []key.Binding {
	return []key.Binding{
		k.Create, k.Reconnect, k.Close, k.Regions, k.Stats,
		k.Notifications, k.Help, k.Submit, k.Escape, k.Quit,
	}
}
