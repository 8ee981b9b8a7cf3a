package console

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the console key bindings.
type KeyMap struct {
	Demo      key.Binding
	Calibrate key.Binding
	Refresh   key.Binding
	Quit      key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Demo: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "start demo"),
		),
		Calibrate: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "calibrate"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k KeyMap) help() []key.Binding {
	return []key.Binding{k.Demo, k.Calibrate, k.Refresh, k.Quit}
}
