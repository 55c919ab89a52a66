package popup

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the popup keybindings.
type KeyMap struct {
	Recheck key.Binding
	Clear   key.Binding
	Quit    key.Binding
	Top     key.Binding
	Bottom  key.Binding
}

// DefaultKeyMap returns the default keybinding configuration.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Recheck: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "re-check debugger"),
		),
		Clear: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear display"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Top: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G"),
			key.WithHelp("G", "bottom"),
		),
	}
}

// ShortHelp lists the bindings shown in the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Recheck, k.Clear, k.Top, k.Bottom, k.Quit}
}
