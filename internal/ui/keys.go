package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the bindings shared by the stream and manage views.
type keyMap struct {
	Quit       key.Binding
	Down       key.Binding
	Up         key.Binding
	Top        key.Binding
	Bottom     key.Binding
	Decide     key.Binding
	HideAuthor key.Binding
	HideItem   key.Binding
	Reload     key.Binding
	ShowHidden key.Binding
	Manage     key.Binding
	Debug      key.Binding
	Back       key.Binding
	Remove     key.Binding
	Export     key.Binding
	Import     key.Binding
	Clear      key.Binding
}

var keys = keyMap{
	Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Down:       key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/k", "nav")),
	Up:         key.NewBinding(key.WithKeys("k", "up")),
	Top:        key.NewBinding(key.WithKeys("g", "home")),
	Bottom:     key.NewBinding(key.WithKeys("G", "end")),
	Decide:     key.NewBinding(key.WithKeys("x", "enter"), key.WithHelp("x", "hide…")),
	HideAuthor: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "author")),
	HideItem:   key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "item")),
	Reload:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
	ShowHidden: key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "hidden")),
	Manage:     key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "manage")),
	Debug:      key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "debug")),
	Back:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Remove:     key.NewBinding(key.WithKeys("u", "enter"), key.WithHelp("u", "unhide")),
	Export:     key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export")),
	Import:     key.NewBinding(key.WithKeys("I"), key.WithHelp("I", "import")),
	Clear:      key.NewBinding(key.WithKeys("C"), key.WithHelp("C", "clear")),
}

// hints renders bindings as status bar key hints.
func hints(bs ...key.Binding) []string {
	out := make([]string, 0, len(bs))
	for _, b := range bs {
		h := b.Help()
		out = append(out, StatusBarKey.Render(h.Key)+StatusBarText.Render(":"+h.Desc))
	}
	return out
}
