package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

type entryKind int

const (
	entryAuthor entryKind = iota
	entryItem
)

// listEntry is one line of the manage panel.
type listEntry struct {
	kind   entryKind
	value  string
	static bool
}

type inputAction int

const (
	inputNone inputAction = iota
	inputExport
	inputImport
)

// manageState is the hide list panel.
type manageState struct {
	open         bool
	entries      []listEntry
	cursor       int
	action       inputAction
	input        textinput.Model
	defaultPath  string
	confirmClear bool
}

func newManageState(defaultPath string) manageState {
	in := textinput.New()
	in.Prompt = "path: "
	in.CharLimit = 512
	return manageState{input: in, defaultPath: defaultPath}
}

func (m manageState) inputActive() bool {
	return m.open && m.action != inputNone
}

// setEntries rebuilds the panel from a loaded hide list. Configured authors
// come first and cannot be removed.
func (m *manageState) setEntries(l ListLoaded) {
	entries := make([]listEntry, 0, len(l.Static)+len(l.Authors)+len(l.Items))
	for _, a := range l.Static {
		entries = append(entries, listEntry{kind: entryAuthor, value: a, static: true})
	}
	for _, a := range l.Authors {
		entries = append(entries, listEntry{kind: entryAuthor, value: a})
	}
	for _, id := range l.Items {
		entries = append(entries, listEntry{kind: entryItem, value: id})
	}
	m.entries = entries
	if m.cursor >= len(entries) {
		m.cursor = len(entries) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// handleManageKey processes keys while the manage panel is open.
func (a App) handleManageKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m := &a.manage

	if m.action != inputNone {
		switch msg.String() {
		case "esc":
			m.action = inputNone
			m.input.Blur()
			return a, nil
		case "enter":
			path := strings.TrimSpace(m.input.Value())
			action := m.action
			m.action = inputNone
			m.input.Blur()
			if path == "" {
				return a, nil
			}
			if action == inputExport && a.cfg.Export != nil {
				return a, a.cfg.Export(path)
			}
			if action == inputImport && a.cfg.Import != nil {
				return a, a.cfg.Import(path)
			}
			return a, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return a, cmd
	}

	if m.confirmClear {
		m.confirmClear = false
		if msg.String() == "y" && a.cfg.Clear != nil {
			return a, a.cfg.Clear()
		}
		a.notice = "clear cancelled"
		return a, nil
	}

	switch {
	case key.Matches(msg, keys.Back), key.Matches(msg, keys.Manage):
		m.open = false
		return a, nil

	case key.Matches(msg, keys.Quit):
		return a, tea.Quit

	case key.Matches(msg, keys.Down):
		if m.cursor < len(m.entries)-1 {
			m.cursor++
		}
		return a, nil

	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return a, nil

	case key.Matches(msg, keys.Remove):
		if m.cursor >= len(m.entries) {
			return a, nil
		}
		e := m.entries[m.cursor]
		switch {
		case e.static:
			a.notice = fmt.Sprintf("@%s is set in the config file", e.value)
		case e.kind == entryAuthor && a.cfg.Unhide != nil:
			return a, a.cfg.Unhide(e.value)
		case e.kind == entryItem && a.cfg.Restore != nil:
			return a, a.cfg.Restore(e.value)
		}
		return a, nil

	case key.Matches(msg, keys.Export):
		return a, m.startInput(inputExport)

	case key.Matches(msg, keys.Import):
		return a, m.startInput(inputImport)

	case key.Matches(msg, keys.Clear):
		m.confirmClear = true
		return a, nil
	}
	return a, nil
}

func (m *manageState) startInput(action inputAction) tea.Cmd {
	m.action = action
	m.input.SetValue(m.defaultPath)
	m.input.CursorEnd()
	return m.input.Focus()
}

// view renders the panel body.
func (m manageState) view(width, height int) string {
	var lines []string
	var authors, items int
	for _, e := range m.entries {
		if e.kind == entryAuthor {
			authors++
		} else {
			items++
		}
	}
	lines = append(lines, SectionHeader.Render(fmt.Sprintf("Hidden authors (%d) · hidden posts (%d)", authors, items)))

	if len(m.entries) == 0 {
		lines = append(lines, HelpStyle.Render("Nothing is hidden."))
	}

	// Reserve the header (2 lines with margin) and the input or confirm line.
	avail := height - 3
	if avail < 1 {
		avail = 1
	}
	offset := calcScrollOffset(len(m.entries), m.cursor, avail)
	for i := offset; i < len(m.entries) && i-offset < avail; i++ {
		e := m.entries[i]
		label := "post   " + e.value
		if e.kind == entryAuthor {
			label = "author @" + e.value
			if e.static {
				label += "  (config)"
			}
		}
		label = runewidth.Truncate(label, width-4, "…")
		if i == m.cursor {
			lines = append(lines, SelectedItem.Width(width).Render(label))
		} else {
			lines = append(lines, NormalItem.Width(width).Render(label))
		}
	}

	switch {
	case m.action != inputNone:
		verb := "Export to"
		if m.action == inputImport {
			verb = "Import from"
		}
		lines = append(lines, " "+verb+" "+m.input.View())
	case m.confirmClear:
		lines = append(lines, ErrorStyle.Render("Clear the whole hide list? (y/N)"))
	}

	body := strings.Join(lines, "\n")
	return lipgloss.NewStyle().Height(height).Render(body) + "\n"
}

// statusBar renders the key hints for the panel.
func (m manageState) statusBar(width int) string {
	left := fmt.Sprintf(" %d/%d ", m.cursor+1, len(m.entries))
	if len(m.entries) == 0 {
		left = " 0/0 "
	}
	keyHints := strings.Join(hints(keys.Down, keys.Remove, keys.Export, keys.Import, keys.Clear, keys.Back), " ")
	padding := width - lipgloss.Width(left) - lipgloss.Width(keyHints)
	if padding < 0 {
		padding = 0
	}
	return StatusBar.Width(width).Render(left + strings.Repeat(" ", padding) + keyHints)
}
