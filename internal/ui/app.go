package ui

import (
	"errors"
	"fmt"

	"github.com/abelbrown/hush/internal/gateway"
	"github.com/abelbrown/hush/internal/otel"
	"github.com/abelbrown/hush/internal/reconcile"
	"github.com/abelbrown/hush/internal/session"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var errNoAuthor = errors.New("this item has no author")

// Keys of the view settings the App persists through SaveSetting.
const (
	SettingDebug      = "debug"
	SettingShowHidden = "showHidden"
)

// ObsConfig carries observability hooks for the UI.
type ObsConfig struct {
	Ring *otel.RingBuffer
}

// AppConfig holds the command functions the App uses to reach the session.
// Any of them may be nil; the matching key then does nothing.
type AppConfig struct {
	LoadRows   func() tea.Cmd
	LoadList   func() tea.Cmd
	Decide     func(id string) tea.Cmd
	HideAuthor func(author string) tea.Cmd
	HideItem   func(id string) tea.Cmd
	Unhide     func(author string) tea.Cmd
	Restore    func(id string) tea.Cmd
	Export     func(path string) tea.Cmd
	Import     func(path string) tea.Cmd
	Clear      func() tea.Cmd

	// SaveSetting persists a view toggle under one of the Setting keys.
	SaveSetting func(key string, value bool) tea.Cmd

	ExportPath string // suggested path in the manage panel
	ShowHidden bool
	Debug      bool
	Obs        ObsConfig
}

// App is the root Bubble Tea model.
// IMPORTANT: App does NOT hold the session. It receives rows via messages.
type App struct {
	cfg AppConfig

	location   string
	rows       []session.Row
	cursor     int
	showHidden bool
	last       reconcile.Result
	err        error
	notice     string
	width      int
	height     int
	ready      bool

	debugVisible bool
	prompt       *PromptRequested
	manage       manageState
}

// NewAppWithConfig creates an App from cfg.
func NewAppWithConfig(cfg AppConfig) App {
	return App{
		cfg:          cfg,
		showHidden:   cfg.ShowHidden,
		debugVisible: cfg.Debug,
		manage:       newManageState(cfg.ExportPath),
	}
}

func (a App) save(key string, value bool) tea.Cmd {
	if a.cfg.SaveSetting == nil {
		return nil
	}
	return a.cfg.SaveSetting(key, value)
}

// Init initializes the App by loading rows.
func (a App) Init() tea.Cmd {
	if a.cfg.LoadRows != nil {
		return a.cfg.LoadRows()
	}
	return nil
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		return a, nil

	case RowsLoaded:
		if msg.Err != nil {
			a.err = msg.Err
			return a, nil
		}
		a.location = msg.Location
		a.rows = msg.Rows
		a.clampCursor()
		return a, nil

	case ListLoaded:
		if msg.Err != nil {
			a.err = msg.Err
			return a, nil
		}
		a.manage.setEntries(msg)
		return a, nil

	case PassCompleted:
		a.last = msg.Result
		return a, a.reload()

	case ActionDone:
		if msg.Err != nil {
			a.err = msg.Err
			a.notice = ""
		} else {
			a.notice = msg.Msg
		}
		return a, a.reload()

	case PromptRequested:
		if a.prompt != nil {
			// One modal at a time; the newer request is declined.
			reply(msg.Reply, gateway.ChoiceCancel)
			return a, nil
		}
		a.prompt = &msg
		return a, nil
	}

	if a.manage.inputActive() {
		var cmd tea.Cmd
		a.manage.input, cmd = a.manage.input.Update(msg)
		return a, cmd
	}
	return a, nil
}

// reload refreshes the rows, and the hide list when the manage panel is open.
func (a App) reload() tea.Cmd {
	var cmds []tea.Cmd
	if a.cfg.LoadRows != nil {
		cmds = append(cmds, a.cfg.LoadRows())
	}
	if a.manage.open && a.cfg.LoadList != nil {
		cmds = append(cmds, a.cfg.LoadList())
	}
	return tea.Batch(cmds...)
}

// handleKeyMsg processes keyboard input.
func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Clear any existing error on key press
	if a.err != nil {
		a.err = nil
	}

	if a.prompt != nil {
		return a.handlePromptKey(msg)
	}
	if a.manage.open {
		return a.handleManageKey(msg)
	}

	if key.Matches(msg, keys.Debug) {
		a.debugVisible = !a.debugVisible
		return a, a.save(SettingDebug, a.debugVisible)
	}
	if a.debugVisible {
		if key.Matches(msg, keys.Quit) {
			return a, tea.Quit
		}
		return a, nil
	}

	rows := a.visible()
	switch {
	case key.Matches(msg, keys.Quit):
		return a, tea.Quit

	case key.Matches(msg, keys.Down):
		if a.cursor < len(rows)-1 {
			a.cursor++
		}
		return a, nil

	case key.Matches(msg, keys.Up):
		if a.cursor > 0 {
			a.cursor--
		}
		return a, nil

	case key.Matches(msg, keys.Top):
		a.cursor = 0
		return a, nil

	case key.Matches(msg, keys.Bottom):
		if len(rows) > 0 {
			a.cursor = len(rows) - 1
		}
		return a, nil

	case key.Matches(msg, keys.Decide):
		if row, ok := a.current(); ok && a.cfg.Decide != nil {
			if row.Author == "" {
				a.err = errNoAuthor
				return a, nil
			}
			return a, a.cfg.Decide(row.ID)
		}
		return a, nil

	case key.Matches(msg, keys.HideAuthor):
		if row, ok := a.current(); ok && a.cfg.HideAuthor != nil {
			if row.Author == "" {
				a.err = errNoAuthor
				return a, nil
			}
			return a, a.cfg.HideAuthor(row.Author)
		}
		return a, nil

	case key.Matches(msg, keys.HideItem):
		if row, ok := a.current(); ok && a.cfg.HideItem != nil {
			return a, a.cfg.HideItem(row.ID)
		}
		return a, nil

	case key.Matches(msg, keys.ShowHidden):
		a.showHidden = !a.showHidden
		a.clampCursor()
		return a, a.save(SettingShowHidden, a.showHidden)

	case key.Matches(msg, keys.Reload):
		if a.cfg.LoadRows != nil {
			return a, a.cfg.LoadRows()
		}
		return a, nil

	case key.Matches(msg, keys.Manage):
		a.manage.open = true
		a.manage.cursor = 0
		if a.cfg.LoadList != nil {
			return a, a.cfg.LoadList()
		}
		return a, nil
	}

	return a, nil
}

// handlePromptKey answers the pending hide modal.
func (a App) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	choice, ok := gateway.ChoiceCancel, false
	switch msg.String() {
	case "a", "A":
		choice, ok = gateway.ChoiceHideAuthor, true
	case "i", "I":
		choice, ok = gateway.ChoiceHideItem, true
	case "esc", "n", "q", "ctrl+c":
		ok = true
	}
	if !ok {
		return a, nil
	}
	reply(a.prompt.Reply, choice)
	a.prompt = nil
	return a, nil
}

// reply delivers c without blocking.
func reply(ch chan<- gateway.Choice, c gateway.Choice) {
	select {
	case ch <- c:
	default:
	}
}

// visible returns the rows the stream shows.
func (a App) visible() []session.Row {
	return visibleRows(a.rows, a.showHidden)
}

// current returns the row under the cursor.
func (a App) current() (session.Row, bool) {
	rows := a.visible()
	if a.cursor < 0 || a.cursor >= len(rows) {
		return session.Row{}, false
	}
	return rows[a.cursor], true
}

func (a *App) clampCursor() {
	n := len(a.visible())
	if a.cursor >= n {
		a.cursor = n - 1
	}
	if a.cursor < 0 {
		a.cursor = 0
	}
}

// View renders the UI.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}

	if a.debugVisible {
		overlay := debugOverlay(a.cfg.Obs.Ring, a.width, a.height-1)
		if overlay == "" {
			overlay = HelpStyle.Render("No event buffer configured.")
		}
		return lipgloss.Place(a.width, a.height-1, lipgloss.Center, lipgloss.Center, overlay) +
			"\n" + debugStatusBar(a.width)
	}

	// Calculate height for content: subtract status bar (1 line) and
	// error/notice bar if present (1 line)
	contentHeight := a.height - 1
	bar := ""
	switch {
	case a.err != nil:
		bar = ErrorStyle.Width(a.width).Render("Error: "+a.err.Error()+" (press any key to dismiss)") + "\n"
		contentHeight--
	case a.notice != "":
		bar = NoticeStyle.Width(a.width).Render(a.notice) + "\n"
		contentHeight--
	}

	if a.prompt != nil {
		box := renderPrompt(a.prompt.Req, a.width)
		return lipgloss.Place(a.width, contentHeight, lipgloss.Center, lipgloss.Center, box) +
			"\n" + bar + RenderStatusBar(a.cursor, len(a.visible()), a.last, a.showHidden, a.width)
	}

	if a.manage.open {
		return a.manage.view(a.width, contentHeight) + bar + a.manage.statusBar(a.width)
	}

	stream := RenderStream(a.visible(), a.cursor, a.width, contentHeight)
	return stream + bar + RenderStatusBar(a.cursor, len(a.visible()), a.last, a.showHidden, a.width)
}

// renderPrompt renders the hide modal for req.
func renderPrompt(req gateway.PromptRequest, width int) string {
	name := req.DisplayName
	if name == "" {
		name = req.Author
	}
	boxWidth := 60
	if boxWidth > width-4 {
		boxWidth = width - 4
	}
	if boxWidth < 20 {
		boxWidth = 20
	}
	body := fmt.Sprintf("Hide posts from %s (@%s)?\n\n%s\n\n%s  %s  %s",
		name, req.Author,
		truncateRunes(singleLine(req.Text), 120),
		StatusBarKey.Render("a")+StatusBarText.Render(":hide author"),
		StatusBarKey.Render("i")+StatusBarText.Render(":this post only"),
		StatusBarKey.Render("esc")+StatusBarText.Render(":cancel"))
	return PromptBox.Width(boxWidth).Render(body)
}

// Cursor returns the current cursor position (for testing).
func (a App) Cursor() int {
	return a.cursor
}

// Rows returns the rows the stream shows (for testing).
func (a App) Rows() []session.Row {
	return a.visible()
}
