package ui

import (
	"errors"
	"strings"
	"testing"

	"github.com/abelbrown/hush/internal/gateway"
	"github.com/abelbrown/hush/internal/otel"
	"github.com/abelbrown/hush/internal/reconcile"
	"github.com/abelbrown/hush/internal/session"
	tea "github.com/charmbracelet/bubbletea"
)

// mockCmd tracks which command function was called.
type mockCmd struct {
	called   string
	calledID string
}

func (m *mockCmd) loadRows() tea.Cmd {
	m.called = "loadRows"
	return func() tea.Msg {
		return RowsLoaded{Rows: testRows()}
	}
}

func (m *mockCmd) loadList() tea.Cmd {
	m.called = "loadList"
	return func() tea.Msg {
		return ListLoaded{Static: []string{"cfg"}, Authors: []string{"bob"}, Items: []string{"t1"}}
	}
}

func (m *mockCmd) record(name string) func(string) tea.Cmd {
	return func(arg string) tea.Cmd {
		m.called = name
		m.calledID = arg
		return func() tea.Msg { return ActionDone{Msg: name} }
	}
}

func (m *mockCmd) clear() tea.Cmd {
	m.called = "clear"
	return func() tea.Msg { return ActionDone{Msg: "cleared"} }
}

func (m *mockCmd) config() AppConfig {
	return AppConfig{
		LoadRows:   m.loadRows,
		LoadList:   m.loadList,
		Decide:     m.record("decide"),
		HideAuthor: m.record("hideAuthor"),
		HideItem:   m.record("hideItem"),
		Unhide:     m.record("unhide"),
		Restore:    m.record("restore"),
		Export:     m.record("export"),
		Import:     m.record("import"),
		Clear:      m.clear,
		ExportPath: "/tmp/hush.json",
	}
}

func testRows() []session.Row {
	return []session.Row{
		{ID: "t1", Author: "alice", DisplayName: "Alice", Text: "hello", State: reconcile.StateAugmented},
		{ID: "t2", Author: "bob", DisplayName: "Bob", Text: "spam", State: reconcile.StateHidden, Hidden: true},
		{ID: "t3", DisplayName: "Unknown", Text: "no author", State: reconcile.StateSkipped},
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, a App, msg tea.Msg) (App, tea.Cmd) {
	t.Helper()
	model, cmd := a.Update(msg)
	return model.(App), cmd
}

func loadedApp(m *mockCmd) App {
	app := NewAppWithConfig(m.config())
	model, _ := app.Update(RowsLoaded{Rows: testRows()})
	app = model.(App)
	app.ready = true
	app.width = 100
	app.height = 24
	return app
}

func TestAppInit(t *testing.T) {
	mock := &mockCmd{}
	app := NewAppWithConfig(mock.config())

	if cmd := app.Init(); cmd == nil {
		t.Fatal("Init should return a command")
	}
	if mock.called != "loadRows" {
		t.Errorf("Init should call loadRows, called %q", mock.called)
	}
}

func TestAppInitNilLoadRows(t *testing.T) {
	app := NewAppWithConfig(AppConfig{})
	if cmd := app.Init(); cmd != nil {
		t.Error("Init should return nil when LoadRows is nil")
	}
}

func TestAppHidesSuppressedRowsByDefault(t *testing.T) {
	app := loadedApp(&mockCmd{})

	if got := len(app.Rows()); got != 2 {
		t.Fatalf("expected 2 visible rows, got %d", got)
	}

	app, _ = press(t, app, runes("h"))
	if got := len(app.Rows()); got != 3 {
		t.Errorf("h should show hidden rows, got %d", got)
	}
}

func TestAppNavigation(t *testing.T) {
	app := loadedApp(&mockCmd{})
	app.showHidden = true

	app, _ = press(t, app, runes("j"))
	if app.Cursor() != 1 {
		t.Errorf("j should move cursor to 1, got %d", app.Cursor())
	}
	app, _ = press(t, app, runes("G"))
	if app.Cursor() != 2 {
		t.Errorf("G should move cursor to 2, got %d", app.Cursor())
	}
	app, _ = press(t, app, runes("j"))
	if app.Cursor() != 2 {
		t.Errorf("j at bottom should keep cursor at 2, got %d", app.Cursor())
	}
	app, _ = press(t, app, runes("g"))
	if app.Cursor() != 0 {
		t.Errorf("g should move cursor to 0, got %d", app.Cursor())
	}
	app, _ = press(t, app, tea.KeyMsg{Type: tea.KeyDown})
	if app.Cursor() != 1 {
		t.Errorf("down arrow should move cursor to 1, got %d", app.Cursor())
	}
	app, _ = press(t, app, tea.KeyMsg{Type: tea.KeyUp})
	if app.Cursor() != 0 {
		t.Errorf("up arrow should move cursor to 0, got %d", app.Cursor())
	}
}

func TestAppCursorClampedWhenRowsShrink(t *testing.T) {
	app := loadedApp(&mockCmd{})
	app.cursor = 1

	app, _ = press(t, app, RowsLoaded{Rows: testRows()[:1]})
	if app.Cursor() != 0 {
		t.Errorf("cursor should clamp to 0, got %d", app.Cursor())
	}
}

func TestAppHideAuthorKey(t *testing.T) {
	mock := &mockCmd{}
	app := loadedApp(mock)

	_, cmd := press(t, app, runes("a"))
	if cmd == nil {
		t.Fatal("a should return a command")
	}
	if mock.called != "hideAuthor" || mock.calledID != "alice" {
		t.Errorf("expected hideAuthor(alice), got %s(%s)", mock.called, mock.calledID)
	}
}

func TestAppHideItemKey(t *testing.T) {
	mock := &mockCmd{}
	app := loadedApp(mock)

	press(t, app, runes("i"))
	if mock.called != "hideItem" || mock.calledID != "t1" {
		t.Errorf("expected hideItem(t1), got %s(%s)", mock.called, mock.calledID)
	}
}

func TestAppDecideWithoutAuthor(t *testing.T) {
	mock := &mockCmd{}
	app := loadedApp(mock)
	app.cursor = 1 // t3, no author

	app, cmd := press(t, app, runes("x"))
	if cmd != nil {
		t.Error("x on an authorless row should not return a command")
	}
	if mock.called == "decide" {
		t.Error("decide should not be called without an author")
	}
	if app.err == nil {
		t.Error("expected an error for an authorless row")
	}
}

func TestAppDecideEnter(t *testing.T) {
	mock := &mockCmd{}
	app := loadedApp(mock)

	press(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	if mock.called != "decide" || mock.calledID != "t1" {
		t.Errorf("expected decide(t1), got %s(%s)", mock.called, mock.calledID)
	}
}

func TestAppPromptReplies(t *testing.T) {
	tests := []struct {
		key  tea.KeyMsg
		want gateway.Choice
	}{
		{runes("a"), gateway.ChoiceHideAuthor},
		{runes("i"), gateway.ChoiceHideItem},
		{tea.KeyMsg{Type: tea.KeyEsc}, gateway.ChoiceCancel},
	}
	for _, tt := range tests {
		mock := &mockCmd{}
		app := loadedApp(mock)
		reply := make(chan gateway.Choice, 1)

		app, _ = press(t, app, PromptRequested{
			Req:   gateway.PromptRequest{ItemID: "t1", Author: "alice", DisplayName: "Alice", Text: "hello"},
			Reply: reply,
		})
		if !strings.Contains(app.View(), "Hide posts from Alice") {
			t.Errorf("prompt should render, got:\n%s", app.View())
		}

		app, _ = press(t, app, tt.key)
		select {
		case got := <-reply:
			if got != tt.want {
				t.Errorf("key %q: got %v, want %v", tt.key.String(), got, tt.want)
			}
		default:
			t.Errorf("key %q: no reply sent", tt.key.String())
		}
		if app.prompt != nil {
			t.Error("prompt should close after a reply")
		}
		if mock.called == "hideAuthor" || mock.called == "hideItem" {
			t.Error("prompt keys must not trigger stream actions")
		}
	}
}

func TestAppPromptIgnoresOtherKeys(t *testing.T) {
	app := loadedApp(&mockCmd{})
	reply := make(chan gateway.Choice, 1)
	app, _ = press(t, app, PromptRequested{Req: gateway.PromptRequest{Author: "alice"}, Reply: reply})

	app, _ = press(t, app, runes("j"))
	if app.prompt == nil {
		t.Fatal("unrelated key should keep the prompt open")
	}
	if len(reply) != 0 {
		t.Error("unrelated key should not reply")
	}
}

func TestAppSecondPromptDeclined(t *testing.T) {
	app := loadedApp(&mockCmd{})
	first := make(chan gateway.Choice, 1)
	second := make(chan gateway.Choice, 1)

	app, _ = press(t, app, PromptRequested{Req: gateway.PromptRequest{Author: "alice"}, Reply: first})
	press(t, app, PromptRequested{Req: gateway.PromptRequest{Author: "bob"}, Reply: second})

	if got := <-second; got != gateway.ChoiceCancel {
		t.Errorf("second prompt should be cancelled, got %v", got)
	}
}

func TestAppPassCompletedReloads(t *testing.T) {
	mock := &mockCmd{}
	app := loadedApp(mock)
	mock.called = ""

	app, cmd := press(t, app, PassCompleted{Result: reconcile.Result{Hidden: 4, Augmented: 7}})
	if cmd == nil || mock.called != "loadRows" {
		t.Error("a pass should reload rows")
	}
	if !strings.Contains(app.View(), "hidden 4") {
		t.Errorf("status bar should show the last pass, got:\n%s", app.View())
	}
}

func TestAppActionDoneError(t *testing.T) {
	app := loadedApp(&mockCmd{})

	app, _ = press(t, app, ActionDone{Err: errors.New("disk full")})
	if !strings.Contains(app.View(), "disk full") {
		t.Errorf("error should be shown, got:\n%s", app.View())
	}

	app, _ = press(t, app, runes("j"))
	if app.err != nil {
		t.Error("any key should dismiss the error")
	}
}

func TestAppManagePanel(t *testing.T) {
	mock := &mockCmd{}
	app := loadedApp(mock)

	app, cmd := press(t, app, runes("m"))
	if !app.manage.open {
		t.Fatal("m should open the manage panel")
	}
	if cmd == nil || mock.called != "loadList" {
		t.Fatal("opening the panel should load the list")
	}
	app, _ = press(t, app, cmd())

	if len(app.manage.entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(app.manage.entries))
	}

	// The configured author cannot be removed.
	app, cmd = press(t, app, runes("u"))
	if cmd != nil {
		t.Error("removing a configured author should not return a command")
	}
	if !strings.Contains(app.notice, "config") {
		t.Errorf("expected a config notice, got %q", app.notice)
	}

	app, _ = press(t, app, runes("j"))
	press(t, app, runes("u"))
	if mock.called != "unhide" || mock.calledID != "bob" {
		t.Errorf("expected unhide(bob), got %s(%s)", mock.called, mock.calledID)
	}

	app, _ = press(t, app, runes("j"))
	press(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	if mock.called != "restore" || mock.calledID != "t1" {
		t.Errorf("expected restore(t1), got %s(%s)", mock.called, mock.calledID)
	}

	app, _ = press(t, app, tea.KeyMsg{Type: tea.KeyEsc})
	if app.manage.open {
		t.Error("esc should close the manage panel")
	}
}

func TestAppManageExport(t *testing.T) {
	mock := &mockCmd{}
	app := loadedApp(mock)
	app.manage.open = true

	app, _ = press(t, app, runes("e"))
	if !app.manage.inputActive() {
		t.Fatal("e should start path input")
	}
	if app.manage.input.Value() != "/tmp/hush.json" {
		t.Errorf("expected default path, got %q", app.manage.input.Value())
	}

	// Typing goes to the input, not to key bindings.
	app, _ = press(t, app, runes("x"))
	if mock.called == "decide" {
		t.Error("typing in the path input must not trigger actions")
	}

	app, cmd := press(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("enter should run the export")
	}
	if mock.called != "export" || mock.calledID != "/tmp/hush.jsonx" {
		t.Errorf("expected export(/tmp/hush.jsonx), got %s(%s)", mock.called, mock.calledID)
	}
	if app.manage.inputActive() {
		t.Error("input should close after enter")
	}
}

func TestAppManageClearConfirm(t *testing.T) {
	mock := &mockCmd{}
	app := loadedApp(mock)
	app.manage.open = true

	app, _ = press(t, app, runes("C"))
	app, cmd := press(t, app, runes("n"))
	if cmd != nil || mock.called == "clear" {
		t.Error("anything but y should cancel the clear")
	}

	app, _ = press(t, app, runes("C"))
	_, cmd = press(t, app, runes("y"))
	if cmd == nil || mock.called != "clear" {
		t.Error("y should clear the hide list")
	}
}

func TestAppQuit(t *testing.T) {
	app := NewAppWithConfig(AppConfig{})

	_, cmd := app.Update(runes("q"))
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should return tea.Quit")
	}
}

func TestAppViewNotReady(t *testing.T) {
	app := NewAppWithConfig(AppConfig{})
	if app.View() != "Loading..." {
		t.Errorf("expected Loading..., got %q", app.View())
	}
}

func TestAppTogglesPersistSettings(t *testing.T) {
	saved := map[string]bool{}
	cfg := (&mockCmd{}).config()
	cfg.SaveSetting = func(key string, value bool) tea.Cmd {
		saved[key] = value
		return nil
	}
	cfg.Debug = true
	cfg.Obs.Ring = otel.NewRingBuffer(8)
	app := NewAppWithConfig(cfg)
	app.ready, app.width, app.height = true, 100, 24

	if !strings.Contains(app.View(), "Session Stats") {
		t.Fatal("persisted debug setting should open the overlay")
	}
	app, _ = press(t, app, runes("D"))
	if app.debugVisible || saved[SettingDebug] {
		t.Errorf("D should close the overlay and save it: %v", saved)
	}
	app, _ = press(t, app, runes("h"))
	if v, ok := saved[SettingShowHidden]; !ok || !v {
		t.Errorf("h should save showHidden=true: %v", saved)
	}
	if _, ok := saved[SettingDebug]; !ok {
		t.Error("debug toggle was not saved")
	}
}
