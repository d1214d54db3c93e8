package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/hush/internal/gateway"
	"github.com/abelbrown/hush/internal/session"
	"github.com/abelbrown/hush/internal/ui"
)

// action runs fn off the UI goroutine and reports its outcome.
func action(fn func() (string, error)) tea.Cmd {
	return func() tea.Msg {
		msg, err := fn()
		return ui.ActionDone{Msg: msg, Err: err}
	}
}

// settingBool reads a persisted view toggle, falling back to def.
func settingBool(settings map[string]any, key string, def bool) bool {
	if v, ok := settings[key].(bool); ok {
		return v
	}
	return def
}

// appConfig binds the TUI to a session. Persisted view settings override
// the configuration defaults.
func appConfig(ctx context.Context, sess *session.Session, e *env) ui.AppConfig {
	settings := sess.List().Settings()
	return ui.AppConfig{
		LoadRows: func() tea.Cmd {
			return func() tea.Msg {
				return ui.RowsLoaded{Location: sess.Location(), Rows: sess.Rows()}
			}
		},
		LoadList: func() tea.Cmd {
			return func() tea.Msg {
				l := sess.List()
				return ui.ListLoaded{Authors: l.Authors(), Static: l.StaticAuthors(), Items: l.Items()}
			}
		},
		Decide: func(id string) tea.Cmd {
			return action(func() (string, error) {
				choice, n, err := sess.Decide(ctx, id)
				if err != nil {
					return "", err
				}
				switch choice {
				case gateway.ChoiceHideAuthor:
					return fmt.Sprintf("author hidden (%d posts)", n), nil
				case gateway.ChoiceHideItem:
					return "post hidden", nil
				}
				return "cancelled", nil
			})
		},
		HideAuthor: func(author string) tea.Cmd {
			return action(func() (string, error) {
				n, err := sess.HideAuthor(author)
				return fmt.Sprintf("@%s hidden (%d posts)", author, n), err
			})
		},
		HideItem: func(id string) tea.Cmd {
			return action(func() (string, error) {
				return "post hidden", sess.HideItem(id)
			})
		},
		Unhide: func(author string) tea.Cmd {
			return action(func() (string, error) {
				return fmt.Sprintf("@%s unhidden; reload the page to see their posts", author), sess.UnhideAuthor(author)
			})
		},
		Restore: func(id string) tea.Cmd {
			return action(func() (string, error) {
				return "post restored; reload the page to see it", sess.RestoreItem(id)
			})
		},
		Export: func(path string) tea.Cmd {
			return action(func() (string, error) {
				data, err := sess.Export()
				if err != nil {
					return "", err
				}
				if err := os.WriteFile(path, data, 0o600); err != nil {
					return "", err
				}
				return "exported to " + path, nil
			})
		},
		Import: func(path string) tea.Cmd {
			return action(func() (string, error) {
				data, err := os.ReadFile(path)
				if err != nil {
					return "", err
				}
				if err := sess.Import(data); err != nil {
					return "", err
				}
				return "imported " + path, nil
			})
		},
		Clear: func() tea.Cmd {
			return action(func() (string, error) {
				return "hide list cleared", sess.ClearAll()
			})
		},
		SaveSetting: func(key string, value bool) tea.Cmd {
			return func() tea.Msg {
				if err := sess.List().SetSetting(key, value); err != nil {
					return ui.ActionDone{Err: fmt.Errorf("save %s: %w", key, err)}
				}
				return nil
			}
		},
		ExportPath: filepath.Join(e.cfg.DataDir, "hush-export.json"),
		ShowHidden: settingBool(settings, ui.SettingShowHidden, e.cfg.UI.ShowHidden),
		Debug:      settingBool(settings, ui.SettingDebug, false),
		Obs:        ui.ObsConfig{Ring: e.ring},
	}
}
