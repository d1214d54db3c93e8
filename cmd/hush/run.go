package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/hush/internal/reconcile"
	"github.com/abelbrown/hush/internal/ui"
	"github.com/abelbrown/hush/internal/watch"
)

type runCmd struct {
	opts *Options

	PageOptions
	Out     string `long:"out" short:"o" description:"Write the reconciled page here on exit"`
	NoWatch bool   `long:"no-watch" description:"Do not follow the file for new items"`

	Args struct {
		Page string `positional-arg-name:"PAGE" required:"yes"`
	} `positional-args:"yes"`
}

func (c *runCmd) Execute(args []string) error {
	e, err := openEnv(c.opts)
	if err != nil {
		return err
	}
	defer e.Close()

	prof, err := pickProfile(e, c.PageOptions)
	if err != nil {
		return err
	}
	pf, location, err := openPage(c.Args.Page, prof, c.PageOptions)
	if err != nil {
		return err
	}

	prompter := ui.NewPrompter()
	sess := newSession(e, pf, prof, c.PageOptions, prompter)
	defer sess.Close()

	if err := sess.Navigate(location); err != nil {
		return fmt.Errorf("activate %s: %w", location, err)
	}
	if !sess.Active() {
		e.log.Warn("location does not match the profile; nothing will be hidden", "location", location, "profile", prof.Name)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	app := ui.NewAppWithConfig(appConfig(gctx, sess, e))
	program := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(gctx))
	prompter.Bind(program.Send)
	sess.OnPass(func(res reconcile.Result) {
		program.Send(ui.PassCompleted{Result: res})
	})

	if !c.NoWatch {
		g.Go(func() error {
			return watch.WatchFile(gctx, c.Args.Page, func() error {
				return mergeFile(pf, c.Args.Page)
			}, watch.FileOptions{Log: e.log, Events: e.events})
		})
	}
	g.Go(func() error {
		defer cancel()
		_, err := program.Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}

	if c.Out != "" {
		return writePage(pf, c.Out)
	}
	return nil
}

// writePage renders pf into path.
func writePage(pf pageFile, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := pf.Render(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
