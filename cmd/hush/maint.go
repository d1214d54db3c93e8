package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/abelbrown/hush/internal/otel"
)

// withList opens the environment, runs fn and closes it again.
func withList(o *Options, fn func(e *env) error) error {
	e, err := openEnv(o)
	if err != nil {
		return err
	}
	defer e.Close()
	return fn(e)
}

type listCmd struct {
	opts *Options
	out  io.Writer
}

func (c *listCmd) Execute(args []string) error {
	return withList(c.opts, func(e *env) error {
		for _, a := range e.list.StaticAuthors() {
			fmt.Fprintf(c.out, "author @%s (config)\n", a)
		}
		for _, a := range e.list.Authors() {
			fmt.Fprintf(c.out, "author @%s\n", a)
		}
		for _, id := range e.list.Items() {
			fmt.Fprintf(c.out, "post   %s\n", id)
		}
		return nil
	})
}

type blockCmd struct {
	opts *Options
	out  io.Writer

	Args struct {
		Authors []string `positional-arg-name:"AUTHOR" required:"1"`
	} `positional-args:"yes"`
}

func (c *blockCmd) Execute(args []string) error {
	return withList(c.opts, func(e *env) error {
		var errs []error
		for _, a := range c.Args.Authors {
			if err := e.list.AddAuthor(a); err != nil {
				errs = append(errs, fmt.Errorf("block %s: %w", a, err))
				continue
			}
			e.events.Emit(otel.Event{Kind: otel.KindHideAuthor, Comp: "cli", Author: a})
			fmt.Fprintf(c.out, "blocked %s\n", a)
		}
		return errors.Join(errs...)
	})
}

type unhideCmd struct {
	opts *Options
	out  io.Writer

	Args struct {
		Authors []string `positional-arg-name:"AUTHOR" required:"1"`
	} `positional-args:"yes"`
}

func (c *unhideCmd) Execute(args []string) error {
	return withList(c.opts, func(e *env) error {
		var errs []error
		for _, a := range c.Args.Authors {
			if err := e.list.RemoveAuthor(a); err != nil {
				errs = append(errs, fmt.Errorf("unhide %s: %w", a, err))
				continue
			}
			e.events.Emit(otel.Event{Kind: otel.KindUnhideAuthor, Comp: "cli", Author: a})
			fmt.Fprintf(c.out, "unhid %s\n", a)
		}
		return errors.Join(errs...)
	})
}

type restoreCmd struct {
	opts *Options
	out  io.Writer

	Args struct {
		IDs []string `positional-arg-name:"ID" required:"1"`
	} `positional-args:"yes"`
}

func (c *restoreCmd) Execute(args []string) error {
	return withList(c.opts, func(e *env) error {
		var errs []error
		for _, id := range c.Args.IDs {
			if err := e.list.RemoveItem(id); err != nil {
				errs = append(errs, fmt.Errorf("restore %s: %w", id, err))
				continue
			}
			e.events.Emit(otel.Event{Kind: otel.KindRestoreItem, Comp: "cli", ItemID: id})
			fmt.Fprintf(c.out, "restored %s\n", id)
		}
		return errors.Join(errs...)
	})
}

type exportCmd struct {
	opts *Options
	out  io.Writer

	Args struct {
		File string `positional-arg-name:"FILE"`
	} `positional-args:"yes"`
}

func (c *exportCmd) Execute(args []string) error {
	return withList(c.opts, func(e *env) error {
		data, err := e.list.ExportJSON()
		if err != nil {
			return err
		}
		e.events.Info(otel.KindExport, "cli", c.Args.File)
		if c.Args.File == "" || c.Args.File == "-" {
			_, err = c.out.Write(append(data, '\n'))
			return err
		}
		return os.WriteFile(c.Args.File, data, 0o600)
	})
}

type importCmd struct {
	opts *Options
	out  io.Writer

	Args struct {
		File string `positional-arg-name:"FILE" required:"yes"`
	} `positional-args:"yes"`
}

func (c *importCmd) Execute(args []string) error {
	data, err := os.ReadFile(c.Args.File)
	if err != nil {
		return err
	}
	return withList(c.opts, func(e *env) error {
		if err := e.list.Import(data); err != nil {
			e.events.Error(otel.KindImport, "cli", err)
			return err
		}
		e.events.Info(otel.KindImport, "cli", c.Args.File)
		fmt.Fprintf(c.out, "imported %d authors, %d posts\n", len(e.list.Authors()), len(e.list.Items()))
		return nil
	})
}

type clearCmd struct {
	opts *Options
	out  io.Writer

	Yes bool `long:"yes" short:"y" description:"Do not ask for confirmation"`
}

var errNotConfirmed = errors.New("refusing to clear the hide list without --yes")

func (c *clearCmd) Execute(args []string) error {
	if !c.Yes {
		return errNotConfirmed
	}
	return withList(c.opts, func(e *env) error {
		if err := e.list.ClearAll(); err != nil {
			return err
		}
		e.events.Info(otel.KindClearAll, "cli", "")
		fmt.Fprintln(c.out, "hide list cleared")
		return nil
	})
}
