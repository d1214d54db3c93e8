package main

import (
	"fmt"
	"io"
	"os"

	"github.com/abelbrown/hush/internal/dom"
	"github.com/abelbrown/hush/internal/profile"
	"github.com/abelbrown/hush/internal/reconcile"
)

type applyCmd struct {
	opts *Options
	out  io.Writer

	PageOptions
	Out string `long:"out" short:"o" description:"Write the reconciled page here (default stdout)"`

	Args struct {
		Page string `positional-arg-name:"PAGE" required:"yes"`
	} `positional-args:"yes"`
}

func (c *applyCmd) Execute(args []string) error {
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

	sess := newSession(e, pf, prof, c.PageOptions, nil)
	defer sess.Close()

	var last reconcile.Result
	sess.OnPass(func(res reconcile.Result) { last = res })
	if err := sess.Navigate(location); err != nil {
		return fmt.Errorf("activate %s: %w", location, err)
	}

	w := c.out
	if c.Out != "" {
		if err := writePage(pf, c.Out); err != nil {
			return err
		}
	} else {
		if err := pf.Render(c.out); err != nil {
			return err
		}
		w = os.Stderr
	}

	if !sess.Active() {
		fmt.Fprintf(w, "%s does not match profile %s; page left unchanged\n", location, prof.Name)
		return nil
	}
	fmt.Fprintf(w, "hidden %d, marked %d, skipped %d in %s\n", last.Hidden, last.Augmented, last.Skipped, last.Dur)
	return nil
}

type analyzeCmd struct {
	opts *Options
	out  io.Writer

	Profile string `long:"profile" description:"Site profile whose selectors are probed"`

	Args struct {
		Page string `positional-arg-name:"PAGE" required:"yes"`
	} `positional-args:"yes"`
}

func (c *analyzeCmd) Execute(args []string) error {
	cfg, err := loadConfig(c.opts)
	if err != nil {
		return err
	}
	reg, err := loadProfiles(cfg)
	if err != nil {
		return err
	}
	name := c.Profile
	if name == "" {
		name = cfg.Profile
	}
	prof := profile.YahooRealtime()
	if name != "" {
		if prof, err = reg.Get(name); err != nil {
			return err
		}
	}

	f, err := os.Open(c.Args.Page)
	if err != nil {
		return err
	}
	defer f.Close()

	doc, err := dom.Parse(f, c.Args.Page, prof)
	if err != nil {
		return err
	}
	_, err = doc.Analyze().WriteTo(c.out)
	return err
}
