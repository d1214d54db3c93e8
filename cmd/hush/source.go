package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/abelbrown/hush/internal/dom"
	"github.com/abelbrown/hush/internal/feedsrc"
	"github.com/abelbrown/hush/internal/gateway"
	"github.com/abelbrown/hush/internal/identity"
	"github.com/abelbrown/hush/internal/page"
	"github.com/abelbrown/hush/internal/profile"
	"github.com/abelbrown/hush/internal/session"
	"github.com/abelbrown/hush/internal/watch"
)

// PageOptions select and locate the page a command works on.
type PageOptions struct {
	URL     string `long:"url" description:"Location the page was saved from; the session activates only if a profile matches it"`
	Profile string `long:"profile" description:"Site profile name (default from config or URL)"`
	Feed    bool   `long:"feed" description:"Treat the file as an RSS/Atom/JSON feed"`
}

// pageFile is a page source backed by a file that can take later
// snapshots and be written back out.
type pageFile interface {
	page.Source
	Merge(r io.Reader) (int, error)
	Render(w io.Writer) error
}

type htmlPage struct{ *dom.Document }

func (p htmlPage) Render(w io.Writer) error {
	html, err := p.HTML()
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, html)
	return err
}

type feedPage struct{ *feedsrc.Feed }

func (p feedPage) Render(w io.Writer) error {
	return p.WriteJSON(w)
}

// isFeedFile guesses the kind of file from its extension.
func isFeedFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml", ".rss", ".atom":
		return true
	}
	return false
}

// pickProfile chooses the profile by flag, then config, then URL, then
// falls back to the built-in realtime search profile.
func pickProfile(e *env, po PageOptions) (*profile.Profile, error) {
	name := po.Profile
	if name == "" {
		name = e.cfg.Profile
	}
	if name != "" {
		return e.profiles.Get(name)
	}
	if po.URL != "" {
		if p, ok := e.profiles.ForLocation(po.URL); ok {
			return p, nil
		}
	}
	return profile.YahooRealtime(), nil
}

// openPage parses path and returns it with the location to navigate to.
func openPage(path string, prof *profile.Profile, po PageOptions) (pageFile, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	location := po.URL
	if location == "" {
		abs, _ := filepath.Abs(path)
		location = "file://" + abs
	}

	if po.Feed || isFeedFile(path) {
		feed, err := feedsrc.Parse(f)
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", path, err)
		}
		return feedPage{feed}, location, nil
	}

	doc, err := dom.Parse(f, location, prof)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	return htmlPage{doc}, location, nil
}

// mergeFile feeds a new snapshot of path into pf.
func mergeFile(pf pageFile, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = pf.Merge(f)
	return err
}

// newSession wires a session over pf. Without a URL the snapshot is
// trusted to be from the profile's site and the session always activates.
func newSession(e *env, pf pageFile, prof *profile.Profile, po PageOptions, prompt gateway.Prompt) *session.Session {
	d := session.Deps{
		Source: pf,
		List:   e.list,
		Identity: identity.Options{
			TextPrefixRunes: e.cfg.Identity.TextPrefixRunes,
			UsePermalink:    e.cfg.Identity.UsePermalink,
		},
		CacheSize: e.cfg.Cache.Capacity,
		Watch: watch.Options{
			Debounce:      e.cfg.Debounce(),
			BulkThreshold: e.cfg.Watch.BulkThreshold,
		},
		Prompt: prompt,
		Log:    e.log,
		Events: e.events,
	}
	if mc, ok := pf.(page.ManageControl); ok {
		d.Manage = mc
	}
	if po.URL != "" {
		d.Match = prof.Matches
	}
	return session.New(d)
}
