// Package feedsrc adapts an RSS/Atom/JSON feed to page.Source, so a
// realtime search exported as a feed can be filtered like the page.
package feedsrc

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/mmcdole/gofeed"

	"github.com/abelbrown/hush/internal/page"
)

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

// Entry is one feed item plus its presentation state.
type Entry struct {
	Item       *gofeed.Item
	Hidden     bool
	Marked     bool
	Affordance page.Affordance
}

type subscription struct {
	scope page.Scope
	fn    func(page.Change)
}

// Feed is a goroutine-safe page.Source and page.Augmenter over a parsed
// feed. Items are *Entry values.
type Feed struct {
	mu      sync.Mutex
	feed    *gofeed.Feed
	entries []*Entry
	loc     string

	subs   map[int]subscription
	nextID int
}

// Parse reads a feed in any format gofeed understands.
func Parse(r io.Reader) (*Feed, error) {
	parsed, err := gofeed.NewParser().Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	f := &Feed{
		feed: parsed,
		loc:  parsed.FeedLink,
		subs: make(map[int]subscription),
	}
	if f.loc == "" {
		f.loc = parsed.Link
	}
	for _, it := range parsed.Items {
		f.entries = append(f.entries, &Entry{Item: it})
	}
	return f, nil
}

// Title returns the feed title.
func (f *Feed) Title() string {
	return f.feed.Title
}

func (f *Feed) Location() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loc
}

func (f *Feed) FindItems() []page.Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]page.Item, len(f.entries))
	for i, e := range f.entries {
		items[i] = e
	}
	return items
}

func entry(it page.Item) *Entry {
	e, ok := it.(*Entry)
	if !ok || e == nil || e.Item == nil {
		panic(fmt.Sprintf("feedsrc: foreign item %T", it))
	}
	return e
}

// FindAuthorField prefers the Dublin Core creator, which carries handles
// in most social feeds, then the author name.
func (f *Feed) FindAuthorField(it page.Item) (string, bool) {
	item := entry(it).Item
	if dc := item.DublinCoreExt; dc != nil && len(dc.Creator) > 0 && dc.Creator[0] != "" {
		return dc.Creator[0], true
	}
	if item.Author != nil && item.Author.Name != "" {
		return item.Author.Name, true
	}
	for _, a := range item.Authors {
		if a != nil && a.Name != "" {
			return a.Name, true
		}
	}
	return "", false
}

func (f *Feed) FindDisplayName(it page.Item) (string, bool) {
	item := entry(it).Item
	if item.Author != nil && item.Author.Name != "" {
		return item.Author.Name, true
	}
	return f.FindAuthorField(it)
}

// FindText returns the title and description with markup stripped.
func (f *Feed) FindText(it page.Item) (string, bool) {
	item := entry(it).Item
	body := item.Description
	if body == "" {
		body = item.Content
	}
	text := strings.TrimSpace(item.Title + " " + htmlTagRe.ReplaceAllString(body, " "))
	return text, text != ""
}

func (f *Feed) FindPermalink(it page.Item) (string, bool) {
	item := entry(it).Item
	return item.Link, item.Link != ""
}

func (f *Feed) HasMarker(it page.Item) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return entry(it).Marked
}

func (f *Feed) Suppressed(it page.Item) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return entry(it).Hidden
}

func (f *Feed) Suppress(it page.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry(it).Hidden = true
	return nil
}

func (f *Feed) Augment(it page.Item, a page.Affordance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := entry(it)
	e.Marked = true
	e.Affordance = a
	return nil
}

// OnStructuralChange subscribes fn. A feed is its own container, so both
// scopes are accepted.
func (f *Feed) OnStructuralChange(scope page.Scope, fn func(page.Change)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.subs[id] = subscription{scope: scope, fn: fn}
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}, nil
}

func key(item *gofeed.Item) string {
	if item.GUID != "" {
		return "guid:" + item.GUID
	}
	if item.Link != "" {
		return "link:" + item.Link
	}
	return "text:" + item.Title + "\x00" + item.Description
}

// Merge parses a newer copy of the feed and appends unseen items. It
// returns how many were added and notifies subscribers.
func (f *Feed) Merge(r io.Reader) (int, error) {
	next, err := gofeed.NewParser().Parse(r)
	if err != nil {
		return 0, fmt.Errorf("parse feed: %w", err)
	}

	f.mu.Lock()
	seen := make(map[string]struct{}, len(f.entries))
	for _, e := range f.entries {
		seen[key(e.Item)] = struct{}{}
	}
	added := 0
	for _, it := range next.Items {
		k := key(it)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		f.entries = append(f.entries, &Entry{Item: it})
		added++
	}
	fns := make([]func(page.Change), 0, len(f.subs))
	for _, s := range f.subs {
		fns = append(fns, s.fn)
	}
	f.mu.Unlock()

	if added > 0 {
		for _, fn := range fns {
			fn(page.Change{Added: added})
		}
	}
	return added, nil
}

// Visible returns a copy of the feed without hidden items.
func (f *Feed) Visible() *gofeed.Feed {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := *f.feed
	out.Items = nil
	for _, e := range f.entries {
		if !e.Hidden {
			out.Items = append(out.Items, e.Item)
		}
	}
	return &out
}

// WriteJSON writes the visible feed as indented JSON.
func (f *Feed) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(f.Visible())
}

var (
	_ page.Source    = (*Feed)(nil)
	_ page.Augmenter = (*Feed)(nil)
)
