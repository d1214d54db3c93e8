// Package dom adapts an HTML document to page.Source using goquery. It
// also attaches the hide affordances and the manage control, and merges
// later snapshots of the same page as they arrive.
package dom

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/abelbrown/hush/internal/page"
	"github.com/abelbrown/hush/internal/profile"
)

// Attributes hush writes into the document.
const (
	AttrMarker = "data-hush-marker"
	AttrHidden = "data-hush-hidden"
	AttrAction = "data-hush-action"
	AttrItem   = "data-hush-item"
	AttrAuthor = "data-hush-author"

	ManageID = "hush-manage"
)

type subscription struct {
	scope page.Scope
	fn    func(page.Change)
}

// Document is a goroutine-safe page.Source over a parsed HTML document.
// Items are single-node *goquery.Selection values.
type Document struct {
	mu   sync.Mutex
	doc  *goquery.Document
	prof *profile.Profile
	loc  string

	subs   map[int]subscription
	nextID int
}

// Parse reads an HTML document at location using prof's selectors.
func Parse(r io.Reader, location string, prof *profile.Profile) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{
		doc:  doc,
		prof: prof,
		loc:  location,
		subs: make(map[int]subscription),
	}, nil
}

// Profile returns the selectors in use.
func (d *Document) Profile() *profile.Profile {
	return d.prof
}

// HTML renders the current document.
func (d *Document) HTML() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Html()
}

// SetLocation changes the reported location.
func (d *Document) SetLocation(loc string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loc = loc
}

func (d *Document) Location() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loc
}

func (d *Document) FindItems() []page.Item {
	d.mu.Lock()
	defer d.mu.Unlock()
	var items []page.Item
	d.doc.Find(d.prof.Selectors.Item).Each(func(_ int, s *goquery.Selection) {
		items = append(items, s)
	})
	return items
}

func sel(it page.Item) *goquery.Selection {
	s, ok := it.(*goquery.Selection)
	if !ok || s == nil || s.Length() == 0 {
		panic(fmt.Sprintf("dom: foreign item %T", it))
	}
	return s
}

func (d *Document) field(it page.Item, selector string) (string, bool) {
	if selector == "" {
		return "", false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	f := sel(it).Find(selector).First()
	if f.Length() == 0 {
		return "", false
	}
	return f.Text(), true
}

func (d *Document) FindAuthorField(it page.Item) (string, bool) {
	return d.field(it, d.prof.Selectors.AuthorID)
}

func (d *Document) FindDisplayName(it page.Item) (string, bool) {
	return d.field(it, d.prof.Selectors.AuthorName)
}

// FindText returns the body text, or the whole item text when the body
// selector is the item selector or matches nothing.
func (d *Document) FindText(it page.Item) (string, bool) {
	if body := d.prof.Selectors.Body; body != "" && body != d.prof.Selectors.Item {
		if text, ok := d.field(it, body); ok {
			return text, true
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	clone := sel(it).Clone()
	clone.Find("[" + AttrAction + "]").Remove()
	text := clone.Text()
	return text, strings.TrimSpace(text) != ""
}

func (d *Document) FindPermalink(it page.Item) (string, bool) {
	if d.prof.Selectors.Permalink == "" {
		return "", false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return sel(it).Find(d.prof.Selectors.Permalink).First().Attr("href")
}

func (d *Document) HasMarker(it page.Item) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := sel(it).Attr(AttrMarker)
	return ok
}

// target is the node the hide effect applies to.
func (d *Document) target(s *goquery.Selection) *goquery.Selection {
	if w := d.prof.Selectors.Wrapper; w != "" {
		if c := s.Closest(w); c.Length() > 0 {
			return c.First()
		}
	}
	return s
}

func (d *Document) Suppressed(it page.Item) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.target(sel(it)).Attr(AttrHidden)
	return ok
}

// Suppress hides the item's wrapper (or the item) with an inline style.
// No node is added or removed, so no change is reported.
func (d *Document) Suppress(it page.Item) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := d.target(sel(it))
	style := strings.TrimSpace(t.AttrOr("style", ""))
	if style != "" && !strings.HasSuffix(style, ";") {
		style += ";"
	}
	t.SetAttr("style", style+"display:none !important;")
	t.SetAttr(AttrHidden, "1")
	return nil
}

// Augment appends a hide button to the item and marks it. Self-inserted
// nodes are not reported to subscribers.
func (d *Document) Augment(it page.Item, a page.Affordance) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := sel(it)
	label := a.DisplayName
	if label == "" {
		label = a.Author
	}
	button := fmt.Sprintf(
		`<button type="button" class="hush-hide" %s="hide" %s="%s" %s="%s" title="%s">×</button>`,
		AttrAction,
		AttrItem, html.EscapeString(a.ItemID),
		AttrAuthor, html.EscapeString(a.Author),
		html.EscapeString("Hide posts by "+label),
	)
	s.AppendHtml(button)
	s.SetAttr(AttrMarker, "1")
	return nil
}

// Attach adds the manage control to the body once.
func (d *Document) Attach() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doc.Find("#"+ManageID).Length() > 0 {
		return nil
	}
	body := d.doc.Find("body")
	if body.Length() == 0 {
		return fmt.Errorf("dom: document has no body")
	}
	body.AppendHtml(fmt.Sprintf(`<div id="%s" %s="manage">hush</div>`, ManageID, AttrAction))
	return nil
}

// Release removes the manage control.
func (d *Document) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.doc.Find("#" + ManageID).Remove()
	return nil
}

// OnStructuralChange subscribes fn. Container scope fails with
// page.ErrNoContainer when the profile has no container selector or the
// container is absent.
func (d *Document) OnStructuralChange(scope page.Scope, fn func(page.Change)) (func(), error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if scope == page.ScopeContainer {
		c := d.prof.Selectors.Container
		if c == "" || d.doc.Find(c).Length() == 0 {
			return nil, page.ErrNoContainer
		}
	}
	id := d.nextID
	d.nextID++
	d.subs[id] = subscription{scope: scope, fn: fn}
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.subs, id)
	}, nil
}

func (d *Document) notify(c page.Change) {
	d.mu.Lock()
	fns := make([]func(page.Change), 0, len(d.subs))
	for _, s := range d.subs {
		fns = append(fns, s.fn)
	}
	d.mu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}

// itemKey identifies an item across snapshots by its content.
func itemKey(s *goquery.Selection) string {
	clone := s.Clone()
	clone.Find("[" + AttrAction + "]").Remove()
	return strings.Join(strings.Fields(clone.Text()), " ")
}

// Merge parses a newer snapshot of the page and appends the items it has
// that the document does not, as infinite scroll would. Subscribers are
// told how many items were added. Returns that count.
func (d *Document) Merge(r io.Reader) (int, error) {
	next, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return 0, fmt.Errorf("parse html: %w", err)
	}

	d.mu.Lock()
	seen := make(map[string]struct{})
	current := d.doc.Find(d.prof.Selectors.Item)
	current.Each(func(_ int, s *goquery.Selection) {
		seen[itemKey(s)] = struct{}{}
	})

	parent := d.doc.Find("body")
	if c := d.prof.Selectors.Container; c != "" {
		if found := d.doc.Find(c).First(); found.Length() > 0 {
			parent = found
		}
	}
	if current.Length() > 0 {
		parent = current.Last().Parent()
	}

	var fresh bytes.Buffer
	added := 0
	next.Find(d.prof.Selectors.Item).Each(func(_ int, s *goquery.Selection) {
		key := itemKey(s)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		outer, err := goquery.OuterHtml(s)
		if err != nil {
			return
		}
		fresh.WriteString(outer)
		added++
	})
	if added > 0 {
		parent.AppendHtml(fresh.String())
	}
	d.mu.Unlock()

	if added > 0 {
		d.notify(page.Change{Added: added})
	}
	return added, nil
}

var (
	_ page.Source        = (*Document)(nil)
	_ page.Augmenter     = (*Document)(nil)
	_ page.ManageControl = (*Document)(nil)
)
