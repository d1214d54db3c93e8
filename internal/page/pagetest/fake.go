// Package pagetest provides an in-memory page.Source for tests.
package pagetest

import (
	"sync"

	"github.com/abelbrown/hush/internal/page"
)

// Post is a fake content item. Source hands out *Post values as page.Item.
type Post struct {
	Author    string
	NoAuthor  bool
	Name      string
	Text      string
	Permalink string

	// PanicOnAuthor makes FindAuthorField panic, simulating a broken
	// subtree.
	PanicOnAuthor bool

	Marked bool
	Hidden bool
}

// NewPost returns a post by author with the given text.
func NewPost(author, text string) *Post {
	return &Post{Author: author, Name: author, Text: text}
}

type subscription struct {
	scope page.Scope
	fn    func(page.Change)
}

// Source is a goroutine-safe fake page.Source, page.Augmenter and
// page.ManageControl.
type Source struct {
	mu sync.Mutex

	Loc         string
	posts       []*Post
	noContainer bool

	subs   map[int]subscription
	nextID int

	SuppressErr error
	AugmentErr  error

	suppressCalls int
	augments      []page.Affordance
	attached      int
	released      int
}

// New returns a fake source at loc holding posts.
func New(loc string, posts ...*Post) *Source {
	return &Source{Loc: loc, posts: posts, subs: make(map[int]subscription)}
}

// SetNoContainer makes container-scoped subscriptions fail with
// page.ErrNoContainer.
func (s *Source) SetNoContainer(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noContainer = v
}

// Add appends posts and notifies subscribers with the number added.
func (s *Source) Add(posts ...*Post) {
	s.mu.Lock()
	s.posts = append(s.posts, posts...)
	s.mu.Unlock()
	s.Notify(len(posts))
}

// Rerender replaces every post with a fresh unmarked, unhidden copy of
// itself, as a page re-render would.
func (s *Source) Rerender() {
	s.mu.Lock()
	fresh := make([]*Post, len(s.posts))
	for i, p := range s.posts {
		cp := *p
		cp.Marked, cp.Hidden = false, false
		fresh[i] = &cp
	}
	s.posts = fresh
	s.mu.Unlock()
	s.Notify(len(fresh))
}

// Notify delivers a change with added nodes to every subscriber.
func (s *Source) Notify(added int) {
	s.mu.Lock()
	fns := make([]func(page.Change), 0, len(s.subs))
	for _, sub := range s.subs {
		fns = append(fns, sub.fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(page.Change{Added: added})
	}
}

// Posts returns the current posts.
func (s *Source) Posts() []*Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Post(nil), s.posts...)
}

// Subscribers returns the active subscription scopes.
func (s *Source) Subscribers() []page.Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]page.Scope, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, sub.scope)
	}
	return out
}

// SuppressCalls returns how many times Suppress was called.
func (s *Source) SuppressCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suppressCalls
}

// Augments returns every affordance attached so far.
func (s *Source) Augments() []page.Affordance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]page.Affordance(nil), s.augments...)
}

// Attached reports attach and release counts of the manage control.
func (s *Source) Attached() (attached, released int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached, s.released
}

func (s *Source) Location() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Loc
}

func (s *Source) FindItems() []page.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]page.Item, len(s.posts))
	for i, p := range s.posts {
		items[i] = p
	}
	return items
}

func post(it page.Item) *Post {
	p, _ := it.(*Post)
	return p
}

func (s *Source) FindAuthorField(it page.Item) (string, bool) {
	p := post(it)
	if p.PanicOnAuthor {
		panic("pagetest: broken author field")
	}
	if p.NoAuthor {
		return "", false
	}
	return p.Author, true
}

func (s *Source) FindDisplayName(it page.Item) (string, bool) {
	p := post(it)
	return p.Name, p.Name != ""
}

func (s *Source) FindText(it page.Item) (string, bool) {
	p := post(it)
	return p.Text, p.Text != ""
}

func (s *Source) FindPermalink(it page.Item) (string, bool) {
	p := post(it)
	return p.Permalink, p.Permalink != ""
}

func (s *Source) HasMarker(it page.Item) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return post(it).Marked
}

func (s *Source) Suppressed(it page.Item) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return post(it).Hidden
}

func (s *Source) Suppress(it page.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suppressCalls++
	if s.SuppressErr != nil {
		return s.SuppressErr
	}
	post(it).Hidden = true
	return nil
}

func (s *Source) OnStructuralChange(scope page.Scope, fn func(page.Change)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if scope == page.ScopeContainer && s.noContainer {
		return nil, page.ErrNoContainer
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = subscription{scope: scope, fn: fn}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}, nil
}

// Augment marks the post and records the affordance without notifying.
func (s *Source) Augment(it page.Item, a page.Affordance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AugmentErr != nil {
		return s.AugmentErr
	}
	post(it).Marked = true
	s.augments = append(s.augments, a)
	return nil
}

func (s *Source) Attach() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attached++
	return nil
}

func (s *Source) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released++
	return nil
}

var (
	_ page.Source        = (*Source)(nil)
	_ page.Augmenter     = (*Source)(nil)
	_ page.ManageControl = (*Source)(nil)
)
