// Package session is the application context: it builds the identity
// extractor, reconciler, gateway and change watcher once, activates them
// when the location matches, and serialises every core operation behind
// one mutex.
package session

import (
	"context"
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/abelbrown/hush/internal/gateway"
	"github.com/abelbrown/hush/internal/hidelist"
	"github.com/abelbrown/hush/internal/identity"
	"github.com/abelbrown/hush/internal/logging"
	"github.com/abelbrown/hush/internal/otel"
	"github.com/abelbrown/hush/internal/page"
	"github.com/abelbrown/hush/internal/reconcile"
	"github.com/abelbrown/hush/internal/watch"
)

// Deps wires a Session.
type Deps struct {
	Source    page.Source
	Augmenter page.Augmenter
	Manage    page.ManageControl // optional
	List      *hidelist.Store

	Identity  identity.Options
	CacheSize int
	Watch     watch.Options

	// Match decides whether a location activates the session. Nil matches
	// everything.
	Match func(location string) bool

	Prompt gateway.Prompt
	Log    *log.Logger
	Events *otel.Logger
}

// Row is one item as the UI shows it.
type Row struct {
	ID          string
	Author      string
	DisplayName string
	Text        string
	State       reconcile.State
	Hidden      bool // suppressed on the page
}

// Session owns the core components.
type Session struct {
	mu       sync.Mutex
	d        Deps
	ext      *identity.Extractor
	rec      *reconcile.Reconciler
	gw       *gateway.Gateway
	watcher  *watch.Watcher
	active   bool
	location string

	obsMu     sync.Mutex
	observers []func(reconcile.Result)

	log    *log.Logger
	events *otel.Logger
}

// New builds a Session. It starts inactive; call Navigate.
func New(d Deps) *Session {
	logger := logging.OrDiscard(d.Log)
	if d.Augmenter == nil {
		if aug, ok := d.Source.(page.Augmenter); ok {
			d.Augmenter = aug
		}
	}

	s := &Session{
		d:      d,
		log:    logger.WithPrefix("session"),
		events: d.Events,
	}
	s.ext = identity.New(d.Source, d.Identity)
	s.rec = reconcile.New(reconcile.Deps{
		Source:    d.Source,
		Extractor: s.ext,
		List:      d.List,
		Augmenter: d.Augmenter,
		Cache:     reconcile.NewProcessedCache(d.CacheSize),
		Log:       logger,
		Events:    d.Events,
	})
	s.gw = gateway.New(gateway.Deps{
		Source:     d.Source,
		Extractor:  s.ext,
		List:       d.List,
		Reconciler: s.rec,
		Rerun:      s.rerunLocked,
		Prompt:     d.Prompt,
		Log:        logger,
		Events:     d.Events,
	})

	wopts := d.Watch
	if wopts.Log == nil {
		wopts.Log = logger
	}
	if wopts.Events == nil {
		wopts.Events = d.Events
	}
	s.watcher = watch.New(d.Source, s.onWatch, wopts)
	return s
}

// List returns the hide list.
func (s *Session) List() *hidelist.Store {
	return s.d.List
}

// Active reports whether the current location activated the session.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Location returns the last navigated location.
func (s *Session) Location() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.location
}

// OnPass registers fn to receive every pass result. fn is called without
// the session lock held.
func (s *Session) OnPass(fn func(reconcile.Result)) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, fn)
}

func (s *Session) publish(res reconcile.Result) {
	s.obsMu.Lock()
	fns := slices.Clone(s.observers)
	s.obsMu.Unlock()
	for _, fn := range fns {
		fn(res)
	}
}

func (s *Session) matches(location string) bool {
	if s.d.Match == nil {
		return true
	}
	return s.d.Match(location)
}

// Navigate records a location change. Entering a matching location
// attaches the manage control, starts the watcher and runs an initial
// pass; leaving one detaches both.
func (s *Session) Navigate(location string) error {
	s.mu.Lock()
	s.location = location
	match := s.matches(location)

	var (
		res    reconcile.Result
		ran    bool
		retErr error
	)
	switch {
	case match && !s.active:
		res, retErr = s.activateLocked()
		ran = retErr == nil
	case !match && s.active:
		s.deactivateLocked()
	}
	s.mu.Unlock()

	if ran {
		s.publish(res)
	}
	return retErr
}

func (s *Session) activateLocked() (reconcile.Result, error) {
	if s.d.Manage != nil {
		if err := s.d.Manage.Attach(); err != nil {
			s.log.Warn("manage control attach failed", "err", err)
		}
	}
	if err := s.watcher.Start(); err != nil {
		if s.d.Manage != nil {
			s.d.Manage.Release()
		}
		return reconcile.Result{}, err
	}
	s.active = true
	s.rec.Cache().Purge()
	s.log.Info("activated", "location", s.location)
	s.events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindActivate, Comp: "session", Msg: s.location})
	return s.rec.Pass(), nil
}

func (s *Session) deactivateLocked() {
	s.watcher.Stop()
	if s.d.Manage != nil {
		if err := s.d.Manage.Release(); err != nil {
			s.log.Warn("manage control release failed", "err", err)
		}
	}
	s.active = false
	s.log.Info("deactivated", "location", s.location)
	s.events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindDeactivate, Comp: "session", Msg: s.location})
}

// rerunLocked is the gateway's post-mutation pass. Caller holds s.mu.
func (s *Session) rerunLocked() {
	if s.active {
		s.rec.Pass()
	}
}

func (s *Session) onWatch() {
	s.Reconcile()
}

// Reconcile runs one pass. An inactive session does nothing.
func (s *Session) Reconcile() reconcile.Result {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return reconcile.Result{}
	}
	res := s.rec.Pass()
	s.mu.Unlock()
	s.publish(res)
	return res
}

// Rows returns the current items with their decisions.
func (s *Session) Rows() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.d.Source.FindItems()
	rows := make([]Row, 0, len(items))
	for _, it := range items {
		row := Row{
			ID:          s.ext.ComputeItemID(it),
			DisplayName: s.ext.ExtractDisplayName(it),
			Hidden:      s.d.Source.Suppressed(it),
		}
		row.Author, _ = s.ext.ExtractAuthor(it)
		row.Text, _ = s.d.Source.FindText(it)
		if st, ok := s.rec.Cache().Lookup(row.ID); ok {
			row.State = st
		} else if row.Author == "" {
			row.State = reconcile.StateSkipped
		}
		rows = append(rows, row)
	}
	return rows
}

// findLocked returns the first current item with id.
func (s *Session) findLocked(id string) page.Item {
	for _, it := range s.d.Source.FindItems() {
		if s.ext.ComputeItemID(it) == id {
			return it
		}
	}
	return nil
}

// mutate runs fn under the lock, then publishes the pass the gateway ran.
func (s *Session) mutate(fn func() error) error {
	s.mu.Lock()
	err := fn()
	res, active := s.rec.Last(), s.active
	s.mu.Unlock()
	if active {
		s.publish(res)
	}
	return err
}

// HideItem blocks id and hides the matching item if it is on the page.
// Fallback ids are rejected without touching the hide list.
func (s *Session) HideItem(id string) error {
	return s.mutate(func() error {
		return s.gw.HideItem(s.findLocked(id), id)
	})
}

// HideAuthor blocks author and returns how many items were hidden.
func (s *Session) HideAuthor(author string) (int, error) {
	var n int
	err := s.mutate(func() error {
		var err error
		n, err = s.gw.HideAuthor(author)
		return err
	})
	return n, err
}

// UnhideAuthor unblocks author. Items already hidden stay hidden until
// the page is reloaded.
func (s *Session) UnhideAuthor(author string) error {
	return s.mutate(func() error { return s.gw.UnhideAuthor(author) })
}

// RestoreItem unblocks an item id, with the same reload limitation.
func (s *Session) RestoreItem(id string) error {
	return s.mutate(func() error { return s.gw.RestoreItem(id) })
}

// Export returns the hide list export document.
func (s *Session) Export() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gw.Export()
}

// Import replaces the hide list. Invalid input changes nothing.
func (s *Session) Import(data []byte) error {
	return s.mutate(func() error { return s.gw.Import(data) })
}

// ClearAll empties the hide list.
func (s *Session) ClearAll() error {
	return s.mutate(s.gw.ClearAll)
}

// Decide asks the prompt about the item with id and applies the answer.
// The prompt runs without the session lock so passes keep running while
// the user decides.
func (s *Session) Decide(ctx context.Context, id string) (gateway.Choice, int, error) {
	if s.d.Prompt == nil {
		return gateway.ChoiceCancel, 0, ErrNoPrompt
	}

	if identity.IsFallback(id) {
		return gateway.ChoiceCancel, 0, gateway.ErrUnstableID
	}

	s.mu.Lock()
	it := s.findLocked(id)
	if it == nil {
		s.mu.Unlock()
		return gateway.ChoiceCancel, 0, ErrItemNotFound
	}
	req, err := s.gw.Prepare(it)
	s.mu.Unlock()
	if err != nil {
		return gateway.ChoiceCancel, 0, err
	}

	choice, err := s.d.Prompt.Ask(ctx, req)
	if err != nil {
		return gateway.ChoiceCancel, 0, err
	}

	var n int
	err = s.mutate(func() error {
		var err error
		n, err = s.gw.Dispatch(it, req, choice)
		return err
	})
	return choice, n, err
}

// Close deactivates the session. The hide list and its store stay open.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		s.deactivateLocked()
	}
}
