// Package watch turns structural-change notifications into coalesced
// reconciliation runs, and follows files on disk for changes.
package watch

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/abelbrown/hush/internal/logging"
	"github.com/abelbrown/hush/internal/otel"
	"github.com/abelbrown/hush/internal/page"
)

const (
	DefaultDebounce      = 120 * time.Millisecond
	DefaultBulkThreshold = 30
)

// Options tunes a Watcher.
type Options struct {
	Debounce      time.Duration
	BulkThreshold int
	Clock         Clock
	Log           *log.Logger
	Events        *otel.Logger
}

// Watcher subscribes to a page.Source and calls run after bursts of
// change settle. A notification adding at least BulkThreshold nodes runs
// immediately instead.
type Watcher struct {
	src  page.Source
	run  func()
	opts Options
	log  *log.Logger

	mu      sync.Mutex
	running bool
	scope   page.Scope
	unsub   func()
	deb     *Debouncer
}

// New returns a stopped Watcher.
func New(src page.Source, run func(), opts Options) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.BulkThreshold <= 0 {
		opts.BulkThreshold = DefaultBulkThreshold
	}
	if opts.Clock == nil {
		opts.Clock = RealClock
	}
	return &Watcher{
		src:  src,
		run:  run,
		opts: opts,
		log:  logging.OrDiscard(opts.Log).WithPrefix("watch"),
	}
}

// Start subscribes to the item container, or to the whole document when
// the container cannot be found. Starting a running watcher is a no-op.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	deb := NewDebouncer(w.opts.Clock, w.opts.Debounce, w.flush)
	handler := func(c page.Change) { w.onChange(deb, c) }

	scope := page.ScopeContainer
	unsub, err := w.src.OnStructuralChange(scope, handler)
	if errors.Is(err, page.ErrNoContainer) {
		w.log.Info("container not found, observing document")
		scope = page.ScopeDocument
		unsub, err = w.src.OnStructuralChange(scope, handler)
	}
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", scope, err)
	}

	w.running = true
	w.scope = scope
	w.unsub = unsub
	w.deb = deb
	w.log.Debug("started", "scope", scope)
	return nil
}

// Stop unsubscribes and drops any pending run. Idempotent.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.running = false
	if w.unsub != nil {
		w.unsub()
		w.unsub = nil
	}
	w.deb.Stop()
	w.deb = nil
	w.log.Debug("stopped")
}

// Running reports whether the watcher is subscribed.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Scope returns the subscribed scope.
func (w *Watcher) Scope() page.Scope {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.scope
}

func (w *Watcher) active(deb *Debouncer) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running && w.deb == deb
}

func (w *Watcher) onChange(deb *Debouncer, c page.Change) {
	if !w.active(deb) {
		return
	}
	w.opts.Events.Emit(otel.Event{Kind: otel.KindWatchNotify, Comp: "watch", Count: c.Added})

	if c.Added >= w.opts.BulkThreshold {
		deb.Cancel()
		w.log.Debug("bulk insert, reconciling now", "added", c.Added)
		w.opts.Events.Emit(otel.Event{Kind: otel.KindWatchBulk, Comp: "watch", Count: c.Added})
		w.run()
		return
	}
	deb.Trigger()
}

func (w *Watcher) flush() {
	w.opts.Events.Emit(otel.Event{Kind: otel.KindWatchFlush, Comp: "watch"})
	w.run()
}
