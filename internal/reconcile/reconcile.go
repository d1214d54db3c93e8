// Package reconcile applies hide-list decisions to the items currently on
// the page and hands undecided items to the augmenter.
package reconcile

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/abelbrown/hush/internal/identity"
	"github.com/abelbrown/hush/internal/logging"
	"github.com/abelbrown/hush/internal/otel"
	"github.com/abelbrown/hush/internal/page"
)

// State is the per-item decision.
type State int

const (
	StateUnseen State = iota
	StateHidden
	StateAugmented
	StateSkipped
)

func (s State) String() string {
	switch s {
	case StateHidden:
		return "hidden"
	case StateAugmented:
		return "augmented"
	case StateSkipped:
		return "skipped"
	default:
		return "unseen"
	}
}

// Skip reasons.
const (
	ReasonNoAuthor = "no-author"
	ReasonHandled  = "handled"
	ReasonFailed   = "failed"
)

// HideChecker answers hide-list membership.
type HideChecker interface {
	IsAuthorHidden(author string) bool
	IsItemHidden(id string) bool
}

// Outcome is the decision for one item in a pass.
type Outcome struct {
	Index   int
	ItemID  string
	Author  string
	State   State
	Reason  string // set for skips and handled items
	Changed bool   // this pass called Suppress or Augment
	Err     error
}

// Result summarises a pass. Items skipped because they already carry the
// marker keep StateAugmented in Outcomes but count towards Skipped.
type Result struct {
	Hidden    int
	Augmented int
	Skipped   int
	Outcomes  []Outcome
	Dur       time.Duration
}

// Deps wires a Reconciler.
type Deps struct {
	Source    page.Source
	Extractor *identity.Extractor
	List      HideChecker
	Augmenter page.Augmenter
	Cache     *ProcessedCache
	Log       *log.Logger
	Events    *otel.Logger
}

// Reconciler runs passes over a page.Source. It holds no lock of its own;
// the session serialises calls.
type Reconciler struct {
	src     page.Source
	ext     *identity.Extractor
	list    HideChecker
	aug     page.Augmenter
	cache   *ProcessedCache
	log     *log.Logger
	events  *otel.Logger
	skipLog *rate.Limiter
	last    Result
}

// New returns a Reconciler. A nil Cache gets a default-sized one.
func New(d Deps) *Reconciler {
	if d.Cache == nil {
		d.Cache = NewProcessedCache(DefaultCacheSize)
	}
	return &Reconciler{
		src:     d.Source,
		ext:     d.Extractor,
		list:    d.List,
		aug:     d.Augmenter,
		cache:   d.Cache,
		log:     logging.OrDiscard(d.Log).WithPrefix("reconcile"),
		events:  d.Events,
		skipLog: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

// Cache returns the processed cache.
func (r *Reconciler) Cache() *ProcessedCache {
	return r.cache
}

// Last returns the most recent pass result.
func (r *Reconciler) Last() Result {
	return r.last
}

// Pass reconciles every item the source currently holds.
func (r *Reconciler) Pass() Result {
	return r.ReconcileAll(r.src.FindItems())
}

// ReconcileAll decides every item in order. A failure on one item is
// contained and never aborts the pass.
func (r *Reconciler) ReconcileAll(items []page.Item) Result {
	start := time.Now()
	res := Result{Outcomes: make([]Outcome, 0, len(items))}

	for i, it := range items {
		out := r.reconcileOne(i, it)
		switch {
		case out.State == StateHidden:
			res.Hidden++
		case out.State == StateAugmented && out.Changed:
			res.Augmented++
		default:
			res.Skipped++
		}
		if out.ItemID != "" && !identity.IsFallback(out.ItemID) {
			r.cache.Record(out.ItemID, out.State)
		}
		res.Outcomes = append(res.Outcomes, out)
	}

	res.Dur = time.Since(start)
	r.last = res
	r.events.Emit(otel.Event{
		Level:     otel.LevelInfo,
		Kind:      otel.KindReconcilePass,
		Comp:      "reconcile",
		Dur:       res.Dur,
		Count:     len(items),
		Hidden:    res.Hidden,
		Augmented: res.Augmented,
		Skipped:   res.Skipped,
	})
	r.log.Debug("pass", "items", len(items), "hidden", res.Hidden, "augmented", res.Augmented, "skipped", res.Skipped)
	return res
}

func (r *Reconciler) reconcileOne(index int, it page.Item) (out Outcome) {
	out.Index = index
	defer func() {
		if p := recover(); p != nil {
			out.State = StateSkipped
			out.Reason = ReasonFailed
			out.Changed = false
			out.Err = fmt.Errorf("reconcile item %d: panic: %v", index, p)
			r.fail(out)
		}
	}()

	author, ok := r.ext.ExtractAuthor(it)
	if !ok {
		out.State = StateSkipped
		out.Reason = ReasonNoAuthor
		if r.skipLog.Allow() {
			r.log.Debug("skipping item without author", "index", index)
		}
		return out
	}
	out.Author = author
	out.ItemID = r.ext.ComputeItemID(it)

	if r.list.IsAuthorHidden(author) || r.list.IsItemHidden(out.ItemID) {
		out.State = StateHidden
		if r.src.Suppressed(it) {
			return out
		}
		if err := r.src.Suppress(it); err != nil {
			out.State = StateSkipped
			out.Reason = ReasonFailed
			out.Err = fmt.Errorf("suppress item %s: %w", out.ItemID, err)
			r.fail(out)
			return out
		}
		out.Changed = true
		return out
	}

	// Hidden is terminal: an item suppressed before it was augmented stays
	// hidden after its author or id is unblocked.
	if r.src.Suppressed(it) {
		out.State = StateHidden
		return out
	}

	if r.src.HasMarker(it) {
		out.State = StateAugmented
		out.Reason = ReasonHandled
		return out
	}

	aff := page.Affordance{
		ItemID:      out.ItemID,
		Author:      author,
		DisplayName: r.ext.ExtractDisplayName(it),
	}
	if err := r.aug.Augment(it, aff); err != nil {
		out.State = StateSkipped
		out.Reason = ReasonFailed
		out.Err = fmt.Errorf("augment item %s: %w", out.ItemID, err)
		r.fail(out)
		return out
	}
	out.State = StateAugmented
	out.Changed = true
	return out
}

func (r *Reconciler) fail(out Outcome) {
	r.log.Warn("item failed", "index", out.Index, "item", out.ItemID, "err", out.Err)
	r.events.Emit(otel.Event{
		Level:  otel.LevelWarn,
		Kind:   otel.KindItemError,
		Comp:   "reconcile",
		ItemID: out.ItemID,
		Author: out.Author,
		Err:    out.Err.Error(),
	})
}
