// Package page defines the capability hush needs from a mutable content
// tree: locating items, reading their fields, hiding them and observing
// structural change. Concrete sources live in internal/dom and
// internal/feedsrc.
package page

import "errors"

// ErrNoContainer is returned by OnStructuralChange when the designated
// item container cannot be located.
var ErrNoContainer = errors.New("page: item container not found")

// Item is an opaque handle owned by a Source. The core never inspects it
// and never persists it.
type Item interface{}

// Scope selects the subtree a change subscription observes.
type Scope int

const (
	// ScopeContainer observes only the designated item container.
	ScopeContainer Scope = iota
	// ScopeDocument observes the whole document.
	ScopeDocument
)

func (s Scope) String() string {
	switch s {
	case ScopeContainer:
		return "container"
	case ScopeDocument:
		return "document"
	default:
		return "unknown"
	}
}

// Change describes one structural mutation notification.
type Change struct {
	Added int // nodes inserted
}

// Source is the content tree capability.
//
// Field accessors return ok=false when the field is missing. Accessors may
// panic on malformed input; callers contain that.
type Source interface {
	// Location is the current page address.
	Location() string

	// FindItems returns the current items in document order.
	FindItems() []Item

	FindAuthorField(it Item) (string, bool)
	FindDisplayName(it Item) (string, bool)
	FindText(it Item) (string, bool)
	FindPermalink(it Item) (string, bool)

	// HasMarker reports whether a hide affordance was already attached.
	HasMarker(it Item) bool

	// Suppressed reports whether the hide effect is already applied.
	Suppressed(it Item) bool

	// Suppress applies the display-layer hide effect to the item or its
	// nearest recognisable wrapper. It never removes nodes.
	Suppress(it Item) error

	// OnStructuralChange subscribes fn to mutations within scope. fn is
	// called without any Source lock held. Self-inserted affordances and
	// suppression are not reported.
	OnStructuralChange(scope Scope, fn func(Change)) (unsubscribe func(), err error)
}

// Affordance is what the augmenter attaches to an undecided item.
type Affordance struct {
	ItemID      string
	Author      string
	DisplayName string
}

// Augmenter attaches a per-item hide affordance and sets the item's
// marker. Implementations must not report the insertion as a structural
// change.
type Augmenter interface {
	Augment(it Item, a Affordance) error
}

// ManageControl is the global manage affordance, attached while the
// session is active.
type ManageControl interface {
	Attach() error
	Release() error
}
