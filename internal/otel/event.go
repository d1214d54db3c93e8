// Package otel records structured events for hush.
//
// Events are typed structs serialized as JSONL lines. The Logger writes them
// asynchronously via a buffered channel and a drain goroutine; an optional
// RingBuffer keeps the most recent events for the TUI debug overlay.
package otel

import (
	"encoding/json"
	"time"
)

// Level defines event severity.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// EventKind identifies the category of an event.
// Dot-delimited: "<subsystem>.<action>".
type EventKind string

const (
	// Reconciliation
	KindReconcilePass EventKind = "reconcile.pass"
	KindItemError     EventKind = "reconcile.item_error"

	// Change watcher
	KindWatchNotify EventKind = "watch.notify"
	KindWatchFlush  EventKind = "watch.flush"
	KindWatchBulk   EventKind = "watch.bulk"
	KindFileReload  EventKind = "watch.file_reload"

	// User actions
	KindHideItem     EventKind = "gateway.hide_item"
	KindHideAuthor   EventKind = "gateway.hide_author"
	KindUnhideAuthor EventKind = "gateway.unhide_author"
	KindRestoreItem  EventKind = "gateway.restore_item"
	KindExport       EventKind = "gateway.export"
	KindImport       EventKind = "gateway.import"
	KindClearAll     EventKind = "gateway.clear_all"

	// Persistence
	KindStoreError EventKind = "store.error"

	// Session lifecycle
	KindActivate   EventKind = "session.activate"
	KindDeactivate EventKind = "session.deactivate"
	KindStartup    EventKind = "sys.startup"
	KindShutdown   EventKind = "sys.shutdown"
)

// Event is the universal record. Every field except Kind and Time is
// optional. Serialized as a single JSONL line.
type Event struct {
	Time      time.Time      `json:"t"`
	Level     Level          `json:"level,omitempty"`
	Kind      EventKind      `json:"kind"`
	Comp      string         `json:"comp,omitempty"` // "session", "watch", "gateway", "reconcile"
	SessionID string         `json:"session_id,omitempty"`
	Dur       time.Duration  `json:"-"`
	DurMs     float64        `json:"dur_ms,omitempty"` // computed from Dur at marshal time
	Count     int            `json:"count,omitempty"`
	Hidden    int            `json:"hidden,omitempty"`
	Augmented int            `json:"augmented,omitempty"`
	Skipped   int            `json:"skipped,omitempty"`
	Author    string         `json:"author,omitempty"`
	ItemID    string         `json:"item_id,omitempty"`
	Err       string         `json:"err,omitempty"`
	Msg       string         `json:"msg,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// MarshalJSON converts Dur to DurMs.
func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event
	a := alias(e)
	if e.Dur > 0 {
		a.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(a)
}
