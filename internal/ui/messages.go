// Package ui provides the Bubble Tea TUI for hush.
package ui

import (
	"github.com/abelbrown/hush/internal/gateway"
	"github.com/abelbrown/hush/internal/reconcile"
	"github.com/abelbrown/hush/internal/session"
)

// RowsLoaded is sent when the current items have been read from the session.
type RowsLoaded struct {
	Location string
	Rows     []session.Row
	Err      error
}

// ListLoaded is sent when the hide list has been read for the manage panel.
type ListLoaded struct {
	Authors []string
	Static  []string
	Items   []string
	Err     error
}

// PassCompleted is sent after every reconciliation pass.
type PassCompleted struct {
	Result reconcile.Result
}

// ActionDone is sent when a hide list action finishes.
type ActionDone struct {
	Msg string
	Err error
}

// PromptRequested asks the user to choose how to hide an item. Exactly one
// choice must be sent on Reply.
type PromptRequested struct {
	Req   gateway.PromptRequest
	Reply chan<- gateway.Choice
}
