// Package gateway implements the user-initiated operations that mutate the
// hide list. Every mutation re-runs the reconciler so the page reflects
// the new list.
//
// Unhiding an author or restoring an item does not un-suppress items that
// are already hidden on the page; they reappear after a reload.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/abelbrown/hush/internal/hidelist"
	"github.com/abelbrown/hush/internal/identity"
	"github.com/abelbrown/hush/internal/logging"
	"github.com/abelbrown/hush/internal/otel"
	"github.com/abelbrown/hush/internal/page"
	"github.com/abelbrown/hush/internal/reconcile"
)

// ErrNoAuthor is returned when a decision is requested for an item
// without a readable author.
var ErrNoAuthor = errors.New("gateway: item has no author")

// ErrUnstableID is returned when an item id is a per-read fallback token
// that would never match the item again.
var ErrUnstableID = errors.New("gateway: item has no stable id")

// Choice is the user's answer to a hide prompt.
type Choice int

const (
	ChoiceCancel Choice = iota
	ChoiceHideAuthor
	ChoiceHideItem
)

func (c Choice) String() string {
	switch c {
	case ChoiceHideAuthor:
		return "hide-author"
	case ChoiceHideItem:
		return "hide-item-only"
	default:
		return "cancel"
	}
}

// PromptRequest describes the item the user is deciding on.
type PromptRequest struct {
	ItemID      string
	Author      string
	DisplayName string
	Text        string
}

// Prompt asks the user what to hide.
type Prompt interface {
	Ask(ctx context.Context, req PromptRequest) (Choice, error)
}

// PromptFunc adapts a function to Prompt.
type PromptFunc func(ctx context.Context, req PromptRequest) (Choice, error)

func (f PromptFunc) Ask(ctx context.Context, req PromptRequest) (Choice, error) {
	return f(ctx, req)
}

// Deps wires a Gateway.
type Deps struct {
	Source     page.Source
	Extractor  *identity.Extractor
	List       *hidelist.Store
	Reconciler *reconcile.Reconciler
	// Rerun replaces Reconciler.Pass as the post-mutation pass when set.
	Rerun  func()
	Prompt Prompt
	Log    *log.Logger
	Events *otel.Logger
}

// Gateway holds no lock; callers serialise access.
type Gateway struct {
	src    page.Source
	ext    *identity.Extractor
	list   *hidelist.Store
	rec    *reconcile.Reconciler
	rerun  func()
	prompt Prompt
	log    *log.Logger
	events *otel.Logger
}

// New returns a Gateway.
func New(d Deps) *Gateway {
	return &Gateway{
		src:    d.Source,
		ext:    d.Extractor,
		list:   d.List,
		rec:    d.Reconciler,
		rerun:  d.Rerun,
		prompt: d.Prompt,
		log:    logging.OrDiscard(d.Log).WithPrefix("gateway"),
		events: d.Events,
	}
}

func (g *Gateway) reconcile() {
	if g.rerun != nil {
		g.rerun()
		return
	}
	if g.rec != nil {
		g.rec.Pass()
	}
}

func (g *Gateway) emit(kind otel.EventKind, author, id string, count int, err error) {
	ev := otel.Event{Level: otel.LevelInfo, Kind: kind, Comp: "gateway", Author: author, ItemID: id, Count: count}
	if err != nil {
		ev.Level = otel.LevelWarn
		ev.Err = err.Error()
	}
	g.events.Emit(ev)
}

// HideItem blocks id and suppresses it immediately. A persistence error
// is returned after the hide has taken effect.
func (g *Gateway) HideItem(it page.Item, id string) error {
	if identity.IsFallback(id) {
		return ErrUnstableID
	}
	err := g.list.AddItem(id)
	if errors.Is(err, hidelist.ErrEmptyIdentifier) {
		return err
	}
	if it != nil && !g.src.Suppressed(it) {
		if serr := g.src.Suppress(it); serr != nil {
			g.log.Warn("suppress failed", "item", id, "err", serr)
		}
	}
	g.log.Info("item hidden", "item", id)
	g.emit(otel.KindHideItem, "", id, 1, err)
	g.reconcile()
	return err
}

// HideAuthor blocks author and suppresses every current item by them. It
// returns how many of the author's items are hidden afterwards.
func (g *Gateway) HideAuthor(author string) (int, error) {
	author, ok := identity.NormalizeAuthor(author)
	if !ok {
		return 0, hidelist.ErrEmptyIdentifier
	}
	err := g.list.AddAuthor(author)
	if errors.Is(err, hidelist.ErrEmptyIdentifier) {
		return 0, err
	}

	hidden := 0
	for _, it := range g.src.FindItems() {
		a, ok := g.ext.ExtractAuthor(it)
		if !ok || a != author {
			continue
		}
		if !g.src.Suppressed(it) {
			if serr := g.src.Suppress(it); serr != nil {
				g.log.Warn("suppress failed", "author", author, "err", serr)
				continue
			}
		}
		hidden++
	}

	g.log.Info("author hidden", "author", author, "items", hidden)
	g.emit(otel.KindHideAuthor, author, "", hidden, err)
	g.reconcile()
	return hidden, err
}

// UnhideAuthor removes a user-blocked author.
func (g *Gateway) UnhideAuthor(author string) error {
	err := g.list.RemoveAuthor(author)
	if errors.Is(err, hidelist.ErrEmptyIdentifier) || errors.Is(err, hidelist.ErrStaticAuthor) {
		return err
	}
	g.log.Info("author unhidden", "author", author)
	g.emit(otel.KindUnhideAuthor, author, "", 0, err)
	g.reconcile()
	return err
}

// RestoreItem removes a blocked item id.
func (g *Gateway) RestoreItem(id string) error {
	err := g.list.RemoveItem(id)
	if errors.Is(err, hidelist.ErrEmptyIdentifier) {
		return err
	}
	g.log.Info("item restored", "item", id)
	g.emit(otel.KindRestoreItem, "", id, 0, err)
	g.reconcile()
	return err
}

// Prepare reads what the prompt needs from it.
func (g *Gateway) Prepare(it page.Item) (PromptRequest, error) {
	author, ok := g.ext.ExtractAuthor(it)
	if !ok {
		return PromptRequest{}, ErrNoAuthor
	}
	text, _ := g.src.FindText(it)
	return PromptRequest{
		ItemID:      g.ext.ComputeItemID(it),
		Author:      author,
		DisplayName: g.ext.ExtractDisplayName(it),
		Text:        text,
	}, nil
}

// Dispatch applies choice to the item described by req. It returns the
// number of items hidden.
func (g *Gateway) Dispatch(it page.Item, req PromptRequest, choice Choice) (int, error) {
	switch choice {
	case ChoiceHideAuthor:
		return g.HideAuthor(req.Author)
	case ChoiceHideItem:
		return 1, g.HideItem(it, req.ItemID)
	default:
		return 0, nil
	}
}

// Decide asks the prompt about it and dispatches the answer. A prompt
// error is treated as cancel and returned.
func (g *Gateway) Decide(ctx context.Context, it page.Item) (Choice, int, error) {
	req, err := g.Prepare(it)
	if err != nil {
		return ChoiceCancel, 0, err
	}
	if g.prompt == nil {
		return ChoiceCancel, 0, fmt.Errorf("gateway: no prompt configured")
	}
	choice, err := g.prompt.Ask(ctx, req)
	if err != nil {
		return ChoiceCancel, 0, fmt.Errorf("prompt: %w", err)
	}
	n, err := g.Dispatch(it, req, choice)
	return choice, n, err
}

// Export returns the hide list as an export document.
func (g *Gateway) Export() ([]byte, error) {
	data, err := g.list.ExportJSON()
	g.emit(otel.KindExport, "", "", len(data), err)
	return data, err
}

// Import replaces the hide list with data. Invalid input changes nothing.
func (g *Gateway) Import(data []byte) error {
	err := g.list.Import(data)
	if errors.Is(err, hidelist.ErrInvalidSnapshot) {
		g.log.Warn("import rejected", "err", err)
		g.emit(otel.KindImport, "", "", 0, err)
		return err
	}
	if g.rec != nil {
		g.rec.Cache().Purge()
	}
	g.log.Info("imported", "authors", len(g.list.Authors()), "items", len(g.list.Items()))
	g.emit(otel.KindImport, "", "", len(g.list.Authors())+len(g.list.Items()), err)
	g.reconcile()
	return err
}

// ClearAll empties the hide list.
func (g *Gateway) ClearAll() error {
	err := g.list.ClearAll()
	if g.rec != nil {
		g.rec.Cache().Purge()
	}
	g.log.Info("hide list cleared")
	g.emit(otel.KindClearAll, "", "", 0, err)
	g.reconcile()
	return err
}
