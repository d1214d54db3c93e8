package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/abelbrown/hush/internal/gateway"
	"github.com/abelbrown/hush/internal/hidelist"
	"github.com/abelbrown/hush/internal/page"
	"github.com/abelbrown/hush/internal/page/pagetest"
	"github.com/abelbrown/hush/internal/profile"
	"github.com/abelbrown/hush/internal/reconcile"
	"github.com/abelbrown/hush/internal/store"
	"github.com/abelbrown/hush/internal/watch"
)

const searchURL = "https://search.yahoo.co.jp/realtime/search?p=go"

// stepClock fires timers only on Fire.
type stepClock struct {
	mu  sync.Mutex
	fns []func()
}

type stepTimer struct{ stopped bool }

func (t *stepTimer) Stop() bool { t.stopped = true; return true }

func (c *stepClock) AfterFunc(_ time.Duration, f func()) watch.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &stepTimer{}
	c.fns = append(c.fns, func() {
		if !t.stopped {
			f()
		}
	})
	return t
}

func (c *stepClock) Fire() {
	c.mu.Lock()
	fns := c.fns
	c.fns = nil
	c.mu.Unlock()
	for _, f := range fns {
		f()
	}
}

func newSession(t *testing.T, prompt gateway.Prompt, posts ...*pagetest.Post) (*Session, *pagetest.Source, *stepClock) {
	t.Helper()
	kv, err := store.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() { kv.Close() })

	src := pagetest.New(searchURL, posts...)
	clock := &stepClock{}
	yahoo := profile.YahooRealtime()
	s := New(Deps{
		Source: src,
		Manage: src,
		List:   hidelist.Load(kv, []string{"static"}, nil),
		Watch:  watch.Options{Clock: clock, BulkThreshold: 30},
		Match:  yahoo.Matches,
		Prompt: prompt,
	})
	t.Cleanup(s.Close)
	return s, src, clock
}

func TestNavigateActivation(t *testing.T) {
	s, src, _ := newSession(t, nil, pagetest.NewPost("bob", "hello"))

	if err := s.Navigate("https://example.com/"); err != nil {
		t.Fatalf("Navigate failed: %v", err)
	}
	if s.Active() || len(src.Augments()) != 0 {
		t.Fatal("non-matching location must not activate")
	}

	if err := s.Navigate(searchURL); err != nil {
		t.Fatalf("Navigate failed: %v", err)
	}
	if !s.Active() {
		t.Fatal("matching location should activate")
	}
	if len(src.Augments()) != 1 {
		t.Errorf("activation should run an initial pass, got %d augments", len(src.Augments()))
	}
	if attached, _ := src.Attached(); attached != 1 {
		t.Errorf("manage control attached %d times", attached)
	}
	if len(src.Subscribers()) != 1 {
		t.Errorf("watcher not subscribed")
	}

	// Navigating within the pattern keeps the session as is.
	s.Navigate(searchURL + "&page=2")
	if attached, _ := src.Attached(); attached != 1 {
		t.Error("re-navigation inside the pattern should not re-attach")
	}

	s.Navigate("https://search.yahoo.co.jp/search?p=go")
	if s.Active() {
		t.Fatal("leaving the pattern should deactivate")
	}
	if _, released := src.Attached(); released != 1 {
		t.Errorf("manage control released %d times", released)
	}
	if len(src.Subscribers()) != 0 {
		t.Error("watcher should be detached")
	}
	if res := s.Reconcile(); res.Augmented+res.Hidden+res.Skipped != 0 {
		t.Errorf("inactive session reconciled: %+v", res)
	}

	s.Navigate(searchURL)
	if attached, _ := src.Attached(); !s.Active() || attached != 2 {
		t.Error("navigating back should re-initialise")
	}
}

func TestWatcherDrivesReconcile(t *testing.T) {
	s, src, clock := newSession(t, nil)
	s.Navigate(searchURL)
	s.HideAuthor("bob")

	var mu sync.Mutex
	var passes []reconcile.Result
	s.OnPass(func(r reconcile.Result) {
		mu.Lock()
		defer mu.Unlock()
		passes = append(passes, r)
	})

	late := pagetest.NewPost("bob", "late arrival")
	src.Add(late)
	if late.Hidden {
		t.Fatal("small insert should wait for the debounce")
	}
	clock.Fire()
	if !late.Hidden {
		t.Error("debounced pass should hide bob's new item")
	}

	var bulk []*pagetest.Post
	for i := 0; i < 30; i++ {
		bulk = append(bulk, pagetest.NewPost("bob", fmt.Sprintf("bulk %d", i)))
	}
	src.Add(bulk...)
	for i, p := range bulk {
		if !p.Hidden {
			t.Fatalf("bulk item %d not hidden immediately", i)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(passes) != 2 {
		t.Errorf("expected 2 observed passes, got %d", len(passes))
	}
}

func TestBobCarolThroughSession(t *testing.T) {
	bob1 := pagetest.NewPost("bob", "hello")
	carol := pagetest.NewPost("carol", "spam")
	bob2 := pagetest.NewPost("bob", "hi")
	s, _, _ := newSession(t, nil, bob1, carol, bob2)
	s.Navigate(searchURL)

	n, err := s.HideAuthor("bob")
	if err != nil || n != 2 {
		t.Fatalf("HideAuthor = %d, %v", n, err)
	}
	rows := s.Rows()
	if !rows[0].Hidden || rows[1].Hidden || !rows[2].Hidden {
		t.Errorf("unexpected rows %+v", rows)
	}
	if rows[1].State != reconcile.StateAugmented {
		t.Errorf("carol should stay augmented, got %v", rows[1].State)
	}

	if err := s.UnhideAuthor("bob"); err != nil {
		t.Fatalf("UnhideAuthor failed: %v", err)
	}
	if s.List().IsAuthorHidden("bob") {
		t.Error("bob still blocked")
	}
	if !bob1.Hidden || !bob2.Hidden {
		t.Error("unhide must not restore presentation")
	}
}

func TestDecideReleasesLockDuringPrompt(t *testing.T) {
	var s *Session
	prompt := gateway.PromptFunc(func(ctx context.Context, req gateway.PromptRequest) (gateway.Choice, error) {
		// Would deadlock if the session lock were held.
		s.Reconcile()
		return gateway.ChoiceHideItem, nil
	})
	p := pagetest.NewPost("bob", "decide me")
	q := pagetest.NewPost("bob", "keep me")
	s, _, _ = newSession(t, prompt, p, q)
	s.Navigate(searchURL)

	id := s.Rows()[0].ID
	done := make(chan struct{})
	go func() {
		defer close(done)
		choice, n, err := s.Decide(context.Background(), id)
		if err != nil || choice != gateway.ChoiceHideItem || n != 1 {
			t.Errorf("Decide = %v %d %v", choice, n, err)
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Decide deadlocked")
	}

	if !p.Hidden || q.Hidden {
		t.Errorf("expected only p hidden: %v %v", p.Hidden, q.Hidden)
	}
	if !s.List().IsItemHidden(id) {
		t.Error("item id not blocked")
	}
}

func TestDecideErrors(t *testing.T) {
	s, _, _ := newSession(t, nil, pagetest.NewPost("bob", "x"))
	s.Navigate(searchURL)
	if _, _, err := s.Decide(context.Background(), "t0"); !errors.Is(err, ErrNoPrompt) {
		t.Errorf("expected ErrNoPrompt, got %v", err)
	}

	s2, _, _ := newSession(t, gateway.PromptFunc(func(context.Context, gateway.PromptRequest) (gateway.Choice, error) {
		return gateway.ChoiceHideAuthor, nil
	}))
	s2.Navigate(searchURL)
	if _, _, err := s2.Decide(context.Background(), "t0000000000000000"); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}
}

func TestHideItemOffPage(t *testing.T) {
	s, _, _ := newSession(t, nil)
	if err := s.HideItem("t00000000000000ff"); err != nil {
		t.Fatalf("HideItem failed: %v", err)
	}
	if !s.List().IsItemHidden("t00000000000000ff") {
		t.Error("id should be blocked even when not on the page")
	}
	if err := s.RestoreItem("t00000000000000ff"); err != nil {
		t.Fatalf("RestoreItem failed: %v", err)
	}
}

func TestInactiveMutationDoesNotTouchPage(t *testing.T) {
	p := pagetest.NewPost("carol", "x")
	s, src, _ := newSession(t, nil, p)
	s.HideAuthor("bob")
	if len(src.Augments()) != 0 {
		t.Error("inactive session must not augment items")
	}
}

func TestExportImportClearThroughSession(t *testing.T) {
	s, _, _ := newSession(t, nil)
	s.Navigate(searchURL)
	s.HideAuthor("bob")

	data, err := s.Export()
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if err := s.ClearAll(); err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}
	if s.List().IsAuthorHidden("bob") || !s.List().IsAuthorHidden("static") {
		t.Error("ClearAll should drop user authors only")
	}
	if err := s.Import([]byte("[]")); !errors.Is(err, hidelist.ErrInvalidSnapshot) {
		t.Errorf("expected ErrInvalidSnapshot, got %v", err)
	}
	if err := s.Import(data); err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if !s.List().IsAuthorHidden("bob") {
		t.Error("import did not restore bob")
	}
}

func TestWatcherFallbackScope(t *testing.T) {
	s, src, _ := newSession(t, nil)
	src.SetNoContainer(true)
	s.Navigate(searchURL)
	if got := src.Subscribers(); len(got) != 1 || got[0] != page.ScopeDocument {
		t.Errorf("expected document-scope subscription, got %v", got)
	}
}

func TestImageOnlyItemRejectsItemHide(t *testing.T) {
	img := &pagetest.Post{Author: "bob", Name: "bob"}
	prompt := gateway.PromptFunc(func(context.Context, gateway.PromptRequest) (gateway.Choice, error) {
		return gateway.ChoiceHideItem, nil
	})
	s, _, _ := newSession(t, prompt, img)
	s.Navigate(searchURL)

	id := s.Rows()[0].ID
	if err := s.HideItem(id); !errors.Is(err, gateway.ErrUnstableID) {
		t.Fatalf("expected ErrUnstableID, got %v", err)
	}
	if _, _, err := s.Decide(context.Background(), id); !errors.Is(err, gateway.ErrUnstableID) {
		t.Errorf("Decide: expected ErrUnstableID, got %v", err)
	}
	if items := s.List().Items(); len(items) != 0 {
		t.Errorf("fallback id must not be stored, got %v", items)
	}

	if n, err := s.HideAuthor("bob"); err != nil || n != 1 || !img.Hidden {
		t.Errorf("author hide should still work: n=%d err=%v hidden=%v", n, err, img.Hidden)
	}
}
