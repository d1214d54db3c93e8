package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/abelbrown/hush/internal/hidelist"
	"github.com/abelbrown/hush/internal/identity"
	"github.com/abelbrown/hush/internal/page/pagetest"
	"github.com/abelbrown/hush/internal/reconcile"
	"github.com/abelbrown/hush/internal/store"
)

type fixture struct {
	src  *pagetest.Source
	list *hidelist.Store
	rec  *reconcile.Reconciler
	gw   *Gateway
}

func newFixture(t *testing.T, prompt Prompt, posts ...*pagetest.Post) *fixture {
	t.Helper()
	kv, err := store.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() { kv.Close() })

	src := pagetest.New("https://search.yahoo.co.jp/realtime/search?p=go", posts...)
	ext := identity.New(src, identity.Options{})
	list := hidelist.Load(kv, nil, nil)
	rec := reconcile.New(reconcile.Deps{Source: src, Extractor: ext, List: list, Augmenter: src})
	gw := New(Deps{Source: src, Extractor: ext, List: list, Reconciler: rec, Prompt: prompt})
	return &fixture{src: src, list: list, rec: rec, gw: gw}
}

func TestHideAuthorHidesExactlyTheirItems(t *testing.T) {
	var alice, others []*pagetest.Post
	var posts []*pagetest.Post
	for i := 0; i < 4; i++ {
		p := pagetest.NewPost("alice", "alice post "+string(rune('a'+i)))
		alice = append(alice, p)
		posts = append(posts, p)
	}
	for i := 0; i < 3; i++ {
		p := pagetest.NewPost("dave", "dave post "+string(rune('a'+i)))
		others = append(others, p)
		posts = append(posts, p)
	}
	f := newFixture(t, nil, posts...)
	f.rec.Pass()

	n, err := f.gw.HideAuthor("@alice")
	if err != nil {
		t.Fatalf("HideAuthor failed: %v", err)
	}
	if n != len(alice) {
		t.Errorf("expected %d hidden, got %d", len(alice), n)
	}
	for _, p := range alice {
		if !p.Hidden {
			t.Errorf("alice item %q not hidden", p.Text)
		}
	}
	for _, p := range others {
		if p.Hidden {
			t.Errorf("dave item %q hidden", p.Text)
		}
	}
}

func TestBobCarolScenario(t *testing.T) {
	bob1 := pagetest.NewPost("bob", "hello")
	carol := pagetest.NewPost("carol", "spam")
	bob2 := pagetest.NewPost("bob", "hi")
	f := newFixture(t, nil, bob1, carol, bob2)

	res := f.rec.Pass()
	if res.Augmented != 3 || res.Hidden != 0 {
		t.Fatalf("first pass: %+v", res)
	}

	n, err := f.gw.HideAuthor("bob")
	if err != nil {
		t.Fatalf("HideAuthor failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 hidden, got %d", n)
	}

	res = f.rec.Pass()
	want := []reconcile.State{reconcile.StateHidden, reconcile.StateAugmented, reconcile.StateHidden}
	for i, st := range want {
		if res.Outcomes[i].State != st {
			t.Errorf("item %d: expected %v, got %v", i, st, res.Outcomes[i].State)
		}
	}
	if res.Outcomes[1].Reason != reconcile.ReasonHandled {
		t.Errorf("carol should be skipped on the marker check, got %q", res.Outcomes[1].Reason)
	}

	if err := f.gw.UnhideAuthor("bob"); err != nil {
		t.Fatalf("UnhideAuthor failed: %v", err)
	}
	if f.list.IsAuthorHidden("bob") {
		t.Error("bob should no longer be blocked")
	}
	if !bob1.Hidden || !bob2.Hidden {
		t.Error("already-hidden items stay suppressed until reload")
	}

	// A reload re-renders everything unhidden.
	f.src.Rerender()
	res = f.rec.Pass()
	if res.Hidden != 0 || res.Augmented != 3 {
		t.Errorf("after reload: %+v", res)
	}
}

func TestHideItem(t *testing.T) {
	p := pagetest.NewPost("bob", "one")
	q := pagetest.NewPost("bob", "two")
	f := newFixture(t, nil, p, q)
	f.rec.Pass()

	id := identity.New(f.src, identity.Options{}).ComputeItemID(p)
	if err := f.gw.HideItem(p, id); err != nil {
		t.Fatalf("HideItem failed: %v", err)
	}
	if !p.Hidden || q.Hidden {
		t.Errorf("expected only p hidden: p=%v q=%v", p.Hidden, q.Hidden)
	}
	if !f.list.IsItemHidden(id) {
		t.Error("item id not recorded")
	}

	// Re-rendered with identical text, the item is hidden again.
	f.src.Rerender()
	f.rec.Pass()
	if !f.src.Posts()[0].Hidden {
		t.Error("blocked item should be hidden after re-render")
	}

	if err := f.gw.RestoreItem(id); err != nil {
		t.Fatalf("RestoreItem failed: %v", err)
	}
	if f.list.IsItemHidden(id) {
		t.Error("item still blocked")
	}
}

func TestEmptyIdentifiers(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.gw.HideAuthor(" @ "); !errors.Is(err, hidelist.ErrEmptyIdentifier) {
		t.Errorf("HideAuthor: %v", err)
	}
	if err := f.gw.HideItem(nil, ""); !errors.Is(err, hidelist.ErrEmptyIdentifier) {
		t.Errorf("HideItem: %v", err)
	}
	if err := f.gw.HideItem(nil, identity.FallbackID()); !errors.Is(err, ErrUnstableID) {
		t.Errorf("HideItem with fallback id: %v", err)
	}
	if len(f.list.Items()) != 0 {
		t.Errorf("rejected ids must not be stored, got %v", f.list.Items())
	}
}

func TestUnhideStaticAuthor(t *testing.T) {
	kv, _ := store.OpenSQLite(":memory:")
	defer kv.Close()
	src := pagetest.New("u")
	list := hidelist.Load(kv, []string{"spam"}, nil)
	gw := New(Deps{Source: src, Extractor: identity.New(src, identity.Options{}), List: list})

	if err := gw.UnhideAuthor("spam"); !errors.Is(err, hidelist.ErrStaticAuthor) {
		t.Errorf("expected ErrStaticAuthor, got %v", err)
	}
}

func TestDecide(t *testing.T) {
	cases := []struct {
		choice     Choice
		wantHidden []bool
	}{
		{ChoiceHideAuthor, []bool{true, true}},
		{ChoiceHideItem, []bool{true, false}},
		{ChoiceCancel, []bool{false, false}},
	}
	for _, c := range cases {
		t.Run(c.choice.String(), func(t *testing.T) {
			var asked PromptRequest
			prompt := PromptFunc(func(_ context.Context, req PromptRequest) (Choice, error) {
				asked = req
				return c.choice, nil
			})
			p := pagetest.NewPost("bob", "first")
			q := pagetest.NewPost("bob", "second")
			f := newFixture(t, prompt, p, q)
			f.rec.Pass()

			got, _, err := f.gw.Decide(context.Background(), p)
			if err != nil {
				t.Fatalf("Decide failed: %v", err)
			}
			if got != c.choice {
				t.Errorf("choice = %v", got)
			}
			if asked.Author != "bob" || asked.Text != "first" || asked.ItemID == "" {
				t.Errorf("unexpected prompt request %+v", asked)
			}
			if p.Hidden != c.wantHidden[0] || q.Hidden != c.wantHidden[1] {
				t.Errorf("hidden = %v,%v want %v", p.Hidden, q.Hidden, c.wantHidden)
			}
		})
	}
}

func TestDecidePromptError(t *testing.T) {
	prompt := PromptFunc(func(ctx context.Context, _ PromptRequest) (Choice, error) {
		return ChoiceHideAuthor, ctx.Err()
	})
	p := pagetest.NewPost("bob", "x")
	f := newFixture(t, prompt, p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	choice, _, err := f.gw.Decide(ctx, p)
	if !errors.Is(err, context.Canceled) || choice != ChoiceCancel {
		t.Errorf("expected cancel with context error, got %v %v", choice, err)
	}
	if p.Hidden || f.list.IsAuthorHidden("bob") {
		t.Error("failed prompt must not hide anything")
	}
}

func TestDecideNoAuthor(t *testing.T) {
	p := &pagetest.Post{NoAuthor: true, Text: "x"}
	f := newFixture(t, PromptFunc(func(context.Context, PromptRequest) (Choice, error) {
		t.Error("prompt should not be asked")
		return ChoiceCancel, nil
	}), p)
	if _, _, err := f.gw.Decide(context.Background(), p); !errors.Is(err, ErrNoAuthor) {
		t.Errorf("expected ErrNoAuthor, got %v", err)
	}
}

func TestExportImportClear(t *testing.T) {
	p := pagetest.NewPost("bob", "x")
	f := newFixture(t, nil, p)
	f.gw.HideAuthor("bob")

	data, err := f.gw.Export()
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if err := f.gw.ClearAll(); err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}
	if f.list.IsAuthorHidden("bob") {
		t.Error("ClearAll left bob blocked")
	}
	if f.rec.Cache().Len() == 0 {
		t.Error("reconcile after ClearAll should repopulate the cache")
	}

	if err := f.gw.Import([]byte(`{"blockedAuthors": 1}`)); !errors.Is(err, hidelist.ErrInvalidSnapshot) {
		t.Errorf("expected ErrInvalidSnapshot, got %v", err)
	}
	if err := f.gw.Import(data); err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if !f.list.IsAuthorHidden("bob") {
		t.Error("import did not restore bob")
	}
}
