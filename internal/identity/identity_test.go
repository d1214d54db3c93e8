package identity

import (
	"regexp"
	"strings"
	"testing"

	"github.com/abelbrown/hush/internal/page/pagetest"
)

var tokenRe = regexp.MustCompile(`^[tx][0-9a-f]{16}$`)

func TestNormalizeAuthor(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"@alice", "alice", true},
		{"＠alice", "alice", true},
		{"  @bob  ", "bob", true},
		{"carol", "carol", true},
		{"@", "", false},
		{"   ", "", false},
		{"", "", false},
		{"two words", "", false},
		{"@ spaced", "spaced", true},
		{"bad\xffutf8", "", false},
	}
	for _, c := range cases {
		got, ok := NormalizeAuthor(c.in)
		if got != c.want || ok != c.ok {
			t.Errorf("NormalizeAuthor(%q) = %q,%v want %q,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestExtractAuthorAbsent(t *testing.T) {
	missing := &pagetest.Post{NoAuthor: true, Text: "hi"}
	broken := &pagetest.Post{PanicOnAuthor: true, Text: "hi"}
	src := pagetest.New("u", missing, broken)
	e := New(src, Options{})

	if _, ok := e.ExtractAuthor(missing); ok {
		t.Error("missing author should be absent")
	}
	if _, ok := e.ExtractAuthor(broken); ok {
		t.Error("panicking author field should be absent")
	}
}

func TestExtractDisplayName(t *testing.T) {
	named := &pagetest.Post{Author: "bob", Name: "  Bob\n  Smith "}
	anon := &pagetest.Post{Author: "bob"}
	e := New(pagetest.New("u", named, anon), Options{})

	if got := e.ExtractDisplayName(named); got != "Bob Smith" {
		t.Errorf("got %q", got)
	}
	if got := e.ExtractDisplayName(anon); got != UnknownName {
		t.Errorf("expected %q, got %q", UnknownName, got)
	}
}

func TestComputeItemIDStableAcrossRerender(t *testing.T) {
	src := pagetest.New("u", pagetest.NewPost("bob", "Ｈｅｌｌｏ   world\n\tfrom bob"))
	e := New(src, Options{UsePermalink: true})

	before := e.ComputeItemID(src.FindItems()[0])
	src.Rerender()
	after := e.ComputeItemID(src.FindItems()[0])

	if before != after {
		t.Errorf("id changed across re-render: %s != %s", before, after)
	}
	if !tokenRe.MatchString(before) || !strings.HasPrefix(before, "t") {
		t.Errorf("unexpected token format %q", before)
	}
}

func TestComputeItemIDNormalisesWidthAndWhitespace(t *testing.T) {
	a := pagetest.NewPost("bob", "Ｈｅｌｌｏ  ｗｏｒｌｄ")
	b := pagetest.NewPost("bob", " Hello world ")
	e := New(pagetest.New("u", a, b), Options{})

	if e.ComputeItemID(a) != e.ComputeItemID(b) {
		t.Error("width/whitespace variants should share an id")
	}
}

func TestComputeItemIDPrefixLimit(t *testing.T) {
	base := strings.Repeat("あ", 100)
	a := pagetest.NewPost("bob", base+"tail one")
	b := pagetest.NewPost("bob", base+"tail two")
	e := New(pagetest.New("u", a, b), Options{TextPrefixRunes: 100})

	if e.ComputeItemID(a) != e.ComputeItemID(b) {
		t.Error("text beyond the prefix should not affect the id")
	}
}

func TestComputeItemIDPermalink(t *testing.T) {
	a := &pagetest.Post{Author: "bob", Text: "same", Permalink: "https://x/status/1"}
	b := &pagetest.Post{Author: "bob", Text: "same", Permalink: "https://x/status/2"}
	src := pagetest.New("u", a, b)

	with := New(src, Options{UsePermalink: true})
	if with.ComputeItemID(a) == with.ComputeItemID(b) {
		t.Error("permalinks should distinguish identical text")
	}
	without := New(src, Options{UsePermalink: false})
	if without.ComputeItemID(a) != without.ComputeItemID(b) {
		t.Error("permalinks should be ignored when disabled")
	}
}

func TestComputeItemIDFallback(t *testing.T) {
	empty := &pagetest.Post{Author: "bob"}
	e := New(pagetest.New("u", empty), Options{})

	a, b := e.ComputeItemID(empty), e.ComputeItemID(empty)
	if !IsFallback(a) || !tokenRe.MatchString(a) {
		t.Errorf("expected fallback token, got %q", a)
	}
	if a == b {
		t.Error("fallback tokens should be scoped to a single call")
	}
}

func TestNormalizeText(t *testing.T) {
	if got := NormalizeText("  a 　 b  ", 0); got != "a b" {
		t.Errorf("got %q", got)
	}
	if got := NormalizeText("abcdef", 3); got != "abc" {
		t.Errorf("got %q", got)
	}
}
