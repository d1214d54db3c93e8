package ui

import (
	"strings"
	"testing"

	"github.com/abelbrown/hush/internal/reconcile"
	"github.com/abelbrown/hush/internal/session"
	"github.com/mattn/go-runewidth"
)

func TestRenderStreamEmpty(t *testing.T) {
	out := RenderStream(nil, 0, 80, 10)
	if !strings.Contains(out, "No items") {
		t.Errorf("expected empty message, got %q", out)
	}
}

func TestRenderStreamScrollsToCursor(t *testing.T) {
	var rows []session.Row
	for _, a := range []string{"a0", "a1", "a2", "a3", "a4", "a5"} {
		rows = append(rows, session.Row{ID: a, Author: a, Text: "post by " + a})
	}

	out := RenderStream(rows, 5, 80, 3)
	if strings.Contains(out, "@a2") {
		t.Errorf("row a2 should be scrolled off, got:\n%s", out)
	}
	for _, want := range []string{"@a3", "@a4", "@a5"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in output, got:\n%s", want, out)
		}
	}
}

func TestCalcScrollOffset(t *testing.T) {
	tests := []struct {
		n, cursor, height, want int
	}{
		{0, 0, 5, 0},
		{3, 2, 5, 0},
		{10, 4, 5, 0},
		{10, 5, 5, 1},
		{10, 9, 5, 5},
		{10, 20, 5, 5},
	}
	for _, tt := range tests {
		if got := calcScrollOffset(tt.n, tt.cursor, tt.height); got != tt.want {
			t.Errorf("calcScrollOffset(%d, %d, %d) = %d, want %d", tt.n, tt.cursor, tt.height, got, tt.want)
		}
	}
}

func TestRenderRowFitsWideText(t *testing.T) {
	row := session.Row{
		ID:     "t1",
		Author: "tanaka",
		Text:   strings.Repeat("日本語のテキスト", 20),
		State:  reconcile.StateAugmented,
	}
	out := renderRow(row, false, 60)
	for _, line := range strings.Split(out, "\n") {
		if w := runewidth.StringWidth(line); w > 60 {
			t.Errorf("row is %d columns wide, want <= 60: %q", w, line)
		}
	}
	if strings.Count(out, "\n") != 0 {
		t.Errorf("row should render on one line, got:\n%s", out)
	}
}

func TestRenderRowWithoutAuthorShowsName(t *testing.T) {
	row := session.Row{ID: "x1", DisplayName: "Unknown", Text: "hi", State: reconcile.StateSkipped}
	out := renderRow(row, false, 80)
	if !strings.Contains(out, "Unknown") {
		t.Errorf("expected display name, got %q", out)
	}
	if strings.Contains(out, "@") {
		t.Errorf("authorless row should not show @, got %q", out)
	}
}

func TestStateBadge(t *testing.T) {
	if got := stateBadge(reconcile.StateAugmented, true); !strings.Contains(got, "HID") {
		t.Errorf("suppressed rows should show HID, got %q", got)
	}
	if got := stateBadge(reconcile.StateUnseen, false); strings.TrimSpace(got) != "" {
		t.Errorf("unseen rows should have a blank badge, got %q", got)
	}
}

func TestVisibleRows(t *testing.T) {
	rows := testRows()
	if got := len(visibleRows(rows, false)); got != 2 {
		t.Errorf("expected 2 visible rows, got %d", got)
	}
	if got := len(visibleRows(rows, true)); got != 3 {
		t.Errorf("expected 3 rows with hidden shown, got %d", got)
	}
}

func TestSingleLine(t *testing.T) {
	if got := singleLine("a\n  b\tc "); got != "a b c" {
		t.Errorf("singleLine = %q", got)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("こんにちは", 3); got != "こんに…" {
		t.Errorf("truncateRunes = %q", got)
	}
	if got := truncateRunes("abc", 3); got != "abc" {
		t.Errorf("truncateRunes = %q", got)
	}
}
