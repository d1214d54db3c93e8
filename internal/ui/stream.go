package ui

import (
	"fmt"
	"strings"

	"github.com/abelbrown/hush/internal/reconcile"
	"github.com/abelbrown/hush/internal/session"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// authorColumn is the display width reserved for "@author".
const authorColumn = 18

// visibleRows drops rows hidden on the page unless showHidden is set.
func visibleRows(rows []session.Row, showHidden bool) []session.Row {
	if showHidden {
		return rows
	}
	out := make([]session.Row, 0, len(rows))
	for _, r := range rows {
		if !r.Hidden {
			out = append(out, r)
		}
	}
	return out
}

// RenderStream renders one line per row, scrolled so the cursor stays visible.
func RenderStream(rows []session.Row, cursor, width, height int) string {
	if len(rows) == 0 {
		return HelpStyle.Render("No items on this page. Press 'r' to reload.")
	}

	availableHeight := height
	if availableHeight < 1 {
		availableHeight = 1
	}
	offset := calcScrollOffset(len(rows), cursor, availableHeight)

	var b strings.Builder
	for i := offset; i < len(rows) && i-offset < availableHeight; i++ {
		b.WriteString(renderRow(rows[i], i == cursor, width))
		b.WriteString("\n")
	}
	return b.String()
}

// calcScrollOffset returns the first row index to draw.
func calcScrollOffset(n, cursor, availableHeight int) int {
	if n == 0 || cursor < 0 {
		return 0
	}
	if cursor >= n {
		cursor = n - 1
	}
	if cursor >= availableHeight {
		return cursor - availableHeight + 1
	}
	return 0
}

// renderRow renders "badge @author text" fitted to width.
func renderRow(r session.Row, selected bool, width int) string {
	author := "@" + r.Author
	if r.Author == "" {
		author = r.DisplayName
	}
	author = runewidth.FillRight(runewidth.Truncate(author, authorColumn, "…"), authorColumn)

	// Padding(0,1) on the row styles costs two columns.
	textWidth := width - 2 - 4 - authorColumn - 1
	if textWidth < 8 {
		textWidth = 8
	}
	text := runewidth.Truncate(singleLine(r.Text), textWidth, "…")

	badge := stateBadge(r.State, r.Hidden)
	switch {
	case selected:
		return SelectedItem.Width(width).Render(badge + " " + author + " " + text)
	case r.Hidden:
		return HiddenItem.Width(width).Render(badge + " " + author + " " + text)
	default:
		return NormalItem.Width(width).Render(badge + " " + AuthorStyle.Render(author) + " " + text)
	}
}

// stateBadge is a fixed-width marker for the row's decision.
func stateBadge(s reconcile.State, hidden bool) string {
	switch {
	case hidden || s == reconcile.StateHidden:
		return BadgeHidden.Render("HID")
	case s == reconcile.StateAugmented:
		return BadgeAugmented.Render(" ✓ ")
	case s == reconcile.StateSkipped:
		return BadgeSkipped.Render(" - ")
	default:
		return "   "
	}
}

// singleLine collapses newlines so a row never wraps.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

// RenderStatusBar renders the bottom bar with the position, last pass and key hints.
func RenderStatusBar(cursor, total int, last reconcile.Result, showHidden bool, width int) string {
	position := fmt.Sprintf(" %d/%d ", cursor+1, total)
	if total == 0 {
		position = " 0/0 "
	}
	pass := fmt.Sprintf(" hidden %d · marked %d ", last.Hidden, last.Augmented)
	if showHidden {
		pass += "· all "
	}

	keyHints := strings.Join(hints(keys.Down, keys.Decide, keys.HideAuthor, keys.HideItem,
		keys.ShowHidden, keys.Manage, keys.Debug, keys.Quit), " ")

	left := position + StatusBarText.Render(pass)
	padding := width - lipgloss.Width(left) - lipgloss.Width(keyHints)
	if padding < 0 {
		padding = 0
	}
	return StatusBar.Width(width).Render(left + strings.Repeat(" ", padding) + keyHints)
}
