// Package identity derives stable identifiers for content items and their
// authors.
package identity

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"

	"github.com/abelbrown/hush/internal/page"
)

// DefaultTextPrefixRunes is how much normalised text feeds an item id.
const DefaultTextPrefixRunes = 100

// UnknownName is the display name used when none can be read.
const UnknownName = "Unknown"

var whitespaceRe = regexp.MustCompile(`\s+`)

// Options controls item id derivation.
type Options struct {
	TextPrefixRunes int
	UsePermalink    bool
}

// Extractor reads identities from a page.Source. It never panics.
type Extractor struct {
	src  page.Source
	opts Options
}

// New returns an Extractor over src.
func New(src page.Source, opts Options) *Extractor {
	if opts.TextPrefixRunes <= 0 {
		opts.TextPrefixRunes = DefaultTextPrefixRunes
	}
	return &Extractor{src: src, opts: opts}
}

// NormalizeAuthor strips one leading "@" or "＠" and surrounding
// whitespace. It reports false for values that cannot identify an author.
func NormalizeAuthor(raw string) (string, bool) {
	if !utf8.ValidString(raw) {
		return "", false
	}
	s := strings.TrimSpace(raw)
	if r, size := utf8.DecodeRuneInString(s); r == '@' || r == '＠' {
		s = strings.TrimSpace(s[size:])
	}
	if s == "" || strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return "", false
	}
	return s, true
}

// ExtractAuthor returns the item's author identifier, or false when it is
// missing or malformed.
func (e *Extractor) ExtractAuthor(it page.Item) (author string, ok bool) {
	defer func() {
		if recover() != nil {
			author, ok = "", false
		}
	}()
	raw, found := e.src.FindAuthorField(it)
	if !found {
		return "", false
	}
	return NormalizeAuthor(raw)
}

// ExtractDisplayName returns a human label for prompts.
func (e *Extractor) ExtractDisplayName(it page.Item) (name string) {
	defer func() {
		if recover() != nil {
			name = UnknownName
		}
	}()
	raw, found := e.src.FindDisplayName(it)
	if !found || !utf8.ValidString(raw) {
		return UnknownName
	}
	name = strings.TrimSpace(whitespaceRe.ReplaceAllString(raw, " "))
	if name == "" {
		return UnknownName
	}
	return name
}

// ComputeItemID returns a content-derived identifier that is stable across
// re-renders of the same item. When nothing usable can be read it returns
// a random fallback token scoped to this call.
func (e *Extractor) ComputeItemID(it page.Item) (id string) {
	defer func() {
		if recover() != nil {
			id = FallbackID()
		}
	}()

	text, _ := e.src.FindText(it)
	var link string
	if e.opts.UsePermalink {
		link, _ = e.src.FindPermalink(it)
		link = strings.TrimSpace(link)
	}

	key := NormalizeText(text, e.opts.TextPrefixRunes)
	if key == "" && link == "" {
		return FallbackID()
	}
	if link != "" {
		key += "\x00" + link
	}
	return HashID(key)
}

// NormalizeText applies NFKC, folds full/half width, collapses
// whitespace, trims, and keeps at most limit runes.
func NormalizeText(text string, limit int) string {
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "")
	}
	s := width.Fold.String(norm.NFKC.String(text))
	s = strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
	if limit > 0 && utf8.RuneCountInString(s) > limit {
		s = strings.TrimSpace(string([]rune(s)[:limit]))
	}
	return s
}

// HashID maps normalised content to a "t"-prefixed 16 hex char token.
func HashID(key string) string {
	return fmt.Sprintf("t%016x", xxhash.Sum64String(key))
}

// FallbackID returns a random "x"-prefixed 16 hex char token.
func FallbackID() string {
	u := uuid.New()
	return fmt.Sprintf("x%x", u[:8])
}

// IsFallback reports whether id was produced by FallbackID.
func IsFallback(id string) bool {
	return strings.HasPrefix(id, "x")
}
