// Package profile describes how to find items on a particular site: the
// URL patterns a profile applies to and the CSS selectors for each field.
package profile

import (
	"fmt"
	"regexp"
	"strings"
)

// Selectors are CSS selectors relative to the document (Container, Item)
// or to an item (the rest).
type Selectors struct {
	Container  string `yaml:"container"`
	Item       string `yaml:"item"`
	AuthorID   string `yaml:"author_id"`
	AuthorName string `yaml:"author_name"`
	Body       string `yaml:"body"`
	Permalink  string `yaml:"permalink"`
	// Wrapper is matched with Closest from the item; the hide effect is
	// applied to it when found, otherwise to the item itself.
	Wrapper string `yaml:"wrapper"`
}

// Profile is one site definition.
type Profile struct {
	Name      string    `yaml:"name"`
	Match     []string  `yaml:"match"`
	Selectors Selectors `yaml:"selectors"`

	matchers []*regexp.Regexp
}

// YahooRealtime is the built-in profile for Yahoo! realtime search.
func YahooRealtime() *Profile {
	p := &Profile{
		Name:  "yahoo-realtime",
		Match: []string{"https://search.yahoo.co.jp/realtime/*"},
		Selectors: Selectors{
			Container:  ".TweetList_list__Xf9wM",
			Item:       ".TweetList_list__Xf9wM > *",
			AuthorID:   ".Tweet_authorID__JKhEb",
			AuthorName: ".Tweet_authorName__wer3j",
			Body:       ".Tweet_bodyContainer__ud_57",
			Permalink:  ".Tweet_info__bBT3t a[href]",
		},
	}
	if err := p.compile(); err != nil {
		panic(err)
	}
	return p
}

// GlobToRegexp converts a URL pattern where "*" matches any run of
// characters into an anchored regular expression.
func GlobToRegexp(pattern string) (*regexp.Regexp, error) {
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.Compile("^" + strings.Join(parts, ".*") + "$")
}

// MatchURL reports whether url matches the glob pattern.
func MatchURL(pattern, url string) bool {
	re, err := GlobToRegexp(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(url)
}

func (p *Profile) applyDefaults() {
	if p.Selectors.Body == "" {
		p.Selectors.Body = p.Selectors.Item
	}
}

func (p *Profile) validate() error {
	required := map[string]string{
		"name":                p.Name,
		"selectors.item":      p.Selectors.Item,
		"selectors.author_id": p.Selectors.AuthorID,
	}
	for field, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s is required", field)
		}
	}
	if len(p.Match) == 0 {
		return fmt.Errorf("at least one match pattern is required")
	}
	return nil
}

func (p *Profile) compile() error {
	p.matchers = p.matchers[:0]
	for i, m := range p.Match {
		re, err := GlobToRegexp(m)
		if err != nil {
			return fmt.Errorf("invalid match pattern at index %d: %w", i, err)
		}
		p.matchers = append(p.matchers, re)
	}
	return nil
}

// Matches reports whether the profile applies to url.
func (p *Profile) Matches(url string) bool {
	for _, re := range p.matchers {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}
