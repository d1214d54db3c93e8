package dom

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// GenericProbes are selector patterns tried when looking for a site's
// item structure.
var GenericProbes = []string{
	`[class*="Tweet"]`, `[class*="tweet"]`,
	`[class*="post"]`, `[class*="Post"]`,
	`[class*="item"]`, `[class*="Item"]`,
	`[class*="container"]`, `[class*="Container"]`,
	`[class*="list"]`, `[class*="List"]`,
	`[class*="author"]`, `[class*="Author"]`,
	`[class*="user"]`, `[class*="User"]`,
	`[class*="name"]`, `[class*="Name"]`,
	`[class*="id"]`, `[class*="ID"]`,
	"article", "section", ".timeline", ".feed", ".stream",
}

// MarkerStrings are texts that typically appear inside a post.
var MarkerStrings = []string{"@", "RT", "いいね", "リツイート", "返信"}

const (
	sampleCount     = 3
	topClassCount   = 20
	outlineMaxDepth = 4
	outlineFanout   = 10
)

var spaceRe = regexp.MustCompile(`\s+`)

// Sample is one element found by a probe.
type Sample struct {
	Tag     string
	Class   string
	TextLen int
	Text    string
}

// Probe is the result of one selector.
type Probe struct {
	Selector string
	Count    int
	Samples  []Sample
}

// MarkerHit counts leaf-ish elements whose text contains a marker.
type MarkerHit struct {
	Marker  string
	Count   int
	Samples []Sample
}

// ClassCount is one class name's frequency.
type ClassCount struct {
	Class string
	Count int
}

// OutlineLine is one element of the structure outline.
type OutlineLine struct {
	Depth    int
	Tag      string
	Class    string
	Children int
	Text     string
}

// Report describes a page's structure, to help write a profile.
type Report struct {
	Title      string
	Elements   int
	Known      []Probe
	Generic    []Probe
	Markers    []MarkerHit
	TopClasses []ClassCount
	Outline    []OutlineLine
}

// Analyze inspects the document. The profile's selectors are reported as
// known probes, followed by the generic ones.
func (d *Document) Analyze() Report {
	d.mu.Lock()
	defer d.mu.Unlock()

	sels := d.prof.Selectors
	var known []string
	for _, s := range []string{sels.Container, sels.Item, sels.AuthorID, sels.AuthorName, sels.Body, sels.Permalink, sels.Wrapper} {
		if s != "" && !contains(known, s) {
			known = append(known, s)
		}
	}
	return analyze(d.doc, known)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func analyze(doc *goquery.Document, known []string) Report {
	r := Report{
		Title:    strings.TrimSpace(doc.Find("title").First().Text()),
		Elements: doc.Find("*").Length(),
	}
	r.Known = probeAll(doc, known, true)
	r.Generic = probeAll(doc, GenericProbes, false)
	r.Markers = markerHits(doc)
	r.TopClasses = topClasses(doc)

	root := doc.Find("main").First()
	if root.Length() == 0 {
		root = doc.Find("#main").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}
	if root.Length() > 0 {
		outline(root, 0, &r.Outline)
	}
	return r
}

func sample(s *goquery.Selection, textRunes int) Sample {
	text := s.Text()
	out := Sample{
		Tag:     goquery.NodeName(s),
		Class:   s.AttrOr("class", ""),
		TextLen: utf8.RuneCountInString(text),
	}
	if textRunes > 0 {
		out.Text = truncate(text, textRunes)
	}
	return out
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// probeAll runs each selector; misses are kept only when keepEmpty.
func probeAll(doc *goquery.Document, selectors []string, keepEmpty bool) []Probe {
	var out []Probe
	for _, selector := range selectors {
		found := doc.Find(selector)
		if found.Length() == 0 && !keepEmpty {
			continue
		}
		p := Probe{Selector: selector, Count: found.Length()}
		found.Slice(0, min(sampleCount, found.Length())).Each(func(_ int, s *goquery.Selection) {
			p.Samples = append(p.Samples, sample(s, 0))
		})
		out = append(out, p)
	}
	return out
}

func markerHits(doc *goquery.Document) []MarkerHit {
	var out []MarkerHit
	all := doc.Find("body *")
	for _, marker := range MarkerStrings {
		hit := MarkerHit{Marker: marker}
		all.Each(func(_ int, s *goquery.Selection) {
			// Skip broad containers.
			if s.Children().Length() >= 10 {
				return
			}
			if !strings.Contains(s.Text(), marker) {
				return
			}
			hit.Count++
			if len(hit.Samples) < sampleCount {
				hit.Samples = append(hit.Samples, sample(s, 50))
			}
		})
		if hit.Count > 0 {
			out = append(out, hit)
		}
	}
	return out
}

func topClasses(doc *goquery.Document) []ClassCount {
	counts := make(map[string]int)
	doc.Find("[class]").Each(func(_ int, s *goquery.Selection) {
		for _, c := range strings.Fields(s.AttrOr("class", "")) {
			counts[c]++
		}
	})
	out := make([]ClassCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, ClassCount{Class: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Class < out[j].Class
	})
	if len(out) > topClassCount {
		out = out[:topClassCount]
	}
	return out
}

func outline(s *goquery.Selection, depth int, lines *[]OutlineLine) {
	if depth > outlineMaxDepth {
		return
	}
	children := s.Children()
	text := spaceRe.ReplaceAllString(truncate(s.Text(), 30), " ")
	if children.Length() == 0 && utf8.RuneCountInString(text) <= 5 {
		return
	}

	var class string
	if fields := strings.Fields(s.AttrOr("class", "")); len(fields) > 0 {
		class = fields[0]
	}
	*lines = append(*lines, OutlineLine{
		Depth:    depth,
		Tag:      goquery.NodeName(s),
		Class:    class,
		Children: children.Length(),
		Text:     text,
	})

	if children.Length() < 20 && depth < 3 {
		children.Slice(0, min(outlineFanout, children.Length())).Each(func(_ int, c *goquery.Selection) {
			outline(c, depth+1, lines)
		})
	}
}

// WriteTo renders the report as indented text.
func (r Report) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "title: %s\nelements: %d\n", r.Title, r.Elements)

	writeProbes := func(heading string, probes []Probe) {
		fmt.Fprintf(&b, "\n== %s ==\n", heading)
		for _, p := range probes {
			fmt.Fprintf(&b, "%s: %d\n", p.Selector, p.Count)
			for i, s := range p.Samples {
				fmt.Fprintf(&b, "  [%d] %s class=%q text=%d\n", i, s.Tag, s.Class, s.TextLen)
			}
		}
	}
	writeProbes("profile selectors", r.Known)
	writeProbes("generic selectors", r.Generic)

	fmt.Fprintf(&b, "\n== marker strings ==\n")
	for _, m := range r.Markers {
		fmt.Fprintf(&b, "%q: %d\n", m.Marker, m.Count)
		for i, s := range m.Samples {
			fmt.Fprintf(&b, "  [%d] %s.%s %q\n", i, s.Tag, s.Class, s.Text)
		}
	}

	fmt.Fprintf(&b, "\n== top classes ==\n")
	for _, c := range r.TopClasses {
		fmt.Fprintf(&b, "  %s: %d\n", c.Class, c.Count)
	}

	fmt.Fprintf(&b, "\n== outline ==\n")
	for _, l := range r.Outline {
		name := l.Tag
		if l.Class != "" {
			name += "." + l.Class
		}
		fmt.Fprintf(&b, "%s%s (%d) %q\n", strings.Repeat("  ", l.Depth), name, l.Children, l.Text)
	}

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}
