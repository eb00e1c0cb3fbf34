package extractor

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Element is a read-only view of one node in a parsed page. It exposes only
// the queries field strategies need.
type Element struct {
	sel *goquery.Selection
}

// Parse builds the document tree for page content.
func Parse(content string) (*Element, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return &Element{sel: doc.Selection}, nil
}

func wrap(sel *goquery.Selection) *Element {
	if sel == nil || sel.Length() == 0 {
		return nil
	}
	return &Element{sel: sel.First()}
}

// Find returns the first descendant matching selector, or nil.
func (e *Element) Find(selector string) *Element {
	return wrap(e.sel.Find(selector))
}

// FindAll returns every descendant matching selector in document order.
func (e *Element) FindAll(selector string) []*Element {
	found := e.sel.Find(selector)
	out := make([]*Element, 0, found.Length())
	found.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &Element{sel: s})
	})
	return out
}

// FindWhere returns descendants with the given tag whose attribute value
// satisfies pred. Elements lacking the attribute are skipped.
func (e *Element) FindWhere(tag, attr string, pred func(string) bool) []*Element {
	var out []*Element
	e.sel.Find(tag).Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr(attr); ok && pred(v) {
			out = append(out, &Element{sel: s})
		}
	})
	return out
}

// Attr returns the named attribute.
func (e *Element) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}

// Tag returns the element name, or "" for the document root.
func (e *Element) Tag() string {
	if len(e.sel.Nodes) == 0 || e.sel.Nodes[0].Type != html.ElementNode {
		return ""
	}
	return e.sel.Nodes[0].Data
}

// Parent returns the enclosing element, or nil at the root.
func (e *Element) Parent() *Element {
	return wrap(e.sel.Parent())
}

// Links returns every anchor below the element that carries an href.
func (e *Element) Links() []*Element {
	return e.FindAll("a[href]")
}

// Is reports whether both views point at the same node.
func (e *Element) Is(other *Element) bool {
	if e == nil || other == nil || len(e.sel.Nodes) == 0 || len(other.sel.Nodes) == 0 {
		return false
	}
	return e.sel.Nodes[0] == other.sel.Nodes[0]
}

// Text returns the element's visible text nodes, trimmed and joined by a
// single space. Script and style bodies are skipped.
func (e *Element) Text() string {
	var parts []string
	for _, n := range e.sel.Nodes {
		collectText(n, &parts)
	}
	return strings.Join(parts, " ")
}

func collectText(n *html.Node, parts *[]string) {
	switch n.Type {
	case html.TextNode:
		if t := strings.Join(strings.Fields(n.Data), " "); t != "" {
			*parts = append(*parts, t)
		}
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "template":
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}
