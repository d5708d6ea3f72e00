// Package dom is the small query-selector surface the result extractor
// needs: find descendants by CSS selector, read text and attributes. The
// goquery-backed implementation is the only one, but extraction logic
// depends on Node alone.
package dom

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// Node is an element (or the document root) in a parsed HTML tree.
type Node interface {
	// Find returns all descendants matching selector, in document order.
	Find(selector string) []Node
	// First returns the first descendant matching selector.
	First(selector string) (Node, bool)
	// Text returns the combined text of the node and its descendants.
	Text() string
	// Attr returns the named attribute of the node.
	Attr(name string) (string, bool)
}

// Parse decodes r using the charset declared by contentType (or sniffed from
// the document) and parses it as HTML.
func Parse(r io.Reader, contentType string) (Node, error) {
	utf8Reader, err := charset.NewReader(r, contentType)
	if err != nil {
		return nil, fmt.Errorf("dom: decode charset: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(utf8Reader)
	if err != nil {
		return nil, fmt.Errorf("dom: parse html: %w", err)
	}
	return selection{doc.Selection}, nil
}

// ParseString is Parse for an in-memory UTF-8 document.
func ParseString(html string) (Node, error) {
	return Parse(strings.NewReader(html), "text/html; charset=utf-8")
}

type selection struct {
	s *goquery.Selection
}

func (n selection) Find(selector string) []Node {
	found := n.s.Find(selector)
	nodes := make([]Node, 0, found.Length())
	found.Each(func(_ int, s *goquery.Selection) {
		nodes = append(nodes, selection{s})
	})
	return nodes
}

func (n selection) First(selector string) (Node, bool) {
	found := n.s.Find(selector).First()
	if found.Length() == 0 {
		return nil, false
	}
	return selection{found}, true
}

func (n selection) Text() string {
	return n.s.Text()
}

func (n selection) Attr(name string) (string, bool) {
	return n.s.Attr(name)
}
