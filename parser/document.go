package parser

import (
	"fmt"
	"io"

	"github.com/PuerkitoBio/goquery"
)

// Document is a fetched page that can be queried with CSS selectors.
type Document interface {
	Select(selector string) []Element
}

// Element is a single node matched by a selector.
type Element interface {
	Text() string
	Attr(name string) (string, bool)
}

// HTMLDocument is a goquery-backed Document.
type HTMLDocument struct {
	doc *goquery.Document
}

// NewDocument parses UTF-8 HTML from r.
func NewDocument(r io.Reader) (*HTMLDocument, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &HTMLDocument{doc: doc}, nil
}

// Select returns the matched elements in document order.
func (d *HTMLDocument) Select(selector string) []Element {
	selection := d.doc.Find(selector)
	out := make([]Element, 0, selection.Length())
	selection.Each(func(_ int, s *goquery.Selection) {
		out = append(out, HTMLElement{sel: s})
	})
	return out
}

// HTMLElement wraps a single-node goquery selection.
type HTMLElement struct {
	sel *goquery.Selection
}

// Text returns the combined text of the element and its descendants.
func (e HTMLElement) Text() string {
	return e.sel.Text()
}

// Attr returns the named attribute and whether it was present.
func (e HTMLElement) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}

// Texts returns the text of every element.
func Texts(elements []Element) []string {
	out := make([]string, 0, len(elements))
	for _, el := range elements {
		out = append(out, el.Text())
	}
	return out
}

// FirstText returns the text of the first element matching selector.
func FirstText(doc Document, selector string) (string, bool) {
	elements := doc.Select(selector)
	if len(elements) == 0 {
		return "", false
	}
	return elements[0].Text(), true
}
