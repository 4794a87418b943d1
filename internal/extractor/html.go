// Package extractor turns fetched payloads into content blocks: HTML pages
// through goquery, PDF documents through ledongthuc/pdf.
package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/askfmi/fmicrawl/internal/item"
)

// Element selectors, in the order they are matched inside the scope.
const (
	scopedElements   = "h1, h2, h3, h4, h5, h6, p, ul, ol"
	fallbackElements = "h1, h2, h3, h4, h5, h6, p"
)

// DefaultContentSelectors are tried in order to find the primary content
// container of a page.
var DefaultContentSelectors = []string{".entry-content", "div.nv-single-page-wrap"}

// Page is the result of extracting one HTML page.
type Page struct {
	// Title is the first h1 text, or the page URL when there is none.
	Title string
	// Blocks are the content blocks in document order.
	Blocks []item.Block
	// Links are raw href values, unresolved, in document order. They come
	// from the content container when one matched, else from the whole page.
	Links []string
	// Scoped reports whether a content container matched.
	Scoped bool
}

// HTMLExtractor extracts content blocks and links from HTML.
type HTMLExtractor struct {
	contentSelectors []string
}

// NewHTMLExtractor creates an extractor. With no selectors the defaults are used.
func NewHTMLExtractor(contentSelectors []string) *HTMLExtractor {
	if len(contentSelectors) == 0 {
		contentSelectors = DefaultContentSelectors
	}
	return &HTMLExtractor{contentSelectors: contentSelectors}
}

// Extract parses body and walks the scoped subtree.
func (e *HTMLExtractor) Extract(pageURL string, body []byte) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	page := &Page{Title: extractTitle(doc, pageURL)}

	scope := e.contentScope(doc)
	var elements *goquery.Selection
	if scope != nil {
		page.Scoped = true
		elements = scope.Find(scopedElements)
		page.Links = collectLinks(scope)
	} else {
		elements = doc.Find("body").Find(fallbackElements)
		page.Links = collectLinks(doc.Selection)
	}

	elements.Each(func(_ int, s *goquery.Selection) {
		if block, ok := toBlock(s.Get(0)); ok {
			page.Blocks = append(page.Blocks, block)
		}
	})

	return page, nil
}

// contentScope returns the first selector match, or nil.
func (e *HTMLExtractor) contentScope(doc *goquery.Document) *goquery.Selection {
	for _, selector := range e.contentSelectors {
		if sel := doc.Find(selector); sel.Length() > 0 {
			return sel
		}
	}
	return nil
}

// toBlock converts one matched element. Elements without text are skipped.
func toBlock(n *html.Node) (item.Block, bool) {
	switch n.Data {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		text := NormalizeText(nodeText(n))
		if text == "" {
			return nil, false
		}
		return item.Heading{Level: int(n.Data[1] - '0'), Text: text}, true

	case "p":
		text := NormalizeText(nodeText(n))
		if text == "" {
			return nil, false
		}
		return item.Paragraph{Text: text}, true

	case "ul", "ol":
		var items []string
		goquery.NewDocumentFromNode(n).Find("li").Each(func(_ int, li *goquery.Selection) {
			if text := NormalizeText(nodeText(li.Get(0))); text != "" {
				items = append(items, text)
			}
		})
		if len(items) == 0 {
			return nil, false
		}
		return item.List{Items: items}, true
	}

	return nil, false
}

// extractTitle returns the first h1 with text, else pageURL
func extractTitle(doc *goquery.Document, pageURL string) string {
	for _, n := range doc.Find("h1").Nodes {
		if title := NormalizeText(nodeText(n)); title != "" {
			return title
		}
	}
	return pageURL
}

func collectLinks(scope *goquery.Selection) []string {
	var links []string
	scope.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok && strings.TrimSpace(href) != "" {
			links = append(links, href)
		}
	})
	return links
}

// nodeText concatenates the text under n. Line breaks become spaces so
// that "a<br>b" does not collapse into "ab"; script and style are skipped.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.Data {
			case "br":
				b.WriteByte(' ')
				return
			case "script", "style", "noscript":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// NormalizeText collapses every run of whitespace, line breaks included,
// into one space and trims the ends.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
