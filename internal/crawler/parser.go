package crawler

import (
	"io"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// Parser extracts hyperlinks from an HTML page of a local corpus.
//
// Design decision: We use golang.org/x/net/html for parsing rather than
// regex because:
//  1. It correctly handles malformed HTML and unusual attribute order
//  2. Attribute values are unescaped for us (&amp; and friends)
//  3. Links inside comments or scripts are not mistaken for anchors
type Parser struct{}

// ParseResult contains the information extracted from one HTML page.
type ParseResult struct {
	// Title is the page title from the <title> tag.
	Title string

	// Links contains corpus-relative page names referenced by <a href>,
	// in document order and without duplicates.
	Links []string

	// ExternalLinks contains hrefs that point outside the corpus
	// (absolute URLs with a scheme or host).
	ExternalLinks []string
}

// NewParser creates a new HTML link parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse parses HTML content and extracts its anchors.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{
		Links:         make([]string, 0),
		ExternalLinks: make([]string, 0),
	}
	seen := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if result.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					result.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "a":
				p.processAnchor(n, result, seen)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return result, nil
}

// processAnchor classifies the href of an <a> element.
func (p *Parser) processAnchor(n *html.Node, result *ParseResult, seen map[string]bool) {
	href, ok := getAttr(n, "href")
	if !ok {
		return
	}

	link, external := resolveLink(href)
	if link == "" || seen[link] {
		return
	}
	seen[link] = true

	if external {
		result.ExternalLinks = append(result.ExternalLinks, link)
		return
	}
	result.Links = append(result.Links, link)
}

// resolveLink turns an href into a corpus page name.
// It returns an empty string for hrefs that never name a page and reports
// whether the href points outside the corpus.
//
// Design decision: We resolve relative paths ("./b.html", "/b.html",
// "b.html#top") to the bare file name rather than comparing hrefs verbatim
// because authors write the same link in many ways, and a corpus is a single
// flat directory.
func resolveLink(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}

	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(strings.ToLower(href), prefix) {
			return "", false
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if u.Scheme != "" || u.Host != "" {
		return u.String(), true
	}

	cleaned := path.Clean("/" + u.Path)
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" {
		return "", false
	}

	return NormalizeName(cleaned), false
}

// NormalizeName returns the Unicode NFC form of a page name.
// File systems such as APFS may hand back names in NFD while hrefs are
// usually typed in NFC; normalizing both lets them compare equal.
func NormalizeName(name string) string {
	return norm.NFC.String(name)
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}
