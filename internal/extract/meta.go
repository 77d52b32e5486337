package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Meta is the textual preview data a page declares about itself.
type Meta struct {
	Title       string
	Description string
}

// PageMeta reads title and description suggestions from a page. Open Graph
// wins over Twitter cards, which win over <title> and <meta name=description>.
func PageMeta(htmlText string) Meta {
	doc, err := parse(htmlText)
	if err != nil {
		return Meta{}
	}
	return metaFrom(doc)
}

func metaFrom(doc *goquery.Document) Meta {
	title := firstContent(doc, `meta[property="og:title"]`, `meta[name="twitter:title"]`)
	if title == "" && len(doc.Nodes) > 0 {
		title = findTitle(doc.Nodes[0])
	}
	desc := firstContent(doc, `meta[property="og:description"]`, `meta[name="description"]`, `meta[name="twitter:description"]`)
	return Meta{Title: collapseSpaces(title), Description: collapseSpaces(desc)}
}

func firstContent(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if v, ok := doc.Find(sel).First().Attr("content"); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

func findTitle(n *html.Node) string {
	head := findFirst(n, "head")
	if head == nil {
		return ""
	}
	t := findFirst(head, "title")
	if t == nil || t.FirstChild == nil {
		return ""
	}
	return strings.TrimSpace(t.FirstChild.Data)
}

func findFirst(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && strings.EqualFold(n.Data, tag) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if res := findFirst(c, tag); res != nil {
			return res
		}
	}
	return nil
}

func collapseSpaces(s string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range strings.TrimSpace(s) {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return b.String()
}
