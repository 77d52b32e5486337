package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Images returns candidate image URLs for a fetched page, most preferred
// first: the og:image declaration, the twitter:image declaration, then every
// <img src> in document order. Candidates are made absolute against pageURL;
// data: URIs and empty sources are dropped. Duplicates are kept.
func Images(htmlText string, pageURL string) []string {
	doc, err := parse(htmlText)
	if err != nil {
		return []string{}
	}
	return imagesFrom(doc, pageURL)
}

func imagesFrom(doc *goquery.Document, pageURL string) []string {
	base := baseURL(pageURL)
	raw := rawImageSources(doc)
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if abs, ok := Normalize(r, base); ok {
			out = append(out, abs)
		}
	}
	return out
}

// rawImageSources collects unnormalized sources in priority order.
func rawImageSources(doc *goquery.Document) []string {
	var raw []string
	if v, ok := doc.Find(`meta[property="og:image"]`).First().Attr("content"); ok {
		raw = append(raw, v)
	}
	if v, ok := doc.Find(`meta[name="twitter:image"]`).First().Attr("content"); ok {
		raw = append(raw, v)
	}
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("src"); ok {
			raw = append(raw, v)
		}
	})
	return raw
}

// baseURL returns pageURL parsed when it is absolute with a host, else nil.
func baseURL(pageURL string) *url.URL {
	u, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil
	}
	return u
}

// Normalize rewrites one raw image source into an absolute URL relative to
// base. It reports false when the candidate must be dropped.
//
//	"/p.png"   -> scheme://host/p.png
//	"./p.png"  -> scheme://host/p.png (leading dot dropped, directory ignored)
//	"//cdn/p"  -> scheme://cdn/p
//	"p.png"    -> resolved against base
//
// Absolute URLs and anything that cannot be parsed pass through unchanged,
// as does every source when base is nil.
func Normalize(raw string, base *url.URL) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || hasPrefixFold(s, "data:") {
		return "", false
	}
	if base == nil {
		return s, true
	}
	origin := base.Scheme + "://" + base.Host
	switch {
	case strings.HasPrefix(s, "//"):
		return base.Scheme + ":" + s, true
	case strings.HasPrefix(s, "/"):
		return origin + s, true
	case strings.HasPrefix(s, "./"):
		return origin + s[1:], true
	}
	ref, err := url.Parse(s)
	if err != nil || ref.IsAbs() {
		return s, true
	}
	return base.ResolveReference(ref).String(), true
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
