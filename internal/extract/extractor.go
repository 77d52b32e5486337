package extract

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Page is everything suggested from one fetched document.
type Page struct {
	Meta
	Images []string
}

// Extractor defines a minimal interface for suggestion extraction strategies.
// Implementations should be deterministic and avoid side effects.
type Extractor interface {
	Extract(htmlText string, pageURL string) Page
}

// HeuristicExtractor parses the document once and applies Images and
// PageMeta to it.
type HeuristicExtractor struct{}

func (HeuristicExtractor) Extract(htmlText string, pageURL string) Page {
	doc, err := parse(htmlText)
	if err != nil {
		return Page{Images: []string{}}
	}
	return Page{Meta: metaFrom(doc), Images: imagesFrom(doc, pageURL)}
}

var errEmptyDocument = errors.New("extract: empty document")

func parse(htmlText string) (*goquery.Document, error) {
	// Scripting off, so <noscript> content is parsed as markup.
	node, err := html.ParseWithOptions(strings.NewReader(htmlText), html.ParseOptionEnableScripting(false))
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, errEmptyDocument
	}
	return goquery.NewDocumentFromNode(node), nil
}
