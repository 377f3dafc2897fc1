package scraper

import (
	"bytes"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
)

// Strategy is one way of pulling records out of a page. Strategies for a
// page type are tried in order, most specific first.
type Strategy[T any] struct {
	Name    string
	Extract func(doc *goquery.Document) []T
}

// FirstNonEmpty runs the strategies lazily and returns the first non-empty
// result together with the name of the strategy that produced it. When every
// strategy comes back empty the result is nil and the name is "".
func FirstNonEmpty[T any](doc *goquery.Document, strategies ...Strategy[T]) ([]T, string) {
	for _, s := range strategies {
		if out := s.Extract(doc); len(out) > 0 {
			return out, s.Name
		}
	}
	return nil, ""
}

// parseDocument builds a goquery document from raw HTML.
func parseDocument(html []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse HTML")
	}
	return doc, nil
}
