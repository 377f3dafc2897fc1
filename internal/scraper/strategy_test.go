package scraper

import (
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstNonEmptyStopsAtFirstHit(t *testing.T) {
	t.Parallel()

	doc, err := parseDocument([]byte(`<ul><li>a</li><li>b</li></ul>`))
	require.NoError(t, err)

	calls := 0
	empty := Strategy[string]{Name: "empty", Extract: func(*goquery.Document) []string {
		calls++
		return nil
	}}
	items := Strategy[string]{Name: "items", Extract: func(d *goquery.Document) []string {
		calls++
		return d.Find("li").Map(func(_ int, s *goquery.Selection) string { return s.Text() })
	}}
	never := Strategy[string]{Name: "never", Extract: func(*goquery.Document) []string {
		t.Fatal("strategy after a hit must not run")
		return nil
	}}

	out, name := FirstNonEmpty(doc, empty, items, never)
	assert.Equal(t, []string{"a", "b"}, out)
	assert.Equal(t, "items", name)
	assert.Equal(t, 2, calls)
}

func TestFirstNonEmptyAllEmpty(t *testing.T) {
	t.Parallel()

	doc, err := parseDocument([]byte(`<p></p>`))
	require.NoError(t, err)

	out, name := FirstNonEmpty(doc, Strategy[int]{Name: "x", Extract: func(*goquery.Document) []int { return nil }})
	assert.Nil(t, out)
	assert.Empty(t, name)
}
