package source

import (
	"context"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arct1cx/bookfetch/internal/books"
)

type fakePageFetcher struct {
	calls int
	fn    func(rawURL string) (Page, error)
}

func (f *fakePageFetcher) FetchPage(_ context.Context, rawURL string) (Page, error) {
	f.calls++
	return f.fn(rawURL)
}

func pageFromHTML(t *testing.T, status int, html string) Page {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return Page{StatusCode: status, Doc: doc}
}

const oceanResultsHTML = `
<html><body>
<article class="post">
  <h2 class="entry-title"><a href="https://oceanofpdf.com/dune">Dune by Frank Herbert</a></h2>
  <div class="entry-content"><p>  Paul Atreides and the spice of Arrakis.  </p></div>
  <img src="https://oceanofpdf.com/covers/dune.jpg" />
</article>
<article class="post">
  <h1 class="entry-title"><a href="https://oceanofpdf.com/1984">1984 - George Orwell</a></h1>
  <img data-src="https://oceanofpdf.com/covers/1984.jpg" />
</article>
<article class="post">
  <div class="entry-content"><p>A container with no heading link is skipped.</p></div>
</article>
</body></html>`

func TestOceanOfPDF_SearchExtractsArticles(t *testing.T) {
	t.Parallel()

	fetcher := &fakePageFetcher{fn: func(rawURL string) (Page, error) {
		require.Contains(t, rawURL, "https://oceanofpdf.com/?s=dune+messiah")
		return pageFromHTML(t, 200, oceanResultsHTML), nil
	}}
	adapter := NewOceanOfPDF("https://oceanofpdf.com", fetcher, zap.NewNop())

	candidates, err := adapter.Search(context.Background(), "dune messiah")
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	first := candidates[0]
	require.Equal(t, "Dune by Frank Herbert", first.Title)
	require.Equal(t, "Frank", first.Author)
	require.Equal(t, "Paul Atreides and the spice of Arrakis.", first.Description)
	require.Equal(t, "https://oceanofpdf.com/covers/dune.jpg", first.Cover)
	require.Equal(t, "https://oceanofpdf.com/dune", first.URL)
	require.Equal(t, "Ocean of PDF", first.Source)

	second := candidates[1]
	require.Equal(t, "George Orwell", second.Author)
	require.Equal(t, "No description available", second.Description)
	require.Equal(t, "https://oceanofpdf.com/covers/1984.jpg", second.Cover, "lazy-load data-src is the fallback")
}

func TestOceanOfPDF_LoosePassWhenArticlesAbsent(t *testing.T) {
	t.Parallel()

	const looseHTML = `
<html><body>
<div class="search-item">
  <a href="https://oceanofpdf.com/some-book">Some Book</a>
</div>
<div class="book-item">
  <h3>Titled Elsewhere</h3>
  <a href="https://oceanofpdf.com/other-book"><img src="x.jpg"/></a>
</div>
</body></html>`

	fetcher := &fakePageFetcher{fn: func(string) (Page, error) {
		return pageFromHTML(t, 200, looseHTML), nil
	}}
	adapter := NewOceanOfPDF("https://oceanofpdf.com", fetcher, zap.NewNop())

	candidates, err := adapter.Search(context.Background(), "some book")
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	require.Equal(t, "Some Book", candidates[0].Title)
	require.Equal(t, books.UnknownAuthor, candidates[0].Author)
	require.Equal(t, "https://oceanofpdf.com/some-book", candidates[0].URL)
	require.Equal(t, "Titled Elsewhere", candidates[1].Title, "heading text backs up an imageless anchor")
}

func TestOceanOfPDF_ServerErrorIsSourceUnavailable(t *testing.T) {
	t.Parallel()

	fetcher := &fakePageFetcher{fn: func(string) (Page, error) {
		return pageFromHTML(t, 502, "<html></html>"), nil
	}}
	adapter := NewOceanOfPDF("https://oceanofpdf.com", fetcher, zap.NewNop())

	_, err := adapter.Search(context.Background(), "anything")
	require.ErrorIs(t, err, books.ErrSourceUnavailable)
}

func TestOceanOfPDF_ClientErrorStatusStillParsed(t *testing.T) {
	t.Parallel()

	fetcher := &fakePageFetcher{fn: func(string) (Page, error) {
		return pageFromHTML(t, 403, oceanResultsHTML), nil
	}}
	adapter := NewOceanOfPDF("https://oceanofpdf.com", fetcher, zap.NewNop())

	candidates, err := adapter.Search(context.Background(), "dune")
	require.NoError(t, err)
	require.Len(t, candidates, 2)
}

func TestAuthorFromTitle(t *testing.T) {
	t.Parallel()

	cases := []struct {
		title string
		want  string
	}{
		{"Dune by Frank Herbert", "Frank"},
		{"1984 - George Orwell", "George Orwell"},
		{"A Title - With Dashes - Jane Doe", "Jane Doe"},
		{"Standalone Title", books.UnknownAuthor},
		{"Trailing by ", books.UnknownAuthor},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, authorFromTitle(tc.title), "title %q", tc.title)
	}
}

func TestTruncateDescription(t *testing.T) {
	t.Parallel()

	short := strings.Repeat("a", 200)
	require.Equal(t, short, truncateDescription(short))

	long := strings.Repeat("b", 250)
	got := truncateDescription(long)
	require.Equal(t, strings.Repeat("b", 200)+"...", got)
	require.Len(t, got, 203)
}
