package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/arct1cx/bookfetch/internal/books"
)

const (
	gutenbergName       = "Project Gutenberg"
	gutenbergMaxResults = 5
)

// Gutenberg is the secondary source adapter, consulted only when the primary
// site yields nothing. Its catalog pages are stable, so candidate URLs point
// directly at them and need no link resolution. Authors come from the
// catalog's own subtitle field, never from title heuristics.
type Gutenberg struct {
	baseURL string
	fetcher PageFetcher
	logger  *zap.Logger
}

// NewGutenberg builds the secondary adapter against the given base URL.
func NewGutenberg(baseURL string, fetcher PageFetcher, logger *zap.Logger) *Gutenberg {
	return &Gutenberg{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: fetcher,
		logger:  logger,
	}
}

// Name implements Adapter.
func (g *Gutenberg) Name() string { return gutenbergName }

// Search queries the catalog and returns at most five candidates.
func (g *Gutenberg) Search(ctx context.Context, query string) ([]books.Candidate, error) {
	searchURL := fmt.Sprintf("%s/ebooks/search/?query=%s", g.baseURL, url.QueryEscape(query))

	page, err := g.fetcher.FetchPage(ctx, searchURL)
	if err != nil {
		return nil, classifyFetchError(err)
	}
	if page.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: catalog returned status %d", books.ErrSourceUnavailable, page.StatusCode)
	}

	var candidates []books.Candidate
	page.Doc.Find("li.booklink").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		title := strings.TrimSpace(s.Find(".title").First().Text())
		href, _ := s.Find("a[href]").First().Attr("href")
		if title == "" || href == "" {
			return true
		}

		author := strings.TrimSpace(s.Find(".subtitle").First().Text())
		if author == "" {
			author = books.UnknownAuthor
		}

		candidates = append(candidates, books.Candidate{
			Title:       title,
			Author:      author,
			Description: "Available from the Project Gutenberg catalog",
			Cover:       g.absolute(firstImageSrc(s)),
			URL:         g.absolute(href),
			Source:      gutenbergName,
		})
		return len(candidates) < gutenbergMaxResults
	})
	return candidates, nil
}

// absolute prefixes site-relative paths with the catalog origin.
func (g *Gutenberg) absolute(href string) string {
	if href == "" || strings.HasPrefix(href, "http") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return g.baseURL + href
}

func firstImageSrc(s *goquery.Selection) string {
	src, _ := s.Find("img").First().Attr("src")
	return src
}
