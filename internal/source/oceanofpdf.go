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

const oceanName = "Ocean of PDF"

// OceanOfPDF is the primary source adapter. It scrapes the site's search
// results page, first through the article listing markup the theme normally
// renders, then through a looser set of selectors when the theme markup is
// absent.
type OceanOfPDF struct {
	baseURL string
	host    string
	fetcher PageFetcher
	logger  *zap.Logger
}

// NewOceanOfPDF builds the primary adapter against the given base URL.
func NewOceanOfPDF(baseURL string, fetcher PageFetcher, logger *zap.Logger) *OceanOfPDF {
	host := ""
	if u, err := url.Parse(baseURL); err == nil {
		host = u.Hostname()
	}
	return &OceanOfPDF{
		baseURL: strings.TrimRight(baseURL, "/"),
		host:    host,
		fetcher: fetcher,
		logger:  logger,
	}
}

// Name implements Adapter.
func (a *OceanOfPDF) Name() string { return oceanName }

// Search fetches the search results page once and runs the extraction passes
// over it in order, returning the first pass that yields candidates.
func (a *OceanOfPDF) Search(ctx context.Context, query string) ([]books.Candidate, error) {
	searchURL := fmt.Sprintf("%s/?s=%s", a.baseURL, url.QueryEscape(query))

	page, err := a.fetcher.FetchPage(ctx, searchURL)
	if err != nil {
		return nil, classifyFetchError(err)
	}
	if page.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: search page returned status %d", books.ErrSourceUnavailable, page.StatusCode)
	}

	passes := []struct {
		name string
		run  func(*goquery.Document) []books.Candidate
	}{
		{name: "articles", run: a.extractArticles},
		{name: "loose", run: a.extractLoose},
	}
	for _, pass := range passes {
		if candidates := pass.run(page.Doc); len(candidates) > 0 {
			a.logger.Debug("primary extraction pass matched",
				zap.String("pass", pass.name),
				zap.Int("candidates", len(candidates)))
			return candidates, nil
		}
	}
	return nil, nil
}

// extractArticles parses the theme's article listing markup.
func (a *OceanOfPDF) extractArticles(doc *goquery.Document) []books.Candidate {
	var candidates []books.Candidate
	doc.Find("article.post").Each(func(_ int, s *goquery.Selection) {
		titleLink := s.Find("h2.entry-title a, h1.entry-title a").First()
		title := strings.TrimSpace(titleLink.Text())
		bookURL, _ := titleLink.Attr("href")
		if title == "" || bookURL == "" {
			return
		}

		description := strings.TrimSpace(s.Find(".entry-content p, .excerpt p, .entry-summary").First().Text())
		if description == "" {
			description = "No description available"
		} else {
			description = truncateDescription(description)
		}

		candidates = append(candidates, books.Candidate{
			Title:       title,
			Author:      authorFromTitle(title),
			Description: description,
			Cover:       coverURL(s),
			URL:         bookURL,
			Source:      oceanName,
		})
	})
	return candidates
}

// extractLoose is the fallback pass over generic post/search-item markup.
func (a *OceanOfPDF) extractLoose(doc *goquery.Document) []books.Candidate {
	var candidates []books.Candidate
	doc.Find(".post, .search-item, .book-item").Each(func(_ int, s *goquery.Selection) {
		link := s.Find(fmt.Sprintf("a[href*='%s']", a.host)).First()
		title := strings.TrimSpace(link.Text())
		if title == "" {
			title = strings.TrimSpace(s.Find("h2, h3, .title").First().Text())
		}
		bookURL, _ := link.Attr("href")
		if title == "" || bookURL == "" {
			return
		}

		candidates = append(candidates, books.Candidate{
			Title:       title,
			Author:      books.UnknownAuthor,
			Description: "Book found on Ocean of PDF",
			URL:         bookURL,
			Source:      oceanName,
		})
	})
	return candidates
}

// authorFromTitle guesses the author from the listing title. Titles commonly
// embed the author either after a " by " separator or after the last " - "
// separator.
func authorFromTitle(title string) string {
	if i := strings.Index(title, " by "); i >= 0 {
		rest := strings.TrimSpace(title[i+len(" by "):])
		if rest != "" {
			if sp := strings.IndexByte(rest, ' '); sp >= 0 {
				return rest[:sp]
			}
			return rest
		}
	}
	if i := strings.LastIndex(title, " - "); i >= 0 {
		rest := strings.TrimSpace(title[i+len(" - "):])
		if rest != "" {
			return rest
		}
	}
	return books.UnknownAuthor
}

// truncateDescription caps a description at MaxDescriptionLen characters,
// appending an ellipsis when it was longer.
func truncateDescription(s string) string {
	runes := []rune(s)
	if len(runes) <= books.MaxDescriptionLen {
		return s
	}
	return string(runes[:books.MaxDescriptionLen]) + "..."
}

// coverURL extracts a cover image URL, preferring an eager src over a
// lazy-load data-src.
func coverURL(s *goquery.Selection) string {
	img := s.Find("img").First()
	if src, ok := img.Attr("src"); ok && src != "" {
		return src
	}
	if src, ok := img.Attr("data-src"); ok && src != "" {
		return src
	}
	return ""
}
