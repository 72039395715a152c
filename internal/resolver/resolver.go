// Package resolver turns a source's book detail page into a direct file URL.
package resolver

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/arct1cx/bookfetch/internal/books"
	"github.com/arct1cx/bookfetch/internal/source"
)

// fileExtensions are the recognized downloadable file suffixes.
var fileExtensions = []string{".epub", ".pdf"}

// exactLabels are anchor texts that mark a download link outright.
var exactLabels = []string{"Download", "EPUB", "PDF"}

// Resolver extracts direct download URLs from detail pages of one source.
type Resolver struct {
	origin  string
	host    string
	fetcher source.PageFetcher
	logger  *zap.Logger
}

// New builds a Resolver for the source rooted at origin.
func New(origin string, fetcher source.PageFetcher, logger *zap.Logger) *Resolver {
	host := ""
	if u, err := url.Parse(origin); err == nil {
		host = u.Hostname()
	}
	return &Resolver{
		origin:  strings.TrimRight(origin, "/"),
		host:    host,
		fetcher: fetcher,
		logger:  logger,
	}
}

// IsDetailPage reports whether the URL belongs to the source's domain and
// does not already point at a downloadable file.
func (r *Resolver) IsDetailPage(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return false
	}
	if !strings.HasSuffix(u.Hostname(), r.host) {
		return false
	}
	lower := strings.ToLower(rawURL)
	for _, ext := range fileExtensions {
		if strings.Contains(lower, ext) {
			return false
		}
	}
	return true
}

// Resolve fetches the detail page and searches its anchors for a download
// target, trying each pattern in fixed priority order. The first matching
// anchor wins. A page that yields no match, or a page that cannot be
// fetched, resolves to ErrLinkNotFound.
func (r *Resolver) Resolve(ctx context.Context, pageURL string) (string, error) {
	page, err := r.fetcher.FetchPage(ctx, pageURL)
	if err != nil {
		r.logger.Warn("detail page fetch failed", zap.String("url", pageURL), zap.Error(err))
		return "", fmt.Errorf("%w: detail page unreachable", books.ErrLinkNotFound)
	}
	if page.StatusCode >= 500 {
		r.logger.Warn("detail page returned server error",
			zap.String("url", pageURL), zap.Int("status", page.StatusCode))
		return "", fmt.Errorf("%w: detail page returned status %d", books.ErrLinkNotFound, page.StatusCode)
	}

	patterns := []func(*goquery.Document) string{
		findFileExtensionAnchor,
		findDownloadConventionAnchor,
		findDownloadClassAnchor,
		findExactLabelAnchor,
	}
	for _, pattern := range patterns {
		if href := pattern(page.Doc); href != "" {
			return r.absolute(href), nil
		}
	}
	return "", fmt.Errorf("%w: no anchor matched on %s", books.ErrLinkNotFound, pageURL)
}

// absolute prefixes site-relative paths with the source origin.
func (r *Resolver) absolute(href string) string {
	if strings.HasPrefix(href, "/") {
		return r.origin + href
	}
	return href
}

func findFileExtensionAnchor(doc *goquery.Document) string {
	return firstAnchor(doc, func(href, _ string) bool {
		lower := strings.ToLower(href)
		for _, ext := range fileExtensions {
			if strings.HasSuffix(lower, ext) {
				return true
			}
		}
		return false
	})
}

func findDownloadConventionAnchor(doc *goquery.Document) string {
	return firstAnchor(doc, func(href, text string) bool {
		return strings.Contains(strings.ToLower(href), "download") ||
			strings.Contains(strings.ToLower(text), "download")
	})
}

func findDownloadClassAnchor(doc *goquery.Document) string {
	href, _ := doc.Find("a.download-link, a.download-btn").First().Attr("href")
	return href
}

func findExactLabelAnchor(doc *goquery.Document) string {
	return firstAnchor(doc, func(_, text string) bool {
		trimmed := strings.TrimSpace(text)
		for _, label := range exactLabels {
			if trimmed == label {
				return true
			}
		}
		return false
	})
}

// firstAnchor returns the href of the first anchor, in document order,
// accepted by the match function.
func firstAnchor(doc *goquery.Document, match func(href, text string) bool) string {
	found := ""
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return true
		}
		if match(href, s.Text()) {
			found = href
			return false
		}
		return true
	})
	return found
}
