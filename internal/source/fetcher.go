package source

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// Page is one fetched and parsed HTML page.
type Page struct {
	StatusCode int
	Doc        *goquery.Document
}

// PageFetcher retrieves a URL and returns the parsed document. A non-5xx
// status is "page retrieved, possibly empty"; implementations surface it via
// StatusCode rather than an error so callers decide what counts as failure.
type PageFetcher interface {
	FetchPage(ctx context.Context, rawURL string) (Page, error)
}

// FetcherConfig tunes the colly-backed page fetcher.
type FetcherConfig struct {
	UserAgent string
	Timeout   time.Duration
	Referer   string
}

// CollyPageFetcher implements PageFetcher using the Colly collector.
type CollyPageFetcher struct {
	baseCollector *colly.Collector
	politeness    *Politeness
	referer       string
	logger        *zap.Logger
}

// NewCollyPageFetcher constructs a configured Colly-based PageFetcher.
// Every fetch waits on the politeness limiter before hitting the network.
func NewCollyPageFetcher(cfg FetcherConfig, politeness *Politeness, logger *zap.Logger) *CollyPageFetcher {
	base := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
	)
	base.AllowURLRevisit = true
	base.ParseHTTPErrorResponse = true
	base.SetRequestTimeout(cfg.Timeout)
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ForceAttemptHTTP2:     true,
	})

	return &CollyPageFetcher{
		baseCollector: base,
		politeness:    politeness,
		referer:       cfg.Referer,
		logger:        logger,
	}
}

// FetchPage retrieves and parses a single page.
func (f *CollyPageFetcher) FetchPage(ctx context.Context, rawURL string) (Page, error) {
	if f.politeness != nil {
		if err := f.politeness.Wait(ctx, rawURL); err != nil {
			return Page{}, err
		}
	}

	collector := f.baseCollector.Clone()
	resultCh := make(chan pageResult, 1)
	var once sync.Once
	send := func(res pageResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.5")
		if f.referer != "" {
			r.Headers.Set("Referer", f.referer)
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if err != nil {
			send(pageResult{err: err})
			return
		}
		send(pageResult{page: Page{StatusCode: r.StatusCode, Doc: doc}})
	})

	collector.OnError(func(r *colly.Response, err error) {
		// ParseHTTPErrorResponse routes HTTP error statuses through
		// OnResponse; reaching here means the transport itself failed.
		if err == nil {
			err = errors.New("unknown colly error")
		}
		send(pageResult{err: err})
	})

	if err := collector.Visit(rawURL); err != nil {
		return Page{}, err
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return Page{}, err
		}
		if res.err != nil {
			f.logger.Debug("page fetch failed", zap.String("url", rawURL), zap.Error(res.err))
		}
		return res.page, res.err
	default:
		return Page{}, errors.New("fetch produced no result")
	}
}

type pageResult struct {
	page Page
	err  error
}
