// Package proxy streams remote book files back to callers under strict
// size and time bounds.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arct1cx/bookfetch/internal/books"
)

// Resolver locates direct download URLs behind detail pages.
type Resolver interface {
	IsDetailPage(rawURL string) bool
	Resolve(ctx context.Context, pageURL string) (string, error)
}

// Config bounds one retrieval.
type Config struct {
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
	Referer   string
}

// Outcome is one successfully started retrieval. Ownership of Body passes
// to the caller, which must fully consume or Close it; Close releases the
// upstream connection.
type Outcome struct {
	MediaType books.MediaType
	SizeHint  int64 // -1 when the upstream did not declare a length
	Body      io.ReadCloser
}

// Proxy resolves references and streams the underlying files.
type Proxy struct {
	client   *http.Client
	resolver Resolver
	cfg      Config
	logger   *zap.Logger
}

// New builds a Proxy. The HTTP client performs standard certificate
// validation; a TLS failure surfaces as a source-unavailable error rather
// than being silently downgraded.
func New(resolver Resolver, cfg Config, logger *zap.Logger) *Proxy {
	return &Proxy{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        16,
				IdleConnTimeout:     30 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		resolver: resolver,
		cfg:      cfg,
		logger:   logger,
	}
}

// Fetch resolves the reference and issues the streamed GET. The returned
// outcome's body enforces the byte ceiling incrementally and reports
// post-header transport failures as stream interruptions.
func (p *Proxy) Fetch(ctx context.Context, reference string) (*Outcome, error) {
	ref := strings.TrimSpace(reference)
	if ref == "" {
		return nil, fmt.Errorf("%w: empty url", books.ErrInvalidInput)
	}

	directURL := ref
	if p.resolver.IsDetailPage(ref) {
		resolved, err := p.resolver.Resolve(ctx, ref)
		if err != nil {
			return nil, err
		}
		p.logger.Info("resolved download link", zap.String("page", ref), zap.String("direct", resolved))
		directURL = resolved
	}

	if !strings.HasPrefix(directURL, "http://") && !strings.HasPrefix(directURL, "https://") {
		return nil, fmt.Errorf("%w: unsupported url scheme", books.ErrInvalidInput)
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, directURL, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", books.ErrInvalidInput, err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept", "application/epub+zip,application/pdf,application/octet-stream,*/*")
	if p.cfg.Referer != "" {
		req.Header.Set("Referer", p.cfg.Referer)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		cancel()
		return nil, classifyTransportError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		status := resp.StatusCode
		_ = resp.Body.Close()
		cancel()
		return nil, &books.UpstreamHTTPError{StatusCode: status}
	}

	return &Outcome{
		MediaType: books.ClassifyMediaType(resp.Header.Get("Content-Type")),
		SizeHint:  resp.ContentLength,
		Body: &cappedBody{
			rc:        resp.Body,
			cancel:    cancel,
			remaining: p.cfg.MaxBytes,
		},
	}, nil
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", books.ErrSourceTimeout, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", books.ErrSourceTimeout, err)
	}
	return fmt.Errorf("%w: %v", books.ErrSourceUnavailable, err)
}

// cappedBody enforces the byte ceiling incrementally and releases the
// request context when closed or exhausted.
type cappedBody struct {
	rc        io.ReadCloser
	cancel    context.CancelFunc
	remaining int64
	probe     [1]byte
}

func (b *cappedBody) Read(p []byte) (int, error) {
	if b.remaining <= 0 {
		// The ceiling is spent. Probe for one more byte so a stream that
		// ends exactly at the limit still terminates cleanly.
		n, err := b.rc.Read(b.probe[:])
		if n > 0 {
			return 0, books.ErrSizeLimitExceeded
		}
		if errors.Is(err, io.EOF) {
			return 0, io.EOF
		}
		if err != nil {
			return 0, fmt.Errorf("%w: %v", books.ErrStreamInterrupted, err)
		}
		return 0, books.ErrSizeLimitExceeded
	}

	if int64(len(p)) > b.remaining {
		p = p[:b.remaining]
	}
	n, err := b.rc.Read(p)
	b.remaining -= int64(n)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("%w: %v", books.ErrStreamInterrupted, err)
	}
	return n, err
}

// Close releases the upstream connection without draining it.
func (b *cappedBody) Close() error {
	err := b.rc.Close()
	b.cancel()
	if err != nil {
		return fmt.Errorf("close upstream body: %w", err)
	}
	return nil
}
