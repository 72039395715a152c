package proxy

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arct1cx/bookfetch/internal/books"
)

type fakeResolver struct {
	detail       bool
	resolved     string
	err          error
	resolveCalls int
}

func (f *fakeResolver) IsDetailPage(string) bool { return f.detail }

func (f *fakeResolver) Resolve(context.Context, string) (string, error) {
	f.resolveCalls++
	return f.resolved, f.err
}

func newProxy(resolver Resolver, maxBytes int64) *Proxy {
	return New(resolver, Config{
		Timeout:   5 * time.Second,
		MaxBytes:  maxBytes,
		UserAgent: "test-agent",
		Referer:   "https://oceanofpdf.com/",
	}, zap.NewNop())
}

func TestProxy_StreamsEpub(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte("e"), 128)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/epub+zip")
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	p := newProxy(&fakeResolver{}, 1<<20)
	outcome, err := p.Fetch(context.Background(), srv.URL+"/book.epub")
	require.NoError(t, err)
	defer outcome.Body.Close()

	require.Equal(t, books.MediaEpub, outcome.MediaType)
	require.Equal(t, int64(len(payload)), outcome.SizeHint)

	got, err := io.ReadAll(outcome.Body)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestProxy_ClassifiesPdf(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-"))
	}))
	defer srv.Close()

	p := newProxy(&fakeResolver{}, 1<<20)
	outcome, err := p.Fetch(context.Background(), srv.URL+"/f.pdf")
	require.NoError(t, err)
	defer outcome.Body.Close()

	require.Equal(t, books.MediaPdf, outcome.MediaType)
	require.Equal(t, ".pdf", outcome.MediaType.Extension())
}

func TestProxy_AmbiguousContentTypeDefaultsToEpub(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("bytes"))
	}))
	defer srv.Close()

	p := newProxy(&fakeResolver{}, 1<<20)
	outcome, err := p.Fetch(context.Background(), srv.URL+"/f")
	require.NoError(t, err)
	defer outcome.Body.Close()

	require.Equal(t, books.MediaEpub, outcome.MediaType)
}

func TestProxy_UpstreamStatusErrors(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusForbidden, http.StatusNotFound} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))

		p := newProxy(&fakeResolver{}, 1<<20)
		_, err := p.Fetch(context.Background(), srv.URL+"/f")

		var upstream *books.UpstreamHTTPError
		require.ErrorAs(t, err, &upstream)
		require.Equal(t, status, upstream.StatusCode)
		srv.Close()
	}
}

func TestProxy_SizeCeilingAbortsMidStream(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("x"), 200))
	}))
	defer srv.Close()

	p := newProxy(&fakeResolver{}, 64)
	outcome, err := p.Fetch(context.Background(), srv.URL+"/big")
	require.NoError(t, err)
	defer outcome.Body.Close()

	got, err := io.ReadAll(outcome.Body)
	require.ErrorIs(t, err, books.ErrSizeLimitExceeded)
	require.LessOrEqual(t, len(got), 64, "never deliver more than the ceiling")
}

func TestProxy_StreamEndingExactlyAtCeilingSucceeds(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("x"), 64))
	}))
	defer srv.Close()

	p := newProxy(&fakeResolver{}, 64)
	outcome, err := p.Fetch(context.Background(), srv.URL+"/fits")
	require.NoError(t, err)
	defer outcome.Body.Close()

	got, err := io.ReadAll(outcome.Body)
	require.NoError(t, err)
	require.Len(t, got, 64)
}

func TestProxy_ResolvesDetailPageFirst(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/epub+zip")
		_, _ = w.Write([]byte("book"))
	}))
	defer srv.Close()

	resolver := &fakeResolver{detail: true, resolved: srv.URL + "/direct.epub"}
	p := newProxy(resolver, 1<<20)

	outcome, err := p.Fetch(context.Background(), "https://oceanofpdf.com/some-book")
	require.NoError(t, err)
	defer outcome.Body.Close()

	require.Equal(t, 1, resolver.resolveCalls)
	require.Equal(t, books.MediaEpub, outcome.MediaType)
}

func TestProxy_LinkNotFoundStopsBeforeFileFetch(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	resolver := &fakeResolver{detail: true, err: books.ErrLinkNotFound}
	p := newProxy(resolver, 1<<20)

	_, err := p.Fetch(context.Background(), "https://oceanofpdf.com/some-book")
	require.ErrorIs(t, err, books.ErrLinkNotFound)
	require.Zero(t, hits.Load(), "no further fetch after resolution fails")
}

func TestProxy_RejectsBadReferences(t *testing.T) {
	t.Parallel()

	p := newProxy(&fakeResolver{}, 1<<20)

	_, err := p.Fetch(context.Background(), "   ")
	require.ErrorIs(t, err, books.ErrInvalidInput)

	_, err = p.Fetch(context.Background(), "ftp://example.com/book.epub")
	require.ErrorIs(t, err, books.ErrInvalidInput)
}

func TestProxy_MidStreamFailureIsStreamInterrupted(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Declare more bytes than we send, then abandon the response.
		w.Header().Set("Content-Length", "1000")
		_, _ = w.Write(bytes.Repeat([]byte("x"), 10))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}))
	defer srv.Close()

	p := newProxy(&fakeResolver{}, 1<<20)
	outcome, err := p.Fetch(context.Background(), srv.URL+"/cut")
	require.NoError(t, err, "headers arrive before the failure")
	defer outcome.Body.Close()

	_, err = io.ReadAll(outcome.Body)
	require.Error(t, err)
	require.True(t, errors.Is(err, books.ErrStreamInterrupted), "got: %v", err)
}
