package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/arct1cx/bookfetch/internal/books"
	"github.com/arct1cx/bookfetch/internal/metrics"
	"github.com/arct1cx/bookfetch/internal/ratelimit"
)

// searchResult is one candidate as serialized to the client, with a
// positional id for the frontend list.
type searchResult struct {
	ID int `json:"id"`
	books.Candidate
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		s.writeError(w, http.StatusBadRequest, "Query parameter is required",
			"Provide a non-empty q parameter")
		return
	}

	identifier := clientIdentifier(r)
	if !s.searchLimiter.Allow(identifier) {
		s.rateLimited(w, "search", identifier, s.searchLimiter)
		return
	}

	s.logger.Info("searching for books", zap.String("query", query), zap.String("client", identifier))

	candidates, err := s.searcher.Search(r.Context(), query)
	if err != nil {
		s.searchError(w, query, err)
		return
	}

	winner := "none"
	if len(candidates) > 0 {
		winner = candidates[0].Source
	}
	metrics.ObserveSearch(winner, "ok", len(candidates))

	results := make([]searchResult, 0, len(candidates))
	for i, c := range candidates {
		results = append(results, searchResult{ID: i + 1, Candidate: c})
	}
	s.writeJSON(w, http.StatusOK, results)
}

func (s *Server) searchError(w http.ResponseWriter, query string, err error) {
	s.logger.Error("search failed", zap.String("query", query), zap.Error(err))
	switch {
	case errors.Is(err, books.ErrInvalidInput):
		metrics.ObserveSearch("none", "invalid", 0)
		s.writeError(w, http.StatusBadRequest, "Invalid query",
			"The search query could not be processed")
	case errors.Is(err, books.ErrSourceTimeout):
		metrics.ObserveSearch("none", "timeout", 0)
		s.writeError(w, http.StatusGatewayTimeout, "Search timeout",
			"The search request took too long. Please try again.")
	case errors.Is(err, books.ErrSourceUnavailable):
		metrics.ObserveSearch("none", "unavailable", 0)
		s.writeError(w, http.StatusBadGateway, "Search service unavailable",
			"The book sources are currently unavailable. Please try again later.")
	default:
		metrics.ObserveSearch("none", "error", 0)
		s.writeError(w, http.StatusInternalServerError, "Search failed",
			"Unable to search for books at this time. Please try again later.")
	}
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	reference := strings.TrimSpace(r.URL.Query().Get("url"))
	if reference == "" {
		s.writeError(w, http.StatusBadRequest, "URL parameter is required",
			"Provide a non-empty url parameter")
		return
	}

	identifier := clientIdentifier(r)
	if !s.downloadLimiter.Allow(identifier) {
		s.rateLimited(w, "download", identifier, s.downloadLimiter)
		return
	}

	s.logger.Info("processing download", zap.String("url", reference), zap.String("client", identifier))

	outcome, err := s.retriever.Fetch(r.Context(), reference)
	if err != nil {
		s.downloadError(w, reference, err)
		return
	}
	defer func() {
		if cerr := outcome.Body.Close(); cerr != nil {
			s.logger.Debug("close download body", zap.Error(cerr))
		}
	}()

	w.Header().Set("Content-Type", outcome.MediaType.MIME())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "book"+outcome.MediaType.Extension()))
	if outcome.SizeHint > 0 {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", outcome.SizeHint))
	}

	n, err := io.Copy(w, outcome.Body)
	if err != nil {
		// Headers are gone; all we can do is abandon the stream and account
		// for it.
		s.logger.Error("download stream aborted",
			zap.String("url", reference),
			zap.Int64("bytes_streamed", n),
			zap.Error(err))
		metrics.ObserveDownload(streamAbortStatus(err), n)
		return
	}
	metrics.ObserveDownload("ok", n)
}

func streamAbortStatus(err error) string {
	switch {
	case errors.Is(err, books.ErrSizeLimitExceeded):
		return "size_limit"
	case errors.Is(err, books.ErrStreamInterrupted):
		return "interrupted"
	default:
		return "aborted"
	}
}

func (s *Server) downloadError(w http.ResponseWriter, reference string, err error) {
	s.logger.Error("download failed", zap.String("url", reference), zap.Error(err))

	var upstream *books.UpstreamHTTPError
	switch {
	case errors.Is(err, books.ErrInvalidInput):
		metrics.ObserveDownload("invalid", 0)
		s.writeError(w, http.StatusBadRequest, "Invalid URL",
			"The provided URL is not valid")
	case errors.Is(err, books.ErrLinkNotFound):
		metrics.ObserveDownload("link_not_found", 0)
		s.writeError(w, http.StatusNotFound, "Download link not found",
			"Could not find a download link on this page. The book might not be available for download.")
	case errors.Is(err, books.ErrSourceTimeout):
		metrics.ObserveDownload("timeout", 0)
		s.writeError(w, http.StatusGatewayTimeout, "Download timeout",
			"The download request took too long. Please try again.")
	case errors.As(err, &upstream):
		s.upstreamError(w, upstream)
	case errors.Is(err, books.ErrSourceUnavailable):
		metrics.ObserveDownload("unavailable", 0)
		s.writeError(w, http.StatusBadGateway, "Download failed",
			"The file source is currently unavailable. Please try again later.")
	default:
		metrics.ObserveDownload("error", 0)
		s.writeError(w, http.StatusInternalServerError, "Download failed",
			"Unable to download the requested file. Please try again later.")
	}
}

func (s *Server) upstreamError(w http.ResponseWriter, upstream *books.UpstreamHTTPError) {
	switch upstream.StatusCode {
	case http.StatusNotFound:
		metrics.ObserveDownload("upstream_404", 0)
		s.writeError(w, http.StatusNotFound, "File not found",
			"The requested file could not be found.")
	case http.StatusForbidden:
		metrics.ObserveDownload("upstream_403", 0)
		s.writeError(w, http.StatusForbidden, "Access denied",
			"Access to this file is restricted.")
	default:
		metrics.ObserveDownload("upstream_error", 0)
		s.writeError(w, http.StatusBadGateway, "Download failed",
			"The file source returned an error. Please try again later.")
	}
}

func (s *Server) rateLimited(w http.ResponseWriter, endpoint, identifier string, limiter *ratelimit.Limiter) {
	metrics.ObserveRateLimited(endpoint)
	wait := limiter.ResetTime(identifier).Sub(s.clock.Now())
	rl := &books.RateLimitedError{RetryAfter: wait}
	secs := rl.RetryAfterSeconds()

	s.logger.Warn("rate limit exceeded",
		zap.String("endpoint", endpoint),
		zap.String("client", identifier),
		zap.Int("retry_after_s", secs))

	w.Header().Set("Retry-After", fmt.Sprintf("%d", secs))
	s.writeJSON(w, http.StatusTooManyRequests, map[string]any{
		"error":      "Rate limit exceeded",
		"message":    fmt.Sprintf("Too many %s requests. Please wait %d seconds before trying again.", endpoint, secs),
		"retryAfter": secs,
	})
}
