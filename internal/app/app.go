// Package app initializes and holds long-lived application services, acting
// as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/arct1cx/bookfetch/internal/api"
	"github.com/arct1cx/bookfetch/internal/clock/system"
	"github.com/arct1cx/bookfetch/internal/config"
	"github.com/arct1cx/bookfetch/internal/logging"
	"github.com/arct1cx/bookfetch/internal/metrics"
	"github.com/arct1cx/bookfetch/internal/proxy"
	"github.com/arct1cx/bookfetch/internal/ratelimit"
	"github.com/arct1cx/bookfetch/internal/resolver"
	"github.com/arct1cx/bookfetch/internal/source"
)

// App holds all the shared, long-lived services for the application. It is
// initialized once at startup; request handlers receive their dependencies
// from here instead of reaching for ambient singletons.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	server *api.Server
}

// New builds the full service graph from configuration. It fails fast if
// any service cannot be constructed.
func New(cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	metrics.Init()

	clk := system.New()
	politeness := source.NewPoliteness(cfg.Sources.PolitenessRPS, cfg.Sources.PolitenessBurst)
	fetcher := source.NewCollyPageFetcher(source.FetcherConfig{
		UserAgent: cfg.Sources.UserAgent,
		Timeout:   cfg.Sources.FetchTimeout(),
		Referer:   cfg.Sources.PrimaryBaseURL + "/",
	}, politeness, logger)

	aggregator := source.NewAggregator(logger,
		source.NewOceanOfPDF(cfg.Sources.PrimaryBaseURL, fetcher, logger),
		source.NewGutenberg(cfg.Sources.SecondaryBaseURL, fetcher, logger),
	)

	linkResolver := resolver.New(cfg.Sources.PrimaryBaseURL, fetcher, logger)
	retriever := proxy.New(linkResolver, proxy.Config{
		Timeout:   cfg.Download.Timeout(),
		MaxBytes:  cfg.Download.MaxBytes,
		UserAgent: cfg.Sources.UserAgent,
		Referer:   cfg.Sources.PrimaryBaseURL + "/",
	}, logger)

	searchLimiter := ratelimit.New(ratelimit.Policy{
		Limit:  cfg.Limits.Search.Requests,
		Window: cfg.Limits.Search.Window(),
	}, clk)
	downloadLimiter := ratelimit.New(ratelimit.Policy{
		Limit:  cfg.Limits.Download.Requests,
		Window: cfg.Limits.Download.Window(),
	}, clk)

	server := api.NewServer(aggregator, retriever, searchLimiter, downloadLimiter, clk, cfg, logger)

	return &App{cfg: cfg, logger: logger, server: server}, nil
}

// Logger returns the shared zap logger instance.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Run serves HTTP until the context is canceled, then shuts down
// gracefully.
func (a *App) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", zap.Int("port", a.cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	a.logger.Info("server stopped")
	return nil
}

// Close flushes any buffered log entries.
func (a *App) Close() {
	_ = a.logger.Sync()
}
