package source

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/arct1cx/bookfetch/internal/books"
)

// Aggregator runs the configured adapters strictly in order, returning the
// first non-empty result list. A failing adapter is treated as "found
// nothing" unless it is the last in the chain, whose failure surfaces to the
// caller.
type Aggregator struct {
	adapters []Adapter
	logger   *zap.Logger
}

// NewAggregator builds an Aggregator over the ordered adapter chain.
func NewAggregator(logger *zap.Logger, adapters ...Adapter) *Aggregator {
	return &Aggregator{adapters: adapters, logger: logger}
}

// Search normalizes the query and walks the adapter chain sequentially.
// Candidates from one adapter never interleave with another's; the winning
// adapter's full list is returned in document order.
func (g *Aggregator) Search(ctx context.Context, query string) ([]books.Candidate, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, fmt.Errorf("%w: empty query", books.ErrInvalidInput)
	}

	for i, adapter := range g.adapters {
		candidates, err := adapter.Search(ctx, q)
		if err != nil {
			if i == len(g.adapters)-1 {
				return nil, fmt.Errorf("%s: %w", adapter.Name(), err)
			}
			g.logger.Warn("source adapter failed, falling back",
				zap.String("source", adapter.Name()),
				zap.Error(err))
			continue
		}
		if len(candidates) > 0 {
			g.logger.Info("search resolved",
				zap.String("source", adapter.Name()),
				zap.String("query", q),
				zap.Int("candidates", len(candidates)))
			return candidates, nil
		}
		g.logger.Debug("source adapter found nothing",
			zap.String("source", adapter.Name()),
			zap.String("query", q))
	}
	return []books.Candidate{}, nil
}
