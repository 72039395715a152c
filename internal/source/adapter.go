// Package source implements the external book sources and the aggregation
// pipeline that normalizes their HTML into uniform candidates.
package source

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/arct1cx/bookfetch/internal/books"
)

// Adapter is one external book source.
type Adapter interface {
	Name() string
	Search(ctx context.Context, query string) ([]books.Candidate, error)
}

// classifyFetchError maps a transport failure onto the typed taxonomy.
func classifyFetchError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", books.ErrSourceTimeout, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", books.ErrSourceTimeout, err)
	}
	return fmt.Errorf("%w: %v", books.ErrSourceUnavailable, err)
}
