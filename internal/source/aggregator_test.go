package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arct1cx/bookfetch/internal/books"
)

type stubAdapter struct {
	name       string
	candidates []books.Candidate
	err        error
	calls      int
}

func (s *stubAdapter) Name() string { return s.name }

func (s *stubAdapter) Search(context.Context, string) ([]books.Candidate, error) {
	s.calls++
	return s.candidates, s.err
}

func TestAggregator_RejectsBlankQueryBeforeAnyFetch(t *testing.T) {
	t.Parallel()

	primary := &stubAdapter{name: "primary"}
	agg := NewAggregator(zap.NewNop(), primary)

	_, err := agg.Search(context.Background(), "   \t ")
	require.ErrorIs(t, err, books.ErrInvalidInput)
	require.Zero(t, primary.calls, "no adapter may be consulted for a blank query")
}

func TestAggregator_FirstNonEmptyWins(t *testing.T) {
	t.Parallel()

	primary := &stubAdapter{
		name:       "primary",
		candidates: []books.Candidate{{Title: "Hit", Source: "primary"}},
	}
	secondary := &stubAdapter{name: "secondary"}
	agg := NewAggregator(zap.NewNop(), primary, secondary)

	got, err := agg.Search(context.Background(), "hit")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "primary", got[0].Source)
	require.Zero(t, secondary.calls, "fallback must not run when the primary found results")
}

func TestAggregator_FallsThroughOnEmpty(t *testing.T) {
	t.Parallel()

	primary := &stubAdapter{name: "primary"}
	secondary := &stubAdapter{
		name:       "secondary",
		candidates: []books.Candidate{{Title: "Backup", Source: "secondary"}},
	}
	agg := NewAggregator(zap.NewNop(), primary, secondary)

	got, err := agg.Search(context.Background(), "backup")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "secondary", got[0].Source)
	require.Equal(t, 1, primary.calls)
}

func TestAggregator_SwallowsNonFinalFailures(t *testing.T) {
	t.Parallel()

	primary := &stubAdapter{name: "primary", err: books.ErrSourceUnavailable}
	secondary := &stubAdapter{
		name:       "secondary",
		candidates: []books.Candidate{{Title: "Backup"}},
	}
	agg := NewAggregator(zap.NewNop(), primary, secondary)

	got, err := agg.Search(context.Background(), "anything")
	require.NoError(t, err, "a non-final adapter failure counts as an empty result")
	require.Len(t, got, 1)
}

func TestAggregator_SurfacesFinalFailure(t *testing.T) {
	t.Parallel()

	primary := &stubAdapter{name: "primary"}
	secondary := &stubAdapter{name: "secondary", err: books.ErrSourceTimeout}
	agg := NewAggregator(zap.NewNop(), primary, secondary)

	_, err := agg.Search(context.Background(), "anything")
	require.ErrorIs(t, err, books.ErrSourceTimeout)
}

func TestAggregator_AllEmptyReturnsEmptyList(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(zap.NewNop(), &stubAdapter{name: "a"}, &stubAdapter{name: "b"})

	got, err := agg.Search(context.Background(), "nothing")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)
}
