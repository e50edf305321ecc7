package search

import (
	"context"

	"github.com/kailas-cloud/dirdex/internal/domain/directory"
	"github.com/kailas-cloud/dirdex/internal/domain/search/order"
	"github.com/kailas-cloud/dirdex/internal/domain/search/query"
	"github.com/kailas-cloud/dirdex/internal/domain/search/result"
	"github.com/kailas-cloud/dirdex/internal/keyword"
	"github.com/kailas-cloud/dirdex/internal/repository/vector"
)

// KeywordSearcher queries the in-memory BM25 index.
type KeywordSearcher interface {
	Search(query string, opts keyword.Options) []keyword.Hit
}

// VectorSearcher embeds text and runs a similarity search.
type VectorSearcher interface {
	SearchText(ctx context.Context, text string, opts vector.Options) ([]result.Hit, error)
}

// Directory reads profile and project records.
type Directory interface {
	GetMany(ctx context.Context, docIDs []string) (map[string]directory.Record, error)
	MatchFilters(ctx context.Context, f directory.Filters, kinds []directory.Kind, limit int) ([]string, error)
	Browse(ctx context.Context, kinds []directory.Kind, sort order.Order, offset, limit int) ([]directory.Record, error)
	Count(ctx context.Context, kinds []directory.Kind) (int, error)
}

// QueryParser turns raw text into a structured query. It never fails.
type QueryParser interface {
	Parse(ctx context.Context, raw string) query.Parsed
}
