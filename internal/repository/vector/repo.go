package vector

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dirdex/internal/db"
	"github.com/kailas-cloud/dirdex/internal/domain"
	"github.com/kailas-cloud/dirdex/internal/domain/directory"
	"github.com/kailas-cloud/dirdex/internal/domain/search/filter"
	"github.com/kailas-cloud/dirdex/internal/domain/search/result"
)

// DefaultProjectShare is the share of the limit given to projects when both
// kinds are searched.
const DefaultProjectShare = 0.3

// store is the consumer interface for vector search (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Config locates the embedding index.
type Config struct {
	IndexName string
	KeyPrefix string // prefix of embedding hash keys, stripped from hit ids
}

// Options for one similarity search.
type Options struct {
	Threshold    float64 // hits must score strictly above it
	Limit        int
	Kinds        []directory.Kind // empty means both
	ProjectShare float64          // 0 means DefaultProjectShare
}

// Repo runs KNN queries over stored embeddings. It keeps no mutable state.
type Repo struct {
	store    store
	cfg      Config
	embedder domain.Embedder
	logger   *zap.Logger
}

// New creates a vector repository. embedder turns query text into vectors
// for SearchText and is expected to carry the query instruction.
func New(s store, cfg Config, embedder domain.Embedder, logger *zap.Logger) *Repo {
	return &Repo{store: s, cfg: cfg, embedder: embedder, logger: logger}
}

// SearchText embeds text and runs SimilaritySearch. Embedding failures
// degrade to an empty result.
func (r *Repo) SearchText(ctx context.Context, text string, opts Options) ([]result.Hit, error) {
	if strings.TrimSpace(text) == "" {
		return []result.Hit{}, nil
	}
	emb, err := r.embedder.Embed(ctx, text)
	if err != nil {
		r.logger.Warn("query embedding failed, skipping vector search", zap.Error(err))
		return []result.Hit{}, nil
	}
	if len(emb.Embedding) == 0 {
		return []result.Hit{}, nil
	}
	return r.SimilaritySearch(ctx, emb.Embedding, opts)
}

// SimilaritySearch returns hits with cosine similarity above the threshold,
// best first. When both kinds are requested each kind gets its own KNN query
// and the limit is split between them. A failing kind query is logged and
// skipped; the error is returned only when every query failed.
func (r *Repo) SimilaritySearch(ctx context.Context, vec []float32, opts Options) ([]result.Hit, error) {
	if len(vec) == 0 || opts.Limit <= 0 {
		return []result.Hit{}, nil
	}

	plan := splitLimit(opts)
	hits := make([]result.Hit, 0, opts.Limit)
	var failures []error
	for _, p := range plan {
		kindHits, err := r.searchKind(ctx, vec, p.kind, p.k, opts.Threshold)
		if err != nil {
			r.logger.Warn("vector search failed", zap.String("kind", string(p.kind)), zap.Error(err))
			failures = append(failures, err)
			continue
		}
		hits = append(hits, kindHits...)
	}
	if len(plan) > 0 && len(failures) == len(plan) {
		return []result.Hit{}, failures[0]
	}

	slices.SortFunc(hits, func(a, b result.Hit) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}
	return hits, nil
}

type kindLimit struct {
	kind directory.Kind
	k    int
}

func splitLimit(opts Options) []kindLimit {
	kinds := opts.Kinds
	if len(kinds) == 0 {
		kinds = []directory.Kind{directory.KindProfile, directory.KindProject}
	}
	if len(kinds) == 1 {
		return []kindLimit{{kinds[0], opts.Limit}}
	}

	share := opts.ProjectShare
	if share <= 0 || share >= 1 {
		share = DefaultProjectShare
	}
	profiles := int(math.Ceil((1 - share) * float64(opts.Limit)))
	projects := opts.Limit - profiles

	plan := []kindLimit{{directory.KindProfile, profiles}}
	if projects > 0 {
		plan = append(plan, kindLimit{directory.KindProject, projects})
	}
	return plan
}

func (r *Repo) searchKind(
	ctx context.Context, vec []float32, kind directory.Kind, k int, threshold float64,
) ([]result.Hit, error) {
	cond, err := filter.NewTagIn("kind", string(kind))
	if err != nil {
		return nil, fmt.Errorf("kind filter: %w", err)
	}
	expr, err := filter.NewExpression([]filter.Condition{cond}, nil)
	if err != nil {
		return nil, fmt.Errorf("kind filter: %w", err)
	}

	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.cfg.IndexName,
		VectorField:  "vector",
		Filters:      expr,
		Vector:       vec,
		K:            k,
		ReturnFields: []string{"kind", "preview"},
	})
	if err != nil {
		return nil, fmt.Errorf("search knn %s: %w", kind, err)
	}
	return parseHits(sr, r.cfg.KeyPrefix, threshold), nil
}

func parseHits(sr *db.SearchResult, prefix string, threshold float64) []result.Hit {
	if sr == nil {
		return nil
	}
	hits := make([]result.Hit, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		if e.Score <= threshold {
			continue
		}
		hits = append(hits, result.Hit{
			ID:      strings.TrimPrefix(e.Key, prefix),
			Score:   e.Score,
			Preview: e.Fields["preview"],
		})
	}
	return hits
}
