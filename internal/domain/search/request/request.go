package request

import (
	"fmt"
	"math"
	"strings"

	"github.com/kailas-cloud/dirdex/internal/domain"
	"github.com/kailas-cloud/dirdex/internal/domain/search/order"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength    = 1024
	DefaultLimit      = 20
	MaxLimit          = 100
	DefaultMaxResults = 50
	MaxMaxResults     = 200
)

// Weights are the fusion weights.
type Weights struct {
	BM25   float64
	Vector float64
	Filter float64
}

// DefaultWeights returns the stock fusion weights.
func DefaultWeights() Weights {
	return Weights{BM25: 0.4, Vector: 0.4, Filter: 0.2}
}

func (w Weights) validate() error {
	for name, v := range map[string]float64{"bm25": w.BM25, "vector": w.Vector, "filter": w.Filter} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%s weight must be a finite non-negative number", name)
		}
	}
	return nil
}

// Thresholds gate the retrieval stages.
type Thresholds struct {
	// Vector is the minimum cosine similarity for vector hits.
	Vector float64
	// BM25MinScore is the minimum keyword score.
	BM25MinScore float64
}

// DefaultThresholds returns the stock thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{Vector: 0.3, BM25MinScore: 0.1}
}

func (t Thresholds) validate() error {
	if math.IsNaN(t.Vector) || t.Vector < 0 || t.Vector > 1 {
		return fmt.Errorf("vector threshold must be between 0 and 1")
	}
	if math.IsNaN(t.BM25MinScore) || math.IsInf(t.BM25MinScore, 0) || t.BM25MinScore < 0 {
		return fmt.Errorf("bm25 min score must be a finite non-negative number")
	}
	return nil
}

// Options are the caller-tunable search parameters. Nil pointers fall back
// to the service configuration.
type Options struct {
	Page            int
	Limit           int
	Sort            order.Order
	MaxResults      int
	IncludeProjects bool
	Weights         *Weights
	Thresholds      *Thresholds
	EnableReranking *bool
}

// Request is a validated search query.
type Request struct {
	query           string
	page            int
	limit           int
	sort            order.Order
	maxResults      int
	includeProjects bool
	weights         *Weights
	thresholds      *Thresholds
	rerank          *bool
}

// New validates and normalizes search parameters.
// Defaults: page=1, limit=20, sort=relevance, maxResults=50. Limit and
// maxResults are clamped to their maximums. An empty query is allowed and
// means "browse".
func New(query string, opts Options) (Request, error) {
	query = strings.TrimSpace(query)
	if len(query) > MaxQueryLength {
		return Request{}, invalid("query too long (max %d chars)", MaxQueryLength)
	}

	page := opts.Page
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return Request{}, invalid("page must be >= 1")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if page > math.MaxInt/limit {
		return Request{}, invalid("page out of range")
	}

	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if maxResults > MaxMaxResults {
		maxResults = MaxMaxResults
	}

	sort := opts.Sort
	if sort == "" {
		sort = order.Relevance
	}
	if !sort.IsValid() {
		return Request{}, invalid("invalid sort: %q", sort)
	}

	if opts.Weights != nil {
		if err := opts.Weights.validate(); err != nil {
			return Request{}, invalid("%v", err)
		}
	}
	if opts.Thresholds != nil {
		if err := opts.Thresholds.validate(); err != nil {
			return Request{}, invalid("%v", err)
		}
	}

	return Request{
		query:           query,
		page:            page,
		limit:           limit,
		sort:            sort,
		maxResults:      maxResults,
		includeProjects: opts.IncludeProjects,
		weights:         opts.Weights,
		thresholds:      opts.Thresholds,
		rerank:          opts.EnableReranking,
	}, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// Query returns the trimmed query text.
func (r *Request) Query() string { return r.query }

// IsBrowse reports whether the request has no query text.
func (r *Request) IsBrowse() bool { return r.query == "" }

// Page returns the 1-based page number.
func (r *Request) Page() int { return r.page }

// Limit returns the page size.
func (r *Request) Limit() int { return r.limit }

// Offset returns the index of the first result on the page.
func (r *Request) Offset() int { return (r.page - 1) * r.limit }

// Sort returns the requested ordering.
func (r *Request) Sort() order.Order { return r.sort }

// MaxResults returns the candidate budget per retrieval stage.
func (r *Request) MaxResults() int { return r.maxResults }

// IncludeProjects reports whether projects are searched alongside profiles.
func (r *Request) IncludeProjects() bool { return r.includeProjects }

// WeightsOr returns the request weights, or def when none were given.
func (r *Request) WeightsOr(def Weights) Weights {
	if r.weights != nil {
		return *r.weights
	}
	return def
}

// ThresholdsOr returns the request thresholds, or def when none were given.
func (r *Request) ThresholdsOr(def Thresholds) Thresholds {
	if r.thresholds != nil {
		return *r.thresholds
	}
	return def
}

// RerankOr returns the rerank switch, or def when unset.
func (r *Request) RerankOr(def bool) bool {
	if r.rerank != nil {
		return *r.rerank
	}
	return def
}
