package chi

import (
	"fmt"
	"net/http"

	"github.com/oapi-codegen/runtime"

	"github.com/kailas-cloud/dirdex/internal/domain/search/order"
	"github.com/kailas-cloud/dirdex/internal/domain/search/request"
)

// searchParams are the query parameters of GET /v1/search. Absent
// parameters stay nil.
type searchParams struct {
	Q               *string
	Page            *int
	Limit           *int
	Sort            *string
	MaxResults      *int
	IncludeProjects *bool
	Rerank          *bool
	WeightBM25      *float64
	WeightVector    *float64
	WeightFilter    *float64
	VectorThreshold *float64
	BM25MinScore    *float64
}

func bindQuery(r *http.Request, name string, dest any) error {
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), dest); err != nil {
		return fmt.Errorf("invalid format for parameter %s: %w", name, err)
	}
	return nil
}

func bindSearchParams(r *http.Request) (searchParams, error) {
	var p searchParams
	bindings := []struct {
		name string
		dest any
	}{
		{"q", &p.Q},
		{"page", &p.Page},
		{"limit", &p.Limit},
		{"sort", &p.Sort},
		{"max_results", &p.MaxResults},
		{"include_projects", &p.IncludeProjects},
		{"rerank", &p.Rerank},
		{"w_bm25", &p.WeightBM25},
		{"w_vector", &p.WeightVector},
		{"w_filter", &p.WeightFilter},
		{"vector_threshold", &p.VectorThreshold},
		{"bm25_min_score", &p.BM25MinScore},
	}
	for _, b := range bindings {
		if err := bindQuery(r, b.name, b.dest); err != nil {
			return searchParams{}, err
		}
	}
	return p, nil
}

// toRequest validates the parameters. A partially given weight or threshold
// set is completed from defaults.
func (p searchParams) toRequest(defaults SearchDefaults) (request.Request, error) {
	opts := request.Options{
		Page:            deref(p.Page),
		Limit:           deref(p.Limit),
		Sort:            order.Order(deref(p.Sort)),
		MaxResults:      deref(p.MaxResults),
		IncludeProjects: deref(p.IncludeProjects),
		EnableReranking: p.Rerank,
	}
	if p.Page != nil && *p.Page < 1 {
		// request.New treats 0 as "unset"; an explicit page=0 is a caller error.
		opts.Page = -1
	}

	if p.WeightBM25 != nil || p.WeightVector != nil || p.WeightFilter != nil {
		w := defaults.Weights
		setIf(&w.BM25, p.WeightBM25)
		setIf(&w.Vector, p.WeightVector)
		setIf(&w.Filter, p.WeightFilter)
		opts.Weights = &w
	}
	if p.VectorThreshold != nil || p.BM25MinScore != nil {
		t := defaults.Thresholds
		setIf(&t.Vector, p.VectorThreshold)
		setIf(&t.BM25MinScore, p.BM25MinScore)
		opts.Thresholds = &t
	}

	return request.New(deref(p.Q), opts)
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func setIf(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}
