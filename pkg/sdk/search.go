package dirdex

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/dirdex/internal/domain/search/order"
	"github.com/kailas-cloud/dirdex/internal/domain/search/request"
	"github.com/kailas-cloud/dirdex/internal/domain/search/result"
)

// Search runs a hybrid query. An empty query lists the most recently
// updated records.
func (c *Client) Search(ctx context.Context, query string, opts SearchOptions) (resp SearchResponse, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	req, err := request.New(query, request.Options{
		Page:            opts.Page,
		Limit:           opts.Limit,
		Sort:            order.Order(opts.Sort),
		MaxResults:      opts.MaxResults,
		IncludeProjects: opts.IncludeProjects,
		EnableReranking: opts.Rerank,
	})
	if err != nil {
		return SearchResponse{}, fmt.Errorf("search: %w", err)
	}

	out, err := c.searchSvc.Search(ctx, req)
	if err != nil {
		return SearchResponse{}, fmt.Errorf("search: %w", err)
	}

	resp = SearchResponse{
		Results:    make([]SearchResult, len(out.Results)),
		TotalCount: out.TotalCount,
		Intent:     string(out.ParsedQuery.Intent),
		Fallback:   out.Fallback,
		Took:       out.Timing.Total,
	}
	for i := range out.Results {
		resp.Results[i] = fromInternalResult(&out.Results[i])
	}
	c.obs.searched(resp)
	return resp, nil
}

func fromInternalResult(r *result.Result) SearchResult {
	sr := SearchResult{
		Record: fromInternalRecord(r.Record()),
		Score:  r.Score(),
		Method: string(r.Method()),
	}
	if r.Reranked() {
		sr.Reranked = true
		sr.OriginalScore = r.OriginalScore()
	}
	return sr
}
