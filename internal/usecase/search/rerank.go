package search

import (
	"cmp"
	"slices"

	"github.com/kailas-cloud/dirdex/internal/domain"
	"github.com/kailas-cloud/dirdex/internal/domain/search/result"
)

// applyRerank reorders results by reranker output. Ranked entries address
// results by position; out-of-range and repeated positions are ignored.
// Results the reranker did not return keep their relative order after the
// reranked ones.
func applyRerank(results []result.Result, ranked []domain.RerankResult) []result.Result {
	valid := make([]domain.RerankResult, 0, len(ranked))
	used := make([]bool, len(results))
	for _, r := range ranked {
		if r.Index < 0 || r.Index >= len(results) || used[r.Index] {
			continue
		}
		used[r.Index] = true
		valid = append(valid, r)
	}
	if len(valid) == 0 {
		return results
	}

	slices.SortStableFunc(valid, func(a, b domain.RerankResult) int {
		return cmp.Compare(b.Score, a.Score)
	})

	out := make([]result.Result, 0, len(results))
	for _, r := range valid {
		orig := results[r.Index]
		out = append(out, result.NewReranked(orig.Record(), r.Score, orig.Score(), orig.Sources()))
	}
	for i, res := range results {
		if !used[i] {
			out = append(out, res)
		}
	}
	return out
}

func rerankDocuments(results []result.Result) []string {
	docs := make([]string, len(results))
	for i, r := range results {
		docs[i] = r.Record().RerankText()
	}
	return docs
}
