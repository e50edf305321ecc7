package search

import (
	"cmp"
	"slices"
	"strings"

	"github.com/kailas-cloud/dirdex/internal/domain/search/request"
	"github.com/kailas-cloud/dirdex/internal/domain/search/result"
)

// candidate is a fused, not yet hydrated, search hit.
type candidate struct {
	id      string
	score   float64
	method  result.Method
	sources result.Sources

	inBM25   bool
	inVector bool
}

// fuse merges the three retrieval sources into one ranking:
// score = bm25*wBM25 + vector*wVector, plus wFilter when the document
// matched the structured filters. Documents found only by the filter lookup
// score wFilter alone. The output is sorted by score descending, ties by id,
// and cut to limit.
func fuse(bm25, vec []result.Hit, filtered []string, w request.Weights, limit int) []candidate {
	merged := make(map[string]*candidate, len(bm25)+len(vec))
	get := func(id string) *candidate {
		c, ok := merged[id]
		if !ok {
			c = &candidate{id: id}
			merged[id] = c
		}
		return c
	}

	seen := make(map[string]bool, len(bm25))
	for _, h := range bm25 {
		if seen[h.ID] {
			continue
		}
		seen[h.ID] = true
		c := get(h.ID)
		c.sources.BM25 = h.Score
		c.inBM25 = true
	}
	clear(seen)
	for _, h := range vec {
		if seen[h.ID] {
			continue
		}
		seen[h.ID] = true
		c := get(h.ID)
		c.sources.Vector = h.Score
		c.inVector = true
	}
	for _, id := range filtered {
		get(id).sources.FilterMatched = true
	}

	out := make([]candidate, 0, len(merged))
	for _, c := range merged {
		c.score = c.sources.BM25*w.BM25 + c.sources.Vector*w.Vector
		if c.sources.FilterMatched {
			c.score += w.Filter
		}
		c.method = provenance(c.inBM25, c.inVector)
		out = append(out, *c)
	}

	slices.SortFunc(out, func(a, b candidate) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return strings.Compare(a.id, b.id)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// provenance names the sources behind a candidate.
func provenance(inBM25, inVector bool) result.Method {
	switch {
	case inBM25 && inVector:
		return result.MethodBM25Vector
	case inBM25:
		return result.MethodBM25
	case inVector:
		return result.MethodVector
	default:
		return result.MethodFilter
	}
}
