package keyword

import (
	"cmp"
	"math"
	"slices"
)

// Options tune a Search call.
type Options struct {
	// TopK caps the number of hits; zero or negative means unlimited.
	TopK int
	// MinScore drops hits scoring at or below it.
	MinScore float64
	// Accept, when set, filters document ids before ranking.
	Accept func(id string) bool
}

// Hit is a scored document.
type Hit struct {
	ID      string
	Score   float64
	Content string
}

// Search scores every document sharing at least one term with query.
//
// Each distinct query term contributes
// idf * tf*(K1+1) / (tf + K1*(1 - B + B*docLen/avgDocLen)). Results are sorted
// by score descending with ties broken by id. A query without usable tokens,
// or an empty index, yields no hits.
func (ix *Index) Search(query string, opts Options) []Hit {
	terms := distinct(Tokenize(query))
	if len(terms) == 0 {
		return []Hit{}
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	n := len(ix.docs)
	if n == 0 {
		return []Hit{}
	}

	scores := make(map[uint32]float64)
	for _, term := range terms {
		bm, ok := ix.postings[term]
		if !ok {
			continue
		}
		idf := inverseDocFrequency(n, int(bm.GetCardinality()))
		counts := ix.tf[term]

		it := bm.Iterator()
		for it.HasNext() {
			ord := it.Next()
			tf := float64(counts[ord])
			e := ix.docs[ix.byOrd[ord]]
			scores[ord] += idf * termWeight(tf, float64(e.doc.TokenCount), ix.avgDocLen)
		}
	}

	hits := make([]Hit, 0, len(scores))
	for ord, score := range scores {
		if score <= opts.MinScore {
			continue
		}
		id := ix.byOrd[ord]
		if opts.Accept != nil && !opts.Accept(id) {
			continue
		}
		hits = append(hits, Hit{ID: id, Score: score, Content: ix.docs[id].doc.Content})
	}

	slices.SortFunc(hits, func(a, b Hit) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if opts.TopK > 0 && len(hits) > opts.TopK {
		hits = hits[:opts.TopK]
	}
	return hits
}

// inverseDocFrequency uses the non-negative BM25 idf so that terms present in
// most documents still add a small positive weight.
func inverseDocFrequency(n, df int) float64 {
	return math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
}

func termWeight(tf, docLen, avgDocLen float64) float64 {
	lengthNorm := 1.0
	if avgDocLen > 0 {
		lengthNorm = 1 - B + B*docLen/avgDocLen
	}
	return tf * (K1 + 1) / (tf + K1*lengthNorm)
}
