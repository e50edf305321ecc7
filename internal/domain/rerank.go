package domain

import "context"

// RerankResult is one scored document, addressed by its position in the
// input slice.
type RerankResult struct {
	Index int
	Score float64
}

// Reranker scores documents against a query with a cross-encoder style model.
// Implementations may return fewer than topK results.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error)
}
