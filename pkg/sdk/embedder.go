package dirdex

import "context"

// Embedder converts text to vector embeddings.
// Without one, searches run on keywords and filters only.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult carries the embedding vector and token counts.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Reranker scores documents against a query. Results address documents by
// their position in the input slice.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error)
}

// RerankResult is one scored document.
type RerankResult struct {
	Index int
	Score float64
}
