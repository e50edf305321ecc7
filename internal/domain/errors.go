package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRequest signals a request that failed validation.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrRerankProviderError signals a rerank provider failure.
	ErrRerankProviderError = errors.New("rerank provider error")
	// ErrQueryParserError signals that the query parser produced no usable output.
	ErrQueryParserError = errors.New("query parser error")
	// ErrQueueFull signals that the index sync queue is saturated.
	ErrQueueFull = errors.New("index sync queue full")
	// ErrIndexNotBuilt signals that the keyword index has not been built yet.
	ErrIndexNotBuilt = errors.New("keyword index not built")
)
