package indexsync

import (
	"context"

	"github.com/kailas-cloud/dirdex/internal/domain"
	"github.com/kailas-cloud/dirdex/internal/domain/directory"
	"github.com/kailas-cloud/dirdex/internal/keyword"
)

// RecordSource reads records from the directory store.
type RecordSource interface {
	Get(ctx context.Context, kind directory.Kind, id string) (directory.Record, error)
	ListAll(ctx context.Context) ([]directory.Record, error)
	Count(ctx context.Context, kinds []directory.Kind) (int, error)
}

// KeywordIndex is the live BM25 index.
type KeywordIndex interface {
	Upsert(doc keyword.Source)
	Delete(id string)
	Rebuild(ctx context.Context) (keyword.Stats, error)
	Stats() keyword.ServiceStats
}

// EmbeddingStore persists document vectors.
type EmbeddingStore interface {
	ContentHash(ctx context.Context, docID string) (string, error)
	Upsert(ctx context.Context, rec domain.EmbeddingRecord) error
	Delete(ctx context.Context, docID string) error
	DocumentIDs(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
}
