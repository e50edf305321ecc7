package embedding

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/dirdex/internal/db"
	"github.com/kailas-cloud/dirdex/internal/domain"
)

// Hash fields of an embedding record.
const (
	FieldKind      = "kind"
	FieldVector    = "vector"
	FieldHash      = "hash"
	FieldPreview   = "preview"
	FieldUpdatedAt = "updated_at"
)

// store is the consumer interface for embedding records (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Options configures key layout and the vector index schema.
type Options struct {
	KeyPrefix       string // e.g. "dirdex:"
	Dimensions      int
	HNSWM           int
	HNSWEFConstruct int
}

// Repo stores one hash per document vector under "<prefix>emb:<docID>".
type Repo struct {
	store store
	opts  Options
}

// New creates an embedding repository.
func New(s store, opts Options) *Repo {
	return &Repo{store: s, opts: opts}
}

// KeyPrefix is the prefix shared by all embedding hashes.
func (r *Repo) KeyPrefix() string { return r.opts.KeyPrefix + "emb:" }

// IndexName is the FT index over embedding hashes.
func (r *Repo) IndexName() string { return r.opts.KeyPrefix + "emb:idx" }

// Key returns the hash key for a document id.
func (r *Repo) Key(docID string) string { return r.KeyPrefix() + docID }

// Definition returns the FT index schema.
func (r *Repo) Definition() (*db.IndexDefinition, error) {
	def, err := db.NewIndex(r.IndexName()).
		Prefix(r.KeyPrefix()).
		Tag(FieldKind).
		Numeric(FieldUpdatedAt).
		Vector(FieldVector, r.opts.Dimensions, db.VectorHNSW, db.DistanceCosine).
		HNSW(r.opts.HNSWM, r.opts.HNSWEFConstruct).
		Build()
	if err != nil {
		return nil, fmt.Errorf("embedding index definition: %w", err)
	}
	return def, nil
}

// EnsureIndex creates the FT index when missing.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.IndexName())
	if err != nil {
		return fmt.Errorf("check index %s: %w", r.IndexName(), err)
	}
	if exists {
		return nil
	}
	def, err := r.Definition()
	if err != nil {
		return err
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", r.IndexName(), err)
	}
	return nil
}

// Upsert writes the record, replacing any previous vector.
func (r *Repo) Upsert(ctx context.Context, rec domain.EmbeddingRecord) error {
	if r.opts.Dimensions > 0 && len(rec.Vector) != r.opts.Dimensions {
		return fmt.Errorf("record %s has %d dimensions, index wants %d: %w",
			rec.DocumentID, len(rec.Vector), r.opts.Dimensions, domain.ErrVectorDimMismatch)
	}
	key := r.Key(rec.DocumentID)
	if err := r.store.HSet(ctx, key, buildHashFields(rec)); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

// Get returns the stored record or domain.ErrNotFound.
func (r *Repo) Get(ctx context.Context, docID string) (domain.EmbeddingRecord, error) {
	key := r.Key(docID)
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return domain.EmbeddingRecord{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(m) == 0 {
		return domain.EmbeddingRecord{}, domain.ErrNotFound
	}
	return parseHashFields(docID, m)
}

// ContentHash returns the stored hash, or "" when the record is missing.
func (r *Repo) ContentHash(ctx context.Context, docID string) (string, error) {
	rec, err := r.Get(ctx, docID)
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return rec.ContentHash, nil
}

// Delete removes a record. Missing records are not an error.
func (r *Repo) Delete(ctx context.Context, docID string) error {
	key := r.Key(docID)
	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

// Count returns the number of indexed records.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, r.IndexName(), "*")
	if err != nil {
		return 0, fmt.Errorf("search count %s: %w", r.IndexName(), err)
	}
	return n, nil
}

// DocumentIDs lists the document ids of all stored records.
func (r *Repo) DocumentIDs(ctx context.Context) ([]string, error) {
	keys, err := r.store.Scan(ctx, r.KeyPrefix()+"*")
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", r.KeyPrefix(), err)
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		id := strings.TrimPrefix(k, r.KeyPrefix())
		if id == "" {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func buildHashFields(rec domain.EmbeddingRecord) map[string]string {
	return map[string]string{
		FieldKind:      rec.Kind,
		FieldVector:    db.EncodeVector(rec.Vector),
		FieldHash:      rec.ContentHash,
		FieldPreview:   rec.Preview,
		FieldUpdatedAt: strconv.FormatInt(rec.UpdatedAt.UnixMilli(), 10),
	}
}

func parseHashFields(docID string, m map[string]string) (domain.EmbeddingRecord, error) {
	vec, err := db.DecodeVector(m[FieldVector])
	if err != nil {
		return domain.EmbeddingRecord{}, fmt.Errorf("decode vector for %s: %w", docID, err)
	}
	var updated time.Time
	if ms, err := strconv.ParseInt(m[FieldUpdatedAt], 10, 64); err == nil {
		updated = time.UnixMilli(ms).UTC()
	}
	return domain.EmbeddingRecord{
		DocumentID:  docID,
		Kind:        m[FieldKind],
		Vector:      vec,
		ContentHash: m[FieldHash],
		Preview:     m[FieldPreview],
		UpdatedAt:   updated,
	}, nil
}
