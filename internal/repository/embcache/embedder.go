package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/x448/float16"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dirdex/internal/db"
	"github.com/kailas-cloud/dirdex/internal/domain"
)

// Cached vector encodings, stored as the first byte of the value.
const (
	formatFloat32 byte = 1
	formatFloat16 byte = 2
)

// store is the consumer interface for the embedding cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Options tunes the cache.
type Options struct {
	KeyPrefix     string        // e.g. "dirdex:"; the cache appends "emb_cache:"
	TTL           time.Duration // <= 0 keeps entries forever
	HalfPrecision bool          // store vectors as float16, halving memory at a small precision cost
}

// CachedEmbedder caches embeddings in a key-value store, keyed by text hash.
type CachedEmbedder struct {
	inner      domain.Embedder
	store      store
	opts       Options
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner domain.Embedder,
	s store,
	opts Options,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEmbedder {
	return &CachedEmbedder{
		inner:      inner,
		store:      s,
		opts:       opts,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Embed returns a cached embedding or calls the inner embedder.
// A hit reports zero tokens.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.cacheKey(text)

	if vec, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	c.incCache("miss")

	result, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}

	c.putToCache(ctx, key, result.Embedding)
	return result, nil
}

func (c *CachedEmbedder) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return c.opts.KeyPrefix + "emb_cache:" + hex.EncodeToString(h[:])
}

func (c *CachedEmbedder) getFromCache(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached embedding", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}

	vec, err := decodeCached(data)
	if err != nil {
		c.logger.Warn("Failed to parse cached embedding", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	return vec, true
}

func (c *CachedEmbedder) putToCache(ctx context.Context, key string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	data := encodeCached(vec, c.opts.HalfPrecision)
	if err := c.store.SetWithTTL(ctx, key, data, c.opts.TTL); err != nil {
		c.logger.Warn("Failed to cache embedding", zap.String("key", key), zap.Error(err))
	}
}

func encodeCached(v []float32, half bool) []byte {
	if half {
		buf := make([]byte, 1+len(v)*2)
		buf[0] = formatFloat16
		for i, f := range v {
			binary.LittleEndian.PutUint16(buf[1+i*2:], float16.Fromfloat32(f).Bits())
		}
		return buf
	}
	buf := make([]byte, 1+len(v)*4)
	buf[0] = formatFloat32
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[1+i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeCached(data []byte) ([]float32, error) {
	body := data[1:]
	switch data[0] {
	case formatFloat32:
		if len(body)%4 != 0 {
			return nil, fmt.Errorf("invalid float32 cache data: len=%d", len(body))
		}
		vec := make([]float32, len(body)/4)
		for i := range vec {
			vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(body[i*4:]))
		}
		return vec, nil
	case formatFloat16:
		if len(body)%2 != 0 {
			return nil, fmt.Errorf("invalid float16 cache data: len=%d", len(body))
		}
		vec := make([]float32, len(body)/2)
		for i := range vec {
			vec[i] = float16.Frombits(binary.LittleEndian.Uint16(body[i*2:])).Float32()
		}
		return vec, nil
	default:
		return nil, fmt.Errorf("unknown cache format %d", data[0])
	}
}
