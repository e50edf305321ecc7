package dirdex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	dbRedis "github.com/kailas-cloud/dirdex/internal/db/redis"
	"github.com/kailas-cloud/dirdex/internal/domain"
	"github.com/kailas-cloud/dirdex/internal/domain/directory"
	"github.com/kailas-cloud/dirdex/internal/domain/search/request"
	"github.com/kailas-cloud/dirdex/internal/keyword"
	"github.com/kailas-cloud/dirdex/internal/metrics"
	directoryrepo "github.com/kailas-cloud/dirdex/internal/repository/directory"
	"github.com/kailas-cloud/dirdex/internal/repository/embcache"
	embeddingrepo "github.com/kailas-cloud/dirdex/internal/repository/embedding"
	vectorrepo "github.com/kailas-cloud/dirdex/internal/repository/vector"
	openaiTransport "github.com/kailas-cloud/dirdex/internal/transport/openai"
	"github.com/kailas-cloud/dirdex/internal/transport/rerank"
	embeddinguc "github.com/kailas-cloud/dirdex/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/dirdex/internal/usecase/health"
	"github.com/kailas-cloud/dirdex/internal/usecase/indexsync"
	queryuc "github.com/kailas-cloud/dirdex/internal/usecase/query"
	searchuc "github.com/kailas-cloud/dirdex/internal/usecase/search"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultVectorDimensions = 1024
	defaultKeyPrefix        = "dirdex:"
	defaultHNSWM            = 16
	defaultHNSWEFConstruct  = 200
)

// Internal interfaces, swapped for mocks in tests.
type searchUseCase interface {
	Search(ctx context.Context, req request.Request) (searchuc.Response, error)
}

type recordStore interface {
	Get(ctx context.Context, kind directory.Kind, id string) (directory.Record, error)
	Upsert(ctx context.Context, rec directory.Record) error
	Delete(ctx context.Context, kind directory.Kind, id string) error
}

type indexUseCase interface {
	Process(ctx context.Context, job indexsync.Job) error
	Rebuild(ctx context.Context) (keyword.Stats, error)
	ReembedAll(ctx context.Context) (indexsync.ReembedStats, error)
	Stats(ctx context.Context) (indexsync.IndexStats, error)
}

// Client is the dirdex SDK entry point.
type Client struct {
	store     *dbRedis.Store
	sqlDB     *sql.DB
	records   recordStore
	searchSvc searchUseCase
	indexer   indexUseCase
	stopIndex func()
	healthSvc healthUseCase
	obs       *observer
	now       func() time.Time
	// keywordOnly is set without an embedder; embedding failures on
	// record writes are then expected and ignored.
	keywordOnly bool
}

// New connects to the vector store and the directory, migrates the
// directory schema and builds the keyword index from it.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		keyPrefix:        defaultKeyPrefix,
		vectorDimensions: defaultVectorDimensions,
		hnswM:            defaultHNSWM,
		hnswEFConstruct:  defaultHNSWEFConstruct,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("dirdex: vector store address required (use WithRedis)")
	}
	if cfg.dirDriver == "" || cfg.dirDSN == "" {
		return nil, errors.New("dirdex: directory required (use WithDirectory)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	store, err := dbRedis.NewStore(dbRedis.Config{Addrs: cfg.addrs, Password: cfg.password})
	if err != nil {
		return nil, fmt.Errorf("dirdex: create vector store: %w", err)
	}
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("dirdex: vector store not ready: %w", err)
	}

	sqlDB, err := directoryrepo.Open(ctx, cfg.dirDriver, cfg.dirDSN, 0)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("dirdex: %w", err)
	}
	if _, err := directoryrepo.Migrate(ctx, sqlDB, cfg.dirDriver); err != nil {
		_ = sqlDB.Close()
		store.Close()
		return nil, fmt.Errorf("dirdex: migrate directory: %w", err)
	}

	c, err := wireClient(ctx, store, sqlDB, cfg, obs)
	if err != nil {
		_ = sqlDB.Close()
		store.Close()
		return nil, err
	}
	return c, nil
}

func wireClient(
	ctx context.Context, store *dbRedis.Store, sqlDB *sql.DB, cfg *clientConfig, obs *observer,
) (*Client, error) {
	// Internals log nothing; SDK callers observe operations through WithLogger.
	logger := zap.NewNop()
	dir := directoryrepo.New(sqlDB, cfg.dirDriver)

	var base domain.Embedder = noopEmbedder{}
	if cfg.embedder != nil {
		base = &embedderAdapter{inner: cfg.embedder}
	}
	if cfg.cacheEnabled {
		base = embcache.New(base, store, embcache.Options{
			KeyPrefix:     cfg.keyPrefix,
			TTL:           cfg.cacheTTL,
			HalfPrecision: cfg.cacheHalf,
		}, metrics.EmbeddingCacheTotal, logger)
	}
	embedder := embeddinguc.NewInstrumentedEmbedder(base, embeddinguc.Options{
		Role:       "sdk",
		Dimensions: cfg.vectorDimensions,
	}, logger)

	embeddings := embeddingrepo.New(store, embeddingrepo.Options{
		KeyPrefix:       cfg.keyPrefix,
		Dimensions:      cfg.vectorDimensions,
		HNSWM:           cfg.hnswM,
		HNSWEFConstruct: cfg.hnswEFConstruct,
	})
	if err := embeddings.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("dirdex: ensure embedding index: %w", err)
	}
	vectors := vectorrepo.New(store, vectorrepo.Config{
		IndexName: embeddings.IndexName(),
		KeyPrefix: embeddings.KeyPrefix(),
	}, embedder, logger)

	keywords := keyword.NewService(keyword.LoaderFunc(func(ctx context.Context) ([]keyword.Source, error) {
		recs, err := dir.ListAll(ctx)
		if err != nil {
			return nil, err
		}
		docs := make([]keyword.Source, len(recs))
		for i, rec := range recs {
			docs[i] = keyword.Source{ID: rec.DocumentID(), Content: rec.SearchText()}
		}
		return docs, nil
	}), logger)
	if _, err := keywords.Rebuild(ctx); err != nil {
		return nil, fmt.Errorf("dirdex: build keyword index: %w", err)
	}

	var gen queryuc.Generator
	if p := cfg.parser; p != nil {
		gen = openaiTransport.NewParser(&openaiTransport.ParserConfig{
			APIKey: p.apiKey, BaseURL: p.baseURL, Model: p.model, Logger: logger,
		})
	}
	parser := queryuc.New(gen, queryuc.Options{}, logger)

	var reranker domain.Reranker
	switch {
	case cfg.reranker != nil:
		reranker = &rerankerAdapter{inner: cfg.reranker}
	case cfg.rerankHTTP != nil:
		reranker = rerank.NewClient(&rerank.Config{
			BaseURL: cfg.rerankHTTP.baseURL,
			APIKey:  cfg.rerankHTTP.apiKey,
			Model:   cfg.rerankHTTP.model,
			Logger:  logger,
		})
	}
	searchCfg := searchuc.DefaultConfig()
	searchCfg.Rerank = reranker != nil

	worker, err := indexsync.New(dir, keywords, embeddings, embedder, indexsync.Options{}, logger)
	if err != nil {
		return nil, fmt.Errorf("dirdex: create indexer: %w", err)
	}

	var checker healthuc.EmbeddingChecker
	if hc, ok := cfg.embedder.(domain.HealthChecker); ok {
		checker = hc
	}

	return &Client{
		store:     store,
		sqlDB:     sqlDB,
		records:   dir,
		searchSvc: searchuc.New(keywords, vectors, dir, parser, reranker, searchCfg, logger),
		indexer:   worker,
		stopIndex: worker.Stop,
		healthSvc: healthuc.New(store, dir, checker, keywords),
		obs:       obs,
		now:       time.Now,

		keywordOnly: cfg.embedder == nil,
	}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.stopIndex != nil {
		c.stopIndex()
	}
	if c.sqlDB != nil {
		_ = c.sqlDB.Close()
	}
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks vector store connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Records returns the record management service.
func (c *Client) Records() *RecordService {
	return &RecordService{
		records:     c.records,
		indexer:     c.indexer,
		obs:         c.obs,
		now:         c.now,
		keywordOnly: c.keywordOnly,
	}
}

// Index returns the index maintenance service.
func (c *Client) Index() *IndexService {
	return &IndexService{indexer: c.indexer, obs: c.obs}
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w: %w", domain.ErrEmbeddingProviderError, err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// noopEmbedder fails every call. Vector search then degrades to empty and
// searches run on keywords and filters.
type noopEmbedder struct{}

func (noopEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, fmt.Errorf(
		"dirdex: embedder not configured (use WithEmbedder): %w", domain.ErrEmbeddingProviderError,
	)
}

// rerankerAdapter wraps public Reranker to satisfy internal domain.Reranker.
type rerankerAdapter struct {
	inner Reranker
}

func (a *rerankerAdapter) Rerank(
	ctx context.Context, query string, documents []string, topK int,
) ([]domain.RerankResult, error) {
	rs, err := a.inner.Rerank(ctx, query, documents, topK)
	if err != nil {
		return nil, fmt.Errorf("rerank: %w: %w", domain.ErrRerankProviderError, err)
	}
	out := make([]domain.RerankResult, len(rs))
	for i, r := range rs {
		out[i] = domain.RerankResult{Index: r.Index, Score: r.Score}
	}
	return out, nil
}
