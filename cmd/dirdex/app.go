package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dirdex/internal/config"
	dbRedis "github.com/kailas-cloud/dirdex/internal/db/redis"
	"github.com/kailas-cloud/dirdex/internal/domain"
	"github.com/kailas-cloud/dirdex/internal/domain/search/request"
	"github.com/kailas-cloud/dirdex/internal/keyword"
	logpkg "github.com/kailas-cloud/dirdex/internal/logger"
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
	"github.com/kailas-cloud/dirdex/internal/version"
)

// base is the configuration and logger every command starts from.
type base struct {
	env    string
	cfg    config.Config
	logger *zap.Logger
}

func loadBase(c *cli.Context) (*base, error) {
	env := c.String("env")
	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.Logging.Level
	if l := c.String("log-level"); l != "" {
		level = l
	}
	logger, err := logpkg.NewLogger(env, level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return &base{env: env, cfg: cfg, logger: logger}, nil
}

func (b *base) openDirectory(ctx context.Context) (*sql.DB, error) {
	d := b.cfg.Directory
	sqlDB, err := directoryrepo.Open(ctx, d.Driver, d.DSN, d.MaxOpenConns)
	if err != nil {
		return nil, fmt.Errorf("open directory: %w", err)
	}
	return sqlDB, nil
}

// app is the fully wired service graph.
type app struct {
	*base

	store     *dbRedis.Store
	sqlDB     *sql.DB
	directory *directoryrepo.Repo
	embedder  *openaiTransport.Embedder
	keywords  *keyword.Service
	search    *searchuc.Service
	worker    *indexsync.Worker
	health    *healthuc.Service
}

// bootstrap wires the composition root. Close releases what it opened.
func bootstrap(ctx context.Context, c *cli.Context) (*app, error) {
	b, err := loadBase(c)
	if err != nil {
		return nil, err
	}
	cfg := b.cfg
	logger := b.logger

	logger.Info("Starting dirdex",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", b.env),
		zap.String("directory_driver", cfg.Directory.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()
	metrics.RegisterSyncMetrics()
	metrics.RegisterHTTPMetrics()

	a := &app{base: b}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	a.store, err = dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("create vector store: %w", err)
	}
	if err := a.store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		return nil, fmt.Errorf("vector store not ready: %w", err)
	}
	logger.Info("Connected to vector store")

	a.sqlDB, err = b.openDirectory(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.Directory.AutoMigrate {
		applied, err := directoryrepo.Migrate(ctx, a.sqlDB, cfg.Directory.Driver)
		if err != nil {
			return nil, fmt.Errorf("migrate directory: %w", err)
		}
		logger.Info("Directory schema up to date", zap.Int("applied", applied))
	}
	a.directory = directoryrepo.New(a.sqlDB, cfg.Directory.Driver)

	vecCfg, provCfg := cfg.ActiveVectorizer()
	a.embedder = openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     provCfg.APIKey,
		BaseURL:    provCfg.BaseURL,
		Model:      vecCfg.Model,
		Dimensions: vecCfg.Dimensions,
		Provider:   vecCfg.Provider,
		Logger:     logger,
	})
	docEmbedder := buildEmbedder(a.embedder, cfg, vecCfg,
		embeddinguc.RoleDocument, vecCfg.DocumentInstruction, a.store, logger)
	queryEmbedder := buildEmbedder(a.embedder, cfg, vecCfg,
		embeddinguc.RoleQuery, vecCfg.QueryInstruction, a.store, logger)
	logger.Info("Embedders created",
		zap.String("provider", vecCfg.Provider),
		zap.String("model", vecCfg.Model),
		zap.Int("dimensions", vecCfg.Dimensions),
	)

	embeddings := embeddingrepo.New(a.store, embeddingrepo.Options{
		KeyPrefix:       cfg.Database.KeyPrefix,
		Dimensions:      vecCfg.Dimensions,
		HNSWM:           cfg.Database.HNSWM,
		HNSWEFConstruct: cfg.Database.HNSWEFConstruct,
	})
	if err := embeddings.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("ensure embedding index: %w", err)
	}
	vectors := vectorrepo.New(a.store, vectorrepo.Config{
		IndexName: embeddings.IndexName(),
		KeyPrefix: embeddings.KeyPrefix(),
	}, queryEmbedder, logger)

	a.keywords = keyword.NewService(keyword.LoaderFunc(a.loadKeywordSources), logger)

	a.search = searchuc.New(
		a.keywords, vectors, a.directory,
		buildParser(cfg, logger), buildReranker(cfg, logger),
		searchConfig(cfg), logger,
	)

	a.worker, err = indexsync.New(a.directory, a.keywords, embeddings, docEmbedder, indexsync.Options{
		QueueSize:       cfg.Sync.QueueSize,
		Workers:         cfg.Sync.Workers,
		MaxAttempts:     cfg.Sync.MaxAttempts,
		RetryBase:       time.Duration(cfg.Sync.RetryBaseMs) * time.Millisecond,
		RebuildInterval: time.Duration(cfg.Sync.RebuildIntervalSec) * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create index sync worker: %w", err)
	}

	a.health = healthuc.New(a.store, a.directory, a.embedder, a.keywords)

	ok = true
	return a, nil
}

// Close releases the stores. Safe on a partially built app.
func (a *app) Close() {
	if a.sqlDB != nil {
		if err := a.sqlDB.Close(); err != nil {
			a.logger.Warn("close directory", zap.Error(err))
		}
	}
	if a.store != nil {
		a.store.Close()
	}
	_ = a.logger.Sync()
}

func (a *app) loadKeywordSources(ctx context.Context) ([]keyword.Source, error) {
	recs, err := a.directory.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list directory records: %w", err)
	}
	docs := make([]keyword.Source, len(recs))
	for i, rec := range recs {
		docs[i] = keyword.Source{ID: rec.DocumentID(), Content: rec.SearchText()}
	}
	return docs, nil
}

// buildKeywordIndex runs the initial BM25 build. A failure leaves the index
// unbuilt; searches then run on vectors and filters alone until the next
// rebuild.
func (a *app) buildKeywordIndex(ctx context.Context) {
	st, err := a.keywords.Rebuild(ctx)
	if err != nil {
		a.logger.Error("Initial keyword index build failed", zap.Error(err))
		return
	}
	a.logger.Info("Keyword index built",
		zap.Int("documents", st.DocumentCount),
		zap.Int("terms", st.TermCount),
	)
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction
func buildEmbedder(
	base domain.Embedder,
	cfg config.Config,
	vecCfg config.VectorizerConfig,
	role, instruction string,
	store *dbRedis.Store,
	logger *zap.Logger,
) domain.Embedder {
	embedder := base
	if cfg.Embedding.Cache.Enabled {
		embedder = embcache.New(base, store, embcache.Options{
			KeyPrefix:     cfg.Database.KeyPrefix,
			TTL:           time.Duration(cfg.Embedding.Cache.TTLHours) * time.Hour,
			HalfPrecision: cfg.Embedding.Cache.HalfPrecision,
		}, metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, embeddinguc.Options{
		Role:       role,
		Model:      vecCfg.Model,
		Dimensions: vecCfg.Dimensions,
		Failures:   metrics.EmbeddingFailuresTotal,
	}, logger)

	// Instruction prefix is outermost so the cache key includes it.
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}
	return embedder
}

func buildParser(cfg config.Config, logger *zap.Logger) *queryuc.Service {
	// A nil Generator interface, not a typed nil pointer, disables the LLM.
	var gen queryuc.Generator
	if cfg.Parser.Enabled {
		prov := cfg.Embedding.Providers[cfg.Parser.Provider]
		gen = openaiTransport.NewParser(&openaiTransport.ParserConfig{
			APIKey:      prov.APIKey,
			BaseURL:     prov.BaseURL,
			Model:       cfg.Parser.Model,
			MaxAttempts: cfg.Parser.MaxAttempts,
			Logger:      logger,
		})
	}
	return queryuc.New(gen, queryuc.Options{
		CacheSize: cfg.Parser.CacheSize,
		CacheTTL:  time.Duration(cfg.Parser.CacheTTLSec) * time.Second,
		Timeout:   time.Duration(cfg.Parser.TimeoutMs) * time.Millisecond,
	}, logger)
}

func buildReranker(cfg config.Config, logger *zap.Logger) domain.Reranker {
	if !cfg.Rerank.Enabled {
		return nil
	}
	return rerank.NewClient(&rerank.Config{
		BaseURL: cfg.Rerank.BaseURL,
		APIKey:  cfg.Rerank.APIKey,
		Model:   cfg.Rerank.Model,
		Timeout: time.Duration(cfg.Rerank.TimeoutMs) * time.Millisecond,
		Logger:  logger,
	})
}

func searchConfig(cfg config.Config) searchuc.Config {
	s := cfg.Search
	out := searchuc.DefaultConfig()
	out.Weights = request.Weights{BM25: *s.WeightBM25, Vector: *s.WeightVector, Filter: *s.WeightFilter}
	out.Thresholds = request.Thresholds{Vector: *s.VectorThreshold, BM25MinScore: *s.BM25MinScore}
	out.StageTimeout = s.StageTimeout()
	out.RerankTimeout = time.Duration(cfg.Rerank.TimeoutMs) * time.Millisecond
	out.RerankTopK = cfg.Rerank.TopK
	out.Rerank = cfg.Rerank.Enabled
	out.ProjectShare = s.ProjectShare
	return out
}
