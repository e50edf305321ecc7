package dirdex

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	addrs     []string
	password  string
	keyPrefix string

	dirDriver string
	dirDSN    string

	embedder         Embedder
	vectorDimensions int
	hnswM            int
	hnswEFConstruct  int
	cacheTTL         time.Duration
	cacheHalf        bool
	cacheEnabled     bool

	reranker   Reranker
	rerankHTTP *rerankEndpoint

	parser *parserEndpoint

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

type rerankEndpoint struct {
	baseURL, apiKey, model string
}

type parserEndpoint struct {
	baseURL, apiKey, model string
}

// WithRedis configures the vector store address. Any server speaking the
// FT.* search commands works (Valkey with valkey-search, Redis Stack, Redis 8+).
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithKeyPrefix namespaces every vector store key. Default "dirdex:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithDirectory sets the SQL store holding profiles and projects.
// driver is "postgres" or "sqlite". The schema is migrated on New.
func WithDirectory(driver, dsn string) Option {
	return optionFunc(func(c *clientConfig) {
		c.dirDriver = driver
		c.dirDSN = dsn
	})
}

// WithEmbedder sets the text embedding provider.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithVectorDimensions sets the embedding dimension. Defaults to 1024.
func WithVectorDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.vectorDimensions = dim
	})
}

// WithHNSW configures HNSW index parameters (M and EF construction).
// Defaults: M=16, EFConstruct=200.
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	})
}

// WithEmbeddingCache caches embeddings in the vector store, keyed by text
// hash. halfPrecision stores vectors as float16.
func WithEmbeddingCache(ttl time.Duration, halfPrecision bool) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheEnabled = true
		c.cacheTTL = ttl
		c.cacheHalf = halfPrecision
	})
}

// WithReranker enables reranking with a custom implementation.
func WithReranker(r Reranker) Option {
	return optionFunc(func(c *clientConfig) {
		c.reranker = r
	})
}

// WithRerankEndpoint enables reranking through a /v1/rerank compatible API.
func WithRerankEndpoint(baseURL, apiKey, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.rerankHTTP = &rerankEndpoint{baseURL: baseURL, apiKey: apiKey, model: model}
	})
}

// WithOpenAIParser enables LLM query parsing through an OpenAI-compatible
// chat completions API. Without it queries are parsed by rules only.
func WithOpenAIParser(baseURL, apiKey, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.parser = &parserEndpoint{baseURL: baseURL, apiKey: apiKey, model: model}
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
