package query

import (
	"context"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	domquery "github.com/kailas-cloud/dirdex/internal/domain/search/query"
	"github.com/kailas-cloud/dirdex/internal/metrics"
)

// Defaults for Options.
const (
	DefaultCacheSize = 1000
	DefaultCacheTTL  = time.Hour
	DefaultTimeout   = 4 * time.Second
)

// Options tunes the parser service.
type Options struct {
	CacheSize int
	CacheTTL  time.Duration
	Timeout   time.Duration
}

type cacheEntry struct {
	parsed    domquery.Parsed
	expiresAt time.Time
}

// Service turns raw queries into normalized structured parses. It never fails:
// any generator problem yields the fallback parse.
type Service struct {
	gen     Generator
	cache   *lru.Cache[string, cacheEntry]
	ttl     time.Duration
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a parser service. gen may be nil, in which case every query
// gets the fallback parse plus the strictness rules.
func New(gen Generator, opts Options, logger *zap.Logger) *Service {
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	cache, err := lru.New[string, cacheEntry](opts.CacheSize)
	if err != nil {
		// Only reachable with a non-positive size, which is defaulted above.
		panic(err)
	}
	return &Service{
		gen:     gen,
		cache:   cache,
		ttl:     opts.CacheTTL,
		timeout: opts.Timeout,
		logger:  logger,
		now:     time.Now,
	}
}

// Parse returns the structured interpretation of raw.
func (s *Service) Parse(ctx context.Context, raw string) domquery.Parsed {
	original := strings.TrimSpace(raw)
	if original == "" {
		return domquery.Fallback(original)
	}

	key := cacheKey(original)
	if entry, ok := s.cache.Get(key); ok && s.now().Before(entry.expiresAt) {
		metrics.QueryParseCacheTotal.WithLabelValues("hit").Inc()
		p := entry.parsed
		p.OriginalQuery = original
		return p
	}
	metrics.QueryParseCacheTotal.WithLabelValues("miss").Inc()

	if s.gen == nil {
		return applyRules(domquery.Fallback(original), original)
	}

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	parsed, err := s.gen.Generate(genCtx, original)
	if err != nil {
		s.logger.Warn("query parser failed, using fallback",
			zap.String("query", original), zap.Error(err))
		return domquery.Fallback(original)
	}
	if isEmptyOutput(parsed) {
		s.logger.Debug("query parser returned nothing", zap.String("query", original))
		return domquery.Fallback(original)
	}

	normalized := applyRules(normalize(parsed, original), original)
	s.cache.Add(key, cacheEntry{parsed: normalized, expiresAt: s.now().Add(s.ttl)})
	return normalized
}

// Purge drops every cached parse.
func (s *Service) Purge() {
	s.cache.Purge()
}

func cacheKey(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}
