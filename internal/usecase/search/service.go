package search

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/dirdex/internal/domain"
	"github.com/kailas-cloud/dirdex/internal/domain/directory"
	"github.com/kailas-cloud/dirdex/internal/domain/search/order"
	"github.com/kailas-cloud/dirdex/internal/domain/search/query"
	"github.com/kailas-cloud/dirdex/internal/domain/search/request"
	"github.com/kailas-cloud/dirdex/internal/domain/search/result"
	"github.com/kailas-cloud/dirdex/internal/domain/search/timing"
	"github.com/kailas-cloud/dirdex/internal/keyword"
	"github.com/kailas-cloud/dirdex/internal/metrics"
	"github.com/kailas-cloud/dirdex/internal/repository/vector"
)

// Stage names used in logs and metrics.
const (
	StageParse     = "parse"
	StageBM25      = "bm25"
	StageVector    = "vector"
	StageFilter    = "filter"
	StageFusion    = "fusion"
	StageHydration = "hydration"
	StageRerank    = "reranking"
	StageStrict    = "strict_filter"
	StageBrowse    = "browse"
)

// Defaults for Config.
const (
	DefaultStageTimeout  = 3 * time.Second
	DefaultRerankTimeout = 5 * time.Second
	DefaultRerankTopK    = 20

	// findProjectsShare is the vector project share when the query asks for projects.
	findProjectsShare = 0.7
)

// Request outcome labels for metrics.SearchRequestsTotal.
const (
	outcomeHybrid   = "hybrid"
	outcomeBrowse   = "browse"
	outcomeFallback = "fallback"
)

// Config holds the service-wide search defaults. Requests may override
// weights, thresholds and the rerank switch.
type Config struct {
	Weights       request.Weights
	Thresholds    request.Thresholds
	StageTimeout  time.Duration
	RerankTimeout time.Duration
	RerankTopK    int
	Rerank        bool
	ProjectShare  float64
}

// DefaultConfig returns the stock search configuration.
func DefaultConfig() Config {
	return Config{
		Weights:       request.DefaultWeights(),
		Thresholds:    request.DefaultThresholds(),
		StageTimeout:  DefaultStageTimeout,
		RerankTimeout: DefaultRerankTimeout,
		RerankTopK:    DefaultRerankTopK,
		Rerank:        true,
		ProjectShare:  vector.DefaultProjectShare,
	}
}

// Response is the outcome of one search.
type Response struct {
	Results     []result.Result
	TotalCount  int
	ParsedQuery query.Parsed
	Timing      timing.Timing
	// Fallback is set when hydration failed and the results are a plain listing.
	Fallback bool
}

// Service runs the hybrid search pipeline: parse, concurrent keyword, vector
// and filter retrieval, fusion, hydration, rerank, strict filters, paging.
type Service struct {
	keywords KeywordSearcher
	vectors  VectorSearcher
	dir      Directory
	parser   QueryParser
	reranker domain.Reranker
	cfg      Config
	logger   *zap.Logger
	seed     func() uint64
}

// New creates a search service. reranker may be nil.
func New(
	keywords KeywordSearcher, vectors VectorSearcher, dir Directory,
	parser QueryParser, reranker domain.Reranker, cfg Config, logger *zap.Logger,
) *Service {
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = DefaultStageTimeout
	}
	if cfg.RerankTimeout <= 0 {
		cfg.RerankTimeout = DefaultRerankTimeout
	}
	if cfg.RerankTopK <= 0 {
		cfg.RerankTopK = DefaultRerankTopK
	}
	if cfg.ProjectShare <= 0 || cfg.ProjectShare >= 1 {
		cfg.ProjectShare = vector.DefaultProjectShare
	}
	return &Service{
		keywords: keywords,
		vectors:  vectors,
		dir:      dir,
		parser:   parser,
		reranker: reranker,
		cfg:      cfg,
		logger:   logger,
		seed:     func() uint64 { return uint64(time.Now().UnixNano()) },
	}
}

// Search runs one query. Runtime faults degrade the response instead of
// failing it; the only error is an invalid request.
func (s *Service) Search(ctx context.Context, req request.Request) (Response, error) {
	if req.Limit() <= 0 {
		return Response{}, fmt.Errorf("%w: request must be built with request.New", domain.ErrInvalidRequest)
	}
	start := time.Now()

	if req.IsBrowse() {
		resp := s.browse(ctx, req)
		resp.ParsedQuery = query.Fallback("")
		resp.Timing.Total = time.Since(start)
		metrics.SearchRequestsTotal.WithLabelValues(outcomeBrowse).Inc()
		return resp, nil
	}

	var tm timing.Timing
	parseStart := time.Now()
	parsed := s.parser.Parse(ctx, req.Query())
	tm.Parse = time.Since(parseStart)
	metrics.ObserveStage(StageParse, tm.Parse, false)

	cands := s.retrieve(ctx, req, parsed, &tm)

	if len(cands) == 0 {
		tm.Total = time.Since(start)
		metrics.SearchRequestsTotal.WithLabelValues(outcomeHybrid).Inc()
		return Response{Results: []result.Result{}, ParsedQuery: parsed, Timing: tm}, nil
	}

	results, d, err := runStage(ctx, s.logger, StageHydration, s.cfg.StageTimeout,
		func(ctx context.Context) ([]result.Result, error) {
			return s.hydrate(ctx, cands)
		})
	tm.Hydration = d
	if err != nil {
		resp := s.browse(ctx, req)
		resp.Fallback = true
		resp.ParsedQuery = parsed
		resp.Timing = tm
		resp.Timing.Total = time.Since(start)
		metrics.SearchRequestsTotal.WithLabelValues(outcomeFallback).Inc()
		return resp, nil
	}

	if req.RerankOr(s.cfg.Rerank) && s.reranker != nil && len(results) > 1 {
		var ranked []domain.RerankResult
		topK := min(len(results), s.cfg.RerankTopK)
		ranked, tm.Rerank, err = runStage(ctx, s.logger, StageRerank, s.cfg.RerankTimeout,
			func(ctx context.Context) ([]domain.RerankResult, error) {
				return s.reranker.Rerank(ctx, req.Query(), rerankDocuments(results), topK)
			})
		if err == nil {
			results = applyRerank(results, ranked)
		}
	}

	strictStart := time.Now()
	results = applyStrict(results, parsed.Strict)
	tm.StrictFilter = time.Since(strictStart)
	metrics.ObserveStage(StageStrict, tm.StrictFilter, false)

	s.sortResults(results, req.Sort())
	total := len(results)
	page := paginate(results, req.Offset(), req.Limit())

	tm.Total = time.Since(start)
	metrics.SearchRequestsTotal.WithLabelValues(outcomeHybrid).Inc()
	s.logger.Debug("search completed",
		zap.String("query", req.Query()),
		zap.Int("candidates", len(cands)),
		zap.Int("total", total),
		zap.Duration("took", tm.Total),
	)

	return Response{Results: page, TotalCount: total, ParsedQuery: parsed, Timing: tm}, nil
}

// retrieve runs keyword, vector and filter retrieval concurrently and fuses
// them. Every stage owns its error; a failed stage contributes nothing and
// never cancels its siblings.
func (s *Service) retrieve(ctx context.Context, req request.Request, parsed query.Parsed, tm *timing.Timing) []candidate {
	kinds, share := s.scope(req, parsed)
	fetchK := int(math.Ceil(1.5 * float64(req.MaxResults())))
	thresholds := req.ThresholdsOr(s.cfg.Thresholds)

	var (
		bm25     []result.Hit
		vec      []result.Hit
		filtered []string
		g        errgroup.Group
	)

	g.Go(func() error {
		bm25, tm.BM25, _ = runStage(ctx, s.logger, StageBM25, s.cfg.StageTimeout,
			func(context.Context) ([]result.Hit, error) {
				hits := s.keywords.Search(parsed.KeywordQuery(), keyword.Options{
					TopK:     fetchK,
					MinScore: thresholds.BM25MinScore,
					Accept:   acceptKinds(kinds),
				})
				out := make([]result.Hit, len(hits))
				for i, h := range hits {
					out[i] = result.Hit{ID: h.ID, Score: h.Score}
				}
				return out, nil
			})
		return nil
	})

	g.Go(func() error {
		vec, tm.Vector, _ = runStage(ctx, s.logger, StageVector, s.cfg.StageTimeout,
			func(ctx context.Context) ([]result.Hit, error) {
				return s.vectors.SearchText(ctx, parsed.SemanticQuery(), vector.Options{
					Threshold:    thresholds.Vector,
					Limit:        fetchK,
					Kinds:        kinds,
					ProjectShare: share,
				})
			})
		return nil
	})

	if f := structuredFilters(parsed); !f.IsEmpty() {
		g.Go(func() error {
			filtered, tm.Filter, _ = runStage(ctx, s.logger, StageFilter, s.cfg.StageTimeout,
				func(ctx context.Context) ([]string, error) {
					return s.dir.MatchFilters(ctx, f, kinds, fetchK)
				})
			return nil
		})
	}

	_ = g.Wait()

	fusionStart := time.Now()
	cands := fuse(bm25, vec, filtered, req.WeightsOr(s.cfg.Weights), 2*req.MaxResults())
	tm.Fusion = time.Since(fusionStart)
	metrics.ObserveStage(StageFusion, tm.Fusion, false)
	return cands
}

// scope picks the record kinds to search and the vector project share.
func (s *Service) scope(req request.Request, parsed query.Parsed) ([]directory.Kind, float64) {
	if !req.IncludeProjects() {
		return []directory.Kind{directory.KindProfile}, 0
	}
	share := s.cfg.ProjectShare
	if parsed.Intent == query.FindProjects {
		share = findProjectsShare
	}
	return []directory.Kind{directory.KindProfile, directory.KindProject}, share
}

// hydrate loads the records behind cands, keeping candidate order. Candidates
// whose record is gone are dropped.
func (s *Service) hydrate(ctx context.Context, cands []candidate) ([]result.Result, error) {
	ids := make([]string, len(cands))
	for i, c := range cands {
		ids[i] = c.id
	}
	recs, err := s.dir.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate %d records: %w", len(ids), err)
	}

	out := make([]result.Result, 0, len(cands))
	for _, c := range cands {
		rec, ok := recs[c.id]
		if !ok {
			continue
		}
		out = append(out, result.New(rec, c.score, c.method, c.sources))
	}
	return out, nil
}

// browse lists records without ranking. It backs empty queries and the
// hydration fallback; if the listing itself fails the response is empty.
func (s *Service) browse(ctx context.Context, req request.Request) Response {
	kinds := []directory.Kind{directory.KindProfile}
	if req.IncludeProjects() {
		kinds = append(kinds, directory.KindProject)
	}
	sort := req.Sort()
	if sort == order.Relevance {
		sort = order.Recent
	}

	recs, _, err := runStage(ctx, s.logger, StageBrowse, s.cfg.StageTimeout,
		func(ctx context.Context) ([]directory.Record, error) {
			return s.dir.Browse(ctx, kinds, sort, req.Offset(), req.Limit())
		})
	if err != nil {
		return Response{Results: []result.Result{}}
	}

	results := make([]result.Result, len(recs))
	for i, rec := range recs {
		results[i] = result.New(rec, 0, result.MethodBrowse, result.Sources{})
	}
	if sort == order.Random {
		s.sortResults(results, sort)
	}

	total, err := s.dir.Count(ctx, kinds)
	if err != nil {
		s.logger.Warn("count records failed", zap.Error(err))
		total = req.Offset() + len(results)
	}
	return Response{Results: results, TotalCount: total}
}

// sortResults applies an overriding order in place. Relevance keeps the
// pipeline ranking.
func (s *Service) sortResults(results []result.Result, o order.Order) {
	switch o {
	case order.Recent:
		slices.SortStableFunc(results, func(a, b result.Result) int {
			return b.Record().UpdatedAt.Compare(a.Record().UpdatedAt)
		})
	case order.Name:
		slices.SortStableFunc(results, func(a, b result.Result) int {
			return strings.Compare(strings.ToLower(a.Record().DisplayName), strings.ToLower(b.Record().DisplayName))
		})
	case order.Random:
		seed := s.seed()
		rng := rand.New(rand.NewPCG(seed, seed>>1|1))
		rng.Shuffle(len(results), func(i, j int) {
			results[i], results[j] = results[j], results[i]
		})
	}
}

func paginate(results []result.Result, offset, limit int) []result.Result {
	if offset < 0 || offset >= len(results) {
		return []result.Result{}
	}
	end := offset + min(limit, len(results)-offset)
	return results[offset:end]
}

// structuredFilters builds the boost lookup from the loose and strict
// entities. Strict availability wins over loose availability.
func structuredFilters(p query.Parsed) directory.Filters {
	return directory.Filters{
		Locations: union(p.Locations, p.Strict.Locations),
		Skills:    union(p.Skills, p.Strict.Skills),
		Companies: union(p.Companies, p.Strict.Companies),
		Hire:      pickFlag(p.Strict.Availability.Hire, p.Availability.Hire),
		Collab:    pickFlag(p.Strict.Availability.Collab, p.Availability.Collab),
		Hiring:    pickFlag(p.Strict.Availability.Hiring, p.Availability.Hiring),
	}
}

func pickFlag(strict, loose query.Tri) *bool {
	if strict.IsSet() {
		return strict.Ptr()
	}
	return loose.Ptr()
}

// union concatenates lists, dropping blanks and case-insensitive repeats.
func union(lists ...[]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, v := range list {
			v = strings.TrimSpace(v)
			key := strings.ToLower(v)
			if v == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, v)
		}
	}
	return out
}

func acceptKinds(kinds []directory.Kind) func(id string) bool {
	if len(kinds) != 1 {
		return nil
	}
	prefix := string(kinds[0]) + ":"
	return func(id string) bool { return strings.HasPrefix(id, prefix) }
}

type stageOutcome[T any] struct {
	val T
	err error
}

// runStage runs fn under a timeout, converting panics into errors. A failed
// stage returns the zero value, is logged at Warn and counted.
func runStage[T any](
	ctx context.Context, logger *zap.Logger, name string, timeout time.Duration,
	fn func(context.Context) (T, error),
) (T, time.Duration, error) {
	start := time.Now()
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan stageOutcome[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- stageOutcome[T]{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := fn(sctx)
		done <- stageOutcome[T]{val: v, err: err}
	}()

	var out stageOutcome[T]
	select {
	case out = <-done:
	case <-sctx.Done():
		out.err = sctx.Err()
	}
	d := time.Since(start)

	if out.err != nil {
		logger.Warn("search stage failed",
			zap.String("stage", name),
			zap.Duration("took", d),
			zap.Error(out.err),
		)
		var zero T
		out.val = zero
	}
	metrics.ObserveStage(name, d, out.err != nil)
	return out.val, d, out.err
}
