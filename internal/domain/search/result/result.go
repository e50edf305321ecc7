package result

import "github.com/kailas-cloud/dirdex/internal/domain/directory"

// Method records which stage produced a result's final score.
type Method string

// Provenance tags.
const (
	MethodBM25       Method = "bm25"
	MethodVector     Method = "vector"
	MethodFilter     Method = "filter"
	MethodBM25Vector Method = "bm25+vector"
	MethodRerank     Method = "rerank"
	// MethodBrowse marks results from the recency listing.
	MethodBrowse Method = "browse"
)

// Hit is a scored document from a single retrieval source.
type Hit struct {
	ID      string
	Score   float64
	Preview string
}

// Sources are the per-stage scores behind a fused result.
type Sources struct {
	BM25          float64
	Vector        float64
	FilterMatched bool
}

// Result is a single hydrated search hit.
type Result struct {
	record        directory.Record
	score         float64
	method        Method
	sources       Sources
	originalScore float64
	rerankScore   float64
	reranked      bool
}

// New creates a search result.
func New(record directory.Record, score float64, method Method, sources Sources) Result {
	return Result{record: record, score: score, method: method, sources: sources}
}

// NewReranked creates a result whose score came from the reranker.
func NewReranked(record directory.Record, rerankScore, originalScore float64, sources Sources) Result {
	return Result{
		record:        record,
		score:         rerankScore,
		method:        MethodRerank,
		sources:       sources,
		originalScore: originalScore,
		rerankScore:   rerankScore,
		reranked:      true,
	}
}

// ID returns the namespaced document id.
func (r *Result) ID() string { return r.record.DocumentID() }

// Kind returns the record kind.
func (r *Result) Kind() directory.Kind { return r.record.Kind }

// Record returns the hydrated record.
func (r *Result) Record() directory.Record { return r.record }

// Score returns the final score.
func (r *Result) Score() float64 { return r.score }

// Method returns the provenance tag.
func (r *Result) Method() Method { return r.method }

// Sources returns the per-stage scores.
func (r *Result) Sources() Sources { return r.sources }

// Reranked reports whether the reranker scored this result.
func (r *Result) Reranked() bool { return r.reranked }

// OriginalScore returns the fused score before reranking.
func (r *Result) OriginalScore() float64 { return r.originalScore }

// RerankScore returns the reranker score.
func (r *Result) RerankScore() float64 { return r.rerankScore }
