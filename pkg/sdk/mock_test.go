package dirdex

import (
	"context"
	"time"

	"github.com/kailas-cloud/dirdex/internal/domain"
	"github.com/kailas-cloud/dirdex/internal/domain/directory"
	"github.com/kailas-cloud/dirdex/internal/domain/search/request"
	"github.com/kailas-cloud/dirdex/internal/keyword"
	healthuc "github.com/kailas-cloud/dirdex/internal/usecase/health"
	"github.com/kailas-cloud/dirdex/internal/usecase/indexsync"
	searchuc "github.com/kailas-cloud/dirdex/internal/usecase/search"
)

// --- public interface mocks ---

type mockEmbedder struct {
	fn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return m.fn(ctx, text)
}

type rerankFunc func(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error)

func (f rerankFunc) Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error) {
	return f(ctx, query, documents, topK)
}

// --- searchUseCase mock ---

type mockSearchUC struct {
	searchFn func(ctx context.Context, req request.Request) (searchuc.Response, error)
}

func (m *mockSearchUC) Search(ctx context.Context, req request.Request) (searchuc.Response, error) {
	return m.searchFn(ctx, req)
}

// --- recordStore mock ---

type mockRecords struct {
	recs      map[string]directory.Record
	upsertErr error
}

func newMockRecords() *mockRecords {
	return &mockRecords{recs: map[string]directory.Record{}}
}

func (m *mockRecords) Get(_ context.Context, kind directory.Kind, id string) (directory.Record, error) {
	rec, ok := m.recs[directory.DocumentID(kind, id)]
	if !ok {
		return directory.Record{}, domain.ErrNotFound
	}
	return rec, nil
}

func (m *mockRecords) Upsert(_ context.Context, rec directory.Record) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.recs[rec.DocumentID()] = rec
	return nil
}

func (m *mockRecords) Delete(_ context.Context, kind directory.Kind, id string) error {
	key := directory.DocumentID(kind, id)
	if _, ok := m.recs[key]; !ok {
		return domain.ErrNotFound
	}
	delete(m.recs, key)
	return nil
}

// --- indexUseCase mock ---

type mockIndexer struct {
	processed  []string
	processErr error
	stats      indexsync.IndexStats
	reembed    indexsync.ReembedStats
	err        error
}

func (m *mockIndexer) Process(_ context.Context, job indexsync.Job) error {
	m.processed = append(m.processed, job.DocumentID())
	return m.processErr
}

func (m *mockIndexer) Rebuild(_ context.Context) (keyword.Stats, error) {
	return keyword.Stats{}, m.err
}

func (m *mockIndexer) ReembedAll(_ context.Context) (indexsync.ReembedStats, error) {
	return m.reembed, m.err
}

func (m *mockIndexer) Stats(_ context.Context) (indexsync.IndexStats, error) {
	return m.stats, m.err
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(_ context.Context) healthuc.Report { return m.report }

// --- helpers ---

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testClient(search searchUseCase, records recordStore, indexer indexUseCase) *Client {
	return &Client{
		records:   records,
		searchSvc: search,
		indexer:   indexer,
		now:       func() time.Time { return fixedNow },
	}
}
