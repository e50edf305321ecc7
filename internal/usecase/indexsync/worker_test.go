package indexsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dirdex/internal/domain"
	"github.com/kailas-cloud/dirdex/internal/domain/directory"
	"github.com/kailas-cloud/dirdex/internal/keyword"
)

// --- Mocks ---

type mockRecords struct {
	mu       sync.Mutex
	records  map[string]directory.Record
	failures int // Get fails this many times before succeeding
	getErr   error
	calls    int
	listErr  error
}

func (m *mockRecords) Get(_ context.Context, kind directory.Kind, id string) (directory.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failures > 0 {
		m.failures--
		return directory.Record{}, errors.New("database is locked")
	}
	if m.getErr != nil {
		return directory.Record{}, m.getErr
	}
	rec, ok := m.records[directory.DocumentID(kind, id)]
	if !ok {
		return directory.Record{}, domain.ErrNotFound
	}
	return rec, nil
}

func (m *mockRecords) ListAll(_ context.Context) ([]directory.Record, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]directory.Record, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	return out, nil
}

func (m *mockRecords) Count(_ context.Context, _ []directory.Kind) (int, error) {
	return len(m.records), nil
}

func (m *mockRecords) getCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockKeywords struct {
	mu       sync.Mutex
	docs     map[string]string
	rebuilds int
}

func newMockKeywords() *mockKeywords {
	return &mockKeywords{docs: make(map[string]string)}
}

func (m *mockKeywords) Upsert(doc keyword.Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = doc.Content
}

func (m *mockKeywords) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
}

func (m *mockKeywords) Rebuild(_ context.Context) (keyword.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rebuilds++
	return keyword.Stats{DocumentCount: len(m.docs)}, nil
}

func (m *mockKeywords) Stats() keyword.ServiceStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return keyword.ServiceStats{Stats: keyword.Stats{DocumentCount: len(m.docs)}, Built: true}
}

func (m *mockKeywords) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.docs[id]
	return ok
}

type mockEmbeddings struct {
	mu      sync.Mutex
	records  map[string]domain.EmbeddingRecord
	deleted  []string
	countErr error
}

func newMockEmbeddings() *mockEmbeddings {
	return &mockEmbeddings{records: make(map[string]domain.EmbeddingRecord)}
}

func (m *mockEmbeddings) ContentHash(_ context.Context, docID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[docID].ContentHash, nil
}

func (m *mockEmbeddings) Upsert(_ context.Context, rec domain.EmbeddingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.DocumentID] = rec
	return nil
}

func (m *mockEmbeddings) Delete(_ context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, docID)
	m.deleted = append(m.deleted, docID)
	return nil
}

func (m *mockEmbeddings) DocumentIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *mockEmbeddings) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return 0, m.countErr
	}
	return len(m.records), nil
}

func (m *mockEmbeddings) get(docID string) (domain.EmbeddingRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[docID]
	return rec, ok
}

type mockEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}, nil
}

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// --- Helpers ---

type fixture struct {
	records    *mockRecords
	keywords   *mockKeywords
	embeddings *mockEmbeddings
	embedder   *mockEmbedder
	worker     *Worker
}

func newFixture(t *testing.T, opts Options, recs ...directory.Record) *fixture {
	t.Helper()
	f := &fixture{
		records:    &mockRecords{records: make(map[string]directory.Record)},
		keywords:   newMockKeywords(),
		embeddings: newMockEmbeddings(),
		embedder:   &mockEmbedder{},
	}
	for _, r := range recs {
		f.records.records[r.DocumentID()] = r
	}
	w, err := New(f.records, f.keywords, f.embeddings, f.embedder, opts, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(w.Stop)
	f.worker = w
	return f
}

func anna() directory.Record {
	return directory.Record{
		Kind: directory.KindProfile, ID: "1", DisplayName: "Anna Schmidt",
		Location: "Berlin", Skills: []string{"Python"},
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// --- Tests ---

func TestProcess_IndexesAndEmbeds(t *testing.T) {
	f := newFixture(t, Options{}, anna())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.worker.now = func() time.Time { return now }

	if err := f.worker.Process(context.Background(), Job{Kind: directory.KindProfile, ID: "1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.keywords.has("profile:1") {
		t.Error("keyword index not updated")
	}
	rec, ok := f.embeddings.get("profile:1")
	if !ok {
		t.Fatal("embedding not stored")
	}
	if rec.ContentHash != anna().ContentHash() || rec.Kind != "profile" || !rec.UpdatedAt.Equal(now) {
		t.Errorf("unexpected embedding record %+v", rec)
	}
}

func TestProcess_UnchangedContentSkipsEmbedding(t *testing.T) {
	f := newFixture(t, Options{}, anna())
	job := Job{Kind: directory.KindProfile, ID: "1"}

	for range 2 {
		if err := f.worker.Process(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if f.embedder.callCount() != 1 {
		t.Errorf("embedder called %d times, want 1", f.embedder.callCount())
	}

	changed := anna()
	changed.Skills = append(changed.Skills, "PyTorch")
	f.records.records[changed.DocumentID()] = changed
	if err := f.worker.Process(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.embedder.callCount() != 2 {
		t.Errorf("changed content should re-embed, calls = %d", f.embedder.callCount())
	}
}

func TestProcess_RemovedRecord(t *testing.T) {
	f := newFixture(t, Options{})
	f.keywords.docs["profile:9"] = "stale"
	f.embeddings.records["profile:9"] = domain.EmbeddingRecord{DocumentID: "profile:9"}

	if err := f.worker.Process(context.Background(), Job{Kind: directory.KindProfile, ID: "9"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.keywords.has("profile:9") {
		t.Error("keyword entry not removed")
	}
	if _, ok := f.embeddings.get("profile:9"); ok {
		t.Error("embedding not removed")
	}
}

func TestProcess_Errors(t *testing.T) {
	t.Run("load", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.records.getErr = errors.New("connection refused")
		if err := f.worker.Process(context.Background(), Job{Kind: directory.KindProfile, ID: "1"}); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("embed", func(t *testing.T) {
		f := newFixture(t, Options{}, anna())
		f.embedder.err = domain.ErrEmbeddingProviderError
		err := f.worker.Process(context.Background(), Job{Kind: directory.KindProfile, ID: "1"})
		if !errors.Is(err, domain.ErrEmbeddingProviderError) {
			t.Errorf("expected ErrEmbeddingProviderError, got %v", err)
		}
		if !f.keywords.has("profile:1") {
			t.Error("keyword index should be updated even when embedding fails")
		}
	})
}

func TestEnqueue(t *testing.T) {
	f := newFixture(t, Options{QueueSize: 1})

	if err := f.worker.Enqueue(directory.KindProfile, "1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.worker.Enqueue(directory.KindProfile, "2"); !errors.Is(err, domain.ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
	if err := f.worker.Enqueue("team", "3"); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
	if f.worker.QueueDepth() != 1 {
		t.Errorf("QueueDepth() = %d, want 1", f.worker.QueueDepth())
	}
}

func TestWorker_ProcessesQueuedJobs(t *testing.T) {
	f := newFixture(t, Options{Workers: 2}, anna())
	f.worker.Start(context.Background())

	if err := f.worker.Enqueue(directory.KindProfile, "1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, "embedding", func() bool {
		_, ok := f.embeddings.get("profile:1")
		return ok
	})
}

func TestWorker_RetriesFailedJobs(t *testing.T) {
	f := newFixture(t, Options{RetryBase: time.Millisecond}, anna())
	f.records.failures = 2
	f.worker.Start(context.Background())

	if err := f.worker.Enqueue(directory.KindProfile, "1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, "retried job", func() bool {
		_, ok := f.embeddings.get("profile:1")
		return ok
	})
	if f.records.getCalls() != 3 {
		t.Errorf("Get called %d times, want 3", f.records.getCalls())
	}
}

func TestWorker_GivesUpAfterMaxAttempts(t *testing.T) {
	f := newFixture(t, Options{RetryBase: time.Millisecond, MaxAttempts: 3}, anna())
	f.records.getErr = errors.New("table missing")
	f.worker.Start(context.Background())

	if err := f.worker.Enqueue(directory.KindProfile, "1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, "three attempts", func() bool { return f.records.getCalls() >= 3 })
	time.Sleep(20 * time.Millisecond)
	if f.records.getCalls() != 3 {
		t.Errorf("Get called %d times, want 3", f.records.getCalls())
	}
}

func TestWorker_StopDrainsQueue(t *testing.T) {
	a := anna()
	b := directory.Record{Kind: directory.KindProject, ID: "p1", DisplayName: "Beatmaker", Skills: []string{"audio"}}
	f := newFixture(t, Options{}, a, b)

	for _, rec := range []directory.Record{a, b} {
		if err := f.worker.Enqueue(rec.Kind, rec.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	f.worker.Start(context.Background())
	f.worker.Stop()

	for _, id := range []string{"profile:1", "project:p1"} {
		if _, ok := f.embeddings.get(id); !ok {
			t.Errorf("%s not processed before stop", id)
		}
	}
	if err := f.worker.Enqueue(directory.KindProfile, "1"); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
}

func TestWorker_StopRacingEnqueue(t *testing.T) {
	recs := make([]directory.Record, 50)
	for i := range recs {
		recs[i] = directory.Record{Kind: directory.KindProfile, ID: fmt.Sprint(i), DisplayName: fmt.Sprint("user ", i)}
	}
	f := newFixture(t, Options{QueueSize: len(recs)}, recs...)
	f.worker.Start(context.Background())

	var (
		mu       sync.Mutex
		accepted []string
		wg       sync.WaitGroup
	)
	for _, rec := range recs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.worker.Enqueue(rec.Kind, rec.ID); err == nil {
				mu.Lock()
				accepted = append(accepted, rec.DocumentID())
				mu.Unlock()
			} else if !errors.Is(err, ErrStopped) {
				t.Errorf("Enqueue(%s): %v", rec.ID, err)
			}
		}()
	}
	f.worker.Stop()
	wg.Wait()

	for _, id := range accepted {
		if _, ok := f.embeddings.get(id); !ok {
			t.Errorf("%s was accepted but never processed", id)
		}
	}
}

func TestWorker_PeriodicRebuild(t *testing.T) {
	f := newFixture(t, Options{RebuildInterval: 5 * time.Millisecond})
	f.worker.Start(context.Background())

	waitFor(t, "periodic rebuild", func() bool {
		f.keywords.mu.Lock()
		defer f.keywords.mu.Unlock()
		return f.keywords.rebuilds >= 2
	})
}

func TestRebuild(t *testing.T) {
	f := newFixture(t, Options{})
	f.keywords.docs["profile:1"] = "anna"

	st, err := f.worker.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.DocumentCount != 1 {
		t.Errorf("DocumentCount = %d, want 1", st.DocumentCount)
	}
}

func TestReembedAll(t *testing.T) {
	a := anna()
	empty := directory.Record{Kind: directory.KindProfile, ID: "2"}
	f := newFixture(t, Options{}, a, empty)
	f.embeddings.records["profile:gone"] = domain.EmbeddingRecord{DocumentID: "profile:gone"}

	st, err := f.worker.ReembedAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := ReembedStats{Records: 2, Embedded: 1, Unchanged: 1, Purged: 1}
	if st != want {
		t.Errorf("stats = %+v, want %+v", st, want)
	}
	if _, ok := f.embeddings.get("profile:gone"); ok {
		t.Error("orphan embedding not purged")
	}

	st, _ = f.worker.ReembedAll(context.Background())
	if st.Embedded != 0 || st.Unchanged != 2 {
		t.Errorf("second pass stats = %+v", st)
	}
}

func TestReembedAll_ListError(t *testing.T) {
	f := newFixture(t, Options{})
	f.records.listErr = errors.New("boom")
	if _, err := f.worker.ReembedAll(context.Background()); err == nil {
		t.Error("expected error")
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t, Options{}, anna())
	if err := f.worker.Process(context.Background(), Job{Kind: directory.KindProfile, ID: "1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.worker.Enqueue(directory.KindProfile, "1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st, err := f.worker.Stats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := IndexStats{
		Keyword:    keyword.ServiceStats{Stats: keyword.Stats{DocumentCount: 1}, Built: true},
		Embeddings: 1,
		Records:    1,
		QueueDepth: 1,
	}
	if st != want {
		t.Errorf("stats = %+v, want %+v", st, want)
	}

	f.embeddings.countErr = errors.New("index missing")
	if _, err := f.worker.Stats(context.Background()); err == nil {
		t.Error("expected error")
	}
}
