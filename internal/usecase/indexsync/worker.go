package indexsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dirdex/internal/domain"
	"github.com/kailas-cloud/dirdex/internal/domain/directory"
	"github.com/kailas-cloud/dirdex/internal/keyword"
	"github.com/kailas-cloud/dirdex/internal/metrics"
)

// Defaults for Options.
const (
	DefaultQueueSize   = 1024
	DefaultWorkers     = 4
	DefaultMaxAttempts = 5
	DefaultRetryBase   = 500 * time.Millisecond
	DefaultJobTimeout  = 30 * time.Second
)

// ErrStopped is returned by Enqueue after Stop.
var ErrStopped = errors.New("index sync worker stopped")

// Job asks the worker to bring one record's index entries up to date.
type Job struct {
	Kind directory.Kind
	ID   string

	attempt int
}

// DocumentID returns the namespaced id of the job's record.
func (j Job) DocumentID() string { return directory.DocumentID(j.Kind, j.ID) }

// Options tunes the worker.
type Options struct {
	QueueSize       int
	Workers         int
	MaxAttempts     int
	RetryBase       time.Duration
	JobTimeout      time.Duration
	RebuildInterval time.Duration // 0 disables the periodic rebuild
}

// ReembedStats summarizes a full embedding pass.
type ReembedStats struct {
	Records   int `json:"records"`
	Embedded  int `json:"embedded"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
	Purged    int `json:"purged"`
}

// IndexStats describes the state of both indexes.
type IndexStats struct {
	Keyword    keyword.ServiceStats `json:"keyword"`
	Embeddings int                  `json:"embeddings"`
	Records    int                  `json:"records"`
	QueueDepth int                  `json:"queue_depth"`
}

// Worker keeps the keyword index and the embedding store in step with the
// directory. Jobs go through a bounded queue into a fixed goroutine pool and
// are processed at least once: failures are retried with exponential backoff
// up to MaxAttempts.
type Worker struct {
	records    RecordSource
	keywords   KeywordIndex
	embeddings EmbeddingStore
	embedder   domain.Embedder
	opts       Options
	logger     *zap.Logger
	now        func() time.Time

	queue   chan Job
	pool    *ants.Pool
	stop    chan struct{}
	done    chan struct{}
	started atomic.Bool
	stopped atomic.Bool
	once    sync.Once
	jobs    sync.WaitGroup
	cancel  context.CancelFunc

	// pushMu orders sends to queue before Stop flips stopped; a job
	// accepted by push is always seen by the final drain.
	pushMu sync.RWMutex
}

// New creates a worker. embedder is expected to carry the document
// instruction.
func New(
	records RecordSource, keywords KeywordIndex, embeddings EmbeddingStore,
	embedder domain.Embedder, opts Options, logger *zap.Logger,
) (*Worker, error) {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = DefaultRetryBase
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = DefaultJobTimeout
	}

	pool, err := ants.NewPool(opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	return &Worker{
		records:    records,
		keywords:   keywords,
		embeddings: embeddings,
		embedder:   embedder,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
		queue:      make(chan Job, opts.QueueSize),
		pool:       pool,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}, nil
}

// Start launches the dispatcher. ctx bounds job processing; Stop drains the
// queue before cancelling it.
func (w *Worker) Start(ctx context.Context) {
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)
	go w.dispatch(ctx)
}

// Enqueue schedules a sync for one record. It never blocks: a full queue
// returns domain.ErrQueueFull.
func (w *Worker) Enqueue(kind directory.Kind, id string) error {
	if !kind.IsValid() || id == "" {
		return fmt.Errorf("%w: invalid sync job %s:%s", domain.ErrInvalidRequest, kind, id)
	}
	return w.push(Job{Kind: kind, ID: id})
}

func (w *Worker) push(job Job) error {
	w.pushMu.RLock()
	defer w.pushMu.RUnlock()
	if w.stopped.Load() {
		return ErrStopped
	}
	select {
	case w.queue <- job:
		metrics.SyncQueueDepth.Set(float64(len(w.queue)))
		return nil
	default:
		metrics.SyncJobsTotal.WithLabelValues("dropped").Inc()
		return fmt.Errorf("%w: %s", domain.ErrQueueFull, job.DocumentID())
	}
}

// Stop refuses new jobs, processes what is already queued, waits for
// in-flight jobs and releases the pool. Pending retries are dropped.
func (w *Worker) Stop() {
	w.once.Do(func() {
		w.pushMu.Lock()
		w.stopped.Store(true)
		w.pushMu.Unlock()
		close(w.stop)
		if w.started.Load() {
			<-w.done
		}
		w.jobs.Wait()
		if w.cancel != nil {
			w.cancel()
		}
		w.pool.Release()
	})
}

// QueueDepth returns the number of queued jobs.
func (w *Worker) QueueDepth() int { return len(w.queue) }

// Stats reports index sizes next to the directory record count.
func (w *Worker) Stats(ctx context.Context) (IndexStats, error) {
	embeddings, err := w.embeddings.Count(ctx)
	if err != nil {
		return IndexStats{}, fmt.Errorf("count embeddings: %w", err)
	}
	records, err := w.records.Count(ctx, nil)
	if err != nil {
		return IndexStats{}, fmt.Errorf("count records: %w", err)
	}
	return IndexStats{
		Keyword:    w.keywords.Stats(),
		Embeddings: embeddings,
		Records:    records,
		QueueDepth: w.QueueDepth(),
	}, nil
}

func (w *Worker) dispatch(ctx context.Context) {
	defer close(w.done)

	var tick <-chan time.Time
	if w.opts.RebuildInterval > 0 {
		ticker := time.NewTicker(w.opts.RebuildInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case job := <-w.queue:
			w.submit(ctx, job)
		case <-tick:
			w.jobs.Add(1)
			if err := w.pool.Submit(func() {
				defer w.jobs.Done()
				if _, err := w.Rebuild(ctx); err != nil {
					w.logger.Error("periodic keyword rebuild failed", zap.Error(err))
				}
			}); err != nil {
				w.jobs.Done()
				w.logger.Error("submit periodic rebuild", zap.Error(err))
			}
		case <-w.stop:
			for {
				select {
				case job := <-w.queue:
					w.submit(ctx, job)
				default:
					return
				}
			}
		}
	}
}

func (w *Worker) submit(ctx context.Context, job Job) {
	metrics.SyncQueueDepth.Set(float64(len(w.queue)))
	w.jobs.Add(1)
	err := w.pool.Submit(func() {
		defer w.jobs.Done()
		w.handle(ctx, job)
	})
	if err != nil {
		w.jobs.Done()
		metrics.SyncJobsTotal.WithLabelValues("dropped").Inc()
		w.logger.Error("submit sync job", zap.String("doc_id", job.DocumentID()), zap.Error(err))
	}
}

func (w *Worker) handle(ctx context.Context, job Job) {
	jobCtx, cancel := context.WithTimeout(ctx, w.opts.JobTimeout)
	err := w.Process(jobCtx, job)
	cancel()
	if err == nil {
		metrics.SyncJobsTotal.WithLabelValues("ok").Inc()
		return
	}

	job.attempt++
	if job.attempt >= w.opts.MaxAttempts {
		metrics.SyncJobsTotal.WithLabelValues("failed").Inc()
		w.logger.Error("sync job failed",
			zap.String("doc_id", job.DocumentID()),
			zap.Int("attempts", job.attempt),
			zap.Error(err),
		)
		return
	}

	delay := w.opts.RetryBase << (job.attempt - 1)
	metrics.SyncJobsTotal.WithLabelValues("retry").Inc()
	w.logger.Warn("sync job failed, retrying",
		zap.String("doc_id", job.DocumentID()),
		zap.Int("attempt", job.attempt),
		zap.Duration("backoff", delay),
		zap.Error(err),
	)
	w.retryAfter(job, delay)
}

func (w *Worker) retryAfter(job Job, delay time.Duration) {
	w.jobs.Add(1)
	go func() {
		defer w.jobs.Done()
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
			if err := w.push(job); err != nil {
				w.logger.Warn("requeue sync job", zap.String("doc_id", job.DocumentID()), zap.Error(err))
			}
		case <-w.stop:
			metrics.SyncJobsTotal.WithLabelValues("dropped").Inc()
		}
	}()
}

// Process syncs one record synchronously. A record that no longer exists is
// removed from both indexes. Otherwise the keyword entry is replaced and the
// vector is recomputed only when the content hash changed.
func (w *Worker) Process(ctx context.Context, job Job) error {
	docID := job.DocumentID()
	rec, err := w.records.Get(ctx, job.Kind, job.ID)
	if errors.Is(err, domain.ErrNotFound) {
		w.keywords.Delete(docID)
		if err := w.embeddings.Delete(ctx, docID); err != nil {
			return fmt.Errorf("delete embedding %s: %w", docID, err)
		}
		w.logger.Debug("record removed from indexes", zap.String("doc_id", docID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", docID, err)
	}

	w.keywords.Upsert(keyword.Source{ID: docID, Content: rec.SearchText()})
	if _, err := w.syncEmbedding(ctx, rec); err != nil {
		return err
	}
	return nil
}

// syncEmbedding embeds rec when its stored hash is stale. It reports whether
// a new vector was written.
func (w *Worker) syncEmbedding(ctx context.Context, rec directory.Record) (bool, error) {
	docID := rec.DocumentID()
	text := rec.SearchText()
	if text == "" {
		if err := w.embeddings.Delete(ctx, docID); err != nil {
			return false, fmt.Errorf("delete embedding %s: %w", docID, err)
		}
		return false, nil
	}

	stored, err := w.embeddings.ContentHash(ctx, docID)
	if err != nil {
		return false, fmt.Errorf("read content hash %s: %w", docID, err)
	}
	if stored == domain.ContentHash(text) {
		return false, nil
	}

	emb, err := w.embedder.Embed(ctx, text)
	if err != nil {
		return false, fmt.Errorf("embed %s: %w", docID, err)
	}
	embRec := domain.NewEmbeddingRecord(docID, string(rec.Kind), text, emb.Embedding, w.now())
	if err := w.embeddings.Upsert(ctx, embRec); err != nil {
		return false, fmt.Errorf("store embedding %s: %w", docID, err)
	}
	return true, nil
}

// Rebuild replaces the keyword index with a fresh build from the directory.
func (w *Worker) Rebuild(ctx context.Context) (keyword.Stats, error) {
	start := time.Now()
	st, err := w.keywords.Rebuild(ctx)
	if err != nil {
		return keyword.Stats{}, err
	}
	metrics.KeywordRebuildDuration.Observe(time.Since(start).Seconds())
	metrics.KeywordIndexDocuments.Set(float64(st.DocumentCount))
	return st, nil
}

// ReembedAll walks every record, embedding those whose content changed, and
// purges vectors whose record is gone. Per-record failures are counted, not
// returned.
func (w *Worker) ReembedAll(ctx context.Context) (ReembedStats, error) {
	recs, err := w.records.ListAll(ctx)
	if err != nil {
		return ReembedStats{}, fmt.Errorf("list records: %w", err)
	}

	st := ReembedStats{Records: len(recs)}
	live := make(map[string]bool, len(recs))
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		live[rec.DocumentID()] = true
		embedded, err := w.syncEmbedding(ctx, rec)
		switch {
		case err != nil:
			st.Failed++
			w.logger.Warn("reembed failed", zap.String("doc_id", rec.DocumentID()), zap.Error(err))
		case embedded:
			st.Embedded++
		default:
			st.Unchanged++
		}
	}

	stored, err := w.embeddings.DocumentIDs(ctx)
	if err != nil {
		return st, fmt.Errorf("list stored embeddings: %w", err)
	}
	for _, id := range stored {
		if live[id] {
			continue
		}
		if err := w.embeddings.Delete(ctx, id); err != nil {
			w.logger.Warn("purge orphan embedding", zap.String("doc_id", id), zap.Error(err))
			continue
		}
		st.Purged++
	}

	w.logger.Info("reembed completed",
		zap.Int("records", st.Records),
		zap.Int("embedded", st.Embedded),
		zap.Int("unchanged", st.Unchanged),
		zap.Int("failed", st.Failed),
		zap.Int("purged", st.Purged),
	)
	return st, nil
}
