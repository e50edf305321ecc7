package keyword

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Loader supplies the full corpus for a rebuild.
type Loader interface {
	LoadDocuments(ctx context.Context) ([]Source, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) ([]Source, error)

// LoadDocuments calls f.
func (f LoaderFunc) LoadDocuments(ctx context.Context) ([]Source, error) {
	return f(ctx)
}

// ServiceStats extends Stats with build bookkeeping.
type ServiceStats struct {
	Stats
	Built   bool      `json:"built"`
	BuiltAt time.Time `json:"built_at"`
}

// Service owns the live index. Rebuilds construct a new index off to the
// side and swap it in atomically, so readers never wait on a full build.
// Incremental writes and rebuilds are serialized by writeMu.
type Service struct {
	loader Loader
	logger *zap.Logger

	live    atomic.Pointer[Index]
	builtAt atomic.Int64
	writeMu sync.Mutex
}

// NewService creates a service with no index built yet.
func NewService(loader Loader, logger *zap.Logger) *Service {
	return &Service{loader: loader, logger: logger}
}

// Rebuild loads every document and replaces the live index.
func (s *Service) Rebuild(ctx context.Context) (Stats, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	start := time.Now()
	docs, err := s.loader.LoadDocuments(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("load documents: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Stats{}, fmt.Errorf("rebuild keyword index: %w", err)
	}

	ix := Build(docs)
	s.live.Store(ix)
	s.builtAt.Store(time.Now().UnixNano())

	st := ix.Stats()
	s.logger.Info("keyword index rebuilt",
		zap.Int("documents", st.DocumentCount),
		zap.Int("terms", st.TermCount),
		zap.Duration("took", time.Since(start)),
	)
	return st, nil
}

// Upsert indexes a single document in the live index. Before the first
// rebuild it is a no-op: the rebuild will pick the document up.
func (s *Service) Upsert(doc Source) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	ix := s.live.Load()
	if ix == nil {
		s.logger.Debug("keyword index not built, skipping upsert", zap.String("id", doc.ID))
		return
	}
	ix.Add(doc)
}

// Delete removes a document from the live index.
func (s *Service) Delete(id string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if ix := s.live.Load(); ix != nil {
		ix.Remove(id)
	}
}

// Search queries the live index. An unbuilt index returns no hits.
func (s *Service) Search(query string, opts Options) []Hit {
	ix := s.live.Load()
	if ix == nil {
		return []Hit{}
	}
	return ix.Search(query, opts)
}

// Built reports whether a rebuild has completed.
func (s *Service) Built() bool {
	return s.live.Load() != nil
}

// Stats reports the live index statistics.
func (s *Service) Stats() ServiceStats {
	ix := s.live.Load()
	if ix == nil {
		return ServiceStats{}
	}
	return ServiceStats{
		Stats:   ix.Stats(),
		Built:   true,
		BuiltAt: time.Unix(0, s.builtAt.Load()),
	}
}
