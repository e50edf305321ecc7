package dirdex

import (
	"context"
	"fmt"
	"time"
)

// IndexService maintains the keyword and vector indexes.
type IndexService struct {
	indexer indexUseCase
	obs     *observer
}

// Rebuild rebuilds the keyword index from the directory.
func (s *IndexService) Rebuild(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("index.rebuild", start, err) }()

	if _, err = s.indexer.Rebuild(ctx); err != nil {
		return fmt.Errorf("rebuild: %w", err)
	}
	return nil
}

// Reembed embeds every record whose content changed since it was last
// embedded and removes vectors of deleted records.
func (s *IndexService) Reembed(ctx context.Context) (st ReindexStats, err error) {
	start := time.Now()
	defer func() { s.obs.observe("index.reembed", start, err) }()

	re, err := s.indexer.ReembedAll(ctx)
	if err != nil {
		return ReindexStats{}, fmt.Errorf("reembed: %w", err)
	}
	return ReindexStats{
		Records:   re.Records,
		Embedded:  re.Embedded,
		Unchanged: re.Unchanged,
		Failed:    re.Failed,
		Purged:    re.Purged,
	}, nil
}

// Stats reports index sizes.
func (s *IndexService) Stats(ctx context.Context) (st IndexStats, err error) {
	start := time.Now()
	defer func() { s.obs.observe("index.stats", start, err) }()

	in, err := s.indexer.Stats(ctx)
	if err != nil {
		return IndexStats{}, fmt.Errorf("index stats: %w", err)
	}
	return IndexStats{
		Documents:    in.Keyword.DocumentCount,
		Terms:        in.Keyword.TermCount,
		AvgDocLength: in.Keyword.AvgDocLength,
		Built:        in.Keyword.Built,
		BuiltAt:      in.Keyword.BuiltAt,
		Embeddings:   in.Embeddings,
		Records:      in.Records,
	}, nil
}
