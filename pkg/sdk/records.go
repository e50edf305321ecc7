package dirdex

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/dirdex/internal/domain"
	"github.com/kailas-cloud/dirdex/internal/domain/directory"
	"github.com/kailas-cloud/dirdex/internal/usecase/indexsync"
)

// RecordService writes profiles and projects and keeps both indexes in step.
type RecordService struct {
	records     recordStore
	indexer     indexUseCase
	obs         *observer
	now         func() time.Time
	keywordOnly bool
}

// Upsert stores a record and indexes it before returning. A zero UpdatedAt
// is set to now; a zero CreatedAt takes UpdatedAt.
func (s *RecordService) Upsert(ctx context.Context, rec Record) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("record.upsert", start, err) }()

	in, err := toInternalRecord(rec)
	if err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	if in.UpdatedAt.IsZero() {
		in.UpdatedAt = s.now()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = in.UpdatedAt
	}

	if err = s.records.Upsert(ctx, in); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return s.sync(ctx, in.Kind, in.ID)
}

// Get reads a record. Returns ErrNotFound when missing.
func (s *RecordService) Get(ctx context.Context, kind Kind, id string) (rec Record, err error) {
	start := time.Now()
	defer func() { s.obs.observe("record.get", start, err) }()

	k, err := directory.ParseKind(string(kind))
	if err != nil {
		return Record{}, fmt.Errorf("get record: %w", err)
	}
	in, err := s.records.Get(ctx, k, id)
	if err != nil {
		return Record{}, fmt.Errorf("get record: %w", err)
	}
	return fromInternalRecord(in), nil
}

// Delete removes a record from the directory and from both indexes.
func (s *RecordService) Delete(ctx context.Context, kind Kind, id string) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("record.delete", start, err) }()

	k, err := directory.ParseKind(string(kind))
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if err = s.records.Delete(ctx, k, id); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return s.sync(ctx, k, id)
}

func (s *RecordService) sync(ctx context.Context, kind directory.Kind, id string) error {
	err := s.indexer.Process(ctx, indexsync.Job{Kind: kind, ID: id})
	if err == nil || (s.keywordOnly && errors.Is(err, domain.ErrEmbeddingProviderError)) {
		return nil
	}
	return fmt.Errorf("index %s: %w", directory.DocumentID(kind, id), err)
}

func toInternalRecord(r Record) (directory.Record, error) {
	kind, err := directory.ParseKind(string(r.Kind))
	if err != nil {
		return directory.Record{}, err
	}
	if strings.TrimSpace(r.ID) == "" {
		return directory.Record{}, fmt.Errorf("%w: record id is required", domain.ErrInvalidRequest)
	}
	if strings.Contains(r.ID, ":") {
		return directory.Record{}, fmt.Errorf("%w: record id must not contain ':'", domain.ErrInvalidRequest)
	}
	return directory.Record{
		Kind:        kind,
		ID:          r.ID,
		DisplayName: r.DisplayName,
		Headline:    r.Headline,
		Bio:         r.Bio,
		Location:    r.Location,
		Company:     r.Company,
		Skills:      r.Skills,
		Interests:   r.Interests,
		OwnerID:     r.OwnerID,
		Availability: directory.Availability{
			Hire:   r.Availability.Hire,
			Collab: r.Availability.Collab,
			Hiring: r.Availability.Hiring,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

func fromInternalRecord(r directory.Record) Record {
	return Record{
		Kind:        Kind(r.Kind),
		ID:          r.ID,
		DisplayName: r.DisplayName,
		Headline:    r.Headline,
		Bio:         r.Bio,
		Location:    r.Location,
		Company:     r.Company,
		Skills:      r.Skills,
		Interests:   r.Interests,
		OwnerID:     r.OwnerID,
		Availability: Availability{
			Hire:   r.Availability.Hire,
			Collab: r.Availability.Collab,
			Hiring: r.Availability.Hiring,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
