package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dirdex/internal/domain"
)

// Roles of the two embedder chains.
const (
	RoleDocument = "document"
	RoleQuery    = "query"
)

// Failure reasons reported to the failures counter.
const (
	reasonEmptyInput  = "empty_input"
	reasonProvider    = "provider"
	reasonDimMismatch = "dim_mismatch"
	reasonCanceled    = "canceled"
)

// InstrumentedEmbedder guards one embedder chain: it rejects blank input,
// checks vector dimensions and counts failures per role. Transport metrics
// are recorded in transport/openai.
type InstrumentedEmbedder struct {
	inner      domain.Embedder
	role       string
	model      string
	dimensions int
	failures   *prometheus.CounterVec
	logger     *zap.Logger
}

// Options configure an InstrumentedEmbedder.
type Options struct {
	Role  string
	Model string
	// Dimensions <= 0 disables the dimension check.
	Dimensions int
	// Failures is labeled by role and reason; nil disables counting.
	Failures *prometheus.CounterVec
}

// NewInstrumentedEmbedder wraps inner.
func NewInstrumentedEmbedder(inner domain.Embedder, opts Options, logger *zap.Logger) *InstrumentedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedEmbedder{
		inner:      inner,
		role:       opts.Role,
		model:      opts.Model,
		dimensions: opts.Dimensions,
		failures:   opts.Failures,
		logger:     logger.With(zap.String("embedder", opts.Role)),
	}
}

// Embed delegates to the inner embedder and checks the returned vector.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if strings.TrimSpace(text) == "" {
		p.fail(reasonEmptyInput)
		return domain.EmbeddingResult{}, fmt.Errorf("empty text: %w", domain.ErrInvalidRequest)
	}

	start := time.Now()
	res, err := p.inner.Embed(ctx, text)
	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			p.fail(reasonCanceled)
			return domain.EmbeddingResult{}, fmt.Errorf("embed %s: %w", p.role, err)
		}
		p.fail(reasonProvider)
		p.logger.Error("embedding failed",
			zap.String("model", p.model),
			zap.Int("text_len", len(text)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed %s: %w", p.role, err)
	}

	if p.dimensions > 0 && len(res.Embedding) != p.dimensions {
		p.fail(reasonDimMismatch)
		p.logger.Error("embedding dimension mismatch",
			zap.String("model", p.model),
			zap.Int("expected", p.dimensions),
			zap.Int("actual", len(res.Embedding)),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("got %d dimensions, want %d: %w",
			len(res.Embedding), p.dimensions, domain.ErrVectorDimMismatch)
	}

	p.logger.Debug("embedded",
		zap.Duration("duration", duration),
		zap.Int("total_tokens", res.TotalTokens),
	)
	return res, nil
}

func (p *InstrumentedEmbedder) fail(reason string) {
	if p.failures != nil {
		p.failures.WithLabelValues(p.role, reason).Inc()
	}
}
