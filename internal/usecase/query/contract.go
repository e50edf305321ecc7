package query

import (
	"context"

	domquery "github.com/kailas-cloud/dirdex/internal/domain/search/query"
)

// Generator is the structured-generation backend (an LLM in production).
type Generator interface {
	Generate(ctx context.Context, raw string) (domquery.Parsed, error)
}
