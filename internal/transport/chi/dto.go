package chi

import (
	"time"

	"github.com/kailas-cloud/dirdex/internal/domain/search/query"
	"github.com/kailas-cloud/dirdex/internal/domain/search/request"
	"github.com/kailas-cloud/dirdex/internal/domain/search/result"
	"github.com/kailas-cloud/dirdex/internal/domain/search/timing"
	"github.com/kailas-cloud/dirdex/internal/keyword"
	"github.com/kailas-cloud/dirdex/internal/usecase/indexsync"
	searchuc "github.com/kailas-cloud/dirdex/internal/usecase/search"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type availabilityDTO struct {
	Hire   bool `json:"hire"`
	Collab bool `json:"collab"`
	Hiring bool `json:"hiring"`
}

type searchResultItem struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Score         float64         `json:"score"`
	SearchMethod  string          `json:"search_method"`
	OriginalScore *float64        `json:"original_score,omitempty"`
	RerankScore   *float64        `json:"rerank_score,omitempty"`
	DisplayName   string          `json:"display_name"`
	Headline      string          `json:"headline,omitempty"`
	Location      string          `json:"location,omitempty"`
	Company       string          `json:"company,omitempty"`
	Skills        []string        `json:"skills"`
	Interests     []string        `json:"interests,omitempty"`
	OwnerID       string          `json:"owner_id,omitempty"`
	Availability  availabilityDTO `json:"availability"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type searchResponse struct {
	Results     []searchResultItem `json:"results"`
	TotalCount  int                `json:"total_count"`
	Page        int                `json:"page"`
	Limit       int                `json:"limit"`
	ParsedQuery query.Parsed       `json:"parsed_query"`
	Timing      timing.Timing      `json:"timing"`
	Fallback    bool               `json:"fallback,omitempty"`
}

type rebuildResponse struct {
	Keyword    keyword.Stats           `json:"keyword"`
	Embeddings *indexsync.ReembedStats `json:"embeddings,omitempty"`
}

type syncResponse struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
}

func searchResponseFromResult(req request.Request, resp searchuc.Response) searchResponse {
	items := make([]searchResultItem, len(resp.Results))
	for i := range resp.Results {
		items[i] = searchResultToItem(&resp.Results[i])
	}
	return searchResponse{
		Results:     items,
		TotalCount:  resp.TotalCount,
		Page:        req.Page(),
		Limit:       req.Limit(),
		ParsedQuery: resp.ParsedQuery,
		Timing:      resp.Timing,
		Fallback:    resp.Fallback,
	}
}

func searchResultToItem(r *result.Result) searchResultItem {
	rec := r.Record()
	skills := rec.Skills
	if skills == nil {
		skills = []string{}
	}
	item := searchResultItem{
		ID:           r.ID(),
		Type:         string(r.Kind()),
		Score:        r.Score(),
		SearchMethod: string(r.Method()),
		DisplayName:  rec.DisplayName,
		Headline:     rec.Headline,
		Location:     rec.Location,
		Company:      rec.Company,
		Skills:       skills,
		Interests:    rec.Interests,
		OwnerID:      rec.OwnerID,
		Availability: availabilityDTO{
			Hire:   rec.Availability.Hire,
			Collab: rec.Availability.Collab,
			Hiring: rec.Availability.Hiring,
		},
		UpdatedAt: rec.UpdatedAt.UTC(),
	}
	if r.Reranked() {
		orig, rr := r.OriginalScore(), r.RerankScore()
		item.OriginalScore = &orig
		item.RerankScore = &rr
	}
	return item
}
