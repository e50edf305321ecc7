package rerank

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dirdex/internal/domain"
)

// maxErrorBody caps how much of an error response is kept in the error text.
const maxErrorBody = 512

// Config holds the rerank provider settings.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	Logger  *zap.Logger
}

// Client talks to a /v1/rerank endpoint (Jina, Cohere, TEI and compatible
// gateways).
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	model   string
	logger  *zap.Logger
}

// NewClient creates a rerank client.
func NewClient(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		logger:  logger,
	}
}

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank implements domain.Reranker. Results are sorted by score descending
// and reference positions in documents; out-of-range and repeated positions
// from the provider are dropped.
func (c *Client) Rerank(ctx context.Context, query string, documents []string, topK int) ([]domain.RerankResult, error) {
	if len(documents) == 0 {
		return []domain.RerankResult{}, nil
	}

	body, err := json.Marshal(rerankRequest{Model: c.model, Query: query, Documents: documents, TopN: topK})
	if err != nil {
		return nil, fmt.Errorf("encode rerank request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("rerank request failed", zap.String("model", c.model), zap.Error(err))
		return nil, fmt.Errorf("rerank request: %w: %w", err, domain.ErrRerankProviderError)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("rerank API error %d: %s: %w",
			resp.StatusCode, strings.TrimSpace(string(detail)), domain.ErrRerankProviderError)
	}

	var decoded rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w: %w", err, domain.ErrRerankProviderError)
	}

	out := validResults(decoded, len(documents))
	c.logger.Debug("rerank completed",
		zap.Int("documents", len(documents)),
		zap.Int("results", len(out)),
		zap.Duration("took", time.Since(start)),
	)
	return out, nil
}

func validResults(resp rerankResponse, n int) []domain.RerankResult {
	seen := make([]bool, n)
	out := make([]domain.RerankResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.Index < 0 || r.Index >= n || seen[r.Index] {
			continue
		}
		seen[r.Index] = true
		out = append(out, domain.RerankResult{Index: r.Index, Score: r.RelevanceScore})
	}
	slices.SortStableFunc(out, func(a, b domain.RerankResult) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return out
}
