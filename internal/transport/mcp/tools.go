package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dirdex/internal/domain"
	"github.com/kailas-cloud/dirdex/internal/domain/search/query"
	"github.com/kailas-cloud/dirdex/internal/domain/search/request"
)

// JSON-RPC error codes.
const (
	ErrorCodeInvalidParams = -32602
	ErrorCodeInternalError = -32603
)

// Error is an MCP protocol error returned from a tool handler.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("mcp error %d: %s", e.Code, e.Message)
}

func invalidParams(format string, args ...any) error {
	return &Error{Code: ErrorCodeInvalidParams, Message: fmt.Sprintf(format, args...)}
}

type toolResult struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Score       float64  `json:"score"`
	DisplayName string   `json:"display_name"`
	Headline    string   `json:"headline,omitempty"`
	Location    string   `json:"location,omitempty"`
	Company     string   `json:"company,omitempty"`
	Skills      []string `json:"skills,omitempty"`
	OpenToHire  bool     `json:"open_to_hire,omitempty"`
	Hiring      bool     `json:"hiring,omitempty"`
}

type toolResponse struct {
	Results     []toolResult `json:"results"`
	TotalCount  int          `json:"total_count"`
	ParsedQuery query.Parsed `json:"parsed_query"`
	Fallback    bool         `json:"fallback,omitempty"`
}

func (s *Server) handleSearchDirectory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := req.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, invalidParams("invalid arguments")
	}

	q, _ := args["query"].(string)
	if strings.TrimSpace(q) == "" {
		return nil, invalidParams("query parameter is required")
	}
	limit := getIntDefault(args, "limit", defaultToolLimit)
	if limit < 1 || limit > maxToolLimit {
		return nil, invalidParams("limit must be between 1 and %d", maxToolLimit)
	}

	sr, err := request.New(q, request.Options{
		Limit:           limit,
		IncludeProjects: getBoolDefault(args, "include_projects", false),
	})
	if err != nil {
		return nil, invalidParams("%v", err)
	}

	resp, err := s.search.Search(ctx, sr)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			return nil, invalidParams("%v", err)
		}
		s.logger.Error("mcp search failed", zap.Error(err))
		return mcp.NewToolResultError("search failed"), nil
	}

	out := toolResponse{
		Results:     make([]toolResult, 0, len(resp.Results)),
		TotalCount:  resp.TotalCount,
		ParsedQuery: resp.ParsedQuery,
		Fallback:    resp.Fallback,
	}
	for i := range resp.Results {
		r := &resp.Results[i]
		rec := r.Record()
		out.Results = append(out.Results, toolResult{
			ID:          r.ID(),
			Type:        string(r.Kind()),
			Score:       r.Score(),
			DisplayName: rec.DisplayName,
			Headline:    rec.Headline,
			Location:    rec.Location,
			Company:     rec.Company,
			Skills:      rec.Skills,
			OpenToHire:  rec.Availability.Hire,
			Hiring:      rec.Availability.Hiring,
		})
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleIndexStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.stats.Stats(ctx)
	if err != nil {
		s.logger.Error("mcp index stats failed", zap.Error(err))
		return nil, &Error{Code: ErrorCodeInternalError, Message: "failed to read index stats"}
	}
	return mcp.NewToolResultText(formatJSON(st)), nil
}

func formatJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func getBoolDefault(args map[string]interface{}, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}

// getIntDefault accepts JSON numbers, which decode as float64.
func getIntDefault(args map[string]interface{}, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}
