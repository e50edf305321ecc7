package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dirdex/internal/domain/directory"
	"github.com/kailas-cloud/dirdex/internal/domain/search/query"
	"github.com/kailas-cloud/dirdex/internal/domain/search/request"
	"github.com/kailas-cloud/dirdex/internal/domain/search/result"
	"github.com/kailas-cloud/dirdex/internal/usecase/indexsync"
	searchuc "github.com/kailas-cloud/dirdex/internal/usecase/search"
)

type mockSearch struct {
	resp    searchuc.Response
	err     error
	lastReq request.Request
	called  bool
}

func (m *mockSearch) Search(_ context.Context, req request.Request) (searchuc.Response, error) {
	m.called = true
	m.lastReq = req
	return m.resp, m.err
}

type mockStats struct {
	stats indexsync.IndexStats
	err   error
}

func (m *mockStats) Stats(_ context.Context) (indexsync.IndexStats, error) {
	return m.stats, m.err
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	}
	t.Fatalf("unexpected content type %T", res.Content[0])
	return ""
}

func TestSearchDirectory(t *testing.T) {
	search := &mockSearch{resp: searchuc.Response{
		Results: []result.Result{
			result.New(directory.Record{
				Kind: directory.KindProfile, ID: "7", DisplayName: "Jonas Weber",
				Location: "Berlin", Skills: []string{"Go", "Kubernetes"},
				Availability: directory.Availability{Hire: true},
			}, 0.82, result.MethodBM25Vector, result.Sources{BM25: 1.4, Vector: 0.66}),
		},
		TotalCount:  1,
		ParsedQuery: query.Fallback("go engineers berlin"),
	}}
	s := NewServer(search, &mockStats{}, "test", zap.NewNop())

	res, err := s.handleSearchDirectory(context.Background(), callRequest(toolSearchDirectory, map[string]interface{}{
		"query":            "go engineers berlin",
		"limit":            float64(5),
		"include_projects": true,
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	assert.Equal(t, "go engineers berlin", search.lastReq.Query())
	assert.Equal(t, 5, search.lastReq.Limit())
	assert.True(t, search.lastReq.IncludeProjects())

	var out toolResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	require.Len(t, out.Results, 1)
	assert.Equal(t, "profile:7", out.Results[0].ID)
	assert.Equal(t, "Jonas Weber", out.Results[0].DisplayName)
	assert.True(t, out.Results[0].OpenToHire)
	assert.Equal(t, 1, out.TotalCount)
}

func TestSearchDirectory_Defaults(t *testing.T) {
	search := &mockSearch{}
	s := NewServer(search, &mockStats{}, "test", zap.NewNop())

	_, err := s.handleSearchDirectory(context.Background(), callRequest(toolSearchDirectory, map[string]interface{}{
		"query": "designers",
	}))
	require.NoError(t, err)
	assert.Equal(t, defaultToolLimit, search.lastReq.Limit())
	assert.False(t, search.lastReq.IncludeProjects())
}

func TestSearchDirectory_InvalidParams(t *testing.T) {
	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"missing query", map[string]interface{}{}},
		{"blank query", map[string]interface{}{"query": "   "}},
		{"limit too large", map[string]interface{}{"query": "x", "limit": float64(500)}},
		{"limit zero", map[string]interface{}{"query": "x", "limit": float64(0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			search := &mockSearch{}
			s := NewServer(search, &mockStats{}, "test", zap.NewNop())

			_, err := s.handleSearchDirectory(context.Background(), callRequest(toolSearchDirectory, tt.args))
			var mcpErr *Error
			require.ErrorAs(t, err, &mcpErr)
			assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
			assert.False(t, search.called)
		})
	}
}

func TestSearchDirectory_SearchFailure(t *testing.T) {
	s := NewServer(&mockSearch{err: errors.New("redis: connection refused")}, &mockStats{}, "test", zap.NewNop())

	res, err := s.handleSearchDirectory(context.Background(), callRequest(toolSearchDirectory, map[string]interface{}{
		"query": "x",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.NotContains(t, resultText(t, res), "redis")
}

func TestIndexStats(t *testing.T) {
	stats := &mockStats{stats: indexsync.IndexStats{Embeddings: 4, Records: 5, QueueDepth: 1}}
	s := NewServer(&mockSearch{}, stats, "test", zap.NewNop())

	res, err := s.handleIndexStats(context.Background(), callRequest(toolIndexStats, nil))
	require.NoError(t, err)

	var got indexsync.IndexStats
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &got))
	assert.Equal(t, 4, got.Embeddings)
	assert.Equal(t, 5, got.Records)
	assert.Equal(t, 1, got.QueueDepth)
}

func TestIndexStats_Error(t *testing.T) {
	s := NewServer(&mockSearch{}, &mockStats{err: errors.New("boom")}, "test", zap.NewNop())

	_, err := s.handleIndexStats(context.Background(), callRequest(toolIndexStats, nil))
	var mcpErr *Error
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInternalError, mcpErr.Code)
}
