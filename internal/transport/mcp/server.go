// Package mcp exposes directory search as Model Context Protocol tools over stdio.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dirdex/internal/domain/search/request"
	"github.com/kailas-cloud/dirdex/internal/usecase/indexsync"
	searchuc "github.com/kailas-cloud/dirdex/internal/usecase/search"
)

// ServerName is the MCP server name.
const ServerName = "dirdex"

// SearchService runs directory searches.
type SearchService interface {
	Search(ctx context.Context, req request.Request) (searchuc.Response, error)
}

// StatsService reports index state.
type StatsService interface {
	Stats(ctx context.Context) (indexsync.IndexStats, error)
}

// Server wraps the MCP server with application dependencies.
type Server struct {
	mcp    *server.MCPServer
	search SearchService
	stats  StatsService
	logger *zap.Logger
}

// NewServer creates an MCP server and registers its tools.
func NewServer(search SearchService, stats StatsService, version string, logger *zap.Logger) *Server {
	s := &Server{
		mcp:    server.NewMCPServer(ServerName, version, server.WithToolCapabilities(false)),
		search: search,
		stats:  stats,
		logger: logger,
	}
	s.mcp.AddTool(searchDirectoryTool(), s.handleSearchDirectory)
	s.mcp.AddTool(indexStatsTool(), s.handleIndexStats)
	return s
}

// Serve runs the server on stdio and blocks until stdin closes.
func (s *Server) Serve() error {
	s.logger.Info("mcp server listening on stdio")
	return server.ServeStdio(s.mcp)
}
