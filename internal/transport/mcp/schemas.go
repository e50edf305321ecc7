package mcp

import "github.com/mark3labs/mcp-go/mcp"

const (
	toolSearchDirectory = "search_directory"
	toolIndexStats      = "index_stats"

	defaultToolLimit = 10
	maxToolLimit     = 50
)

func searchDirectoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        toolSearchDirectory,
		Description: "Search the people and project directory with a natural language query",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "What to look for, e.g. \"python developers in Berlin open to hire\"",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results (1-50)",
					"default":     defaultToolLimit,
					"minimum":     1,
					"maximum":     maxToolLimit,
				},
				"include_projects": map[string]interface{}{
					"type":        "boolean",
					"description": "Search projects as well as profiles",
					"default":     false,
				},
			},
			Required: []string{"query"},
		},
	}
}

func indexStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        toolIndexStats,
		Description: "Report keyword index, embedding store and sync queue statistics",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
