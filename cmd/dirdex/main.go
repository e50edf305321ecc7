package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/kailas-cloud/dirdex/internal/version"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "dirdex:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "dirdex",
		Usage:   "Hybrid keyword and semantic search over a people and project directory",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Aliases: []string{"e"},
				Usage:   "Config environment, selects config/<env>.yaml (local, dev, prod)",
				EnvVars: []string{"ENV"},
				Value:   "local",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Override the configured log level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and the index sync worker",
				Action: serveCommand,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the search tools over MCP on stdio",
				Action: mcpCommand,
			},
			{
				Name:      "search",
				Usage:     "Run one search and print the results as JSON",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of results",
						Value: 10,
					},
					&cli.BoolFlag{
						Name:  "include-projects",
						Usage: "Search projects as well as profiles",
					},
					&cli.StringFlag{
						Name:  "sort",
						Usage: "relevance, recent, name or random",
						Value: "relevance",
					},
					&cli.BoolFlag{
						Name:  "no-rerank",
						Usage: "Skip the reranking stage",
					},
				},
			},
			{
				Name:   "reindex",
				Usage:  "Re-embed every directory record and purge orphaned embeddings",
				Action: reindexCommand,
			},
			{
				Name:   "migrate",
				Usage:  "Apply directory schema migrations",
				Action: migrateCommand,
			},
		},
	}
}
