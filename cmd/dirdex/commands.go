package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dirdex/internal/domain/search/order"
	"github.com/kailas-cloud/dirdex/internal/domain/search/request"
	directoryrepo "github.com/kailas-cloud/dirdex/internal/repository/directory"
	chiTransport "github.com/kailas-cloud/dirdex/internal/transport/chi"
	mcpTransport "github.com/kailas-cloud/dirdex/internal/transport/mcp"
	"github.com/kailas-cloud/dirdex/internal/version"
)

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx, c)
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger

	a.buildKeywordIndex(ctx)
	a.worker.Start(ctx)
	defer a.worker.Stop()

	scfg := searchConfig(a.cfg)
	server := chiTransport.NewServer(a.search, a.worker, a.health, chiTransport.SearchDefaults{
		Weights:    scfg.Weights,
		Thresholds: scfg.Thresholds,
	}, logger)

	addr := fmt.Sprintf(":%d", a.cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      chiTransport.NewRouter(server, a.cfg.Auth.APIKeys, logger),
		ReadTimeout:  time.Duration(a.cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(a.cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(a.cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}

func mcpCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx, c)
	if err != nil {
		return err
	}
	defer a.Close()

	a.buildKeywordIndex(ctx)
	a.worker.Start(ctx)
	defer a.worker.Stop()

	return mcpTransport.NewServer(a.search, a.worker, version.Version, a.logger).Serve()
}

func searchCommand(c *cli.Context) error {
	q := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(q) == "" {
		return fmt.Errorf("a query is required")
	}

	opts := request.Options{
		Limit:           c.Int("limit"),
		Sort:            order.Order(c.String("sort")),
		IncludeProjects: c.Bool("include-projects"),
	}
	if c.Bool("no-rerank") {
		off := false
		opts.EnableReranking = &off
	}
	req, err := request.New(q, opts)
	if err != nil {
		return err
	}

	ctx := c.Context
	a, err := bootstrap(ctx, c)
	if err != nil {
		return err
	}
	defer a.Close()

	a.buildKeywordIndex(ctx)
	resp, err := a.search.Search(ctx, req)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	type line struct {
		ID       string   `json:"id"`
		Score    float64  `json:"score"`
		Method   string   `json:"method"`
		Name     string   `json:"name"`
		Headline string   `json:"headline,omitempty"`
		Location string   `json:"location,omitempty"`
		Skills   []string `json:"skills,omitempty"`
	}
	out := struct {
		Query      string `json:"query"`
		TotalCount int    `json:"total_count"`
		Fallback   bool   `json:"fallback,omitempty"`
		Results    []line `json:"results"`
	}{Query: q, TotalCount: resp.TotalCount, Fallback: resp.Fallback, Results: []line{}}
	for i := range resp.Results {
		r := &resp.Results[i]
		rec := r.Record()
		out.Results = append(out.Results, line{
			ID:       r.ID(),
			Score:    r.Score(),
			Method:   string(r.Method()),
			Name:     rec.DisplayName,
			Headline: rec.Headline,
			Location: rec.Location,
			Skills:   rec.Skills,
		})
	}
	return printJSON(c, out)
}

func reindexCommand(c *cli.Context) error {
	ctx := c.Context
	a, err := bootstrap(ctx, c)
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := a.worker.ReembedAll(ctx)
	if err != nil {
		return fmt.Errorf("reindex: %w", err)
	}
	a.logger.Info("Reindex finished",
		zap.Int("records", st.Records),
		zap.Int("embedded", st.Embedded),
		zap.Int("unchanged", st.Unchanged),
		zap.Int("failed", st.Failed),
		zap.Int("purged", st.Purged),
	)
	return printJSON(c, st)
}

func migrateCommand(c *cli.Context) error {
	b, err := loadBase(c)
	if err != nil {
		return err
	}
	defer func() { _ = b.logger.Sync() }()

	ctx := c.Context
	sqlDB, err := b.openDirectory(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()

	applied, err := directoryrepo.Migrate(ctx, sqlDB, b.cfg.Directory.Driver)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	b.logger.Info("Migrations applied", zap.Int("count", applied))
	return nil
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
