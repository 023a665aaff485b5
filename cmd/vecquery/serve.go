package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/mike-a-ellis/vecquery/internal/indexer"
	mcpserver "github.com/mike-a-ellis/vecquery/internal/mcp"
	"github.com/mike-a-ellis/vecquery/internal/search"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the collection as MCP tools",
	Long: `Serves search_documents, index_documents and collection_status over MCP.

With SERVER_MODE=true the tools are served over Streamable HTTP at /mcp on
PORT (default 8080), next to /health and a landing page. Otherwise the server
speaks MCP on stdin/stdout and /health is still served on PORT.

The collection is provisioned first; an existing collection is reused.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	// stdout carries the protocol in stdio mode.
	status = os.Stderr

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.workflow.Provision(ctx, a.schema, false); err != nil {
		return err
	}

	server := mcpserver.NewServer(&mcpserver.Config{
		Schema:   a.schema,
		Searcher: search.NewSearcher(a.embedder, a.store, a.schema, a.cfg.CallTimeout, a.logger),
		Indexer:  indexer.NewIndexer(a.embedder, a.store, a.schema, a.cfg.CallTimeout, a.logger),
		Counter:  a.store,
		Logger:   a.logger,
	})

	mux := mcpserver.NewMux(server, a.store, &mcpserver.HTTPHandlerOptions{Stateless: true})
	httpServer := &http.Server{Addr: "0.0.0.0:" + a.cfg.Server.Port, Handler: mux}
	go func() {
		<-ctx.Done()
		httpServer.Close()
	}()

	if a.cfg.Server.HTTPMode {
		a.logger.Info("Starting HTTP server", "addr", httpServer.Addr, "collection", a.schema.Name)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	}

	go func() {
		a.logger.Info("Starting health server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Warn("Health server error", "error", err)
		}
	}()

	a.logger.Info("Starting MCP server (stdio mode)", "collection", a.schema.Name)
	return server.Run(ctx)
}
