package mcp

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mike-a-ellis/vecquery/internal/storage"
)

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
	schema storage.Schema
	logger *slog.Logger
}

// Config holds server dependencies. All of them work on the collection named by Schema.
type Config struct {
	Schema   storage.Schema
	Searcher Querier
	Indexer  DocumentIndexer
	Counter  Counter
	Version  string
	Logger   *slog.Logger // nil -> slog.Default()
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	version := cfg.Version
	if version == "" {
		version = "v0.1.0"
	}
	impl := &mcp.Implementation{
		Name:    "vecquery",
		Version: version,
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_documents",
		Description: "Find the stored documents most similar to a text. Returns document text and similarity score, best match first.",
	}, makeSearchHandler(cfg.Searcher))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "index_documents",
		Description: "Embed and store new documents in the collection. Each document is processed independently; failures are listed in the result.",
	}, makeIndexHandler(cfg.Indexer))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "collection_status",
		Description: "Report the collection name, document count, vector dimensions and similarity metric.",
	}, makeStatusHandler(cfg.Counter, cfg.Schema))

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		server: server,
		schema: cfg.Schema,
		logger: logger,
	}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
