package mcp

import (
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// HTTPHandlerOptions configures the HTTP transport behavior.
type HTTPHandlerOptions struct {
	// Stateless disables session management. The tools here never call
	// back into the client, so stateless mode is safe behind a load balancer.
	Stateless bool
}

// NewHTTPHandler creates a Streamable HTTP handler for the MCP server.
func NewHTTPHandler(server *Server, opts *HTTPHandlerOptions) http.Handler {
	if opts == nil {
		opts = &HTTPHandlerOptions{}
	}

	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return server.MCPServer()
	}, &mcp.StreamableHTTPOptions{
		Stateless: opts.Stateless,
	})
}

// NewMux mounts the landing page at /, the health check at /health and the
// MCP endpoint at /mcp.
func NewMux(server *Server, store HealthChecker, opts *HTTPHandlerOptions) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", server.NewLandingHandler())
	mux.HandleFunc("/health", NewHealthHandler(store))
	mux.Handle("/mcp", NewHTTPHandler(server, opts))
	return mux
}
