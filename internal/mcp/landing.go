package mcp

import (
	"html/template"
	"net/http"
)

var landingTemplate = template.Must(template.New("landing").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>vecquery</title>
<style>
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; background: #0f172a; color: #e2e8f0; display: flex; justify-content: center; padding: 3rem 1rem; }
  .card { max-width: 600px; width: 100%; background: #1e293b; border-radius: 12px; padding: 2rem; }
  h1 { margin: 0 0 0.5rem; }
  .muted { color: #94a3b8; }
  a { color: #38bdf8; }
  code { font-family: "SF Mono", Menlo, monospace; color: #a5b4fc; }
  td { padding: 0.2rem 1rem 0.2rem 0; }
</style>
</head>
<body>
<div class="card">
  <h1>vecquery</h1>
  <p class="muted">Similarity search over the <code>{{.Name}}</code> collection via the Model Context Protocol.</p>
  <table>
    <tr><td>Vector field</td><td><code>{{.VectorField}}</code></td></tr>
    <tr><td>Dimensions</td><td>{{.Dimensions}}</td></tr>
    <tr><td>Metric</td><td>{{.Metric}}</td></tr>
  </table>
  <p><a href="/mcp"><code>/mcp</code></a> MCP Streamable HTTP</p>
  <p><a href="/health"><code>/health</code></a> Health check</p>
</div>
</body>
</html>`))

// NewLandingHandler returns an HTTP handler that serves the landing page at /.
func (s *Server) NewLandingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := landingTemplate.Execute(w, s.schema); err != nil {
			s.logger.Warn("Failed to render landing page", "error", err)
		}
	}
}
