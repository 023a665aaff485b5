// Package mcp exposes a collection's query and indexing operations as MCP tools.
package mcp

// SearchDocumentsInput defines the input parameters for the search_documents tool.
type SearchDocumentsInput struct {
	// Query is the natural language text to match.
	Query string `json:"query" jsonschema:"The text to find similar documents for"`
	// K is the maximum number of documents to return.
	K int `json:"k,omitempty" jsonschema:"Maximum number of documents to return (default 5)"`
	// Candidates is the approximate-neighbour pool examined before ranking.
	Candidates int `json:"candidates,omitempty" jsonschema:"Candidate pool size; raised to k when smaller (default 2*k)"`
}

// SearchDocumentsOutput contains the ranked matches.
type SearchDocumentsOutput struct {
	Results []SearchResult `json:"results"`
	// Message is set when nothing matched.
	Message string `json:"message,omitempty"`
}

// SearchResult is one stored document and its similarity to the query.
type SearchResult struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// IndexDocumentsInput defines the input parameters for the index_documents tool.
type IndexDocumentsInput struct {
	Documents []string `json:"documents" jsonschema:"Texts to embed and store, one document each"`
}

// IndexDocumentsOutput reports per-document outcomes.
type IndexDocumentsOutput struct {
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	IDs       []string `json:"ids"`              // IDs of stored documents, in input order
	Errors    []string `json:"errors,omitempty"` // One entry per failed document
}

// StatusInput takes no parameters.
type StatusInput struct{}

// StatusOutput describes the served collection.
type StatusOutput struct {
	Collection  string `json:"collection"`
	Documents   uint64 `json:"documents"`
	VectorField string `json:"vector_field"`
	Dimensions  int    `json:"dimensions"`
	Metric      string `json:"metric"`
}
