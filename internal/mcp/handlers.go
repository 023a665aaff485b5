package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mike-a-ellis/vecquery/internal/indexer"
	"github.com/mike-a-ellis/vecquery/internal/storage"
)

const defaultK = 5

// Querier runs similarity queries against the served collection.
type Querier interface {
	Query(ctx context.Context, text string, k, candidatePool int) ([]storage.ScoredDocument, error)
}

// DocumentIndexer embeds and stores texts in the served collection.
type DocumentIndexer interface {
	IndexDocuments(ctx context.Context, texts []string) *indexer.Result
}

// Counter reports how many documents a collection holds.
type Counter interface {
	Count(ctx context.Context, collection string) (uint64, error)
}

// makeSearchHandler creates the search_documents tool handler.
// k defaults to 5 and the candidate pool to 2*k; a pool smaller than k is raised to k.
func makeSearchHandler(q Querier) func(
	context.Context, *mcp.CallToolRequest, SearchDocumentsInput,
) (*mcp.CallToolResult, SearchDocumentsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchDocumentsInput) (
		*mcp.CallToolResult, SearchDocumentsOutput, error,
	) {
		k := input.K
		if k <= 0 {
			k = defaultK
		}
		candidates := input.Candidates
		if candidates <= 0 {
			candidates = 2 * k
		}
		if candidates < k {
			candidates = k
		}

		hits, err := q.Query(ctx, input.Query, k, candidates)
		if err != nil {
			return nil, SearchDocumentsOutput{}, fmt.Errorf("search failed: %w", err)
		}

		results := make([]SearchResult, 0, len(hits))
		for _, h := range hits {
			results = append(results, SearchResult{ID: h.ID, Text: h.Text, Score: h.Score})
		}

		if len(results) == 0 {
			return nil, SearchDocumentsOutput{
				Results: results,
				Message: "No documents indexed yet.",
			}, nil
		}
		return nil, SearchDocumentsOutput{Results: results}, nil
	}
}

// makeIndexHandler creates the index_documents tool handler. Failed
// documents are reported in the output, not as a tool error.
func makeIndexHandler(ix DocumentIndexer) func(
	context.Context, *mcp.CallToolRequest, IndexDocumentsInput,
) (*mcp.CallToolResult, IndexDocumentsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input IndexDocumentsInput) (
		*mcp.CallToolResult, IndexDocumentsOutput, error,
	) {
		if len(input.Documents) == 0 {
			return nil, IndexDocumentsOutput{}, fmt.Errorf("no documents given")
		}

		result := ix.IndexDocuments(ctx, input.Documents)

		out := IndexDocumentsOutput{
			Succeeded: result.Succeeded,
			Failed:    result.Failed,
			IDs:       make([]string, 0, result.Succeeded),
		}
		for _, o := range result.Outcomes {
			if o.Err != nil {
				out.Errors = append(out.Errors, o.Err.Error())
				continue
			}
			out.IDs = append(out.IDs, o.DocumentID)
		}
		return nil, out, nil
	}
}

// makeStatusHandler creates the collection_status tool handler.
func makeStatusHandler(counter Counter, schema storage.Schema) func(
	context.Context, *mcp.CallToolRequest, StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatusInput) (
		*mcp.CallToolResult, StatusOutput, error,
	) {
		n, err := counter.Count(ctx, schema.Name)
		if err != nil {
			return nil, StatusOutput{}, fmt.Errorf("store_error: failed to count documents: %w", err)
		}

		return nil, StatusOutput{
			Collection:  schema.Name,
			Documents:   n,
			VectorField: schema.VectorField,
			Dimensions:  schema.Dimensions,
			Metric:      string(schema.Metric),
		}, nil
	}
}
