// Package search runs k-nearest-neighbour queries over an indexed collection.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mike-a-ellis/vecquery/internal/storage"
)

// ErrInvalidRequest reports k < 1 or a candidate pool smaller than k.
var ErrInvalidRequest = errors.New("invalid query request")

// Embedder maps one text to one vector. It must be the embedder the collection was indexed with.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store runs the nearest-neighbour search.
type Store interface {
	Search(ctx context.Context, schema storage.Schema, req storage.SearchRequest) ([]storage.ScoredDocument, error)
}

// Stage names the step a query failed at.
type Stage string

const (
	StageEmbed    Stage = "embed"
	StageValidate Stage = "validate"
	StageSearch   Stage = "search"
)

// QueryError wraps a failed query. An empty result is never reported as an error.
type QueryError struct {
	Stage Stage
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query: %s: %v", e.Stage, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Searcher embeds a query and retrieves the most similar documents.
type Searcher struct {
	embedder Embedder
	store    Store
	schema   storage.Schema
	timeout  time.Duration
	logger   *slog.Logger
}

// NewSearcher creates a Searcher over the collection described by schema.
func NewSearcher(embedder Embedder, store Store, schema storage.Schema, timeout time.Duration, logger *slog.Logger) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{
		embedder: embedder,
		store:    store,
		schema:   schema,
		timeout:  timeout,
		logger:   logger,
	}
}

// Query returns up to k documents ordered by descending similarity to text.
// candidatePool is how many approximate neighbours the index examines before
// the final ranking; it must be at least k.
func (s *Searcher) Query(ctx context.Context, text string, k, candidatePool int) ([]storage.ScoredDocument, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be at least 1, got %d", ErrInvalidRequest, k)
	}
	if candidatePool < k {
		return nil, fmt.Errorf("%w: candidate pool %d is smaller than k %d", ErrInvalidRequest, candidatePool, k)
	}

	vector, err := s.embed(ctx, text)
	if err != nil {
		return nil, &QueryError{Stage: StageEmbed, Err: err}
	}

	// A vector of the wrong width means the query and the collection were
	// embedded with different models; scores would be meaningless.
	if err := s.schema.CheckVector(vector); err != nil {
		return nil, &QueryError{Stage: StageValidate, Err: err}
	}

	hits, err := s.search(ctx, storage.SearchRequest{
		Vector:        vector,
		K:             k,
		CandidatePool: candidatePool,
	})
	if err != nil {
		return nil, &QueryError{Stage: StageSearch, Err: err}
	}
	if hits == nil {
		hits = []storage.ScoredDocument{}
	}

	s.logger.Debug("Query complete", "collection", s.schema.Name, "k", k, "candidates", candidatePool, "hits", len(hits))
	return hits, nil
}

func (s *Searcher) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.embedder.Embed(ctx, text)
}

func (s *Searcher) search(ctx context.Context, req storage.SearchRequest) ([]storage.ScoredDocument, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.Search(ctx, s.schema, req)
}

func (s *Searcher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}
