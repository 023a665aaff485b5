// Package workflow runs the provision -> index -> query sequence for a plan.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mike-a-ellis/vecquery/internal/config"
	"github.com/mike-a-ellis/vecquery/internal/indexer"
	"github.com/mike-a-ellis/vecquery/internal/schema"
	"github.com/mike-a-ellis/vecquery/internal/search"
	"github.com/mike-a-ellis/vecquery/internal/storage"
)

// Embedder maps one text to one vector. Indexing and querying share it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CorpusLoader produces the texts to index for a plan.
type CorpusLoader interface {
	Load(ctx context.Context, plan *config.Plan) ([]string, error)
}

// Report summarises a full run.
type Report struct {
	Schema      storage.Schema
	Provisioned bool // the collection is ready, created or reused
	Created     bool // false when the collection already existed
	Index       *indexer.Result
	Hits        []storage.ScoredDocument
}

// Workflow wires the provisioner, indexer and searcher to one store and embedder.
type Workflow struct {
	store    storage.Store
	embedder Embedder
	loader   CorpusLoader
	timeout  time.Duration
	logger   *slog.Logger
}

// New creates a Workflow. timeout bounds every external call.
func New(store storage.Store, embedder Embedder, loader CorpusLoader, timeout time.Duration, logger *slog.Logger) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{
		store:    store,
		embedder: embedder,
		loader:   loader,
		timeout:  timeout,
		logger:   logger,
	}
}

// Provision creates the collection. With recreate set, an existing collection
// is dropped first. An existing collection is not an error: it is logged and
// reported through created == false.
func (w *Workflow) Provision(ctx context.Context, s storage.Schema, recreate bool) (created bool, err error) {
	if recreate {
		if err := w.drop(ctx, s.Name); err != nil {
			return false, err
		}
	}

	err = schema.NewProvisioner(w.store, w.timeout, w.logger).CreateCollection(ctx, s)
	if schema.IsAlreadyExists(err) {
		w.logger.Info("Collection already exists, skipping creation", "collection", s.Name)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (w *Workflow) drop(ctx context.Context, name string) error {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	err := w.store.DropCollection(ctx, name)
	if errors.Is(err, storage.ErrCollectionNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("drop collection %q: %w", name, err)
	}
	w.logger.Info("Collection dropped", "collection", name)
	return nil
}

// Index loads the plan's corpus and indexes it. Only a corpus loading
// failure is returned as an error; per-document failures are in the result.
func (w *Workflow) Index(ctx context.Context, plan *config.Plan) (*indexer.Result, error) {
	s, err := plan.Schema()
	if err != nil {
		return nil, err
	}

	texts, err := w.loader.Load(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}

	return indexer.NewIndexer(w.embedder, w.store, s, w.timeout, w.logger).IndexDocuments(ctx, texts), nil
}

// Query runs the plan's similarity query.
func (w *Workflow) Query(ctx context.Context, plan *config.Plan) ([]storage.ScoredDocument, error) {
	s, err := plan.Schema()
	if err != nil {
		return nil, err
	}
	q := plan.Query
	return search.NewSearcher(w.embedder, w.store, s, w.timeout, w.logger).Query(ctx, q.Text, q.K, q.Candidates)
}

// Run provisions, indexes and queries in order. Provisioning errors other
// than an existing collection abort the run. The report is returned even
// when the query fails so indexing outcomes are not lost.
func (w *Workflow) Run(ctx context.Context, plan *config.Plan) (*Report, error) {
	s, err := plan.Schema()
	if err != nil {
		return nil, err
	}
	report := &Report{Schema: s}

	report.Created, err = w.Provision(ctx, s, false)
	if err != nil {
		return report, err
	}
	report.Provisioned = true

	report.Index, err = w.Index(ctx, plan)
	if err != nil {
		return report, err
	}

	report.Hits, err = w.Query(ctx, plan)
	if err != nil {
		return report, err
	}

	w.logger.Info("Workflow complete",
		"collection", s.Name,
		"indexed", report.Index.Succeeded,
		"failed", report.Index.Failed,
		"hits", len(report.Hits),
	)
	return report, nil
}
