package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mike-a-ellis/vecquery/internal/storage"
)

// Embedder maps one text to one vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Writer persists a document into a collection.
type Writer interface {
	Insert(ctx context.Context, schema storage.Schema, doc storage.Document) error
}

// Stage names the step an item failed at.
type Stage string

const (
	StageEmbed    Stage = "embed"
	StageValidate Stage = "validate"
	StageWrite    Stage = "write"
)

// ItemError is a per-document failure. It never aborts the batch.
type ItemError struct {
	Index int
	Stage Stage
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("document %d: %s: %v", e.Index, e.Stage, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// Outcome is the result for the text at Index. Err is nil on success,
// otherwise an *ItemError.
type Outcome struct {
	Index      int
	DocumentID string
	Err        error
}

// Result contains statistics about an indexing run.
type Result struct {
	Outcomes  []Outcome
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// Errors returns the failed outcomes' errors in input order.
func (r *Result) Errors() []error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errs
}

// Indexer embeds texts one at a time and writes them into a collection.
type Indexer struct {
	embedder Embedder
	writer   Writer
	schema   storage.Schema
	timeout  time.Duration
	logger   *slog.Logger
	newID    func() string
}

// NewIndexer creates an Indexer writing into the collection described by schema.
// timeout bounds each embedding and each write separately; zero disables it.
func NewIndexer(embedder Embedder, writer Writer, schema storage.Schema, timeout time.Duration, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		embedder: embedder,
		writer:   writer,
		schema:   schema,
		timeout:  timeout,
		logger:   logger,
		newID:    func() string { return uuid.New().String() },
	}
}

// IndexDocuments processes texts serially. A failing text is recorded and
// skipped; the loop only stops early when ctx is done, in which case every
// remaining text is marked failed with the context error.
func (ix *Indexer) IndexDocuments(ctx context.Context, texts []string) *Result {
	start := time.Now()
	result := &Result{Outcomes: make([]Outcome, 0, len(texts))}

	ix.logger.Info("Starting indexing", "collection", ix.schema.Name, "documents", len(texts))

	for i, text := range texts {
		outcome := Outcome{Index: i}

		if err := ctx.Err(); err != nil {
			outcome.Err = &ItemError{Index: i, Stage: StageEmbed, Err: err}
		} else {
			outcome.DocumentID, outcome.Err = ix.indexOne(ctx, i, text)
		}

		if outcome.Err != nil {
			result.Failed++
			ix.logger.Warn("Failed to index document", "index", i, "error", outcome.Err)
		} else {
			result.Succeeded++
			ix.logger.Info("Document indexed", "index", i, "id", outcome.DocumentID)
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	result.Duration = time.Since(start)
	ix.logger.Info("Indexing complete",
		"collection", ix.schema.Name,
		"successful", result.Succeeded,
		"failed", result.Failed,
		"duration", result.Duration,
	)
	return result
}

// indexOne embeds, validates and stores a single text.
func (ix *Indexer) indexOne(ctx context.Context, i int, text string) (string, error) {
	vector, err := ix.call(ctx, func(ctx context.Context) ([]float32, error) {
		return ix.embedder.Embed(ctx, text)
	})
	if err != nil {
		return "", &ItemError{Index: i, Stage: StageEmbed, Err: err}
	}

	if err := ix.schema.CheckVector(vector); err != nil {
		return "", &ItemError{Index: i, Stage: StageValidate, Err: err}
	}

	doc := storage.Document{ID: ix.newID(), Text: text, Vector: vector}
	_, err = ix.call(ctx, func(ctx context.Context) ([]float32, error) {
		return nil, ix.writer.Insert(ctx, ix.schema, doc)
	})
	if err != nil {
		return "", &ItemError{Index: i, Stage: StageWrite, Err: err}
	}

	return doc.ID, nil
}

func (ix *Indexer) call(ctx context.Context, fn func(context.Context) ([]float32, error)) ([]float32, error) {
	if ix.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ix.timeout)
		defer cancel()
	}
	return fn(ctx)
}
