package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
)

const (
	// DefaultModel is the OpenAI model used for generating embeddings.
	DefaultModel = "text-embedding-3-small"

	// DefaultDimensions is the native vector width of text-embedding-3-small.
	DefaultDimensions = 1536
)

// Embedder turns one text into one vector using an OpenAI embedding model.
// Rate limits and server errors are retried with exponential backoff.
type Embedder struct {
	client     *Client
	model      string
	dimensions int

	// Retry schedule, shortened in tests.
	initialInterval time.Duration
	maxInterval     time.Duration
	maxElapsed      time.Duration
}

// NewEmbedder creates an Embedder. Empty model and zero dimensions select the defaults.
func NewEmbedder(client *Client, model string, dimensions int) *Embedder {
	if model == "" {
		model = DefaultModel
	}
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &Embedder{
		client:          client,
		model:           model,
		dimensions:      dimensions,
		initialInterval: 500 * time.Millisecond,
		maxInterval:     10 * time.Second,
		maxElapsed:      30 * time.Second,
	}
}

// Model returns the embedding model name.
func (e *Embedder) Model() string {
	return e.model
}

// Dimensions returns the requested vector width.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Health checks that the service is reachable, the key is accepted and the
// model exists, by fetching the model. Rate limits, server errors and
// connection failures are retried; a rejected key or unknown model fails at
// once. Failures wrap ErrUnreachable.
func (e *Embedder) Health(ctx context.Context) error {
	operation := func() error {
		_, err := e.client.client.Models.Get(ctx, e.model)
		if err != nil && !isRetryable(err) && !isTransport(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	if err := backoff.Retry(operation, backoff.WithContext(e.newBackOff(), ctx)); err != nil {
		return fmt.Errorf("%w: model %s: %v", ErrUnreachable, e.model, err)
	}
	return nil
}

func (e *Embedder) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.initialInterval
	b.MaxInterval = e.maxInterval
	b.MaxElapsedTime = e.maxElapsed
	return b
}

// Embed returns the embedding for text exactly as the API produced it,
// narrowed from float64 to float32.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var embedding []float32

	operation := func() error {
		params := openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: []string{text},
			},
			Model: openai.EmbeddingModel(e.model),
		}
		if supportsDimensions(e.model) {
			params.Dimensions = openai.Int(int64(e.dimensions))
		}

		resp, err := e.client.client.Embeddings.New(ctx, params)
		if err != nil {
			if isRetryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		if len(resp.Data) != 1 {
			return backoff.Permanent(fmt.Errorf("expected 1 embedding, got %d", len(resp.Data)))
		}
		embedding = toFloat32(resp.Data[0].Embedding)
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(e.newBackOff(), ctx)); err != nil {
		return nil, fmt.Errorf("embed with %s: %w", e.model, err)
	}
	return embedding, nil
}

// supportsDimensions reports whether the model accepts a requested output width.
func supportsDimensions(model string) bool {
	return strings.HasPrefix(model, "text-embedding-3")
}

// isRetryable checks for rate limit (HTTP 429) and server-side errors.
func isRetryable(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return false
}

// isTransport reports a failure below HTTP: DNS, refused connection, reset.
func isTransport(err error) bool {
	var apiErr *openai.Error
	return !errors.As(err, &apiErr) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// toFloat32 converts []float64 to []float32.
// OpenAI API returns float64, but storage uses float32 for memory efficiency.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
