package embedding

import (
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var (
	// ErrMissingAPIKey is returned when no OpenAI credential is configured.
	ErrMissingAPIKey = errors.New("OPENAI_API_KEY not set")
	// ErrUnreachable reports an embedding service that cannot be used at startup.
	ErrUnreachable = errors.New("embedding service unreachable")
)

// Client wraps the OpenAI client for embedding generation.
type Client struct {
	client *openai.Client
}

// NewClient creates a new OpenAI client for embedding generation.
// baseURL may be empty to use the public API. The SDK's own retries are
// disabled; Embedder retries with backoff instead.
func NewClient(apiKey, baseURL string) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(opts...)
	return &Client{client: &client}, nil
}
