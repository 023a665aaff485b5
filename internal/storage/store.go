package storage

import (
	"context"
	"fmt"
)

// Store is the behaviour shared by every backend.
type Store interface {
	Health(ctx context.Context) error
	CreateCollection(ctx context.Context, schema Schema) error
	DropCollection(ctx context.Context, name string) error
	Insert(ctx context.Context, schema Schema, doc Document) error
	Search(ctx context.Context, schema Schema, req SearchRequest) ([]ScoredDocument, error)
	Count(ctx context.Context, collection string) (uint64, error)
	Close() error
}

// Backend names accepted by Open.
const (
	BackendQdrant = "qdrant"
	BackendBolt   = "bolt"
	BackendMemory = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Backend  string
	Qdrant   QdrantConfig
	BoltPath string
}

// Open connects to the configured backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case BackendQdrant, "":
		s, err := NewQdrantStorage(ctx, opts.Qdrant)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendBolt:
		s, err := NewBoltStorage(opts.BoltPath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendMemory:
		return NewMemoryStorage(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
}

var (
	_ Store = (*QdrantStorage)(nil)
	_ Store = (*BoltStorage)(nil)
	_ Store = (*MemoryStorage)(nil)
)
