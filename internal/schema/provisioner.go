// Package schema provisions vector collections.
package schema

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mike-a-ellis/vecquery/internal/storage"
)

// Creator is the store operation the provisioner needs.
type Creator interface {
	CreateCollection(ctx context.Context, schema storage.Schema) error
}

// Provisioner creates collections with a dense vector field.
type Provisioner struct {
	store   Creator
	timeout time.Duration
	logger  *slog.Logger
}

// NewProvisioner creates a Provisioner. A zero timeout leaves calls bounded only by ctx.
func NewProvisioner(store Creator, timeout time.Duration, logger *slog.Logger) *Provisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{store: store, timeout: timeout, logger: logger}
}

// CreateCollection validates and creates the collection.
//
// An existing collection yields an error matching storage.ErrAlreadyExists,
// which callers should treat as non-fatal (see IsAlreadyExists). Any other
// error means the collection cannot be used.
func (p *Provisioner) CreateCollection(ctx context.Context, schema storage.Schema) error {
	if err := schema.Validate(); err != nil {
		return fmt.Errorf("create collection %q: %w", schema.Name, err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if err := p.store.CreateCollection(ctx, schema); err != nil {
		return fmt.Errorf("create collection %q: %w", schema.Name, err)
	}

	p.logger.Info("Collection created",
		"collection", schema.Name,
		"vector_field", schema.VectorField,
		"dimensions", schema.Dimensions,
		"metric", schema.Metric,
	)
	return nil
}

// IsAlreadyExists reports whether err means the collection was already there.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, storage.ErrAlreadyExists)
}
