package storage

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStorage keeps collections in process memory and scores by brute force.
// It backs tests and dry runs; nothing survives Close.
type MemoryStorage struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	schema Schema
	docs   []Document
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{collections: make(map[string]*memCollection)}
}

// Health always succeeds.
func (s *MemoryStorage) Health(_ context.Context) error {
	return nil
}

// CreateCollection registers the schema. An existing collection yields
// ErrAlreadyExists, or ErrInvalidSchema when its vector settings differ.
func (s *MemoryStorage) CreateCollection(_ context.Context, schema Schema) error {
	if err := schema.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[schema.Name]; ok {
		return ensureCompatible(c.schema, schema)
	}
	s.collections[schema.Name] = &memCollection{schema: schema}
	return nil
}

// DropCollection removes a collection and its documents.
func (s *MemoryStorage) DropCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[name]; !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	delete(s.collections, name)
	return nil
}

// Insert appends a document after checking its vector width against the stored schema.
func (s *MemoryStorage) Insert(_ context.Context, schema Schema, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[schema.Name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, schema.Name)
	}
	if err := c.schema.CheckVector(doc.Vector); err != nil {
		return err
	}

	vec := make([]float32, len(doc.Vector))
	copy(vec, doc.Vector)
	c.docs = append(c.docs, Document{ID: doc.ID, Text: doc.Text, Vector: vec})
	return nil
}

// Search scores every document; CandidatePool is irrelevant to an exact scan.
func (s *MemoryStorage) Search(_ context.Context, schema Schema, req SearchRequest) ([]ScoredDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[schema.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, schema.Name)
	}
	if err := c.schema.CheckVector(req.Vector); err != nil {
		return nil, err
	}

	hits := make([]ScoredDocument, 0, len(c.docs))
	for _, doc := range c.docs {
		vec := make([]float32, len(doc.Vector))
		copy(vec, doc.Vector)
		hits = append(hits, ScoredDocument{
			Document: Document{ID: doc.ID, Text: doc.Text, Vector: vec},
			Score:    Score(c.schema.Metric, req.Vector, doc.Vector),
		})
	}
	return rank(hits, req.K), nil
}

// Count returns the number of documents in a collection.
func (s *MemoryStorage) Count(_ context.Context, collection string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	return uint64(len(c.docs)), nil
}

// Close is a no-op.
func (s *MemoryStorage) Close() error {
	return nil
}
