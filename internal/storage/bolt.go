package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketCollections = []byte("collections")
	bucketDocs        = []byte("docs")
	keySchema         = []byte("schema")
)

// BoltStorage persists collections in a local BoltDB file.
// Layout: collections/<name>/{schema, docs/<id>}. Search is an exact scan.
type BoltStorage struct {
	db *bbolt.DB
}

type storedSchema struct {
	TextField   string `json:"text_field"`
	VectorField string `json:"vector_field"`
	Dimensions  int    `json:"dims"`
	Metric      Metric `json:"metric"`
}

type storedDoc struct {
	Text   string    `json:"t"`
	Vector []float32 `json:"v"`
}

// NewBoltStorage opens (or creates) the database at path.
func NewBoltStorage(path string) (*BoltStorage, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrUnreachable, path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCollections)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create collections bucket: %w", err)
	}

	return &BoltStorage{db: db}, nil
}

// Health checks the database is still open.
func (s *BoltStorage) Health(_ context.Context) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketCollections) == nil {
			return fmt.Errorf("%w: collections bucket missing", ErrUnreachable)
		}
		return nil
	})
}

// CreateCollection writes the schema record. An existing collection yields
// ErrAlreadyExists, or ErrInvalidSchema when its vector settings differ.
func (s *BoltStorage) CreateCollection(_ context.Context, schema Schema) error {
	if err := schema.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(storedSchema{
		TextField:   schema.TextField,
		VectorField: schema.VectorField,
		Dimensions:  schema.Dimensions,
		Metric:      schema.Metric,
	})
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketCollections)
		if root.Bucket([]byte(schema.Name)) != nil {
			_, existing, err := openCollection(tx, schema.Name)
			if err != nil {
				return err
			}
			return ensureCompatible(existing, schema)
		}
		b, err := root.CreateBucket([]byte(schema.Name))
		if err != nil {
			return fmt.Errorf("failed to create collection bucket: %w", err)
		}
		if _, err := b.CreateBucket(bucketDocs); err != nil {
			return fmt.Errorf("failed to create docs bucket: %w", err)
		}
		return b.Put(keySchema, data)
	})
}

// DropCollection deletes the collection bucket.
func (s *BoltStorage) DropCollection(_ context.Context, name string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		err := tx.Bucket(bucketCollections).DeleteBucket([]byte(name))
		if err == bbolt.ErrBucketNotFound {
			return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
		}
		return err
	})
}

// Insert stores doc under its ID after checking the vector width.
func (s *BoltStorage) Insert(_ context.Context, schema Schema, doc Document) error {
	data, err := json.Marshal(storedDoc{Text: doc.Text, Vector: doc.Vector})
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b, stored, err := openCollection(tx, schema.Name)
		if err != nil {
			return err
		}
		if err := stored.CheckVector(doc.Vector); err != nil {
			return err
		}
		return b.Bucket(bucketDocs).Put([]byte(doc.ID), data)
	})
}

// Search scores every stored vector against the query.
func (s *BoltStorage) Search(_ context.Context, schema Schema, req SearchRequest) ([]ScoredDocument, error) {
	hits := []ScoredDocument{}

	err := s.db.View(func(tx *bbolt.Tx) error {
		b, stored, err := openCollection(tx, schema.Name)
		if err != nil {
			return err
		}
		if err := stored.CheckVector(req.Vector); err != nil {
			return err
		}

		return b.Bucket(bucketDocs).ForEach(func(k, v []byte) error {
			var doc storedDoc
			if err := json.Unmarshal(v, &doc); err != nil {
				return fmt.Errorf("decode document %s: %w", k, err)
			}
			hits = append(hits, ScoredDocument{
				Document: Document{ID: string(k), Text: doc.Text, Vector: doc.Vector},
				Score:    Score(stored.Metric, req.Vector, doc.Vector),
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return rank(hits, req.K), nil
}

// Count returns the number of documents in a collection.
func (s *BoltStorage) Count(_ context.Context, collection string) (uint64, error) {
	var n uint64
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, _, err := openCollection(tx, collection)
		if err != nil {
			return err
		}
		n = uint64(b.Bucket(bucketDocs).Stats().KeyN)
		return nil
	})
	return n, err
}

// Close closes the database file.
func (s *BoltStorage) Close() error {
	return s.db.Close()
}

func openCollection(tx *bbolt.Tx, name string) (*bbolt.Bucket, Schema, error) {
	b := tx.Bucket(bucketCollections).Bucket([]byte(name))
	if b == nil {
		return nil, Schema{}, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}

	var stored storedSchema
	if err := json.Unmarshal(b.Get(keySchema), &stored); err != nil {
		return nil, Schema{}, fmt.Errorf("decode schema of %s: %w", name, err)
	}

	return b, Schema{
		Name:        name,
		TextField:   stored.TextField,
		VectorField: stored.VectorField,
		Dimensions:  stored.Dimensions,
		Metric:      stored.Metric,
	}, nil
}
