package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema(name string) Schema {
	return Schema{
		Name:        name,
		TextField:   DefaultTextField,
		VectorField: DefaultVectorField,
		Dimensions:  3,
		Metric:      MetricCosine,
	}
}

// backends returns a fresh instance of every local backend.
func backends(t *testing.T) map[string]Store {
	t.Helper()

	bolt, err := NewBoltStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { bolt.Close() })

	return map[string]Store{
		"memory": NewMemoryStorage(),
		"bolt":   bolt,
	}
}

func newDoc(text string, vec ...float32) Document {
	return Document{ID: uuid.New().String(), Text: text, Vector: vec}
}

func TestCreateCollection_AlreadyExists(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			schema := testSchema("pets")

			require.NoError(t, store.CreateCollection(ctx, schema))

			err := store.CreateCollection(ctx, schema)
			assert.ErrorIs(t, err, ErrAlreadyExists)
		})
	}
}

func TestCreateCollection_ExistingWithDifferentSettings(t *testing.T) {
	changes := map[string]func(*Schema){
		"metric":       func(s *Schema) { s.Metric = MetricEuclidean },
		"dimensions":   func(s *Schema) { s.Dimensions = 4 },
		"vector field": func(s *Schema) { s.VectorField = "vec" },
	}

	for name, store := range backends(t) {
		for change, mutate := range changes {
			t.Run(name+"/"+change, func(t *testing.T) {
				ctx := context.Background()
				schema := testSchema("reuse-" + change)
				require.NoError(t, store.CreateCollection(ctx, schema))

				other := schema
				mutate(&other)
				err := store.CreateCollection(ctx, other)
				assert.ErrorIs(t, err, ErrInvalidSchema)
				assert.NotErrorIs(t, err, ErrAlreadyExists)
			})
		}
	}
}

func TestCreateCollection_InvalidSchema(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			schema := testSchema("pets")
			schema.Dimensions = 0

			err := store.CreateCollection(context.Background(), schema)
			assert.ErrorIs(t, err, ErrInvalidSchema)
		})
	}
}

func TestInsert_DimensionMismatch(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			schema := testSchema("pets")
			require.NoError(t, store.CreateCollection(ctx, schema))

			require.NoError(t, store.Insert(ctx, schema, newDoc("ok", 1, 0, 0)))

			err := store.Insert(ctx, schema, newDoc("too short", 1, 0))
			assert.ErrorIs(t, err, ErrDimensionMismatch)

			require.NoError(t, store.Insert(ctx, schema, newDoc("also ok", 0, 1, 0)))

			n, err := store.Count(ctx, schema.Name)
			require.NoError(t, err)
			assert.Equal(t, uint64(2), n, "rejected document must not be stored")
		})
	}
}

func TestInsert_CollectionNotFound(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := store.Insert(context.Background(), testSchema("missing"), newDoc("x", 1, 0, 0))
			assert.ErrorIs(t, err, ErrCollectionNotFound)
		})
	}
}

func TestSearch_EmptyCollection(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			schema := testSchema("empty")
			require.NoError(t, store.CreateCollection(ctx, schema))

			hits, err := store.Search(ctx, schema, SearchRequest{Vector: []float32{1, 0, 0}, K: 5, CandidatePool: 10})
			require.NoError(t, err)
			assert.NotNil(t, hits)
			assert.Empty(t, hits)
		})
	}
}

func TestSearch_HitsDoNotShareStoredVectors(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			schema := testSchema("isolated")
			schema.Metric = MetricDotProduct
			require.NoError(t, store.CreateCollection(ctx, schema))
			require.NoError(t, store.Insert(ctx, schema, newDoc("only", 1, 0, 0)))

			query := SearchRequest{Vector: []float32{1, 0, 0}, K: 1, CandidatePool: 1}
			hits, err := store.Search(ctx, schema, query)
			require.NoError(t, err)
			require.Len(t, hits, 1)
			hits[0].Vector[0] = 100

			hits, err = store.Search(ctx, schema, query)
			require.NoError(t, err)
			require.Len(t, hits, 1)
			assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
			assert.Equal(t, []float32{1, 0, 0}, hits[0].Vector)
		})
	}
}

func TestSearch_RankedAndTruncated(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			schema := testSchema("ranked")
			require.NoError(t, store.CreateCollection(ctx, schema))

			docs := []Document{
				newDoc("far", 0, 0, 1),
				newDoc("close", 1, 0.1, 0),
				newDoc("exact", 1, 0, 0),
				newDoc("middle", 1, 1, 0),
			}
			for _, d := range docs {
				require.NoError(t, store.Insert(ctx, schema, d))
			}

			hits, err := store.Search(ctx, schema, SearchRequest{Vector: []float32{1, 0, 0}, K: 3, CandidatePool: 10})
			require.NoError(t, err)
			require.Len(t, hits, 3)

			assert.Equal(t, "exact", hits[0].Text)
			assert.Equal(t, "close", hits[1].Text)
			assert.Equal(t, "middle", hits[2].Text)
			for i := 1; i < len(hits); i++ {
				assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
			}
			assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
		})
	}
}

func TestSearch_Deterministic(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			schema := testSchema("stable")
			require.NoError(t, store.CreateCollection(ctx, schema))

			// Identical vectors tie on score; order must still be stable.
			for _, text := range []string{"a", "b", "c", "d"} {
				require.NoError(t, store.Insert(ctx, schema, newDoc(text, 1, 1, 0)))
			}

			req := SearchRequest{Vector: []float32{1, 0, 0}, K: 4, CandidatePool: 10}
			first, err := store.Search(ctx, schema, req)
			require.NoError(t, err)
			second, err := store.Search(ctx, schema, req)
			require.NoError(t, err)

			assert.Equal(t, first, second)
		})
	}
}

func TestSearch_QueryDimensionMismatch(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			schema := testSchema("dims")
			require.NoError(t, store.CreateCollection(ctx, schema))

			_, err := store.Search(ctx, schema, SearchRequest{Vector: []float32{1, 0}, K: 1, CandidatePool: 1})
			assert.ErrorIs(t, err, ErrDimensionMismatch)
		})
	}
}

func TestDropCollection(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			schema := testSchema("dropme")
			require.NoError(t, store.CreateCollection(ctx, schema))

			require.NoError(t, store.DropCollection(ctx, schema.Name))
			assert.ErrorIs(t, store.DropCollection(ctx, schema.Name), ErrCollectionNotFound)

			// Name is free again.
			require.NoError(t, store.CreateCollection(ctx, schema))
		})
	}
}

func TestBoltStorage_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")
	ctx := context.Background()
	schema := testSchema("pets")

	store, err := NewBoltStorage(path)
	require.NoError(t, err)
	require.NoError(t, store.CreateCollection(ctx, schema))
	require.NoError(t, store.Insert(ctx, schema, newDoc("A fish likes to swim.", 0, 1, 0)))
	require.NoError(t, store.Close())

	// Reopen simulates a restart.
	reopened, err := NewBoltStorage(path)
	require.NoError(t, err)
	defer reopened.Close()

	assert.ErrorIs(t, reopened.CreateCollection(ctx, schema), ErrAlreadyExists)

	hits, err := reopened.Search(ctx, schema, SearchRequest{Vector: []float32{0, 1, 0}, K: 1, CandidatePool: 1})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "A fish likes to swim.", hits[0].Text)
	assert.Equal(t, []float32{0, 1, 0}, hits[0].Vector)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Options{Backend: "elastic"})
	assert.Error(t, err)
}
