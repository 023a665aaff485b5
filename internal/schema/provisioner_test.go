package schema

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mike-a-ellis/vecquery/internal/storage"
)

func petsSchema() storage.Schema {
	return storage.Schema{
		Name:        "pets",
		TextField:   storage.DefaultTextField,
		VectorField: storage.DefaultVectorField,
		Dimensions:  storage.DefaultDimensions,
		Metric:      storage.MetricCosine,
	}
}

func TestCreateCollection(t *testing.T) {
	store := storage.NewMemoryStorage()
	p := NewProvisioner(store, time.Second, nil)

	require.NoError(t, p.CreateCollection(context.Background(), petsSchema()))

	n, err := store.Count(context.Background(), "pets")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreateCollection_AlreadyExists(t *testing.T) {
	p := NewProvisioner(storage.NewMemoryStorage(), time.Second, nil)
	ctx := context.Background()

	require.NoError(t, p.CreateCollection(ctx, petsSchema()))

	err := p.CreateCollection(ctx, petsSchema())
	require.Error(t, err)
	assert.True(t, IsAlreadyExists(err))
	assert.ErrorContains(t, err, "pets")
}

func TestCreateCollection_InvalidSchemaNeverReachesStore(t *testing.T) {
	store := &recordingCreator{}
	p := NewProvisioner(store, time.Second, nil)

	bad := petsSchema()
	bad.Dimensions = -1

	err := p.CreateCollection(context.Background(), bad)
	assert.ErrorIs(t, err, storage.ErrInvalidSchema)
	assert.False(t, IsAlreadyExists(err))
	assert.Zero(t, store.calls)
}

func TestCreateCollection_ConnectivityIsFatal(t *testing.T) {
	store := &recordingCreator{err: storage.ErrUnreachable}
	p := NewProvisioner(store, time.Second, nil)

	err := p.CreateCollection(context.Background(), petsSchema())
	assert.ErrorIs(t, err, storage.ErrUnreachable)
	assert.False(t, IsAlreadyExists(err))
}

func TestCreateCollection_AppliesTimeout(t *testing.T) {
	store := &recordingCreator{}
	p := NewProvisioner(store, 50*time.Millisecond, nil)

	require.NoError(t, p.CreateCollection(context.Background(), petsSchema()))
	assert.True(t, store.hadDeadline)
}

type recordingCreator struct {
	calls       int
	hadDeadline bool
	err         error
}

func (r *recordingCreator) CreateCollection(ctx context.Context, _ storage.Schema) error {
	r.calls++
	_, r.hadDeadline = ctx.Deadline()
	return r.err
}
