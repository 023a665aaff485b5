package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mike-a-ellis/vecquery/internal/config"
	"github.com/mike-a-ellis/vecquery/internal/corpus"
	"github.com/mike-a-ellis/vecquery/internal/indexer"
	"github.com/mike-a-ellis/vecquery/internal/search"
	"github.com/mike-a-ellis/vecquery/internal/storage"
)

var topics = [][]string{
	{"water", "aquatic", "swim", "fish"},
	{"fly", "feathered", "bird"},
	{"sleep", "domesticated", "cat"},
	{"play", "loyal", "dog"},
	{"hunt", "wild", "lion"},
	{"animal", "likes"},
}

// keywordEmbedder counts topic words per dimension. failOn makes texts
// containing that word fail to embed.
type keywordEmbedder struct {
	failOn string
}

func (k keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, len(topics))
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,?!")
		if k.failOn != "" && word == k.failOn {
			return nil, errors.New("embedding service rejected input")
		}
		for dim, topic := range topics {
			for _, w := range topic {
				if w == word {
					vec[dim]++
				}
			}
		}
	}
	return vec, nil
}

func petsPlan() *config.Plan {
	p := config.DefaultPlan()
	p.Dimensions = len(topics)
	return p
}

func newWorkflow(store storage.Store, emb Embedder) *Workflow {
	return New(store, emb, corpus.NewLoader(nil, nil), 0, nil)
}

func TestRun_PetsScenario(t *testing.T) {
	store := storage.NewMemoryStorage()
	w := newWorkflow(store, keywordEmbedder{})

	report, err := w.Run(context.Background(), petsPlan())
	require.NoError(t, err)

	assert.True(t, report.Provisioned)
	assert.True(t, report.Created)
	assert.Equal(t, 5, report.Index.Succeeded)
	assert.Zero(t, report.Index.Failed)

	require.NotEmpty(t, report.Hits)
	assert.LessOrEqual(t, len(report.Hits), 5)
	assert.Equal(t, "A fish is an aquatic animal that likes to swim.", report.Hits[0].Text)
	for i := 1; i < len(report.Hits); i++ {
		assert.GreaterOrEqual(t, report.Hits[i-1].Score, report.Hits[i].Score)
	}

	n, err := store.Count(context.Background(), "pets")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), n)
}

func TestRun_ExistingCollectionIsSkipped(t *testing.T) {
	store := storage.NewMemoryStorage()
	w := newWorkflow(store, keywordEmbedder{})
	ctx := context.Background()

	_, err := w.Run(ctx, petsPlan())
	require.NoError(t, err)

	report, err := w.Run(ctx, petsPlan())
	require.NoError(t, err)
	assert.True(t, report.Provisioned)
	assert.False(t, report.Created)
	assert.Equal(t, 5, report.Index.Succeeded)

	n, err := store.Count(ctx, "pets")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), n)
}

func TestRun_OneEmbeddingFailure(t *testing.T) {
	w := newWorkflow(storage.NewMemoryStorage(), keywordEmbedder{failOn: "lion"})

	report, err := w.Run(context.Background(), petsPlan())
	require.NoError(t, err)
	assert.Equal(t, 4, report.Index.Succeeded)
	assert.Equal(t, 1, report.Index.Failed)

	var itemErr *indexer.ItemError
	require.ErrorAs(t, report.Index.Outcomes[4].Err, &itemErr)
	assert.Equal(t, indexer.StageEmbed, itemErr.Stage)
}

func TestRun_InvalidSchemaIsFatal(t *testing.T) {
	plan := petsPlan()
	plan.Dimensions = 0

	w := newWorkflow(storage.NewMemoryStorage(), keywordEmbedder{})
	_, err := w.Run(context.Background(), plan)
	assert.ErrorIs(t, err, storage.ErrInvalidSchema)
}

type failingCreateStore struct {
	*storage.MemoryStorage
	err error
}

func (s failingCreateStore) CreateCollection(context.Context, storage.Schema) error {
	return s.err
}

func TestRun_ProvisioningFailureAborts(t *testing.T) {
	store := failingCreateStore{MemoryStorage: storage.NewMemoryStorage(), err: storage.ErrUnreachable}
	w := newWorkflow(store, keywordEmbedder{})

	report, err := w.Run(context.Background(), petsPlan())
	assert.ErrorIs(t, err, storage.ErrUnreachable)
	require.NotNil(t, report)
	assert.False(t, report.Provisioned)
	assert.Nil(t, report.Index)
}

func TestRun_QueryFailureKeepsIndexReport(t *testing.T) {
	plan := petsPlan()
	plan.Query.Text = "Which fish is a lion?"

	w := newWorkflow(storage.NewMemoryStorage(), keywordEmbedder{failOn: "lion"})
	report, err := w.Run(context.Background(), plan)

	var qErr *search.QueryError
	require.ErrorAs(t, err, &qErr)
	assert.Equal(t, search.StageEmbed, qErr.Stage)
	require.NotNil(t, report.Index)
	assert.Equal(t, 4, report.Index.Succeeded)
}

func TestProvision_Recreate(t *testing.T) {
	store := storage.NewMemoryStorage()
	w := newWorkflow(store, keywordEmbedder{})
	ctx := context.Background()
	plan := petsPlan()

	_, err := w.Run(ctx, plan)
	require.NoError(t, err)

	s, err := plan.Schema()
	require.NoError(t, err)
	created, err := w.Provision(ctx, s, true)
	require.NoError(t, err)
	assert.True(t, created)

	n, err := store.Count(ctx, "pets")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProvision_RecreateMissingCollection(t *testing.T) {
	w := newWorkflow(storage.NewMemoryStorage(), keywordEmbedder{})
	s, err := petsPlan().Schema()
	require.NoError(t, err)

	created, err := w.Provision(context.Background(), s, true)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestQuery_EmptyCollection(t *testing.T) {
	store := storage.NewMemoryStorage()
	w := newWorkflow(store, keywordEmbedder{})
	plan := petsPlan()
	s, err := plan.Schema()
	require.NoError(t, err)
	_, err = w.Provision(context.Background(), s, false)
	require.NoError(t, err)

	hits, err := w.Query(context.Background(), plan)
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}
