package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetric(t *testing.T) {
	tests := []struct {
		in   string
		want Metric
	}{
		{"cosine", MetricCosine},
		{"", MetricCosine},
		{"dot_product", MetricDotProduct},
		{"dot", MetricDotProduct},
		{"euclidean", MetricEuclidean},
		{"l2_norm", MetricEuclidean},
	}
	for _, tt := range tests {
		got, err := ParseMetric(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseMetric("manhattan")
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestSchemaValidate(t *testing.T) {
	valid := Schema{Name: "pets", TextField: "document", VectorField: "embedding", Dimensions: 1536, Metric: MetricCosine}
	require.NoError(t, valid.Validate())

	broken := map[string]func(*Schema){
		"empty name":      func(s *Schema) { s.Name = "" },
		"empty vector":    func(s *Schema) { s.VectorField = "" },
		"shared field":    func(s *Schema) { s.VectorField = s.TextField },
		"zero dimensions": func(s *Schema) { s.Dimensions = 0 },
		"unknown metric":  func(s *Schema) { s.Metric = "hamming" },
		"empty metric":    func(s *Schema) { s.Metric = "" },
		"alias metric":    func(s *Schema) { s.Metric = "dot" },
	}
	for name, mutate := range broken {
		s := valid
		mutate(&s)
		assert.ErrorIs(t, s.Validate(), ErrInvalidSchema, name)
	}
}

func TestScore(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	c := []float32{2, 0}

	assert.InDelta(t, 0.0, Score(MetricCosine, a, b), 1e-9)
	assert.InDelta(t, 1.0, Score(MetricCosine, a, c), 1e-9, "cosine ignores magnitude")
	assert.InDelta(t, 2.0, Score(MetricDotProduct, a, c), 1e-9)
	assert.InDelta(t, 1.0, Score(MetricEuclidean, a, a), 1e-9)
	assert.InDelta(t, 1.0/3.0, Score(MetricEuclidean, a, b), 1e-9, "d²=2")
	assert.InDelta(t, 0.0, Score(MetricCosine, []float32{0, 0}, a), 1e-9, "zero vector")
}

func TestRank_TieBreakByID(t *testing.T) {
	hits := []ScoredDocument{
		{Document: Document{ID: "b"}, Score: 0.5},
		{Document: Document{ID: "a"}, Score: 0.5},
		{Document: Document{ID: "c"}, Score: 0.9},
	}
	got := rank(hits, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "a", got[1].ID)
}
