package storage

import "fmt"

// Metric is the similarity function a collection ranks its vectors by.
type Metric string

const (
	MetricCosine     Metric = "cosine"
	MetricDotProduct Metric = "dot_product"
	MetricEuclidean  Metric = "euclidean"
)

// ParseMetric accepts the canonical names plus the short aliases used by
// Qdrant ("dot", "euclid") and Elasticsearch ("l2_norm").
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "cosine", "":
		return MetricCosine, nil
	case "dot_product", "dot":
		return MetricDotProduct, nil
	case "euclidean", "euclid", "l2_norm":
		return MetricEuclidean, nil
	}
	return "", fmt.Errorf("%w: unknown metric %q", ErrInvalidSchema, s)
}

// Schema describes a collection: a text field and a fixed-width dense vector field.
type Schema struct {
	Name        string // Collection name: "pets"
	TextField   string // Payload key holding the source text: "document"
	VectorField string // Named vector: "embedding"
	Dimensions  int    // Vector width, must match the embedding model output
	Metric      Metric
}

// Validate reports ErrInvalidSchema for schemas no backend can create.
func (s Schema) Validate() error {
	switch {
	case s.Name == "":
		return fmt.Errorf("%w: collection name is empty", ErrInvalidSchema)
	case s.TextField == "":
		return fmt.Errorf("%w: text field name is empty", ErrInvalidSchema)
	case s.VectorField == "":
		return fmt.Errorf("%w: vector field name is empty", ErrInvalidSchema)
	case s.TextField == s.VectorField:
		return fmt.Errorf("%w: text and vector fields share the name %q", ErrInvalidSchema, s.TextField)
	case s.Dimensions <= 0:
		return fmt.Errorf("%w: dimensions must be positive, got %d", ErrInvalidSchema, s.Dimensions)
	}
	if m, err := ParseMetric(string(s.Metric)); err != nil || m != s.Metric {
		return fmt.Errorf("%w: unknown metric %q", ErrInvalidSchema, s.Metric)
	}
	return nil
}

// CheckVector returns ErrDimensionMismatch when v does not fit the schema.
func (s Schema) CheckVector(v []float32) error {
	if len(v) != s.Dimensions {
		return fmt.Errorf("%w: got %d dimensions, collection %q expects %d",
			ErrDimensionMismatch, len(v), s.Name, s.Dimensions)
	}
	return nil
}

// ensureCompatible reports whether an existing collection can be reused
// with the requested schema. A collection with a different vector field,
// width or metric returns ErrInvalidSchema; a matching one ErrAlreadyExists.
func ensureCompatible(existing, requested Schema) error {
	switch {
	case existing.VectorField != requested.VectorField:
		return fmt.Errorf("%w: collection %q exists with vector field %q, not %q",
			ErrInvalidSchema, requested.Name, existing.VectorField, requested.VectorField)
	case existing.Dimensions != requested.Dimensions:
		return fmt.Errorf("%w: collection %q exists with %d dimensions, not %d",
			ErrInvalidSchema, requested.Name, existing.Dimensions, requested.Dimensions)
	case existing.Metric != requested.Metric:
		return fmt.Errorf("%w: collection %q exists with metric %s, not %s",
			ErrInvalidSchema, requested.Name, existing.Metric, requested.Metric)
	}
	return fmt.Errorf("%w: %s", ErrAlreadyExists, requested.Name)
}

// Document is a stored text with its embedding.
type Document struct {
	ID     string    // UUID
	Text   string    // Source text, stored in Schema.TextField
	Vector []float32 // Schema.Dimensions values, stored as-is
}

// ScoredDocument is one k-NN hit. Higher scores are more similar for every metric.
type ScoredDocument struct {
	Document
	Score float64
}

// SearchRequest is a k-NN query against the collection named by the schema passed alongside it.
type SearchRequest struct {
	Vector        []float32
	K             int // Results to return
	CandidatePool int // Approximate candidates examined before the final top-k
}

// Field names of the pets demo collection.
const (
	DefaultTextField   = "document"
	DefaultVectorField = "embedding"
)

// DefaultDimensions is the output width of text-embedding-3-small.
const DefaultDimensions = 1536
