package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// QdrantConfig holds connection settings for a Qdrant server.
type QdrantConfig struct {
	Host   string
	Port   int // gRPC port
	APIKey string
	UseTLS bool
}

// QdrantStorage wraps the Qdrant client with connection management and health checks.
type QdrantStorage struct {
	client *qdrant.Client
	host   string
	port   int

	mu      sync.Mutex
	metrics map[string]Metric // collection -> metric read from Qdrant
}

// NewQdrantStorage creates a new Qdrant client with health validation.
// It performs health check with retry on startup and fails fast if Qdrant is unreachable.
func NewQdrantStorage(ctx context.Context, cfg QdrantConfig) (*QdrantStorage, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	storage := &QdrantStorage{
		client:  client,
		host:    cfg.Host,
		port:    cfg.Port,
		metrics: make(map[string]Metric),
	}

	if err := storage.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %s:%d: %v", ErrUnreachable, cfg.Host, cfg.Port, err)
	}

	return storage, nil
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}

// healthCheckWithRetry performs health check with exponential backoff.
// Authentication failures are permanent.
func (s *QdrantStorage) healthCheckWithRetry(ctx context.Context) error {
	operation := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()

		err := s.Health(attemptCtx)
		if err != nil && grpcCode(err) == codes.Unauthenticated {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(newBackOff(), ctx))
}

// Health performs a single health check against Qdrant.
func (s *QdrantStorage) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}

	return nil
}

// CreateCollection creates a collection with one named dense vector and a
// full-text index on the text field. An existing collection yields
// ErrAlreadyExists, or ErrInvalidSchema when its vector settings differ from
// schema. If the text index cannot be built the collection is dropped again,
// so a retry starts from scratch.
func (s *QdrantStorage) CreateCollection(ctx context.Context, schema Schema) error {
	if err := schema.Validate(); err != nil {
		return err
	}

	exists, err := s.client.CollectionExists(ctx, schema.Name)
	if err != nil {
		return mapError(fmt.Errorf("failed to check collection: %w", err))
	}
	if exists {
		existing, err := s.describe(ctx, schema)
		if err != nil {
			return err
		}
		return ensureCompatible(existing, schema)
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: schema.Name,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			schema.VectorField: {
				Size:     uint64(schema.Dimensions),
				Distance: toDistance(schema.Metric),
			},
		}),
	})
	if err != nil {
		return mapError(fmt.Errorf("failed to create collection: %w", err))
	}
	s.forget(schema.Name)

	_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: schema.Name,
		FieldName:      schema.TextField,
		FieldType:      qdrant.FieldType_FieldTypeText.Enum(),
	})
	if err != nil {
		if dropErr := s.client.DeleteCollection(ctx, schema.Name); dropErr != nil {
			err = errors.Join(err, fmt.Errorf("rollback: %w", dropErr))
		}
		return mapError(fmt.Errorf("failed to create index for field %s: %w", schema.TextField, err))
	}

	return nil
}

// describe reads the vector settings of an existing collection. A collection
// without the schema's named vector comes back with an empty VectorField.
func (s *QdrantStorage) describe(ctx context.Context, schema Schema) (Schema, error) {
	info, err := s.client.GetCollectionInfo(ctx, schema.Name)
	if err != nil {
		return Schema{}, mapError(fmt.Errorf("failed to get collection info: %w", err))
	}

	existing := Schema{Name: schema.Name, TextField: schema.TextField}
	vectors := info.GetConfig().GetParams().GetVectorsConfig().GetParamsMap().GetMap()
	if params, ok := vectors[schema.VectorField]; ok {
		existing.VectorField = schema.VectorField
		existing.Dimensions = int(params.GetSize())
		existing.Metric = fromDistance(params.GetDistance())
	}
	return existing, nil
}

// DropCollection deletes a collection and all its points.
func (s *QdrantStorage) DropCollection(ctx context.Context, name string) error {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return mapError(fmt.Errorf("failed to check collection: %w", err))
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}

	s.forget(name)
	if err := s.client.DeleteCollection(ctx, name); err != nil {
		return mapError(fmt.Errorf("failed to delete collection: %w", err))
	}
	return nil
}

// collectionMetric returns the metric the collection was created with,
// reading it from Qdrant once per collection.
func (s *QdrantStorage) collectionMetric(ctx context.Context, schema Schema) (Metric, error) {
	s.mu.Lock()
	m, ok := s.metrics[schema.Name]
	s.mu.Unlock()
	if ok {
		return m, nil
	}

	existing, err := s.describe(ctx, schema)
	if err != nil {
		return "", err
	}
	if existing.VectorField == "" {
		return "", fmt.Errorf("%w: collection %q has no vector named %q",
			ErrInvalidSchema, schema.Name, schema.VectorField)
	}

	s.mu.Lock()
	s.metrics[schema.Name] = existing.Metric
	s.mu.Unlock()
	return existing.Metric, nil
}

func (s *QdrantStorage) forget(name string) {
	s.mu.Lock()
	delete(s.metrics, name)
	s.mu.Unlock()
}

// Insert upserts a single document. The upsert waits for the write to be
// applied so a following query sees it.
func (s *QdrantStorage) Insert(ctx context.Context, schema Schema, doc Document) error {
	if err := schema.CheckVector(doc.Vector); err != nil {
		return err
	}

	point := &qdrant.PointStruct{
		Id: qdrant.NewIDUUID(doc.ID),
		Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
			schema.VectorField: qdrant.NewVector(doc.Vector...),
		}),
		Payload: qdrant.NewValueMap(map[string]any{
			schema.TextField: doc.Text,
		}),
	}

	if err := s.upsertWithRetry(ctx, schema.Name, point); err != nil {
		return mapError(fmt.Errorf("failed to upsert document %s: %w", doc.ID, err))
	}
	return nil
}

// upsertWithRetry retries transient failures; client errors fail at once.
func (s *QdrantStorage) upsertWithRetry(ctx context.Context, collection string, points ...*qdrant.PointStruct) error {
	operation := func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		if err != nil && !isTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(newBackOff(), ctx))
}

// Search runs an HNSW query over the schema's vector field. CandidatePool
// becomes the hnsw_ef search parameter. Scores are converted according to
// the metric the collection was created with, not schema.Metric.
func (s *QdrantStorage) Search(ctx context.Context, schema Schema, req SearchRequest) ([]ScoredDocument, error) {
	if err := schema.CheckVector(req.Vector); err != nil {
		return nil, err
	}

	metric, err := s.collectionMetric(ctx, schema)
	if err != nil {
		return nil, err
	}

	vectorName := schema.VectorField
	query := &qdrant.QueryPoints{
		CollectionName: schema.Name,
		Query:          qdrant.NewQuery(req.Vector...),
		Using:          &vectorName,
		Limit:          qdrant.PtrOf(uint64(req.K)),
		WithPayload:    qdrant.NewWithPayloadInclude(schema.TextField),
		WithVectors:    qdrant.NewWithVectors(false),
	}
	if req.CandidatePool > 0 {
		query.Params = &qdrant.SearchParams{
			HnswEf: qdrant.PtrOf(uint64(req.CandidatePool)),
		}
	}

	results, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to search %s: %w", schema.Name, err))
	}

	hits := make([]ScoredDocument, 0, len(results))
	for _, result := range results {
		score := float64(result.Score) // Qdrant returns float32
		if metric == MetricEuclidean {
			score = euclideanScore(score)
		}
		hits = append(hits, ScoredDocument{
			Document: Document{
				ID:   result.Id.GetUuid(),
				Text: result.Payload[schema.TextField].GetStringValue(),
			},
			Score: score,
		})
	}

	return rank(hits, req.K), nil
}

// Count returns the exact number of points in a collection.
func (s *QdrantStorage) Count(ctx context.Context, collection string) (uint64, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, mapError(fmt.Errorf("failed to count %s: %w", collection, err))
	}
	return n, nil
}

// Close closes the Qdrant client connection.
func (s *QdrantStorage) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func toDistance(m Metric) qdrant.Distance {
	switch m {
	case MetricDotProduct:
		return qdrant.Distance_Dot
	case MetricEuclidean:
		return qdrant.Distance_Euclid
	default:
		return qdrant.Distance_Cosine
	}
}

func fromDistance(d qdrant.Distance) Metric {
	switch d {
	case qdrant.Distance_Dot:
		return MetricDotProduct
	case qdrant.Distance_Euclid:
		return MetricEuclidean
	case qdrant.Distance_Cosine:
		return MetricCosine
	}
	return Metric(d.String())
}

func grpcCode(err error) codes.Code {
	if s, ok := status.FromError(err); ok {
		return s.Code()
	}
	return codes.Unknown
}

func isTransient(err error) bool {
	switch grpcCode(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return true
	}
	return false
}

// mapError attaches the package sentinels to gRPC failures.
func mapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	switch grpcCode(err) {
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
	case codes.NotFound:
		return fmt.Errorf("%w: %v", ErrCollectionNotFound, err)
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return err
}
