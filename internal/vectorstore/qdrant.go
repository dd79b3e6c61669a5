package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var tracer = otel.Tracer("ragmcp.vectorstore.qdrant")

// collectionNamePattern validates collection names.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	Host string

	// Port is the Qdrant gRPC port (NOT the HTTP REST port).
	Port int

	// Distance is the similarity metric for the dense vector field.
	Distance qdrant.Distance

	// UseTLS enables TLS encryption for the gRPC connection.
	UseTLS bool

	// MaxRetries is the maximum number of retry attempts for transient failures.
	MaxRetries int

	// RetryBackoff is the initial backoff duration for retries, doubling
	// on each attempt.
	RetryBackoff time.Duration

	// MaxMessageSize is the maximum gRPC message size in bytes.
	MaxMessageSize int

	// CircuitBreakerThreshold is the number of failures before the
	// circuit opens.
	CircuitBreakerThreshold int
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	return nil
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024 // 50MB, to accommodate large document batches
	}
	if c.CircuitBreakerThreshold == 0 {
		c.CircuitBreakerThreshold = 5
	}
	if c.Distance == 0 {
		c.Distance = qdrant.Distance_Cosine
	}
}

// ValidateCollectionName checks a collection name's characters and
// length (^[a-z0-9_]{1,64}$). The `kb_` prefix the Collection Manager
// adds is not checked here, so names such as "master_index" pass.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match pattern ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// IsTransientError reports whether err should be retried.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// QdrantStore is the Vector Store Adapter backed by Qdrant's native gRPC
// client. Every collection carries a named dense field ("dense") and a
// named sparse field ("bm25") so hybrid retrieval can query either
// independently.
type QdrantStore struct {
	client *qdrant.Client
	config QdrantConfig

	collections sync.Map // collection name -> true, existence cache

	circuitBreaker struct {
		failures int
		lastFail time.Time
		mu       sync.Mutex
	}
}

// NewQdrantStore creates a new QdrantStore and verifies connectivity.
func NewQdrantStore(config QdrantConfig) (*QdrantStore, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if !config.UseTLS {
		fmt.Fprintf(os.Stderr, "WARNING: Qdrant gRPC using plaintext (TLS disabled). Insecure for production.\n")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	store := &QdrantStore{client: client, config: config}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Health(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("health check failed: %w", err)
	}

	return store, nil
}

// Close closes the Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Health performs a health check against the Qdrant connection.
func (s *QdrantStore) Health(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.Health")
	defer span.End()

	_, err := s.client.HealthCheck(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("health check failed: %w", err)
	}
	span.SetStatus(codes.Ok, "healthy")
	return nil
}

// retryOperation retries an operation with exponential backoff, honoring
// a circuit breaker that trips after CircuitBreakerThreshold consecutive
// transient failures and cools down for 30s.
func (s *QdrantStore) retryOperation(ctx context.Context, name string, op func() error) error {
	backoff := s.config.RetryBackoff

	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		err := op()
		if err == nil {
			s.resetCircuitBreaker()
			return nil
		}

		if s.isCircuitOpen() {
			return fmt.Errorf("%s: circuit breaker open", name)
		}

		if !IsTransientError(err) {
			return fmt.Errorf("%s failed (permanent): %w", name, err)
		}

		s.recordFailure()

		if attempt == s.config.MaxRetries {
			return fmt.Errorf("%s failed after %d retries: %w", name, s.config.MaxRetries, err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", name, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return nil
}

func (s *QdrantStore) recordFailure() {
	s.circuitBreaker.mu.Lock()
	defer s.circuitBreaker.mu.Unlock()
	s.circuitBreaker.failures++
	s.circuitBreaker.lastFail = time.Now()
}

func (s *QdrantStore) resetCircuitBreaker() {
	s.circuitBreaker.mu.Lock()
	defer s.circuitBreaker.mu.Unlock()
	s.circuitBreaker.failures = 0
}

func (s *QdrantStore) isCircuitOpen() bool {
	s.circuitBreaker.mu.Lock()
	defer s.circuitBreaker.mu.Unlock()
	if s.circuitBreaker.failures >= s.config.CircuitBreakerThreshold {
		if time.Since(s.circuitBreaker.lastFail) > 30*time.Second {
			s.circuitBreaker.failures = 0
			return false
		}
		return true
	}
	return false
}

// CollectionExists checks whether a collection exists, using a cache to
// avoid repeated round trips for hot collections.
func (s *QdrantStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.CollectionExists")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name))

	if err := ValidateCollectionName(name); err != nil {
		return false, err
	}
	if _, ok := s.collections.Load(name); ok {
		return true, nil
	}

	var exists bool
	err := s.retryOperation(ctx, "collection_exists", func() error {
		info, err := s.client.GetCollectionInfo(ctx, name)
		if err != nil {
			if st, ok := status.FromError(err); ok && st.Code() == grpccodes.NotFound {
				exists = false
				return nil
			}
			return err
		}
		exists = info != nil
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("checking collection %s: %w", name, err)
	}
	if exists {
		s.collections.Store(name, true)
	}
	return exists, nil
}

// CreateCollection creates a collection with a named dense vector field
// ("dense", the given size and configured distance) and a named sparse
// field ("bm25", IDF-weighted for BM25-style lexical matching).
func (s *QdrantStore) CreateCollection(ctx context.Context, name string, denseSize uint64) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.CreateCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name), attribute.Int64("dense_size", int64(denseSize)))

	if err := ValidateCollectionName(name); err != nil {
		return err
	}

	err := s.retryOperation(ctx, "create_collection", func() error {
		return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: &qdrant.VectorsConfig{
				Config: &qdrant.VectorsConfig_ParamsMap{
					ParamsMap: &qdrant.VectorParamsMap{
						Map: map[string]*qdrant.VectorParams{
							DenseFieldName: {Size: denseSize, Distance: s.config.Distance},
						},
					},
				},
			},
			SparseVectorsConfig: &qdrant.SparseVectorConfig{
				Map: map[string]*qdrant.SparseVectorParams{
					SparseFieldName: {
						Modifier: qdrant.Modifier_Idf.Enum(),
						Index:    &qdrant.SparseIndexConfig{},
					},
				},
			},
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("creating collection %s: %w", name, err)
	}

	s.collections.Store(name, true)
	return nil
}

// DeleteCollection deletes a collection and all its points.
func (s *QdrantStore) DeleteCollection(ctx context.Context, name string) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.DeleteCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name))

	if err := ValidateCollectionName(name); err != nil {
		return err
	}

	err := s.retryOperation(ctx, "delete_collection", func() error {
		return s.client.DeleteCollection(ctx, name)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting collection %s: %w", name, err)
	}
	s.collections.Delete(name)
	return nil
}

// ListCollections returns every collection name, unfiltered; callers
// apply the `kb_` prefix filter (Collection Manager's job).
func (s *QdrantStore) ListCollections(ctx context.Context) ([]string, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.ListCollections")
	defer span.End()

	var collections []string
	err := s.retryOperation(ctx, "list_collections", func() error {
		result, err := s.client.ListCollections(ctx)
		if err != nil {
			return err
		}
		collections = result
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	return collections, nil
}

// GetCollectionInfo returns point/vector counts for a collection. The
// Collection Manager enriches this with descriptor-point metadata.
func (s *QdrantStore) GetCollectionInfo(ctx context.Context, name string) (*CollectionInfo, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.GetCollectionInfo")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name))

	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}

	var info *CollectionInfo
	err := s.retryOperation(ctx, "get_collection_info", func() error {
		collInfo, err := s.client.GetCollectionInfo(ctx, name)
		if err != nil {
			if st, ok := status.FromError(err); ok && st.Code() == grpccodes.NotFound {
				return ErrCollectionNotFound
			}
			return err
		}
		info = &CollectionInfo{Name: name}
		if collInfo.PointsCount != nil {
			info.PointsCount = int(*collInfo.PointsCount)
		}
		if collInfo.VectorsCount != nil {
			info.VectorsCount = int(*collInfo.VectorsCount)
		}
		if collInfo.IndexedVectorsCount != nil {
			info.IndexedVectorsCount = int(*collInfo.IndexedVectorsCount)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrCollectionNotFound) {
			return nil, ErrCollectionNotFound
		}
		return nil, fmt.Errorf("getting collection info for %s: %w", name, err)
	}
	return info, nil
}

// Upsert writes points, each carrying a dense vector and optionally a
// sparse vector, under their named fields.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, points []Point) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.Upsert")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection), attribute.Int("point_count", len(points)))

	if len(points) == 0 {
		return nil
	}

	structs := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		structs[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(p.ID),
			Vectors: buildNamedVectors(p.Dense, p.Sparse),
			Payload: convertPayload(p.Payload),
		}
	}

	err := s.retryOperation(ctx, "upsert", func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{CollectionName: collection, Points: structs})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upserting points to collection %s: %w", collection, err)
	}
	return nil
}

// SearchDense runs a similarity search against the named dense field.
func (s *QdrantStore) SearchDense(ctx context.Context, collection string, vector []float32, limit int, filter *Filter) ([]ScoredPoint, error) {
	return s.search(ctx, collection, DenseFieldName, &qdrant.Query_Nearest{
		Nearest: &qdrant.VectorInput{Variant: &qdrant.VectorInput_Dense{Dense: &qdrant.DenseVector{Data: vector}}},
	}, limit, filter)
}

// SearchSparse runs a similarity search against the named sparse (BM25)
// field.
func (s *QdrantStore) SearchSparse(ctx context.Context, collection string, sparse SparseVector, limit int, filter *Filter) ([]ScoredPoint, error) {
	return s.search(ctx, collection, SparseFieldName, &qdrant.Query_Nearest{
		Nearest: &qdrant.VectorInput{Variant: &qdrant.VectorInput_Sparse{Sparse: &qdrant.SparseVector{
			Indices: sparse.Indices,
			Values:  sparse.Values,
		}}},
	}, limit, filter)
}

func (s *QdrantStore) search(ctx context.Context, collection, using string, variant qdrant.QueryVariant, limit int, filter *Filter) ([]ScoredPoint, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.search")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection), attribute.String("using", using), attribute.Int("limit", limit))

	var results []*qdrant.ScoredPoint
	err := s.retryOperation(ctx, "search", func() error {
		res, err := s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: collection,
			Query:          &qdrant.Query{Variant: variant},
			Using:          qdrant.PtrOf(using),
			Limit:          qdrant.PtrOf(uint64(limit)),
			WithPayload:    qdrant.NewWithPayload(true),
			Filter:         convertFilter(filter),
		})
		if err != nil {
			return err
		}
		results = res
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("searching collection %s: %w", collection, err)
	}

	out := make([]ScoredPoint, len(results))
	for i, r := range results {
		out[i] = ScoredPoint{
			Point: Point{
				ID:      extractPointID(r.Id),
				Payload: extractPayload(r.Payload),
			},
			Score: r.Score,
		}
	}
	return out, nil
}

// Scroll walks points matching filter without ranking, used by the
// Collection Manager to locate its descriptor point.
func (s *QdrantStore) Scroll(ctx context.Context, collection string, filter *Filter, limit int) ([]Point, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.Scroll")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection))

	var results []*qdrant.RetrievedPoint
	err := s.retryOperation(ctx, "scroll", func() error {
		res, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: collection,
			Filter:         convertFilter(filter),
			Limit:          qdrant.PtrOf(uint32(limit)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return err
		}
		results = res
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("scrolling collection %s: %w", collection, err)
	}

	out := make([]Point, len(results))
	for i, r := range results {
		out[i] = Point{ID: extractPointID(r.Id), Payload: extractPayload(r.Payload)}
	}
	return out, nil
}

// DeleteByFilter deletes every point matching filter.
func (s *QdrantStore) DeleteByFilter(ctx context.Context, collection string, filter *Filter) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.DeleteByFilter")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection))

	err := s.retryOperation(ctx, "delete_by_filter", func() error {
		_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: collection,
			Points:         qdrant.NewPointsSelectorFilter(convertFilter(filter)),
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("delete by filter in collection %s: %w", collection, err)
	}
	return nil
}

// Delete removes points by ID.
func (s *QdrantStore) Delete(ctx context.Context, collection string, ids []string) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection), attribute.Int("id_count", len(ids)))

	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewIDUUID(id)
	}

	err := s.retryOperation(ctx, "delete", func() error {
		_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: collection,
			Points: &qdrant.PointsSelector{
				PointsSelectorOneOf: &qdrant.PointsSelector_Points{
					Points: &qdrant.PointsIdsList{Ids: pointIDs},
				},
			},
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("delete failed (permanent): %w", err)
	}
	return nil
}

// buildNamedVectors assembles the "dense"/"bm25" named-vector map for a
// point; the sparse field is omitted when the point carries no sparse
// vector (e.g. the collection descriptor point).
func buildNamedVectors(dense []float32, sparse SparseVector) *qdrant.Vectors {
	named := map[string]*qdrant.Vector{
		DenseFieldName: {Data: dense},
	}
	if !sparse.Empty() {
		named[SparseFieldName] = &qdrant.Vector{
			Data:    sparse.Values,
			Indices: &qdrant.SparseIndices{Data: sparse.Indices},
		}
	}
	return &qdrant.Vectors{VectorsOptions: &qdrant.Vectors_Vectors{Vectors: &qdrant.NamedVectors{Vectors: named}}}
}

func convertPayload(payload map[string]interface{}) map[string]*qdrant.Value {
	out := make(map[string]*qdrant.Value, len(payload))
	for k, v := range payload {
		out[k] = convertValue(v)
	}
	return out
}

func convertValue(v interface{}) *qdrant.Value {
	switch val := v.(type) {
	case string:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: val}}
	case int:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}
	case int64:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: val}}
	case float64:
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: val}}
	case bool:
		return &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: val}}
	case []string:
		list := make([]*qdrant.Value, len(val))
		for i, s := range val {
			list[i] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
		}
		return &qdrant.Value{Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: list}}}
	default:
		return &qdrant.Value{Kind: &qdrant.Value_NullValue{}}
	}
}

func extractPayload(payload map[string]*qdrant.Value) map[string]interface{} {
	if payload == nil {
		return nil
	}
	out := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		switch val := v.Kind.(type) {
		case *qdrant.Value_StringValue:
			out[k] = val.StringValue
		case *qdrant.Value_IntegerValue:
			out[k] = val.IntegerValue
		case *qdrant.Value_DoubleValue:
			out[k] = val.DoubleValue
		case *qdrant.Value_BoolValue:
			out[k] = val.BoolValue
		case *qdrant.Value_ListValue:
			items := make([]interface{}, 0, len(val.ListValue.Values))
			for _, item := range val.ListValue.Values {
				if s, ok := item.Kind.(*qdrant.Value_StringValue); ok {
					items = append(items, s.StringValue)
				}
			}
			out[k] = items
		}
	}
	return out
}

func extractPointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if uid := id.GetUuid(); uid != "" {
		return uid
	}
	return fmt.Sprintf("%d", id.GetNum())
}

func convertFilter(f *Filter) *qdrant.Filter {
	if f == nil || len(f.Must) == 0 {
		return nil
	}
	conditions := make([]*qdrant.Condition, 0, len(f.Must))
	for _, c := range f.Must {
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{Key: c.Field, Match: convertMatch(c.Value)},
			},
		})
	}
	return &qdrant.Filter{Must: conditions}
}

func convertMatch(value interface{}) *qdrant.Match {
	switch v := value.(type) {
	case string:
		return &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: v}}
	case bool:
		return &qdrant.Match{MatchValue: &qdrant.Match_Boolean{Boolean: v}}
	case int:
		return &qdrant.Match{MatchValue: &qdrant.Match_Integer{Integer: int64(v)}}
	case int64:
		return &qdrant.Match{MatchValue: &qdrant.Match_Integer{Integer: v}}
	default:
		return &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: fmt.Sprintf("%v", v)}}
	}
}

// Ensure QdrantStore implements Store interface.
var _ Store = (*QdrantStore)(nil)
