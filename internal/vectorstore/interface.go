// Package vectorstore implements the Vector Store Adapter and Collection
// Manager: a Qdrant-backed store for knowledge-base collections that
// each carry a named dense vector field and a named sparse (BM25-style)
// field.
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector store operations.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrCollectionExists is returned when attempting to create an existing collection.
	ErrCollectionExists = errors.New("collection already exists")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrConnectionFailed indicates gRPC connection issues.
	ErrConnectionFailed = errors.New("failed to connect to Qdrant")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// CollectionInfo describes a knowledge base's backing collection.
type CollectionInfo struct {
	Name                string `json:"name"`
	KBName              string `json:"kb_name"`
	Description         string `json:"description"`
	PointsCount         int    `json:"points_count"`
	VectorsCount        int    `json:"vectors_count"`
	IndexedVectorsCount int    `json:"indexed_vectors_count"`
	DocumentCount        int    `json:"document_count"`
}

// Point is a vector-store point: caller-supplied ID, dense vector,
// optional sparse vector, and a free-form payload.
type Point struct {
	ID      string
	Dense   []float32
	Sparse  SparseVector
	Payload map[string]interface{}
}

// SparseVector is a BM25-style weighted-term vector: parallel arrays of
// term index and weight.
type SparseVector struct {
	Indices []uint32
	Values  []float32
}

// Empty reports whether the sparse vector carries no terms.
func (s SparseVector) Empty() bool {
	return len(s.Indices) == 0
}

// ScoredPoint is a Point returned from a similarity search, carrying the
// query-relative score.
type ScoredPoint struct {
	Point
	Score float32
}

// Filter is a conjunction of exact-match payload conditions. Qdrant's
// filter language is richer, but the service only ever needs equality
// matches on KB metadata fields.
type Filter struct {
	Must []Condition
}

// Condition matches one payload field by exact value.
type Condition struct {
	Field string
	Value interface{}
}

// Store is the Vector Store Adapter: a Qdrant collection carries one
// named dense field ("dense") and one named sparse field ("bm25") per
// point, plus an arbitrary JSON payload.
type Store interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, name string, denseSize uint64) error
	DeleteCollection(ctx context.Context, name string) error
	ListCollections(ctx context.Context) ([]string, error)
	GetCollectionInfo(ctx context.Context, name string) (*CollectionInfo, error)

	Upsert(ctx context.Context, collection string, points []Point) error
	SearchDense(ctx context.Context, collection string, vector []float32, limit int, filter *Filter) ([]ScoredPoint, error)
	SearchSparse(ctx context.Context, collection string, sparse SparseVector, limit int, filter *Filter) ([]ScoredPoint, error)
	Scroll(ctx context.Context, collection string, filter *Filter, limit int) ([]Point, error)
	DeleteByFilter(ctx context.Context, collection string, filter *Filter) error
	Delete(ctx context.Context, collection string, ids []string) error

	Health(ctx context.Context) error
	Close() error
}

// Embedder generates dense and sparse embeddings from text.
//
// Dense embeddings are semantic vectors from a sentence-transformer
// style model. Sparse embeddings are BM25-style weighted term vectors
// used for the lexical half of hybrid search.
type Embedder interface {
	EmbedDense(ctx context.Context, texts []string) ([][]float32, error)
	EmbedSparse(ctx context.Context, texts []string) ([]SparseVector, error)
	Dimension() int
}
