// Package retrieval implements the Retriever (hybrid dense+sparse
// search fused by Reciprocal Rank Fusion, with optional reranking) and
// the Router (semantic knowledge-base selection over a master index).
package retrieval

import (
	"context"

	"github.com/fyrsmithlabs/ragmcp/internal/reranker"
	"github.com/fyrsmithlabs/ragmcp/internal/vectorstore"
)

// Result is one retrieved point, scored and carrying its stored
// payload.
type Result struct {
	ID      string
	Score   float32
	Payload map[string]interface{}
}

// Embedder is the subset of internal/vectorstore.Embedder the
// Retriever and Router need.
type Embedder interface {
	EmbedDense(ctx context.Context, texts []string) ([][]float32, error)
	EmbedSparse(ctx context.Context, texts []string) ([]vectorstore.SparseVector, error)
}

// Reranker is satisfied by internal/reranker.Client.
type Reranker = reranker.Reranker
