package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ragmcp/internal/reranker"
	"github.com/fyrsmithlabs/ragmcp/internal/vectorstore"
)

type stubEmbedder struct{}

func (stubEmbedder) EmbedDense(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (stubEmbedder) EmbedSparse(_ context.Context, texts []string) ([]vectorstore.SparseVector, error) {
	out := make([]vectorstore.SparseVector, len(texts))
	for i := range texts {
		out[i] = vectorstore.SparseVector{Indices: []uint32{1, 2}, Values: []float32{0.5, 0.5}}
	}
	return out, nil
}

type stubStore struct {
	dense  []vectorstore.ScoredPoint
	sparse []vectorstore.ScoredPoint
}

func (s *stubStore) CollectionExists(context.Context, string) (bool, error) { return true, nil }
func (s *stubStore) CreateCollection(context.Context, string, uint64) error { return nil }
func (s *stubStore) DeleteCollection(context.Context, string) error         { return nil }
func (s *stubStore) ListCollections(context.Context) ([]string, error)      { return nil, nil }
func (s *stubStore) GetCollectionInfo(context.Context, string) (*vectorstore.CollectionInfo, error) {
	return nil, nil
}
func (s *stubStore) Upsert(context.Context, string, []vectorstore.Point) error { return nil }
func (s *stubStore) SearchDense(context.Context, string, []float32, int, *vectorstore.Filter) ([]vectorstore.ScoredPoint, error) {
	return s.dense, nil
}
func (s *stubStore) SearchSparse(context.Context, string, vectorstore.SparseVector, int, *vectorstore.Filter) ([]vectorstore.ScoredPoint, error) {
	return s.sparse, nil
}
func (s *stubStore) Scroll(context.Context, string, *vectorstore.Filter, int) ([]vectorstore.Point, error) {
	return nil, nil
}
func (s *stubStore) DeleteByFilter(context.Context, string, *vectorstore.Filter) error { return nil }
func (s *stubStore) Delete(context.Context, string, []string) error                   { return nil }
func (s *stubStore) Health(context.Context) error                                     { return nil }
func (s *stubStore) Close() error                                                      { return nil }

type stubReranker struct{}

func (stubReranker) Rerank(_ context.Context, _ string, docs []reranker.Document, topK int) ([]reranker.ScoredDocument, error) {
	out := make([]reranker.ScoredDocument, len(docs))
	for i, d := range docs {
		out[i] = reranker.ScoredDocument{Document: d, RerankerScore: float32(len(docs) - i), OriginalRank: i}
	}
	return out, nil
}

func (stubReranker) Close() error { return nil }

func point(id string, score float32, text string) vectorstore.ScoredPoint {
	return vectorstore.ScoredPoint{
		Point: vectorstore.Point{ID: id, Payload: map[string]interface{}{"text": text}},
		Score: score,
	}
}

func TestRetrieve_FusesDenseAndSparse(t *testing.T) {
	store := &stubStore{
		dense:  []vectorstore.ScoredPoint{point("a", 0.9, "alpha"), point("b", 0.8, "beta")},
		sparse: []vectorstore.ScoredPoint{point("b", 5.0, "beta"), point("c", 4.0, "gamma")},
	}
	r := NewRetriever(store, stubEmbedder{}, nil, DefaultOptions(), nil)

	results, err := r.Retrieve(context.Background(), "query", "kb_test", 3, nil, false)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "b", results[0].ID)
}

func TestRetrieve_RerankingReplacesScores(t *testing.T) {
	store := &stubStore{
		dense:  []vectorstore.ScoredPoint{point("a", 0.9, "alpha"), point("b", 0.8, "beta")},
		sparse: nil,
	}
	r := NewRetriever(store, stubEmbedder{}, stubReranker{}, DefaultOptions(), nil)

	results, err := r.Retrieve(context.Background(), "query", "kb_test", 2, nil, true)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, float32(2), results[0].Score)
}

func TestRetrieveWithDetails_ReturnsAllStages(t *testing.T) {
	store := &stubStore{
		dense:  []vectorstore.ScoredPoint{point("a", 0.9, "alpha")},
		sparse: []vectorstore.ScoredPoint{point("a", 3.0, "alpha")},
	}
	r := NewRetriever(store, stubEmbedder{}, nil, DefaultOptions(), nil)

	details, err := r.RetrieveWithDetails(context.Background(), "q", "kb_test", 1, nil, false)
	require.NoError(t, err)
	assert.Len(t, details.DenseResults, 1)
	assert.Len(t, details.SparseResults, 1)
	assert.Len(t, details.FusedResults, 1)
	assert.Len(t, details.FinalResults, 1)
}

func TestFuseRRF_DenseOnlyDocumentScoresLowerThanBoth(t *testing.T) {
	dense := []Result{{ID: "a", Score: 0}, {ID: "b", Score: 0}}
	sparse := []Result{{ID: "b", Score: 0}}
	fused := fuseRRF(dense, sparse, 60)
	require.Len(t, fused, 2)
	assert.Equal(t, "b", fused[0].ID)
}

func TestMergePayloads_DenseWinsOnConflict(t *testing.T) {
	base := map[string]interface{}{"text": "dense version", "page": 1}
	extra := map[string]interface{}{"text": "sparse version", "extra": "field"}
	merged := mergePayloads(base, extra)
	assert.Equal(t, "dense version", merged["text"])
	assert.Equal(t, "field", merged["extra"])
}
