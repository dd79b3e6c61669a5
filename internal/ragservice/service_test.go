package ragservice

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ragmcp/internal/chat"
	"github.com/fyrsmithlabs/ragmcp/internal/document"
	"github.com/fyrsmithlabs/ragmcp/internal/document/metadata"
	"github.com/fyrsmithlabs/ragmcp/internal/document/progressive"
	"github.com/fyrsmithlabs/ragmcp/internal/llm"
	"github.com/fyrsmithlabs/ragmcp/internal/retrieval"
	"github.com/fyrsmithlabs/ragmcp/internal/vectorstore"
)

// fakeStore is an in-memory Store double. SearchDense/SearchSparse
// ignore the query vector entirely and return filtered points in
// insertion order, which is enough to drive deterministic retrieval
// assertions without a real similarity computation.
type fakeStore struct {
	collections map[string][]vectorstore.Point
}

func newFakeStore() *fakeStore {
	return &fakeStore{collections: map[string][]vectorstore.Point{}}
}

func (f *fakeStore) CollectionExists(_ context.Context, name string) (bool, error) {
	_, ok := f.collections[name]
	return ok, nil
}

func (f *fakeStore) CreateCollection(_ context.Context, name string, _ uint64) error {
	if _, ok := f.collections[name]; ok {
		return vectorstore.ErrCollectionExists
	}
	f.collections[name] = nil
	return nil
}

func (f *fakeStore) DeleteCollection(_ context.Context, name string) error {
	if _, ok := f.collections[name]; !ok {
		return vectorstore.ErrCollectionNotFound
	}
	delete(f.collections, name)
	return nil
}

func (f *fakeStore) ListCollections(_ context.Context) ([]string, error) {
	names := make([]string, 0, len(f.collections))
	for name := range f.collections {
		names = append(names, name)
	}
	return names, nil
}

func (f *fakeStore) GetCollectionInfo(_ context.Context, name string) (*vectorstore.CollectionInfo, error) {
	points, ok := f.collections[name]
	if !ok {
		return nil, vectorstore.ErrCollectionNotFound
	}
	return &vectorstore.CollectionInfo{Name: name, PointsCount: len(points)}, nil
}

func (f *fakeStore) Upsert(_ context.Context, collection string, points []vectorstore.Point) error {
	existing, ok := f.collections[collection]
	if !ok {
		return vectorstore.ErrCollectionNotFound
	}
	for _, p := range points {
		replaced := false
		for i, e := range existing {
			if e.ID == p.ID {
				existing[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, p)
		}
	}
	f.collections[collection] = existing
	return nil
}

func (f *fakeStore) SearchDense(_ context.Context, collection string, _ []float32, limit int, filter *vectorstore.Filter) ([]vectorstore.ScoredPoint, error) {
	return f.filteredScored(collection, filter, limit)
}

func (f *fakeStore) SearchSparse(_ context.Context, collection string, _ vectorstore.SparseVector, limit int, filter *vectorstore.Filter) ([]vectorstore.ScoredPoint, error) {
	return f.filteredScored(collection, filter, limit)
}

func (f *fakeStore) filteredScored(collection string, filter *vectorstore.Filter, limit int) ([]vectorstore.ScoredPoint, error) {
	var out []vectorstore.ScoredPoint
	for i, p := range f.collections[collection] {
		if !matchesFilter(p, filter) {
			continue
		}
		out = append(out, vectorstore.ScoredPoint{Point: p, Score: 1.0 / float32(i+1)})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) Scroll(_ context.Context, collection string, filter *vectorstore.Filter, limit int) ([]vectorstore.Point, error) {
	var out []vectorstore.Point
	for _, p := range f.collections[collection] {
		if matchesFilter(p, filter) {
			out = append(out, p)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteByFilter(_ context.Context, collection string, filter *vectorstore.Filter) error {
	var kept []vectorstore.Point
	for _, p := range f.collections[collection] {
		if !matchesFilter(p, filter) {
			kept = append(kept, p)
		}
	}
	f.collections[collection] = kept
	return nil
}

func (f *fakeStore) Delete(_ context.Context, collection string, ids []string) error {
	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}
	var kept []vectorstore.Point
	for _, p := range f.collections[collection] {
		if !idSet[p.ID] {
			kept = append(kept, p)
		}
	}
	f.collections[collection] = kept
	return nil
}

func (f *fakeStore) Health(context.Context) error { return nil }
func (f *fakeStore) Close() error                 { return nil }

func matchesFilter(p vectorstore.Point, filter *vectorstore.Filter) bool {
	if filter == nil {
		return true
	}
	for _, cond := range filter.Must {
		if p.Payload[cond.Field] != cond.Value {
			return false
		}
	}
	return true
}

// fakeEmbedder returns fixed-size zero vectors; fakeStore never
// inspects vector contents, so this is enough to drive Retriever and
// Router without a real embedding model.
type fakeEmbedder struct {
	failDense bool
}

func (e *fakeEmbedder) EmbedDense(_ context.Context, texts []string) ([][]float32, error) {
	if e.failDense {
		return nil, assert.AnError
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0, 0, 0}
	}
	return out, nil
}

func (e *fakeEmbedder) EmbedSparse(_ context.Context, texts []string) ([]vectorstore.SparseVector, error) {
	out := make([]vectorstore.SparseVector, len(texts))
	for i := range texts {
		out[i] = vectorstore.SparseVector{Indices: []uint32{0}, Values: []float32{1}}
	}
	return out, nil
}

func (e *fakeEmbedder) Dimension() int { return 3 }

// fakeExtractor is a SectionExtractor that returns its input content as
// a single section.
type fakeExtractor struct{}

func (fakeExtractor) Extract(_ context.Context, _ string, content []byte) ([]document.Section, error) {
	return []document.Section{string(content)}, nil
}

func newTestService(t *testing.T, store *fakeStore, embedder vectorstore.Embedder) *Service {
	t.Helper()

	collections := vectorstore.NewCollectionManager(store, 3)
	docProcessor := document.NewProcessor(document.Extractors{PlainText: fakeExtractor{}, Structured: fakeExtractor{}}, nil, nil)
	metadataExtr := metadata.NewExtractor(nil)
	retriever := retrieval.NewRetriever(store, embedder, nil, retrieval.DefaultOptions(), nil)
	router := retrieval.NewRouter(store, embedder, "", nil)
	chatEngine := chat.NewEngine(stubLLM{text: "an answer"}, chat.Options{}, nil)

	require.NoError(t, store.CreateCollection(context.Background(), "master_index", 3))

	return NewService(Deps{
		Store:           store,
		Collections:     collections,
		Embedder:        embedder,
		DocProcessor:    docProcessor,
		ProgressiveOpts: progressive.Options{Fast: progressive.TierConfig{Enabled: true}, TargetQuality: progressive.ThresholdFast},
		MetadataExtr:    metadataExtr,
		Retriever:       retriever,
		Router:          router,
		ChatEngine:      chatEngine,
	}, DefaultOptions(), nil)
}

// stubLLM is a minimal llm.Client double for the chat engine.
type stubLLM struct {
	text string
	err  error
}

func (s stubLLM) Complete(context.Context, llm.Request) (llm.Completion, error) {
	if s.err != nil {
		return llm.Completion{}, s.err
	}
	return llm.Completion{Text: s.text}, nil
}

func (s stubLLM) Close() error { return nil }

func TestCreateKB_CreatesCollectionAndMasterEntry(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestService(t, store, &fakeEmbedder{})

	result := svc.CreateKB(ctx, "handbook", "employee handbook", "hr")
	require.True(t, result.Success)

	exists, err := store.CollectionExists(ctx, "kb_handbook")
	require.NoError(t, err)
	assert.True(t, exists)

	kbs, err := svc.router.ListKBs(ctx)
	require.NoError(t, err)
	require.Len(t, kbs, 1)
	assert.Equal(t, "handbook", kbs[0].KBName)
	assert.Equal(t, "hr", kbs[0].Category)
}

func TestCreateKB_RollsBackCollectionOnMasterIndexFailure(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	embedder := &fakeEmbedder{}
	svc := newTestService(t, store, embedder)

	// deleting the master collection makes AddKBToMaster's upsert fail
	require.NoError(t, store.DeleteCollection(ctx, "master_index"))

	result := svc.CreateKB(ctx, "handbook", "employee handbook", "hr")
	assert.False(t, result.Success)

	exists, err := store.CollectionExists(ctx, "kb_handbook")
	require.NoError(t, err)
	assert.False(t, exists, "collection should be rolled back after master index registration failed")
}

func TestCreateKB_EmbeddingUnreachableFailsFast(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestService(t, store, &fakeEmbedder{failDense: true})

	result := svc.CreateKB(ctx, "handbook", "employee handbook", "hr")
	assert.False(t, result.Success)

	exists, err := store.CollectionExists(ctx, "kb_handbook")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDeleteKB_RemovesCollectionAndMasterEntry(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestService(t, store, &fakeEmbedder{})
	require.True(t, svc.CreateKB(ctx, "handbook", "", "general").Success)

	result := svc.DeleteKB(ctx, "handbook")
	assert.True(t, result.Success)

	exists, _ := store.CollectionExists(ctx, "kb_handbook")
	assert.False(t, exists)

	kbs, err := svc.router.ListKBs(ctx)
	require.NoError(t, err)
	assert.Empty(t, kbs)
}

func TestListKBs_MergesMasterIndexCategoryAndDescription(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestService(t, store, &fakeEmbedder{})
	require.True(t, svc.CreateKB(ctx, "handbook", "employee handbook", "hr").Success)

	result := svc.ListKBs(ctx)
	require.True(t, result.Success)
	require.Len(t, result.KBs, 1)
	assert.Equal(t, "handbook", result.KBs[0].KBName)
	assert.Equal(t, "hr", result.KBs[0].Category)
}

func TestUploadDocument_ChunksEmbedsAndUpserts(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestService(t, store, &fakeEmbedder{})
	require.True(t, svc.CreateKB(ctx, "handbook", "", "general").Success)

	result := svc.UploadDocument(ctx, "handbook", "policy.txt", []byte("All employees must read this short policy."), map[string]interface{}{"title": "Policy Doc"})
	require.True(t, result.Success)
	assert.Equal(t, 1, result.ChunksCount)
	assert.Len(t, result.PointIDs, 1)
	assert.Equal(t, "Policy Doc", result.Metadata["title"]) // user metadata wins over auto metadata

	points := store.collections["kb_handbook"]
	var found bool
	for _, p := range points {
		if p.Payload["filename"] == "policy.txt" {
			found = true
			assert.Equal(t, vectorstore.TypeDocument, p.Payload[vectorstore.TypeField])
			assert.Equal(t, 0, p.Payload["chunk_index"])
		}
	}
	assert.True(t, found)
}

func TestUploadDocument_RejectsUnknownKB(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestService(t, store, &fakeEmbedder{})

	result := svc.UploadDocument(ctx, "missing", "a.txt", []byte("x"), nil)
	assert.False(t, result.Success)
}

func TestListDocuments_GroupsChunksByFilename(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestService(t, store, &fakeEmbedder{})
	require.True(t, svc.CreateKB(ctx, "handbook", "", "general").Success)
	require.True(t, svc.UploadDocument(ctx, "handbook", "a.txt", []byte("first document body text"), nil).Success)
	require.True(t, svc.UploadDocument(ctx, "handbook", "b.txt", []byte("second document body text"), nil).Success)

	result := svc.ListDocuments(ctx, "handbook", 0, 0)
	require.True(t, result.Success)
	assert.Equal(t, 2, result.Total)
}

func TestGetDocument_IncludesOrderedChunksWhenRequested(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestService(t, store, &fakeEmbedder{})
	require.True(t, svc.CreateKB(ctx, "handbook", "", "general").Success)
	require.True(t, svc.UploadDocument(ctx, "handbook", "a.txt", []byte("first document body text"), nil).Success)

	result := svc.GetDocument(ctx, "handbook", "a.txt", true)
	require.True(t, result.Success)
	require.Len(t, result.Chunks, 1)
	assert.Equal(t, 0, result.Chunks[0].ChunkIndex)
}

func TestGetDocument_NotFound(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestService(t, store, &fakeEmbedder{})
	require.True(t, svc.CreateKB(ctx, "handbook", "", "general").Success)

	result := svc.GetDocument(ctx, "handbook", "missing.txt", false)
	assert.False(t, result.Success)
}

func TestDeleteDocument_RemovesChunksAndReportsNotFoundAfter(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestService(t, store, &fakeEmbedder{})
	require.True(t, svc.CreateKB(ctx, "handbook", "", "general").Success)
	require.True(t, svc.UploadDocument(ctx, "handbook", "a.txt", []byte("first document body text"), nil).Success)

	del := svc.DeleteDocument(ctx, "handbook", "a.txt")
	assert.True(t, del.Success)

	del2 := svc.DeleteDocument(ctx, "handbook", "a.txt")
	assert.False(t, del2.Success)
}

func TestUpdateDocument_ReplacesExistingChunks(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestService(t, store, &fakeEmbedder{})
	require.True(t, svc.CreateKB(ctx, "handbook", "", "general").Success)
	require.True(t, svc.UploadDocument(ctx, "handbook", "a.txt", []byte("first document body text"), nil).Success)

	result := svc.UpdateDocument(ctx, "handbook", "a.txt", []byte("replaced document body text"))
	require.True(t, result.Success)

	get := svc.GetDocument(ctx, "handbook", "a.txt", true)
	require.True(t, get.Success)
	require.Len(t, get.Chunks, 1)
	assert.Equal(t, "replaced document body text", get.Chunks[0].Text)
}

func TestSearch_RequiresKBName(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestService(t, store, &fakeEmbedder{})

	result := svc.Search(ctx, "", "query", 5, false, false)
	assert.False(t, result.Success)
}

func TestSearch_ReturnsFormattedContextAndSources(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestService(t, store, &fakeEmbedder{})
	require.True(t, svc.CreateKB(ctx, "handbook", "", "general").Success)
	require.True(t, svc.UploadDocument(ctx, "handbook", "a.txt", []byte("unique content about vacation policy"), nil).Success)

	result := svc.Search(ctx, "handbook", "vacation", 5, false, false)
	require.True(t, result.Success)
	require.Len(t, result.Results, 1)
	assert.Contains(t, result.FormattedContext, "Retrieved Context (1 relevant passages):")
	assert.Contains(t, result.FormattedContext, "Source: a.txt")
	require.Len(t, result.MetadataSummary, 1)
	assert.Equal(t, "a.txt", result.MetadataSummary[0].SourceFile)
}

func TestDeduplicateResults_DropsNearIdenticalText(t *testing.T) {
	results := []retrieval.Result{
		{ID: "1", Score: 1, Payload: map[string]interface{}{"text": "the quick brown fox jumps"}},
		{ID: "2", Score: 0.9, Payload: map[string]interface{}{"text": "the quick brown fox jumped"}},
		{ID: "3", Score: 0.5, Payload: map[string]interface{}{"text": "zzz totally different content here"}},
	}

	kept := deduplicateResults(results)
	require.Len(t, kept, 2)
	assert.Equal(t, "1", kept[0].ID)
	assert.Equal(t, "3", kept[1].ID)
}

func TestJaccardOverlap_IdenticalSetsOverlapFully(t *testing.T) {
	a := charSet("abc")
	b := charSet("abc")
	assert.Equal(t, 1.0, jaccardOverlap(a, b))
}

func TestJaccardOverlap_EmptySetsReturnZero(t *testing.T) {
	assert.Equal(t, 0.0, jaccardOverlap(nil, charSet("a")))
}

func TestChat_RoutesAndAnswersWithSources(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestService(t, store, &fakeEmbedder{})
	require.True(t, svc.CreateKB(ctx, "handbook", "employee handbook", "hr").Success)
	require.True(t, svc.UploadDocument(ctx, "handbook", "a.txt", []byte("vacation accrues monthly"), nil).Success)

	result := svc.Chat(ctx, "", "how does vacation accrue?", "session-1", 5, true, false)
	require.True(t, result.Success)
	assert.Equal(t, "handbook", result.KBName)
	assert.Equal(t, "an answer", result.Answer)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "a.txt", result.Sources[0].Filename)
}

func TestChat_RequiresKBNameWithoutRouting(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestService(t, store, &fakeEmbedder{})

	result := svc.Chat(ctx, "", "hello", "", 5, false, false)
	assert.False(t, result.Success)
}

func TestClearChatHistory_ReportsPresenceAccurately(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestService(t, store, &fakeEmbedder{})
	require.True(t, svc.CreateKB(ctx, "handbook", "", "general").Success)
	require.True(t, svc.UploadDocument(ctx, "handbook", "a.txt", []byte("vacation accrues monthly"), nil).Success)
	require.True(t, svc.Chat(ctx, "handbook", "q", "session-1", 5, false, false).Success)

	result := svc.ClearChatHistory("session-1")
	assert.True(t, result.Success)

	second := svc.ClearChatHistory("session-1")
	assert.False(t, second.Success)
}

func TestHealthCheck_ReportsOkWhenDependenciesHealthy(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestService(t, store, &fakeEmbedder{})

	result := svc.HealthCheck(ctx)
	assert.True(t, result.Healthy)
	assert.Equal(t, "ok", result.Components["vector_store"].Status)
	assert.Equal(t, "ok", result.Components["embeddings"].Status)
}

func TestHealthCheck_ReportsUnhealthyWhenEmbeddingFails(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newTestService(t, store, &fakeEmbedder{failDense: true})

	result := svc.HealthCheck(ctx)
	assert.False(t, result.Healthy)
	assert.Equal(t, "error", result.Components["embeddings"].Status)
}
