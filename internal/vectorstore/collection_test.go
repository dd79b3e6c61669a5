package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory Store double used to test CollectionManager
// without a live Qdrant connection.
type fakeStore struct {
	collections map[string][]Point
	denseSize   uint64
}

func newFakeStore() *fakeStore {
	return &fakeStore{collections: map[string][]Point{}}
}

func (f *fakeStore) CollectionExists(_ context.Context, name string) (bool, error) {
	_, ok := f.collections[name]
	return ok, nil
}

func (f *fakeStore) CreateCollection(_ context.Context, name string, denseSize uint64) error {
	if _, ok := f.collections[name]; ok {
		return ErrCollectionExists
	}
	f.collections[name] = nil
	f.denseSize = denseSize
	return nil
}

func (f *fakeStore) DeleteCollection(_ context.Context, name string) error {
	if _, ok := f.collections[name]; !ok {
		return ErrCollectionNotFound
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

func (f *fakeStore) GetCollectionInfo(_ context.Context, name string) (*CollectionInfo, error) {
	points, ok := f.collections[name]
	if !ok {
		return nil, ErrCollectionNotFound
	}
	return &CollectionInfo{Name: name, PointsCount: len(points)}, nil
}

func (f *fakeStore) Upsert(_ context.Context, collection string, points []Point) error {
	existing := f.collections[collection]
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

func (f *fakeStore) SearchDense(context.Context, string, []float32, int, *Filter) ([]ScoredPoint, error) {
	return nil, nil
}

func (f *fakeStore) SearchSparse(context.Context, string, SparseVector, int, *Filter) ([]ScoredPoint, error) {
	return nil, nil
}

func (f *fakeStore) Scroll(_ context.Context, collection string, filter *Filter, limit int) ([]Point, error) {
	var out []Point
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

func (f *fakeStore) DeleteByFilter(_ context.Context, collection string, filter *Filter) error {
	var kept []Point
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
	var kept []Point
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

func matchesFilter(p Point, filter *Filter) bool {
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

func TestCollectionManager_CreateAndInfo(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	mgr := NewCollectionManager(store, 384)

	require.NoError(t, mgr.Create(ctx, "handbook", "employee handbook"))

	exists, err := mgr.Exists(ctx, "handbook")
	require.NoError(t, err)
	assert.True(t, exists)

	info, err := mgr.Info(ctx, "handbook")
	require.NoError(t, err)
	assert.Equal(t, "handbook", info.KBName)
	assert.Equal(t, "employee handbook", info.Description)
	assert.Equal(t, 0, info.DocumentCount)
	assert.Equal(t, 1, info.PointsCount) // the descriptor point itself
}

func TestCollectionManager_List_FiltersByPrefix(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	mgr := NewCollectionManager(store, 384)

	require.NoError(t, mgr.Create(ctx, "handbook", ""))
	require.NoError(t, mgr.Create(ctx, "onboarding", ""))
	// a non-KB collection should never surface in List
	store.collections["scratch"] = nil

	kbs, err := mgr.List(ctx)
	require.NoError(t, err)
	require.Len(t, kbs, 2)

	names := map[string]bool{}
	for _, kb := range kbs {
		names[kb.KBName] = true
	}
	assert.True(t, names["handbook"])
	assert.True(t, names["onboarding"])
	assert.False(t, names["scratch"])
}

func TestCollectionManager_Delete(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	mgr := NewCollectionManager(store, 384)

	require.NoError(t, mgr.Create(ctx, "handbook", ""))
	require.NoError(t, mgr.Delete(ctx, "handbook"))

	exists, err := mgr.Exists(ctx, "handbook")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCollectionManager_IncrementDocumentCount(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	mgr := NewCollectionManager(store, 384)
	require.NoError(t, mgr.Create(ctx, "handbook", ""))

	require.NoError(t, mgr.IncrementDocumentCount(ctx, "handbook", 3))

	info, err := mgr.Info(ctx, "handbook")
	require.NoError(t, err)
	assert.Equal(t, 3, info.DocumentCount)
}

func TestCollectionManager_IncrementDocumentCount_MissingDescriptor(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	mgr := NewCollectionManager(store, 384)
	store.collections["kb_orphan"] = nil // collection with no descriptor point

	err := mgr.IncrementDocumentCount(ctx, "orphan", 1)
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}
