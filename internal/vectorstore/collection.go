package vectorstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// kbCollectionPrefix is prepended to every knowledge-base name to form
// its backing Qdrant collection name.
const kbCollectionPrefix = "kb_"

// CollectionManager owns the mapping between knowledge-base names and
// Qdrant collections: creation (with the dense+sparse schema and a
// descriptor point), existence checks, enriched info, and listing.
type CollectionManager struct {
	store     Store
	denseSize uint64
}

// NewCollectionManager builds a CollectionManager over store. denseSize
// is the dimensionality new collections are created with.
func NewCollectionManager(store Store, denseSize uint64) *CollectionManager {
	return &CollectionManager{store: store, denseSize: denseSize}
}

// collectionName converts a KB name into its backing collection name.
func collectionName(kbName string) string {
	return kbCollectionPrefix + kbName
}

// CollectionName converts a KB name into its backing collection name.
// Exported for callers (search, upload) that must address a KB's
// collection directly through Store rather than through a
// CollectionManager method.
func CollectionName(kbName string) string {
	return collectionName(kbName)
}

// kbNameFromCollection strips the `kb_` prefix, or returns ok=false if
// the collection isn't a knowledge base.
func kbNameFromCollection(collection string) (string, bool) {
	if !strings.HasPrefix(collection, kbCollectionPrefix) {
		return "", false
	}
	return strings.TrimPrefix(collection, kbCollectionPrefix), true
}

// Exists reports whether kbName has a backing collection.
func (m *CollectionManager) Exists(ctx context.Context, kbName string) (bool, error) {
	return m.store.CollectionExists(ctx, collectionName(kbName))
}

// Create creates the collection backing kbName with the dense+sparse
// schema, then upserts a descriptor point carrying the KB's metadata.
// The descriptor point is identified by a fresh random UUID, never a
// caller-supplied one, so it can never collide with a document ID.
func (m *CollectionManager) Create(ctx context.Context, kbName, description string) error {
	coll := collectionName(kbName)

	if err := m.store.CreateCollection(ctx, coll, m.denseSize); err != nil {
		return fmt.Errorf("creating collection for kb %q: %w", kbName, err)
	}

	descriptor := Point{
		ID:     uuid.NewString(),
		Dense:  make([]float32, m.denseSize),
		Sparse: SparseVector{},
		Payload: map[string]interface{}{
			TypeField:        TypeCollectionMetadata,
			"kb_name":        kbName,
			"description":    description,
			"created_at":     time.Now().UTC().Format(time.RFC3339),
			"document_count": int64(0),
		},
	}
	if err := m.store.Upsert(ctx, coll, []Point{descriptor}); err != nil {
		return fmt.Errorf("writing descriptor point for kb %q: %w", kbName, err)
	}
	return nil
}

// Delete removes the collection backing kbName.
func (m *CollectionManager) Delete(ctx context.Context, kbName string) error {
	return m.store.DeleteCollection(ctx, collectionName(kbName))
}

// Info returns enriched collection info: point/vector counts from
// Qdrant merged with the descriptor point's payload fields.
func (m *CollectionManager) Info(ctx context.Context, kbName string) (*CollectionInfo, error) {
	coll := collectionName(kbName)

	info, err := m.store.GetCollectionInfo(ctx, coll)
	if err != nil {
		return nil, err
	}
	info.KBName = kbName

	descriptors, err := m.store.Scroll(ctx, coll, &Filter{
		Must: []Condition{{Field: TypeField, Value: TypeCollectionMetadata}},
	}, 1)
	if err != nil {
		return nil, fmt.Errorf("locating descriptor point for kb %q: %w", kbName, err)
	}
	if len(descriptors) > 0 {
		payload := descriptors[0].Payload
		if desc, ok := payload["description"].(string); ok {
			info.Description = desc
		}
		if dc, ok := payload["document_count"].(int64); ok {
			info.DocumentCount = int(dc)
		}
	}
	return info, nil
}

// List returns info for every knowledge base, derived by filtering
// Qdrant's collection list down to ones carrying the `kb_` prefix.
func (m *CollectionManager) List(ctx context.Context) ([]*CollectionInfo, error) {
	names, err := m.store.ListCollections(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*CollectionInfo, 0, len(names))
	for _, name := range names {
		kbName, ok := kbNameFromCollection(name)
		if !ok {
			continue
		}
		info, err := m.Info(ctx, kbName)
		if err != nil {
			// a collection matching the prefix but missing its descriptor
			// point (or races with deletion) shouldn't fail the whole list.
			continue
		}
		out = append(out, info)
	}
	return out, nil
}

// IncrementDocumentCount bumps the descriptor point's document_count by
// delta, used after a successful upload/delete of a document.
func (m *CollectionManager) IncrementDocumentCount(ctx context.Context, kbName string, delta int) error {
	coll := collectionName(kbName)
	descriptors, err := m.store.Scroll(ctx, coll, &Filter{
		Must: []Condition{{Field: TypeField, Value: TypeCollectionMetadata}},
	}, 1)
	if err != nil {
		return fmt.Errorf("locating descriptor point for kb %q: %w", kbName, err)
	}
	if len(descriptors) == 0 {
		return fmt.Errorf("%w: no descriptor point for kb %q", ErrCollectionNotFound, kbName)
	}

	d := descriptors[0]
	count, _ := d.Payload["document_count"].(int64)
	d.Payload["document_count"] = count + int64(delta)

	return m.store.Upsert(ctx, coll, []Point{{
		ID:      d.ID,
		Dense:   make([]float32, m.denseSize),
		Sparse:  SparseVector{},
		Payload: d.Payload,
	}})
}
