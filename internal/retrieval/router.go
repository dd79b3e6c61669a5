package retrieval

import (
	"context"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragmcp/internal/vectorstore"
)

const defaultMasterCollection = "master_index"

// KBMatch is one routing candidate: a knowledge base and its
// similarity score against the query.
type KBMatch struct {
	KBName      string
	Score       float32
	Description string
	Category    string
}

// KBDescriptor is a master-index entry as listed by Router.ListKBs.
type KBDescriptor struct {
	KBName      string
	Description string
	Category    string
}

// Router selects the best-matching knowledge base(s) for a query by
// dense similarity against descriptions stored in the master index.
type Router struct {
	store            vectorstore.Store
	embedder         Embedder
	masterCollection string
	logger           *zap.Logger
}

// NewRouter creates a Router. An empty masterCollection uses the
// reserved "master_index" name.
func NewRouter(store vectorstore.Store, embedder Embedder, masterCollection string, logger *zap.Logger) *Router {
	if masterCollection == "" {
		masterCollection = defaultMasterCollection
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{store: store, embedder: embedder, masterCollection: masterCollection, logger: logger}
}

// Route embeds query densely, searches the master index for up to
// topK*2 candidates scoring at or above scoreThreshold, filters by
// kbWhitelist if non-empty, and returns the first topK matches.
func (r *Router) Route(ctx context.Context, query string, kbWhitelist []string, topK int, scoreThreshold float32) ([]KBMatch, error) {
	if topK <= 0 {
		topK = 1
	}

	denseVecs, err := r.embedder.EmbedDense(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	points, err := r.store.SearchDense(ctx, r.masterCollection, denseVecs[0], topK*2, nil)
	if err != nil {
		return nil, err
	}

	allow := make(map[string]bool, len(kbWhitelist))
	for _, kb := range kbWhitelist {
		allow[kb] = true
	}

	var matches []KBMatch
	for _, p := range points {
		if p.Score < scoreThreshold {
			continue
		}
		kbName, _ := p.Payload["kb_name"].(string)
		if len(allow) > 0 && !allow[kbName] {
			continue
		}
		description, _ := p.Payload["description"].(string)
		category, _ := p.Payload["category"].(string)
		if category == "" {
			category = "general"
		}
		matches = append(matches, KBMatch{
			KBName:      kbName,
			Score:       p.Score,
			Description: description,
			Category:    category,
		})
		if len(matches) >= topK {
			break
		}
	}

	if len(matches) > 0 {
		r.logger.Info("routed query", zap.String("kb_name", matches[0].KBName), zap.Float32("score", matches[0].Score))
	} else {
		r.logger.Warn("no KB matched query", zap.Float32("threshold", scoreThreshold))
	}

	return matches, nil
}

// AddKBToMaster embeds description densely and sparsely and upserts a
// kb_index descriptor point into the master index.
func (r *Router) AddKBToMaster(ctx context.Context, kbName, description, category string, id string) error {
	if category == "" {
		category = "general"
	}

	denseVecs, err := r.embedder.EmbedDense(ctx, []string{description})
	if err != nil {
		return err
	}
	sparseVecs, err := r.embedder.EmbedSparse(ctx, []string{description})
	if err != nil {
		return err
	}

	point := vectorstore.Point{
		ID:     id,
		Dense:  denseVecs[0],
		Sparse: sparseVecs[0],
		Payload: map[string]interface{}{
			"_type":       "kb_index",
			"kb_name":     kbName,
			"description": description,
			"category":    category,
		},
	}

	return r.store.Upsert(ctx, r.masterCollection, []vectorstore.Point{point})
}

// RemoveKBFromMaster deletes the master-index entry for kbName.
func (r *Router) RemoveKBFromMaster(ctx context.Context, kbName string) error {
	filter := &vectorstore.Filter{Must: []vectorstore.Condition{{Field: "kb_name", Value: kbName}}}
	return r.store.DeleteByFilter(ctx, r.masterCollection, filter)
}

// ListKBs scrolls the master index for all kb_index entries.
func (r *Router) ListKBs(ctx context.Context) ([]KBDescriptor, error) {
	filter := &vectorstore.Filter{Must: []vectorstore.Condition{{Field: "_type", Value: "kb_index"}}}
	points, err := r.store.Scroll(ctx, r.masterCollection, filter, 100)
	if err != nil {
		return nil, err
	}

	kbs := make([]KBDescriptor, 0, len(points))
	for _, p := range points {
		kbName, _ := p.Payload["kb_name"].(string)
		description, _ := p.Payload["description"].(string)
		category, _ := p.Payload["category"].(string)
		if category == "" {
			category = "general"
		}
		kbs = append(kbs, KBDescriptor{KBName: kbName, Description: description, Category: category})
	}
	return kbs, nil
}
