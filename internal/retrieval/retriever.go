package retrieval

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragmcp/internal/reranker"
	"github.com/fyrsmithlabs/ragmcp/internal/vectorstore"
)

// Options configures a Retriever.
type Options struct {
	TopK                int
	SearchLimitMultiplier int
	RRFConstant         int
	RerankThreshold     float32
}

// DefaultOptions mirrors the original source's defaults.
func DefaultOptions() Options {
	return Options{
		TopK:                  5,
		SearchLimitMultiplier: 2,
		RRFConstant:           60,
		RerankThreshold:       0,
	}
}

// Retriever performs hybrid dense+sparse search, fuses the two ranked
// lists via Reciprocal Rank Fusion, and optionally reranks the fused
// list with a cross-encoder.
type Retriever struct {
	store    vectorstore.Store
	embedder Embedder
	reranker reranker.Reranker
	opts     Options
	logger   *zap.Logger
}

// NewRetriever creates a Retriever. reranker may be nil; callers then
// get fused-only results regardless of useReranking.
func NewRetriever(store vectorstore.Store, embedder Embedder, rr reranker.Reranker, opts Options, logger *zap.Logger) *Retriever {
	if opts.TopK <= 0 {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{store: store, embedder: embedder, reranker: rr, opts: opts, logger: logger}
}

// Details carries every intermediate list produced by Retrieve, for
// debugging.
type Details struct {
	Query         string
	DenseResults  []Result
	SparseResults []Result
	FusedResults  []Result
	FinalResults  []Result
}

// Retrieve embeds query, searches dense and sparse in parallel, fuses
// via RRF, optionally reranks, and returns the top_k results.
func (r *Retriever) Retrieve(ctx context.Context, query, collection string, topK int, filter *vectorstore.Filter, useReranking bool) ([]Result, error) {
	details, err := r.retrieveWithDetails(ctx, query, collection, topK, filter, useReranking)
	if err != nil {
		return nil, err
	}
	return details.FinalResults, nil
}

// RetrieveWithDetails is the debug variant returning every
// intermediate stage.
func (r *Retriever) RetrieveWithDetails(ctx context.Context, query, collection string, topK int, filter *vectorstore.Filter, useReranking bool) (Details, error) {
	return r.retrieveWithDetails(ctx, query, collection, topK, filter, useReranking)
}

func (r *Retriever) retrieveWithDetails(ctx context.Context, query, collection string, topK int, filter *vectorstore.Filter, useReranking bool) (Details, error) {
	if topK <= 0 {
		topK = r.opts.TopK
	}
	searchLimit := topK * r.opts.SearchLimitMultiplier

	denseVecs, err := r.embedder.EmbedDense(ctx, []string{query})
	if err != nil {
		return Details{}, err
	}
	sparseVecs, err := r.embedder.EmbedSparse(ctx, []string{query})
	if err != nil {
		return Details{}, err
	}

	sparseCh := make(chan []vectorstore.ScoredPoint, 1)
	var sparseErr error
	go func() {
		points, err := r.store.SearchSparse(ctx, collection, sparseVecs[0], searchLimit, filter)
		sparseErr = err
		sparseCh <- points
	}()

	densePoints, err := r.store.SearchDense(ctx, collection, denseVecs[0], searchLimit, filter)
	if err != nil {
		return Details{}, err
	}
	sparsePoints := <-sparseCh
	if sparseErr != nil {
		return Details{}, sparseErr
	}

	denseResults := scoredPointsToResults(densePoints)
	sparseResults := scoredPointsToResults(sparsePoints)

	fused := fuseRRF(denseResults, sparseResults, r.opts.RRFConstant)

	final := fused
	if useReranking && r.reranker != nil && len(fused) > 0 {
		reranked, err := r.rerank(ctx, query, fused)
		if err != nil {
			r.logger.Error("rerank failed, falling back to fused order", zap.Error(err))
		} else {
			final = reranked
			if r.opts.RerankThreshold > 0 {
				final = filterByThreshold(final, r.opts.RerankThreshold)
			}
		}
	}

	if len(final) > topK {
		final = final[:topK]
	}

	return Details{
		Query:         query,
		DenseResults:  denseResults,
		SparseResults: sparseResults,
		FusedResults:  fused,
		FinalResults:  final,
	}, nil
}

func scoredPointsToResults(points []vectorstore.ScoredPoint) []Result {
	out := make([]Result, len(points))
	for i, p := range points {
		out[i] = Result{ID: p.ID, Score: p.Score, Payload: p.Payload}
	}
	return out
}

// fuseRRF merges dense and sparse ranked lists by Reciprocal Rank
// Fusion. Documents present in both lists contribute a term from
// each; payloads merge with the dense copy's keys winning on
// conflict, sparse-only fields added in.
func fuseRRF(dense, sparse []Result, k int) []Result {
	denseRank := make(map[string]int, len(dense))
	for i, r := range dense {
		denseRank[r.ID] = i + 1
	}
	sparseRank := make(map[string]int, len(sparse))
	for i, r := range sparse {
		sparseRank[r.ID] = i + 1
	}

	payloads := make(map[string]map[string]interface{})
	var order []string
	seen := make(map[string]bool)
	for _, r := range dense {
		payloads[r.ID] = r.Payload
		if !seen[r.ID] {
			order = append(order, r.ID)
			seen[r.ID] = true
		}
	}
	for _, r := range sparse {
		if existing, ok := payloads[r.ID]; ok {
			payloads[r.ID] = mergePayloads(existing, r.Payload)
		} else {
			payloads[r.ID] = r.Payload
		}
		if !seen[r.ID] {
			order = append(order, r.ID)
			seen[r.ID] = true
		}
	}

	fused := make([]Result, 0, len(order))
	for _, id := range order {
		var score float32
		if rank, ok := denseRank[id]; ok {
			score += 1.0 / float32(k+rank)
		}
		if rank, ok := sparseRank[id]; ok {
			score += 1.0 / float32(k+rank)
		}
		fused = append(fused, Result{ID: id, Score: score, Payload: payloads[id]})
	}

	sort.SliceStable(fused, func(i, j int) bool { return fused[i].Score > fused[j].Score })
	return fused
}

// mergePayloads unions base (the dense copy) with extra (the sparse
// copy), keeping base's value on key conflicts.
func mergePayloads(base, extra map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range extra {
		merged[k] = v
	}
	for k, v := range base {
		merged[k] = v
	}
	return merged
}

func (r *Retriever) rerank(ctx context.Context, query string, results []Result) ([]Result, error) {
	docs := make([]reranker.Document, len(results))
	for i, res := range results {
		text, _ := res.Payload["text"].(string)
		docs[i] = reranker.Document{ID: res.ID, Content: text, Score: res.Score}
	}

	scored, err := r.reranker.Rerank(ctx, query, docs, len(docs))
	if err != nil {
		return nil, err
	}

	out := make([]Result, len(scored))
	for i, s := range scored {
		payload := results[s.OriginalRank].Payload
		out[i] = Result{ID: s.ID, Score: s.RerankerScore, Payload: payload}
	}
	return out, nil
}

func filterByThreshold(results []Result, threshold float32) []Result {
	out := results[:0:0]
	for _, r := range results {
		if r.Score >= threshold {
			out = append(out, r)
		}
	}
	return out
}
