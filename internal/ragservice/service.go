// Package ragservice implements the RAG Service: the high-level
// orchestrator tying the vector store, document processing, retrieval,
// routing, and chat components into the operations the tool dispatcher
// exposes to external callers.
package ragservice

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragmcp/internal/chat"
	"github.com/fyrsmithlabs/ragmcp/internal/document"
	"github.com/fyrsmithlabs/ragmcp/internal/document/metadata"
	"github.com/fyrsmithlabs/ragmcp/internal/document/progressive"
	"github.com/fyrsmithlabs/ragmcp/internal/retrieval"
	"github.com/fyrsmithlabs/ragmcp/internal/vectorstore"
)

// Options configures a Service's behavior beyond its wired
// dependencies.
type Options struct {
	// ProgressiveEnabled routes PDF uploads through the Progressive
	// Processor's tiered escalation instead of a single Document
	// Processor pass.
	ProgressiveEnabled bool
	TargetQuality      float64
	DefaultTopK        int
}

// DefaultOptions returns the RAG Service's default behavior.
func DefaultOptions() Options {
	return Options{
		ProgressiveEnabled: true,
		TargetQuality:      progressive.ThresholdFast,
		DefaultTopK:        5,
	}
}

// Service is the RAG Service orchestrator.
type Service struct {
	store       vectorstore.Store
	collections *vectorstore.CollectionManager
	embedder    vectorstore.Embedder

	docProcessor    *document.Processor
	progressiveOpts progressive.Options
	balancedTier    progressive.TierExtractor
	premiumTier     progressive.TierExtractor
	metadataExtr    *metadata.Extractor

	retriever *retrieval.Retriever
	router    *retrieval.Router
	chatEngine *chat.Engine

	opts   Options
	logger *zap.Logger
}

// Deps bundles the already-constructed components a Service is wired
// from.
type Deps struct {
	Store           vectorstore.Store
	Collections     *vectorstore.CollectionManager
	Embedder        vectorstore.Embedder
	DocProcessor    *document.Processor
	ProgressiveOpts progressive.Options
	BalancedTier    progressive.TierExtractor
	PremiumTier     progressive.TierExtractor
	MetadataExtr    *metadata.Extractor
	Retriever       *retrieval.Retriever
	Router          *retrieval.Router
	ChatEngine      *chat.Engine
}

// NewService builds a Service from its dependencies and options.
func NewService(deps Deps, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = 5
	}
	return &Service{
		store:           deps.Store,
		collections:     deps.Collections,
		embedder:        deps.Embedder,
		docProcessor:    deps.DocProcessor,
		progressiveOpts: deps.ProgressiveOpts,
		balancedTier:    deps.BalancedTier,
		premiumTier:     deps.PremiumTier,
		metadataExtr:    deps.MetadataExtr,
		retriever:       deps.Retriever,
		router:          deps.Router,
		chatEngine:      deps.ChatEngine,
		opts:            opts,
		logger:          logger,
	}
}

// CreateKB probes the embedding dimension, creates the KB's backing
// collection, and registers a descriptor in the master index. On any
// step failure, it leaves no half-created state visible to subsequent
// calls: a master-index failure deletes the just-created collection.
func (s *Service) CreateKB(ctx context.Context, kbName, description, category string) CreateKBResult {
	// The collection's dense size is fixed by the embedder's dimension
	// at Service construction; probing here fails fast if the
	// embedding client is unreachable rather than leaving a collection
	// whose vectors can never be written.
	if _, err := s.embedder.EmbedDense(ctx, []string{"test"}); err != nil {
		return CreateKBResult{Success: false, Message: fmt.Sprintf("probing embedding dimension: %v", err)}
	}

	if err := s.collections.Create(ctx, kbName, description); err != nil {
		return CreateKBResult{Success: false, Message: err.Error()}
	}

	if err := s.router.AddKBToMaster(ctx, kbName, description, category, uuid.NewString()); err != nil {
		s.logger.Warn("master index registration failed, rolling back collection", zap.String("kb_name", kbName), zap.Error(err))
		if delErr := s.collections.Delete(ctx, kbName); delErr != nil {
			s.logger.Error("rollback delete failed", zap.String("kb_name", kbName), zap.Error(delErr))
		}
		return CreateKBResult{Success: false, Message: err.Error()}
	}

	s.logger.Info("created KB", zap.String("kb_name", kbName), zap.String("category", category))
	return CreateKBResult{
		Success: true,
		KBName:  kbName,
		Message: fmt.Sprintf("knowledge base %q created successfully", kbName),
	}
}

// DeleteKB removes the KB's collection and its master-index entry.
// A missing master-index entry is not treated as an error.
func (s *Service) DeleteKB(ctx context.Context, kbName string) DeleteKBResult {
	if err := s.collections.Delete(ctx, kbName); err != nil {
		return DeleteKBResult{Success: false, Message: err.Error()}
	}
	if err := s.router.RemoveKBFromMaster(ctx, kbName); err != nil {
		s.logger.Warn("master index cleanup failed", zap.String("kb_name", kbName), zap.Error(err))
	}
	s.logger.Info("deleted KB", zap.String("kb_name", kbName))
	return DeleteKBResult{Success: true, Message: fmt.Sprintf("knowledge base %q deleted successfully", kbName)}
}

// ListKBs lists every KB collection and fills in its category (and its
// description, when the collection's own is empty) from the master
// index descriptors: a KB missing from the master index still appears,
// with the collection's own description and the "general" category.
func (s *Service) ListKBs(ctx context.Context) ListKBsResult {
	infos, err := s.collections.List(ctx)
	if err != nil {
		return ListKBsResult{Success: false, Message: err.Error()}
	}

	descriptors, err := s.router.ListKBs(ctx)
	if err != nil {
		s.logger.Warn("master index listing failed, KBs will show default category", zap.Error(err))
		descriptors = nil
	}
	byName := make(map[string]retrieval.KBDescriptor, len(descriptors))
	for _, d := range descriptors {
		byName[d.KBName] = d
	}

	kbs := make([]KBSummary, 0, len(infos))
	for _, info := range infos {
		summary := KBSummary{
			KBName:        info.KBName,
			Description:   info.Description,
			Category:      "general",
			DocumentCount: info.DocumentCount,
			PointsCount:   info.PointsCount,
		}
		if d, ok := byName[info.KBName]; ok {
			if summary.Description == "" {
				summary.Description = d.Description
			}
			summary.Category = d.Category
		}
		kbs = append(kbs, summary)
	}

	return ListKBsResult{Success: true, KBs: kbs, Total: len(kbs)}
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Close releases the underlying vector store connection.
func (s *Service) Close() error {
	return s.store.Close()
}
