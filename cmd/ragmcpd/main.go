// Command ragmcpd is the ragmcp MCP server: a multi-tenant
// retrieval-augmented-generation service exposing knowledge-base
// management, document ingestion, hybrid search, and chat as MCP
// tools over the stdio transport.
//
// Configuration is read from environment variables by config.Load;
// ragmcpd does not call config.LoadWithFile, so no YAML file is read.
// See internal/config for the full list of supported environment
// variables.
//
// Usage:
//
//	# Start server with defaults (fastembed, local Qdrant)
//	ragmcpd
//
//	# Configure via environment
//	VECTORSTORE_HOST=qdrant.internal LLM_API_KEY=sk-... ragmcpd
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragmcp/internal/chat"
	"github.com/fyrsmithlabs/ragmcp/internal/config"
	"github.com/fyrsmithlabs/ragmcp/internal/document"
	"github.com/fyrsmithlabs/ragmcp/internal/document/clean"
	"github.com/fyrsmithlabs/ragmcp/internal/document/metadata"
	"github.com/fyrsmithlabs/ragmcp/internal/document/progressive"
	"github.com/fyrsmithlabs/ragmcp/internal/embedding"
	"github.com/fyrsmithlabs/ragmcp/internal/llm"
	"github.com/fyrsmithlabs/ragmcp/internal/logging"
	"github.com/fyrsmithlabs/ragmcp/internal/mcp"
	"github.com/fyrsmithlabs/ragmcp/internal/ragservice"
	"github.com/fyrsmithlabs/ragmcp/internal/reranker"
	"github.com/fyrsmithlabs/ragmcp/internal/retrieval"
	"github.com/fyrsmithlabs/ragmcp/internal/tracer"
	"github.com/fyrsmithlabs/ragmcp/internal/vectorstore"

	"github.com/qdrant/go-client/qdrant"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  ragmcpd           Start the ragmcpd daemon\n")
			fmt.Fprintf(os.Stderr, "  ragmcpd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}

	log.Println("server shutdown complete")
}

func printVersion() {
	fmt.Printf("ragmcpd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the ragmcpd server and blocks until ctx is cancelled.
//
// This function initializes all dependencies and services:
//  1. Loads and validates configuration
//  2. Initializes the structured logger
//  3. Connects to infrastructure (Qdrant, embedding/reranker/LLM clients)
//  4. Builds the domain pipeline (document processor, progressive
//     processor tiers, retriever, router, chat engine)
//  5. Wires the RAG Service and MCP server
//  6. Runs the stdio MCP server until shutdown
func run(ctx context.Context) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Underlying().Sync()
	}()
	zl := logger.Underlying()

	zl.Info("starting ragmcpd",
		zap.Int("port", cfg.Server.Port),
		zap.String("service", cfg.Observability.ServiceName),
		zap.String("vectorstore_host", cfg.VectorStore.Host),
		zap.String("embedding_provider", cfg.Embedding.Provider))

	deps, err := initDependencies(cfg, zl)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}

	ragSvc := buildRAGService(cfg, deps, zl)

	mcpCfg := &mcp.Config{
		Name:        "ragmcp",
		Version:     version,
		Logger:      zl,
		Environment: cfg.Observability.Environment,
	}
	sink := tracer.NewLogSink(zl)
	srv, err := mcp.NewServer(mcpCfg, ragSvc, sink)
	if err != nil {
		return fmt.Errorf("failed to create mcp server: %w", err)
	}
	defer func() {
		if cerr := srv.Close(); cerr != nil {
			zl.Warn("error closing mcp server", zap.Error(cerr))
		}
	}()

	httpSrv := newHealthServer(cfg.Server.Port)
	go func() {
		if err := httpSrv.Start(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil && err != http.ErrServerClosed {
			zl.Warn("health/metrics server exited", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			zl.Warn("error shutting down health/metrics server", zap.Error(err))
		}
	}()
	zl.Info("health/metrics server listening", zap.Int("port", cfg.Server.Port))

	return srv.Run(ctx)
}

// newHealthServer builds the echo instance serving /health and the
// Prometheus /metrics endpoint alongside the stdio MCP transport. The
// MCP protocol itself stays stdio-only; this is operational surface
// for liveness probes and scraping, grounded on the teacher's
// cmd/contextd pattern of mounting promhttp.Handler() under echo.
func newHealthServer(port int) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	return e
}

// initLogger builds the context-aware structured logger. Telemetry
// export to an OTel collector is opt-in via OTEL_ENABLE; otherwise
// logs go to stdout only.
func initLogger(cfg *config.Config) (*logging.Logger, error) {
	logCfg := logging.NewDefaultConfig()
	logCfg.Fields["service"] = cfg.Observability.ServiceName
	logCfg.Output.OTEL = cfg.Observability.EnableTelemetry
	return logging.NewLogger(logCfg, nil)
}

// dependencies holds the infrastructure clients the domain pipeline is
// wired from.
type dependencies struct {
	store    *vectorstore.QdrantStore
	embedder embedding.Provider
	rerankCl reranker.Reranker
	llmCl    llm.Client
}

// initDependencies connects to the vector store and constructs the
// embedding/reranker/LLM clients the rest of the pipeline depends on.
// A reranker is only constructed when explicitly enabled, since an
// unreachable reranker server would otherwise fail startup for a
// feature callers may never invoke.
func initDependencies(cfg *config.Config, logger *zap.Logger) (*dependencies, error) {
	store, err := vectorstore.NewQdrantStore(vectorstore.QdrantConfig{
		Host:                    cfg.VectorStore.Host,
		Port:                    cfg.VectorStore.Port,
		Distance:                qdrant.Distance_Cosine,
		UseTLS:                  cfg.VectorStore.UseTLS,
		MaxRetries:              cfg.VectorStore.MaxRetries,
		RetryBackoff:            cfg.VectorStore.RetryBackoff.Duration(),
		MaxMessageSize:          cfg.VectorStore.MaxMessageSize,
		CircuitBreakerThreshold: cfg.VectorStore.CircuitBreakerThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to vector store: %w", err)
	}
	logger.Info("vector store connected",
		zap.String("host", cfg.VectorStore.Host),
		zap.Int("port", cfg.VectorStore.Port))

	embedder, err := embedding.NewProvider(embedding.ProviderConfig{
		Provider: cfg.Embedding.Provider,
		Model:    cfg.Embedding.Model,
		BaseURL:  cfg.Embedding.BaseURL,
		CacheDir: cfg.Embedding.CacheDir,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("constructing embedding provider: %w", err)
	}
	logger.Info("embedding provider ready",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimension", embedder.Dimension()))

	var rerankCl reranker.Reranker
	if cfg.Reranker.Enabled {
		client, err := reranker.NewClient(reranker.Config{
			BaseURL: cfg.Reranker.BaseURL,
			Model:   cfg.Reranker.Model,
			APIKey:  cfg.Reranker.APIKey.Value(),
			Timeout: cfg.Reranker.Timeout.Duration(),
		})
		if err != nil {
			embedder.Close()
			store.Close()
			return nil, fmt.Errorf("constructing reranker client: %w", err)
		}
		rerankCl = client
		logger.Info("reranker client ready", zap.String("base_url", cfg.Reranker.BaseURL))
	}

	llmCl, err := llm.NewAnthropicClient(llm.Config{
		APIKey:      cfg.LLM.APIKey.Value(),
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout.Duration(),
	})
	if err != nil {
		if rerankCl != nil {
			rerankCl.Close()
		}
		embedder.Close()
		store.Close()
		return nil, fmt.Errorf("constructing llm client: %w", err)
	}
	logger.Info("llm client ready", zap.String("model", cfg.LLM.Model))

	return &dependencies{store: store, embedder: embedder, rerankCl: rerankCl, llmCl: llmCl}, nil
}

// buildRAGService assembles the document, retrieval, routing, and chat
// components into a ragservice.Service. Unlike initDependencies, this
// step cannot fail: every sub-component here is a plain struct
// constructor over already-validated config and already-connected
// clients.
func buildRAGService(cfg *config.Config, deps *dependencies, logger *zap.Logger) *ragservice.Service {
	collections := vectorstore.NewCollectionManager(deps.store, uint64(cfg.Embedding.Dimension))

	extractors := document.Extractors{
		PlainText: document.NewPlainTextExtractor(),
	}
	if cfg.Extractor.BaseURL != "" {
		structured, err := document.NewHTTPSectionExtractor(document.HTTPExtractorConfig{
			BaseURL: cfg.Extractor.BaseURL,
			APIKey:  cfg.Extractor.APIKey.Value(),
			Timeout: cfg.Extractor.Timeout.Duration(),
		})
		if err != nil {
			logger.Warn("structured extractor unavailable, falling back to plain text only", zap.Error(err))
		} else {
			extractors.Structured = structured
			extractors.Office = structured
		}
	}

	cleaner := clean.NewCleaner(clean.Options{}, logger)
	docProcessor := document.NewProcessor(extractors, cleaner, logger)

	progressiveOpts := progressive.Options{
		Fast:          progressive.TierConfig{Enabled: true, Cost: progressive.CostFast},
		Balanced:      progressive.TierConfig{Enabled: cfg.Progressive.EnableBalanced, Cost: progressive.CostBalanced},
		Premium:       progressive.TierConfig{Enabled: cfg.Progressive.EnablePremium, Cost: progressive.CostPremium},
		TargetQuality: cfg.Progressive.TargetQuality,
	}

	var balancedTier, premiumTier progressive.TierExtractor
	if cfg.Progressive.EnableBalanced || cfg.Progressive.EnablePremium {
		vlmClient := deps.llmCl
		if cfg.Progressive.APIKey != "" {
			// A distinct API key for the VLM tier (often a different
			// billing account/quota than the answer-generation LLM).
			if client, err := llm.NewAnthropicClient(llm.Config{
				APIKey:  cfg.Progressive.APIKey.Value(),
				Model:   cfg.LLM.Model,
				Timeout: cfg.LLM.Timeout.Duration(),
			}); err == nil {
				vlmClient = client
			} else {
				logger.Warn("progressive tier API key rejected, reusing primary llm client", zap.Error(err))
			}
		}
		if cfg.Progressive.EnableBalanced {
			balancedTier = progressive.NewVLMExtractor(vlmClient, "")
		}
		if cfg.Progressive.EnablePremium {
			premiumTier = progressive.NewVLMExtractor(vlmClient, "")
		}
	}

	metadataExtr := metadata.NewExtractor(deps.llmCl)

	retrieverOpts := retrieval.Options{
		TopK:                  cfg.Search.TopK,
		SearchLimitMultiplier: cfg.Search.SearchLimitMultiplier,
		RRFConstant:           cfg.Search.RRFK,
		RerankThreshold:       cfg.Search.RerankThreshold,
	}
	retriever := retrieval.NewRetriever(deps.store, deps.embedder, deps.rerankCl, retrieverOpts, logger)
	router := retrieval.NewRouter(deps.store, deps.embedder, cfg.VectorStore.MasterCollection, logger)

	chatEngine := chat.NewEngine(deps.llmCl, chat.Options{
		SystemPrompt:     cfg.Chat.SystemPrompt,
		MemoryTokenLimit: cfg.Chat.MemoryTokenLimit,
		ModelName:        cfg.LLM.Model,
	}, logger)

	return ragservice.NewService(ragservice.Deps{
		Store:           deps.store,
		Collections:     collections,
		Embedder:        deps.embedder,
		DocProcessor:    docProcessor,
		ProgressiveOpts: progressiveOpts,
		BalancedTier:    balancedTier,
		PremiumTier:     premiumTier,
		MetadataExtr:    metadataExtr,
		Retriever:       retriever,
		Router:          router,
		ChatEngine:      chatEngine,
	}, ragservice.Options{
		ProgressiveEnabled: cfg.Progressive.UseProgressive,
		TargetQuality:      cfg.Progressive.TargetQuality,
		DefaultTopK:        cfg.Search.TopK,
	}, logger)
}
