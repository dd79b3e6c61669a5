// Command ragmcp-cli is a thin operator CLI over the RAG Service: the
// original repo drove the same operations purely through MCP tool
// calls and one-off scripts, with no interactive entry point for an
// operator at a terminal.
//
// ragmcp-cli builds the same dependency graph as ragmcpd in-process
// (no network hop to a running daemon) and calls the RAG Service
// directly, so the two binaries always agree on behavior.
//
// A profile file at ~/.ragmcp.toml (overridable with --profile) sets
// the default result count for search and chat. Its default knowledge
// base entry is parsed but no command uses it: every command takes the
// knowledge base name as an argument.
//
// Usage:
//
//	ragmcp-cli kb create docs --description "product docs"
//	ragmcp-cli kb list
//	ragmcp-cli doc upload docs ./README.md
//	ragmcp-cli search docs "how do I configure retries"
//	ragmcp-cli chat docs "summarize the retry policy" --session s1
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragmcp/internal/chat"
	"github.com/fyrsmithlabs/ragmcp/internal/config"
	"github.com/fyrsmithlabs/ragmcp/internal/document"
	"github.com/fyrsmithlabs/ragmcp/internal/document/clean"
	"github.com/fyrsmithlabs/ragmcp/internal/document/metadata"
	"github.com/fyrsmithlabs/ragmcp/internal/embedding"
	"github.com/fyrsmithlabs/ragmcp/internal/llm"
	"github.com/fyrsmithlabs/ragmcp/internal/ragservice"
	"github.com/fyrsmithlabs/ragmcp/internal/reranker"
	"github.com/fyrsmithlabs/ragmcp/internal/retrieval"
	"github.com/fyrsmithlabs/ragmcp/internal/vectorstore"

	"github.com/qdrant/go-client/qdrant"
)

var version = "dev"

// profile holds the defaults loaded from .ragmcp.toml, mirroring
// cmd/ctxd's own local-profile-file pattern.
type profile struct {
	DefaultKB string `toml:"default_kb"`
	TopK      int    `toml:"top_k"`
}

var (
	profilePath string
	prof        profile
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "ragmcp-cli",
	Short:   "Operator CLI for the ragmcp RAG service",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		prof = loadProfile(profilePath)
		return nil
	},
}

func init() {
	home, _ := os.UserHomeDir()
	rootCmd.PersistentFlags().StringVar(&profilePath, "profile", filepath.Join(home, ".ragmcp.toml"), "path to a .ragmcp.toml profile")
	rootCmd.AddCommand(kbCmd, docCmd, searchCmd, chatCmd)
}

// loadProfile reads path, returning zero-value defaults if it doesn't
// exist — a missing profile is not an error, just "no defaults set".
func loadProfile(path string) profile {
	var p profile
	if _, err := os.Stat(path); err != nil {
		return p
	}
	if _, err := toml.DecodeFile(path, &p); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to parse profile %s: %v\n", path, err)
	}
	return p
}

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage knowledge bases",
}

var kbCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")
		category, _ := cmd.Flags().GetString("category")
		return withService(func(ctx context.Context, svc *ragservice.Service) error {
			res := svc.CreateKB(ctx, args[0], description, category)
			if !res.Success {
				return fmt.Errorf("%s", res.Message)
			}
			fmt.Println(res.Message)
			return nil
		})
	},
}

var kbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List knowledge bases",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *ragservice.Service) error {
			res := svc.ListKBs(ctx)
			if !res.Success {
				return fmt.Errorf("%s", res.Message)
			}
			for _, kb := range res.KBs {
				fmt.Printf("%-20s %-12s docs=%-5d points=%-6d %s\n", kb.KBName, kb.Category, kb.DocumentCount, kb.PointsCount, kb.Description)
			}
			fmt.Printf("%d knowledge base(s)\n", res.Total)
			return nil
		})
	},
}

var kbDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *ragservice.Service) error {
			res := svc.DeleteKB(ctx, args[0])
			if !res.Success {
				return fmt.Errorf("%s", res.Message)
			}
			fmt.Println(res.Message)
			return nil
		})
	},
}

func init() {
	kbCreateCmd.Flags().String("description", "", "human-readable description")
	kbCreateCmd.Flags().String("category", "general", "routing category")
	kbCmd.AddCommand(kbCreateCmd, kbListCmd, kbDeleteCmd)
}

var docCmd = &cobra.Command{
	Use:   "doc",
	Short: "Manage documents within a knowledge base",
}

var docUploadCmd = &cobra.Command{
	Use:   "upload <kb> <file>",
	Short: "Upload and ingest a document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kbName, path := args[0], args[1]
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		return withService(func(ctx context.Context, svc *ragservice.Service) error {
			res := svc.UploadDocument(ctx, kbName, filepath.Base(path), data, nil)
			if !res.Success {
				return fmt.Errorf("%s", res.Message)
			}
			fmt.Printf("ingested %s into %q: %d chunk(s)\n", filepath.Base(path), kbName, res.ChunksCount)
			return nil
		})
	},
}

var docListCmd = &cobra.Command{
	Use:   "list <kb>",
	Short: "List documents in a knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *ragservice.Service) error {
			res := svc.ListDocuments(ctx, args[0], 0, 0)
			if !res.Success {
				return fmt.Errorf("%s", res.Message)
			}
			for _, d := range res.Documents {
				fmt.Printf("%-40s chunks=%d\n", d.Filename, d.ChunksCount)
			}
			fmt.Printf("%d document(s)\n", res.Total)
			return nil
		})
	},
}

func init() {
	docCmd.AddCommand(docUploadCmd, docListCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <kb> <query>",
	Short: "Run hybrid search against a knowledge base",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		topK, _ := cmd.Flags().GetInt("top-k")
		rerank, _ := cmd.Flags().GetBool("rerank")
		if topK <= 0 {
			topK = prof.TopK
		}
		return withService(func(ctx context.Context, svc *ragservice.Service) error {
			res := svc.Search(ctx, args[0], args[1], topK, rerank, true)
			if !res.Success {
				return fmt.Errorf("%s", res.Message)
			}
			for _, item := range res.Results {
				fmt.Printf("[%d] score=%.4f %s\n", item.Rank, item.Score, truncate(item.Content, 160))
			}
			fmt.Printf("%d result(s)\n", res.TotalResults)
			return nil
		})
	},
}

func init() {
	searchCmd.Flags().Int("top-k", 0, "number of results (defaults to the profile/service default)")
	searchCmd.Flags().Bool("rerank", true, "apply the reranker, if configured")
}

var chatCmd = &cobra.Command{
	Use:   "chat <kb> <message>",
	Short: "Ask a grounded question against a knowledge base",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, _ := cmd.Flags().GetString("session")
		topK, _ := cmd.Flags().GetInt("top-k")
		if topK <= 0 {
			topK = prof.TopK
		}
		return withService(func(ctx context.Context, svc *ragservice.Service) error {
			res := svc.Chat(ctx, args[0], args[1], session, topK, false, true)
			if !res.Success {
				return fmt.Errorf("%s", res.Message)
			}
			fmt.Println(res.Answer)
			if len(res.Sources) > 0 {
				fmt.Println("\nsources:")
				for _, s := range res.Sources {
					fmt.Printf("  %s (p.%d) score=%.4f\n", s.Filename, s.Page, s.Score)
				}
			}
			return nil
		})
	},
}

func init() {
	chatCmd.Flags().String("session", "", "session id to maintain conversational memory across calls")
	chatCmd.Flags().Int("top-k", 0, "number of context passages to retrieve")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// withService builds the RAG Service's full dependency graph from the
// process's configuration, runs fn, and releases the vector store
// connection afterward — the same wiring cmd/ragmcpd performs at
// startup, reused here so the CLI always agrees with the daemon on
// how the pipeline is assembled.
func withService(fn func(ctx context.Context, svc *ragservice.Service) error) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := zap.NewNop()

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
		return fmt.Errorf("connecting to vector store: %w", err)
	}
	defer store.Close()

	embedder, err := embedding.NewProvider(embedding.ProviderConfig{
		Provider: cfg.Embedding.Provider,
		Model:    cfg.Embedding.Model,
		BaseURL:  cfg.Embedding.BaseURL,
		CacheDir: cfg.Embedding.CacheDir,
	})
	if err != nil {
		return fmt.Errorf("constructing embedding provider: %w", err)
	}
	defer embedder.Close()

	var rerankCl reranker.Reranker
	if cfg.Reranker.Enabled {
		rerankCl, err = reranker.NewClient(reranker.Config{
			BaseURL: cfg.Reranker.BaseURL,
			Model:   cfg.Reranker.Model,
			APIKey:  cfg.Reranker.APIKey.Value(),
			Timeout: cfg.Reranker.Timeout.Duration(),
		})
		if err != nil {
			return fmt.Errorf("constructing reranker client: %w", err)
		}
		defer rerankCl.Close()
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
		return fmt.Errorf("constructing llm client: %w", err)
	}

	collections := vectorstore.NewCollectionManager(store, uint64(cfg.Embedding.Dimension))
	docProcessor := document.NewProcessor(document.Extractors{PlainText: document.NewPlainTextExtractor()}, clean.NewCleaner(clean.Options{}, logger), logger)
	retriever := retrieval.NewRetriever(store, embedder, rerankCl, retrieval.Options{
		TopK:                  cfg.Search.TopK,
		SearchLimitMultiplier: cfg.Search.SearchLimitMultiplier,
		RRFConstant:           cfg.Search.RRFK,
		RerankThreshold:       cfg.Search.RerankThreshold,
	}, logger)
	router := retrieval.NewRouter(store, embedder, cfg.VectorStore.MasterCollection, logger)
	chatEngine := chat.NewEngine(llmCl, chat.Options{
		SystemPrompt:     cfg.Chat.SystemPrompt,
		MemoryTokenLimit: cfg.Chat.MemoryTokenLimit,
		ModelName:        cfg.LLM.Model,
	}, logger)

	svc := ragservice.NewService(ragservice.Deps{
		Store:        store,
		Collections:  collections,
		Embedder:     embedder,
		DocProcessor: docProcessor,
		MetadataExtr: metadata.NewExtractor(llmCl),
		Retriever:    retriever,
		Router:       router,
		ChatEngine:   chatEngine,
	}, ragservice.Options{DefaultTopK: cfg.Search.TopK}, logger)

	return fn(context.Background(), svc)
}
