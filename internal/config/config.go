// Package config provides configuration loading for ragmcp.
//
// Configuration is loaded from environment variables with sensible defaults.
// This package supports server, observability, and domain-specific settings.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Config holds the complete ragmcp configuration.
type Config struct {
	Production    ProductionConfig
	Server        ServerConfig
	Observability ObservabilityConfig
	VectorStore   VectorStoreConfig
	Embedding     EmbeddingConfig
	Reranker      RerankerConfig
	LLM           LLMConfig
	Search        SearchConfig
	Document      DocumentConfig
	Extractor     ExtractorConfig
	Chat          ChatConfig
	Progressive   ProgressiveConfig
}

// VectorStoreConfig holds Qdrant vector store connection configuration.
type VectorStoreConfig struct {
	// Host is the Qdrant server hostname or IP address.
	Host string `koanf:"host"`

	// Port is the Qdrant gRPC port (default: 6334).
	Port int `koanf:"port"`

	// Timeout bounds a single vector store call.
	Timeout Duration `koanf:"timeout"`

	// UseTLS enables TLS encryption for the gRPC connection.
	UseTLS bool `koanf:"use_tls"`

	// MaxRetries is the maximum number of retry attempts for transient failures.
	MaxRetries int `koanf:"max_retries"`

	// RetryBackoff is the initial backoff duration for retries, doubling
	// on each attempt.
	RetryBackoff Duration `koanf:"retry_backoff"`

	// MaxMessageSize is the maximum gRPC message size in bytes.
	MaxMessageSize int `koanf:"max_message_size"`

	// CircuitBreakerThreshold is the number of failures before the
	// circuit opens.
	CircuitBreakerThreshold int `koanf:"circuit_breaker_threshold"`

	// MasterCollection is the name of the collection holding KB
	// descriptors consulted by routing (create_kb/delete_kb/chat
	// auto-routing).
	MasterCollection string `koanf:"master_collection"`
}

// Validate validates VectorStoreConfig.
func (c *VectorStoreConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("vector store host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid vector store port: %d (must be 1-65535)", c.Port)
	}
	return nil
}

// EmbeddingConfig holds dense/sparse embedding provider configuration.
type EmbeddingConfig struct {
	// Provider is "fastembed" (local ONNX, default) or "remote" (TEI-compatible HTTP server).
	Provider string `koanf:"provider"`

	// Model is the embedding model name.
	Model string `koanf:"model"`

	// Dimension is the expected embedding dimension. Must match the
	// collection's dense vector size.
	Dimension int `koanf:"dimension"`

	// BatchSize is the maximum number of texts embedded per call.
	BatchSize int `koanf:"batch_size"`

	// Device selects the inference device for the local provider
	// ("cpu", "cuda"); ignored by the remote provider.
	Device string `koanf:"device"`

	// BaseURL is the base URL of the remote TEI-compatible embedding server.
	BaseURL string `koanf:"base_url"`

	// CacheDir is the directory FastEmbed caches model files in.
	CacheDir string `koanf:"cache_dir"`

	// APIKey is an optional bearer token for hosted embedding endpoints.
	APIKey Secret `koanf:"api_key"`
}

// Validate validates EmbeddingConfig.
func (c *EmbeddingConfig) Validate() error {
	switch c.Provider {
	case "fastembed", "remote", "":
		return nil
	default:
		return fmt.Errorf("unsupported embedding provider: %s (supported: fastembed, remote)", c.Provider)
	}
}

// RerankerConfig holds cross-encoder reranker configuration.
type RerankerConfig struct {
	// Enabled controls whether a reranker client is constructed at all;
	// search/chat calls made with use_reranking=true against a nil
	// reranker fall back to fused-only results.
	Enabled bool `koanf:"enabled"`

	// BaseURL is the base URL of the reranker model server.
	BaseURL string `koanf:"base_url"`

	// Model is used only for logging/metric labels.
	Model string `koanf:"model"`

	// BatchSize is the maximum number of candidate passages reranked per call.
	BatchSize int `koanf:"batch_size"`

	// Device selects the inference device ("cpu", "cuda").
	Device string `koanf:"device"`

	// APIKey is an optional bearer token for hosted reranker endpoints.
	APIKey Secret `koanf:"api_key"`

	// Timeout bounds a single rerank call.
	Timeout Duration `koanf:"timeout"`
}

// LLMConfig holds the answer-generation LLM client configuration.
type LLMConfig struct {
	APIKey      Secret   `koanf:"api_key"`
	Model       string   `koanf:"model"`
	BaseURL     string   `koanf:"base_url"`
	Temperature float64  `koanf:"temperature"`
	MaxTokens   int      `koanf:"max_tokens"`
	Timeout     Duration `koanf:"timeout"`
}

// Validate validates LLMConfig.
func (c *LLMConfig) Validate() error {
	if c.Temperature < 0 || c.Temperature > 1 {
		return fmt.Errorf("llm temperature must be between 0 and 1, got %f", c.Temperature)
	}
	return nil
}

// SearchConfig holds hybrid retrieval parameters.
type SearchConfig struct {
	// TopK is the default number of results returned by search/chat.
	TopK int `koanf:"top_k"`

	// SearchLimitMultiplier widens the per-leg dense/sparse candidate
	// pool before fusion (candidates = TopK * SearchLimitMultiplier).
	SearchLimitMultiplier int `koanf:"search_limit_multiplier"`

	// RRFK is the Reciprocal Rank Fusion constant.
	RRFK int `koanf:"rrf_k"`

	// RerankThreshold drops reranked results scoring below this value.
	RerankThreshold float32 `koanf:"rerank_threshold"`
}

// DocumentConfig holds chunking and ingest limits.
type DocumentConfig struct {
	ChunkSize     int `koanf:"chunk_size"`
	ChunkOverlap  int `koanf:"chunk_overlap"`
	MaxFileSizeMB int `koanf:"max_file_size_mb"`
}

// Validate validates DocumentConfig.
func (c *DocumentConfig) Validate() error {
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be less than chunk_size (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}

// ExtractorConfig holds structured-document extraction settings. Only
// BaseURL, APIKey and Timeout reach the remote extraction service
// (internal/document.HTTPSectionExtractor). The OCR, table-mode, VLM,
// artifact-cleaning and Thai-encoding flags are loaded and validated,
// but they are not sent to that service and no other component reads
// them.
type ExtractorConfig struct {
	BaseURL         string   `koanf:"base_url"`
	APIKey          Secret   `koanf:"api_key"`
	Timeout         Duration `koanf:"timeout"`
	EnableOCR       bool     `koanf:"enable_ocr"`
	OCREngine       string   `koanf:"ocr_engine"`
	OCRLang         string   `koanf:"ocr_lang"`
	TableMode       string   `koanf:"table_mode"` // "fast" or "accurate"
	EnableVLM       bool     `koanf:"enable_vlm"`
	CleanArtifacts  bool     `koanf:"clean_artifacts"`
	FixThaiEncoding bool     `koanf:"fix_thai_encoding"`
}

// Validate validates ExtractorConfig.
func (c *ExtractorConfig) Validate() error {
	switch c.TableMode {
	case "fast", "accurate", "":
		return nil
	default:
		return fmt.Errorf("invalid table_mode: %q (must be 'fast' or 'accurate')", c.TableMode)
	}
}

// ChatConfig holds Chat Engine behavior.
type ChatConfig struct {
	MemoryTokenLimit int    `koanf:"memory_token_limit"`
	SystemPrompt     string `koanf:"system_prompt"`

	// RewriteQuery is loaded from CHAT_REWRITE_QUERY, but no component
	// reads it: Chat never calls chat.Engine.RewriteQuery
	// (original_source's chat_engine.py rewrite_query).
	RewriteQuery bool `koanf:"rewrite_query"`
}

// ProgressiveConfig holds tiered-extraction behavior.
type ProgressiveConfig struct {
	APIKey            Secret  `koanf:"api_key"`
	UseProgressive    bool    `koanf:"use_progressive"`
	TargetQuality     float64 `koanf:"target_quality"`
	FastThreshold     float64 `koanf:"fast_threshold"`
	BalancedThreshold float64 `koanf:"balanced_threshold"`
	PremiumThreshold  float64 `koanf:"premium_threshold"`
	EnableBalanced    bool    `koanf:"enable_balanced"`
	EnablePremium     bool    `koanf:"enable_premium"`
}

// Validate validates ProgressiveConfig.
func (c *ProgressiveConfig) Validate() error {
	if c.TargetQuality < 0 || c.TargetQuality > 1 {
		return fmt.Errorf("target_quality must be between 0 and 1, got %f", c.TargetQuality)
	}
	return nil
}

// ServerConfig holds MCP/HTTP server configuration.
type ServerConfig struct {
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry   bool   `koanf:"enable_telemetry"`
	ServiceName       string `koanf:"service_name"`
	OTLPEndpoint      string `koanf:"otlp_endpoint"`        // OTLP endpoint (Load sets no default)
	OTLPProtocol      string `koanf:"otlp_protocol"`        // "grpc" or "http/protobuf" (Load sets no default)
	OTLPInsecure      bool   `koanf:"otlp_insecure"`        // Use insecure connection (Load sets no default)
	OTLPTLSSkipVerify bool   `koanf:"otlp_tls_skip_verify"` // Skip TLS verification for internal CAs
	Environment       string `koanf:"environment"`          // stamped onto every trace event (§6.3)
}

// Load loads configuration from environment variables with defaults.
//
// Quick Start - Most commonly configured env vars:
//
//   - VECTORSTORE_HOST / VECTORSTORE_PORT: Qdrant connection (default: localhost:6334)
//   - EMBEDDING_PROVIDER: fastembed (default, local) or remote (TEI-compatible server)
//   - LLM_API_KEY: Anthropic API key for the Chat Engine and Metadata Extractor
//   - RAGMCP_PRODUCTION_MODE: Enable production safety checks (default: false)
//
// All environment variables:
//
// Server:
//   - SERVER_PORT: MCP/HTTP server port (default: 9090)
//   - SERVER_SHUTDOWN_TIMEOUT: Graceful shutdown timeout (default: 10s)
//
// Vector store:
//   - VECTORSTORE_HOST: Qdrant host (default: localhost)
//   - VECTORSTORE_PORT: Qdrant gRPC port (default: 6334)
//   - VECTORSTORE_MASTER_COLLECTION: KB-descriptor collection (default: ragmcp_master)
//
// Embedding:
//   - EMBEDDING_PROVIDER: Provider type: fastembed or remote (default: fastembed)
//   - EMBEDDING_MODEL: Embedding model (default: BAAI/bge-small-en-v1.5)
//   - EMBEDDING_BASE_URL: TEI URL if using the remote provider (default: http://localhost:8080)
//   - EMBEDDING_CACHE_DIR: Model cache directory for fastembed
//
// LLM:
//   - LLM_API_KEY: Anthropic API key
//   - LLM_MODEL: Chat completion model
//
// Search:
//   - SEARCH_TOP_K: Default result count (default: 5)
//   - SEARCH_RRF_K: RRF fusion constant (default: 60)
//
// Document:
//   - DOCUMENT_CHUNK_SIZE: Chunk size in characters (default: 1000)
//   - DOCUMENT_CHUNK_OVERLAP: Chunk overlap in characters (default: 200)
//
// Progressive:
//   - PROGRESSIVE_USE_PROGRESSIVE: Enable tiered extraction (default: true)
//   - PROGRESSIVE_TARGET_QUALITY: Target quality score (default: 0.70)
//
// Telemetry:
//   - OTEL_ENABLE: Enable OpenTelemetry (default: false, requires OTEL collector)
//   - OTEL_SERVICE_NAME: Service name for traces (default: ragmcp)
//
// Example:
//
//	cfg := config.Load()
//	fmt.Println("Qdrant host:", cfg.VectorStore.Host)
func Load() *Config {
	cfg := &Config{
		Production: ProductionConfig{
			Enabled:               getEnvBool("RAGMCP_PRODUCTION_MODE", false),
			LocalModeAcknowledged: getEnvBool("RAGMCP_LOCAL_MODE", false),
			RequireAuthentication: getEnvBool("RAGMCP_REQUIRE_AUTH", false),
			RequireTLS:            getEnvBool("RAGMCP_REQUIRE_TLS", false),
			AllowNoIsolation:      getEnvBool("RAGMCP_ALLOW_NO_ISOLATION", false),
		},
		Server: ServerConfig{
			Port:            getEnvInt("SERVER_PORT", 9090),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Observability: ObservabilityConfig{
			EnableTelemetry: getEnvBool("OTEL_ENABLE", false),
			ServiceName:     getEnvString("OTEL_SERVICE_NAME", "ragmcp"),
			Environment:     getEnvString("RAGMCP_ENVIRONMENT", "development"),
		},
	}

	cfg.VectorStore = VectorStoreConfig{
		Host:                    getEnvString("VECTORSTORE_HOST", "localhost"),
		Port:                    getEnvInt("VECTORSTORE_PORT", 6334),
		Timeout:                 Duration(getEnvDuration("VECTORSTORE_TIMEOUT", 30*time.Second)),
		UseTLS:                  getEnvBool("VECTORSTORE_USE_TLS", false),
		MaxRetries:              getEnvInt("VECTORSTORE_MAX_RETRIES", 3),
		RetryBackoff:            Duration(getEnvDuration("VECTORSTORE_RETRY_BACKOFF", 500*time.Millisecond)),
		MaxMessageSize:          getEnvInt("VECTORSTORE_MAX_MESSAGE_SIZE", 64*1024*1024),
		CircuitBreakerThreshold: getEnvInt("VECTORSTORE_CIRCUIT_BREAKER_THRESHOLD", 5),
		MasterCollection:        getEnvString("VECTORSTORE_MASTER_COLLECTION", "ragmcp_master"),
	}

	cfg.Embedding = EmbeddingConfig{
		Provider:  getEnvString("EMBEDDING_PROVIDER", "fastembed"),
		Model:     getEnvString("EMBEDDING_MODEL", "BAAI/bge-small-en-v1.5"),
		Dimension: getEnvInt("EMBEDDING_DIMENSION", 384),
		BatchSize: getEnvInt("EMBEDDING_BATCH_SIZE", 32),
		Device:    getEnvString("EMBEDDING_DEVICE", "cpu"),
		BaseURL:   getEnvString("EMBEDDING_BASE_URL", "http://localhost:8080"),
		CacheDir:  getEnvString("EMBEDDING_CACHE_DIR", ""),
		APIKey:    Secret(getEnvString("EMBEDDING_API_KEY", "")),
	}

	cfg.Reranker = RerankerConfig{
		Enabled:   getEnvBool("RERANKER_ENABLED", false),
		BaseURL:   getEnvString("RERANKER_BASE_URL", ""),
		Model:     getEnvString("RERANKER_MODEL", ""),
		BatchSize: getEnvInt("RERANKER_BATCH_SIZE", 32),
		Device:    getEnvString("RERANKER_DEVICE", "cpu"),
		APIKey:    Secret(getEnvString("RERANKER_API_KEY", "")),
		Timeout:   Duration(getEnvDuration("RERANKER_TIMEOUT", 30*time.Second)),
	}

	cfg.LLM = LLMConfig{
		APIKey:      Secret(getEnvString("LLM_API_KEY", "")),
		Model:       getEnvString("LLM_MODEL", "claude-3-5-sonnet-20241022"),
		BaseURL:     getEnvString("LLM_BASE_URL", ""),
		Temperature: getEnvFloat("LLM_TEMPERATURE", 0.3),
		MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 1024),
		Timeout:     Duration(getEnvDuration("LLM_TIMEOUT", 60*time.Second)),
	}

	cfg.Search = SearchConfig{
		TopK:                  getEnvInt("SEARCH_TOP_K", 5),
		SearchLimitMultiplier: getEnvInt("SEARCH_SEARCH_LIMIT_MULTIPLIER", 2),
		RRFK:                  getEnvInt("SEARCH_RRF_K", 60),
		RerankThreshold:       float32(getEnvFloat("SEARCH_RERANK_THRESHOLD", 0.0)),
	}

	cfg.Document = DocumentConfig{
		ChunkSize:     getEnvInt("DOCUMENT_CHUNK_SIZE", 1000),
		ChunkOverlap:  getEnvInt("DOCUMENT_CHUNK_OVERLAP", 200),
		MaxFileSizeMB: getEnvInt("DOCUMENT_MAX_FILE_SIZE_MB", 50),
	}

	cfg.Extractor = ExtractorConfig{
		BaseURL:         getEnvString("EXTRACTOR_BASE_URL", "http://localhost:8001"),
		APIKey:          Secret(getEnvString("EXTRACTOR_API_KEY", "")),
		Timeout:         Duration(getEnvDuration("EXTRACTOR_TIMEOUT", 60*time.Second)),
		EnableOCR:       getEnvBool("EXTRACTOR_ENABLE_OCR", true),
		OCREngine:       getEnvString("EXTRACTOR_OCR_ENGINE", "tesseract"),
		OCRLang:         getEnvString("EXTRACTOR_OCR_LANG", "eng"),
		TableMode:       getEnvString("EXTRACTOR_TABLE_MODE", "fast"),
		EnableVLM:       getEnvBool("EXTRACTOR_ENABLE_VLM", false),
		CleanArtifacts:  getEnvBool("EXTRACTOR_CLEAN_ARTIFACTS", true),
		FixThaiEncoding: getEnvBool("EXTRACTOR_FIX_THAI_ENCODING", true),
	}

	cfg.Chat = ChatConfig{
		MemoryTokenLimit: getEnvInt("CHAT_MEMORY_TOKEN_LIMIT", 3000),
		SystemPrompt:     getEnvString("CHAT_SYSTEM_PROMPT", defaultChatSystemPrompt),
		RewriteQuery:     getEnvBool("CHAT_REWRITE_QUERY", false),
	}

	cfg.Progressive = ProgressiveConfig{
		APIKey:            Secret(getEnvString("PROGRESSIVE_API_KEY", "")),
		UseProgressive:    getEnvBool("PROGRESSIVE_USE_PROGRESSIVE", true),
		TargetQuality:     getEnvFloat("PROGRESSIVE_TARGET_QUALITY", 0.70),
		FastThreshold:     getEnvFloat("PROGRESSIVE_FAST_THRESHOLD", 0.70),
		BalancedThreshold: getEnvFloat("PROGRESSIVE_BALANCED_THRESHOLD", 0.80),
		PremiumThreshold:  getEnvFloat("PROGRESSIVE_PREMIUM_THRESHOLD", 0.85),
		EnableBalanced:    getEnvBool("PROGRESSIVE_ENABLE_BALANCED", false),
		EnablePremium:     getEnvBool("PROGRESSIVE_ENABLE_PREMIUM", false),
	}

	return cfg
}

const defaultChatSystemPrompt = "You are a helpful assistant answering questions using the retrieved context. " +
	"If the context does not contain the answer, say so rather than guessing."

// Validate validates the configuration.
//
// Returns an error if:
//   - Server port is not between 1 and 65535
//   - Shutdown timeout is not positive
//   - Service name is empty (when telemetry is enabled)
//   - Any component sub-config fails its own validation
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}

	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}

	if err := validateHostname(c.VectorStore.Host); err != nil {
		return fmt.Errorf("invalid VECTORSTORE_HOST: %w", err)
	}
	if err := c.VectorStore.Validate(); err != nil {
		return fmt.Errorf("invalid vector store config: %w", err)
	}

	if err := c.Embedding.Validate(); err != nil {
		return fmt.Errorf("invalid embedding config: %w", err)
	}
	if c.Embedding.CacheDir != "" {
		if err := validatePath(c.Embedding.CacheDir); err != nil {
			return fmt.Errorf("invalid EMBEDDING_CACHE_DIR: %w", err)
		}
	}
	if c.Embedding.BaseURL != "" {
		if err := validateURL(c.Embedding.BaseURL); err != nil {
			return fmt.Errorf("invalid EMBEDDING_BASE_URL: %w", err)
		}
	}

	if c.Reranker.BaseURL != "" {
		if err := validateURL(c.Reranker.BaseURL); err != nil {
			return fmt.Errorf("invalid RERANKER_BASE_URL: %w", err)
		}
	}

	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("invalid llm config: %w", err)
	}

	if err := c.Document.Validate(); err != nil {
		return fmt.Errorf("invalid document config: %w", err)
	}

	if err := c.Extractor.Validate(); err != nil {
		return fmt.Errorf("invalid extractor config: %w", err)
	}
	if c.Extractor.BaseURL != "" {
		if err := validateURL(c.Extractor.BaseURL); err != nil {
			return fmt.Errorf("invalid EXTRACTOR_BASE_URL: %w", err)
		}
	}

	if err := c.Progressive.Validate(); err != nil {
		return fmt.Errorf("invalid progressive config: %w", err)
	}

	if err := c.Production.Validate(); err != nil {
		return fmt.Errorf("production config validation failed: %w", err)
	}

	return nil
}

// Helper functions for environment variable parsing

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

// ProductionConfig holds production deployment configuration.
type ProductionConfig struct {
	// Enabled indicates whether production mode is active.
	// Set via RAGMCP_PRODUCTION_MODE=1 environment variable.
	Enabled bool `koanf:"enabled"`

	// LocalModeAcknowledged allows development features in production mode.
	// Set via RAGMCP_LOCAL_MODE=1 environment variable.
	// Use only for local development/testing.
	LocalModeAcknowledged bool `koanf:"local_mode_acknowledged"`

	// RequireAuthentication enforces authentication in production.
	RequireAuthentication bool `koanf:"require_authentication"`

	// AuthenticationConfigured indicates if auth is properly set up.
	AuthenticationConfigured bool `koanf:"authentication_configured"`

	// RequireTLS is loaded from RAGMCP_REQUIRE_TLS; no validation or
	// connection code checks it.
	RequireTLS bool `koanf:"require_tls"`

	// AllowNoIsolation permits NoIsolation mode (testing only).
	// Always false in production mode.
	AllowNoIsolation bool `koanf:"allow_no_isolation"`
}

// IsProduction returns true if running in production mode.
func (c *ProductionConfig) IsProduction() bool {
	return c.Enabled
}

// IsLocal returns true if local mode is acknowledged.
func (c *ProductionConfig) IsLocal() bool {
	return c.LocalModeAcknowledged
}

// Validate checks production configuration for security issues.
func (c *ProductionConfig) Validate() error {
	if !c.Enabled {
		return nil // Not in production, skip validation
	}

	if c.AllowNoIsolation {
		return fmt.Errorf("SECURITY: NoIsolation mode cannot be enabled in production")
	}

	if c.RequireAuthentication && !c.AuthenticationConfigured {
		return fmt.Errorf("SECURITY: RequireAuthentication enabled but authentication not configured")
	}

	return nil
}

// validateHostname checks if a hostname is safe (no command injection attempts).
// Uses positive validation with net.ParseIP for IP addresses and regexp for hostnames.
func validateHostname(host string) error {
	// Empty hostname is allowed (config may use defaults)
	if host == "" {
		return nil
	}

	// Try parsing as IP first
	if net.ParseIP(host) != nil {
		return nil // Valid IP address
	}

	// Validate hostname format (RFC 1123)
	// Allow alphanumeric, dots, hyphens. Must not start/end with dash.
	hostnameRegex := regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)
	if !hostnameRegex.MatchString(host) {
		return fmt.Errorf("invalid hostname format: %s", host)
	}

	// Additional blacklist check for shell metacharacters (defense in depth)
	invalidChars := []string{";", "\n", "\r", "$", "`", "|", "&", "<", ">", "(", ")"}
	for _, char := range invalidChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("invalid hostname: contains forbidden character %q", char)
		}
	}
	return nil
}

// validatePath checks if a path is safe (no path traversal)
func validatePath(path string) error {
	// Check for path traversal sequences
	if strings.Contains(path, "..") {
		return fmt.Errorf("path contains traversal sequence: %s", path)
	}

	// For absolute paths, verify the cleaned path doesn't escape
	if filepath.IsAbs(path) {
		clean := filepath.Clean(path)
		// Count directory depth - compare original vs cleaned
		// If cleaned has fewer separators, upward traversal occurred
		origDepth := strings.Count(path, string(filepath.Separator))
		cleanDepth := strings.Count(clean, string(filepath.Separator))

		if cleanDepth < origDepth-1 {
			return fmt.Errorf("path traversal detected: %s (resolves to %s)", path, clean)
		}
	}

	return nil
}

// validateURL checks if a URL uses allowed schemes (http/https only)
func validateURL(urlStr string) error {
	// Only allow http and https schemes
	if !strings.HasPrefix(urlStr, "http://") && !strings.HasPrefix(urlStr, "https://") {
		return fmt.Errorf("URL must use http:// or https:// scheme, got: %s", urlStr)
	}
	return nil
}
