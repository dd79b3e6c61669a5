// Package embedding provides the Embedding Client: dense vectors from a
// local ONNX model or a remote TEI-compatible server, plus a
// hashing-based BM25-style sparse vectorizer shared by both paths.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/fyrsmithlabs/ragmcp/internal/vectorstore"
	"go.uber.org/zap"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Config holds configuration for the remote embedding service.
type Config struct {
	// BaseURL is the base URL of the TEI-compatible embedding server.
	BaseURL string

	// Model is the embedding model name, used only for metric labels
	// (the server itself is configured with a fixed model).
	Model string

	// APIKey is an optional bearer token for hosted embedding endpoints.
	APIKey string
}

// ConfigFromEnv builds a Config from EMBEDDING_BASE_URL/EMBEDDING_MODEL.
func ConfigFromEnv() Config {
	baseURL := os.Getenv("EMBEDDING_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	model := os.Getenv("EMBEDDING_MODEL")
	if model == "" {
		model = "BAAI/bge-small-en-v1.5"
	}
	return Config{BaseURL: baseURL, Model: model, APIKey: os.Getenv("EMBEDDING_API_KEY")}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	return nil
}

// Service is a dense embedding client against a TEI-compatible HTTP
// server, paired with the same hashing sparse vectorizer FastEmbed uses
// so both embedding paths produce compatible "bm25" fields.
type Service struct {
	config  Config
	client  *http.Client
	metrics *Metrics
	sparse  *hashingSparseVectorizer
}

// NewService creates a new remote embedding service.
func NewService(config Config) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &Service{
		config:  config,
		client:  &http.Client{},
		metrics: NewMetrics(zap.NewNop()),
		sparse:  newHashingSparseVectorizer(),
	}, nil
}

type teiRequest struct {
	Inputs   interface{} `json:"inputs"`
	Truncate bool        `json:"truncate"`
}

// EmbedDense generates dense embeddings via the TEI `/embed` endpoint.
func (s *Service) EmbedDense(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		s.metrics.RecordGeneration(ctx, s.config.Model, "embed_dense", time.Since(start), len(texts), genErr)
	}()

	if len(texts) == 0 {
		genErr = fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
		return nil, genErr
	}

	body, err := json.Marshal(teiRequest{Inputs: texts, Truncate: true})
	if err != nil {
		genErr = fmt.Errorf("marshaling request: %w", err)
		return nil, genErr
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		genErr = fmt.Errorf("creating request: %w", err)
		return nil, genErr
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		genErr = fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
		return nil, genErr
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		genErr = fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, resp.StatusCode, string(respBody))
		return nil, genErr
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		genErr = fmt.Errorf("decoding response: %w", err)
		return nil, genErr
	}
	return vectors, nil
}

// EmbedSparse generates BM25-style sparse vectors locally via feature
// hashing; no remote call is needed since the sparse representation
// doesn't depend on a neural model.
func (s *Service) EmbedSparse(_ context.Context, texts []string) ([]vectorstore.SparseVector, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	return s.sparse.vectorizeBatch(texts), nil
}
