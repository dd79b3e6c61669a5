package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"
)

// ErrNilContext is returned when a nil context is passed to Rerank.
var ErrNilContext = errors.New("context cannot be nil")

// ErrInvalidConfig indicates invalid client configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

// ErrRerankFailed indicates the remote reranker server returned an error
// or an unusable response.
var ErrRerankFailed = errors.New("rerank request failed")

// Config holds configuration for the remote cross-encoder reranker.
type Config struct {
	// BaseURL is the base URL of the reranker model server.
	BaseURL string

	// Model is used only for logging/metric labels; the server itself
	// is configured with a fixed model.
	Model string

	// APIKey is an optional bearer token for hosted reranker endpoints.
	APIKey string

	// Timeout bounds a single rerank HTTP call. Defaults to 30s.
	Timeout time.Duration
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	return nil
}

// Client is a Reranker backed by an external cross-encoder model server
// exposing a TEI-compatible `/rerank` endpoint: it accepts a query and a
// list of candidate texts and returns one relevance score per text.
type Client struct {
	config Config
	http   *http.Client
}

// NewClient creates a new remote reranker client.
func NewClient(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		config: config,
		http:   &http.Client{Timeout: timeout},
	}, nil
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	RawScores bool     `json:"raw_scores"`
}

type rerankResult struct {
	Index int     `json:"index"`
	Score float32 `json:"score"`
}

// Rerank scores each document against query via the remote cross-encoder
// and returns the top K by reranker score, descending.
func (c *Client) Rerank(ctx context.Context, query string, docs []Document, topK int) ([]ScoredDocument, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if topK <= 0 {
		topK = len(docs)
	}
	if len(docs) == 0 {
		return []ScoredDocument{}, nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}

	results, err := c.rerank(ctx, query, texts)
	if err != nil {
		return nil, err
	}
	if len(results) != len(docs) {
		return nil, fmt.Errorf("%w: expected %d scores, got %d", ErrRerankFailed, len(docs), len(results))
	}

	scored := make([]ScoredDocument, len(docs))
	for i, doc := range docs {
		scored[i] = ScoredDocument{
			Document:      doc,
			RerankerScore: results[i].Score,
			OriginalRank:  i,
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].RerankerScore > scored[j].RerankerScore
	})

	if topK > len(scored) {
		topK = len(scored)
	}
	return scored[:topK], nil
}

// rerank calls the remote server and returns scores in input order
// (the server's response is index-ordered, not score-ordered).
func (c *Client) rerank(ctx context.Context, query string, texts []string) ([]rerankResult, error) {
	body, err := json.Marshal(rerankRequest{Query: query, Texts: texts, RawScores: true})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRerankFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", ErrRerankFailed, resp.StatusCode, string(respBody))
	}

	var unordered []rerankResult
	if err := json.NewDecoder(resp.Body).Decode(&unordered); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	ordered := make([]rerankResult, len(unordered))
	for _, r := range unordered {
		if r.Index < 0 || r.Index >= len(ordered) {
			return nil, fmt.Errorf("%w: score index %d out of range", ErrRerankFailed, r.Index)
		}
		ordered[r.Index] = r
	}
	return ordered, nil
}

// Close releases the client's idle HTTP connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

var _ Reranker = (*Client)(nil)
