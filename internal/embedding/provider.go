package embedding

import (
	"fmt"

	"github.com/fyrsmithlabs/ragmcp/internal/vectorstore"
)

// Provider is an Embedder that also knows how to release its resources.
type Provider interface {
	vectorstore.Embedder
	Close() error
}

// ProviderConfig selects and configures an embedding provider.
type ProviderConfig struct {
	// Provider is "fastembed" (local ONNX, default) or "remote" (TEI-compatible HTTP server).
	Provider string
	Model    string
	BaseURL  string
	CacheDir string
}

func detectDimensionFromModel(model string) int {
	if dim, ok := fastEmbedModelDimension(model); ok {
		return dim
	}
	switch {
	case contains(model, "base"):
		return 768
	case contains(model, "large"):
		return 1024
	case contains(model, "small"), contains(model, "mini"):
		return 384
	default:
		return 384
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// NewProvider builds an embedding provider from cfg.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case "fastembed", "":
		return NewFastEmbedProvider(FastEmbedConfig{Model: cfg.Model, CacheDir: cfg.CacheDir})
	case "remote":
		svc, err := NewService(Config{BaseURL: cfg.BaseURL, Model: cfg.Model})
		if err != nil {
			return nil, err
		}
		return &remoteProvider{Service: svc, dimension: detectDimensionFromModel(cfg.Model)}, nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// remoteProvider wraps Service to satisfy Provider (Dimension + Close).
type remoteProvider struct {
	*Service
	dimension int
}

func (r *remoteProvider) Dimension() int { return r.dimension }
func (r *remoteProvider) Close() error   { return nil }
