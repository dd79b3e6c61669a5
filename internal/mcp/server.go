package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragmcp/internal/ragservice"
	"github.com/fyrsmithlabs/ragmcp/internal/tracer"
)

// Server is a simplified MCP server that calls the RAG Service directly.
type Server struct {
	mcp          *mcp.Server
	ragSvc       *ragservice.Service
	tracer       *tracer.Tracer
	metrics      *Metrics
	toolRegistry *ToolRegistry
	logger       *zap.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "ragmcp")
	Name string

	// Version is the server version (default: "1.0.0")
	Version string

	// Logger for structured logging
	Logger *zap.Logger

	// Environment is stamped onto every trace event (e.g. "production", "staging").
	Environment string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:        "ragmcp",
		Version:     "1.0.0",
		Logger:      zap.NewNop(),
		Environment: "development",
	}
}

// NewServer creates a new MCP server wired to ragSvc. sink may be nil,
// in which case trace events are dropped after updating aggregated
// counters.
func NewServer(cfg *Config, ragSvc *ragservice.Service, sink tracer.Sink) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if ragSvc == nil {
		return nil, fmt.Errorf("rag service is required")
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		},
		nil,
	)

	s := &Server{
		mcp:          mcpServer,
		ragSvc:       ragSvc,
		tracer:       tracer.New(sink, cfg.Environment, cfg.Logger),
		metrics:      NewMetrics(cfg.Logger),
		toolRegistry: NewToolRegistry(),
		logger:       cfg.Logger,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// Run starts the MCP server on the stdio transport.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	transport := &mcp.StdioTransport{}
	if err := s.mcp.Run(ctx, transport); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// Close closes the underlying RAG Service and its vector store connection.
func (s *Server) Close() error {
	s.logger.Info("closing MCP server")
	if err := s.ragSvc.Close(); err != nil {
		return fmt.Errorf("rag service close: %w", err)
	}
	return nil
}
