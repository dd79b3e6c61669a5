package mcp

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fyrsmithlabs/ragmcp/internal/ragservice"
	"github.com/fyrsmithlabs/ragmcp/internal/tracer"
)

// registerTools registers all MCP tools with the server and their
// metadata with the tool registry, so tool_search/tool_list can
// discover them.
func (s *Server) registerTools() error {
	if s.toolRegistry != nil {
		if err := s.toolRegistry.RegisterAll(toolCatalog); err != nil {
			return fmt.Errorf("failed to register tool catalog: %w", err)
		}
	}

	s.registerKBTools()
	s.registerDocumentTools()
	s.registerSearchChatTools()
	s.registerAdminTools()
	s.registerSearchTools()

	return nil
}

// toolCatalog is the full metadata for the stable tool dispatch
// surface, shared between the live tool registrations below and the
// tool_search/tool_list discovery tools.
var toolCatalog = []*ToolMetadata{
	{Name: "create_kb", Description: "Create a new knowledge base with its own vector collection", Category: CategoryKBManagement, Keywords: []string{"knowledge base", "collection", "create"}},
	{Name: "delete_kb", Description: "Delete a knowledge base and its collection", Category: CategoryKBManagement, DeferLoading: true, Keywords: []string{"knowledge base", "delete", "remove"}},
	{Name: "list_kbs", Description: "List all knowledge bases with their descriptions and categories", Category: CategoryKBManagement, Keywords: []string{"knowledge base", "list"}},
	{Name: "upload_document", Description: "Upload and index a document into a knowledge base", Category: CategoryDocumentManagement, Keywords: []string{"document", "upload", "ingest"}},
	{Name: "list_documents", Description: "List documents uploaded to a knowledge base", Category: CategoryDocumentManagement, Keywords: []string{"document", "list"}},
	{Name: "get_document", Description: "Fetch one document's summary and optionally its chunk text", Category: CategoryDocumentManagement, DeferLoading: true, Keywords: []string{"document", "get", "chunks"}},
	{Name: "delete_document", Description: "Delete a document from a knowledge base", Category: CategoryDocumentManagement, DeferLoading: true, Keywords: []string{"document", "delete", "remove"}},
	{Name: "update_document", Description: "Replace a document's content with a fresh upload", Category: CategoryDocumentManagement, DeferLoading: true, Keywords: []string{"document", "update", "replace"}},
	{Name: "search", Description: "Search a knowledge base for relevant passages", Category: CategorySearchChat, Keywords: []string{"search", "retrieve", "query"}},
	{Name: "chat", Description: "Chat against a knowledge base, grounded in retrieved passages", Category: CategorySearchChat, Keywords: []string{"chat", "ask", "question"}},
	{Name: "auto_routing_chat", Description: "Chat without naming a knowledge base; the best match is picked automatically", Category: CategorySearchChat, Keywords: []string{"chat", "routing", "auto"}},
	{Name: "clear_history", Description: "Clear a chat session's history", Category: CategorySearchChat, DeferLoading: true, Keywords: []string{"chat", "session", "clear"}},
	{Name: "health", Description: "Report the health of the vector store and embedding client", Category: CategoryAdmin, DeferLoading: true, Keywords: []string{"health", "status"}},
}

// toolMeta derives the Meta block attached to a registered mcp.Tool
// from its own tool registry entry.
func (s *Server) toolMeta(toolName string) map[string]any {
	if s.toolRegistry == nil {
		return nil
	}
	meta, err := s.toolRegistry.Get(toolName)
	if err != nil {
		return nil
	}
	return map[string]any{
		"category":      string(meta.Category),
		"defer_loading": meta.DeferLoading,
	}
}

// traced wraps a tool handler with an open/close tracer span and
// records the resulting error/metrics against toolName.
func (s *Server) traced(ctx context.Context, toolName string, args map[string]interface{}, fn func(ctx context.Context, tr *tracer.Trace) error) error {
	ctx, tr := s.tracer.Start(ctx, toolName, args)
	defer tr.Close(ctx)

	s.metrics.IncrementActive(ctx, toolName)
	defer s.metrics.DecrementActive(ctx, toolName)

	started := time.Now()
	err := fn(ctx, tr)
	if err != nil {
		tr.SetError(err.Error())
	}
	s.metrics.RecordInvocation(ctx, toolName, time.Since(started), err)
	return err
}

// ===== KB MANAGEMENT TOOLS =====

type createKBInput struct {
	KBName      string `json:"kb_name" jsonschema:"required,Name of the knowledge base to create"`
	Description string `json:"description" jsonschema:"required,Human-readable description of the knowledge base"`
	Category    string `json:"category,omitempty" jsonschema:"Category label (default: general)"`
}

type createKBOutput struct {
	Success bool   `json:"success" jsonschema:"Whether the knowledge base was created"`
	KBName  string `json:"kb_name" jsonschema:"Name of the created knowledge base"`
	Message string `json:"message" jsonschema:"Result message"`
}

type deleteKBInput struct {
	KBName string `json:"kb_name" jsonschema:"required,Name of the knowledge base to delete"`
}

type deleteKBOutput struct {
	Success bool   `json:"success" jsonschema:"Whether the knowledge base was deleted"`
	Message string `json:"message" jsonschema:"Result message"`
}

type listKBsInput struct{}

type listKBsOutput struct {
	Success bool                     `json:"success" jsonschema:"Whether the listing succeeded"`
	KBs     []map[string]interface{} `json:"kbs" jsonschema:"Knowledge bases with name, description, category, and counts"`
	Total   int                      `json:"total" jsonschema:"Number of knowledge bases"`
	Message string                   `json:"message,omitempty" jsonschema:"Error message, if any"`
}

func (s *Server) registerKBTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "create_kb",
		Description: "Create a new knowledge base with its own vector collection",
		Meta:        s.toolMeta("create_kb"),
	}, func(ctx context.Context, req *mcp.CallToolRequest, args createKBInput) (*mcp.CallToolResult, createKBOutput, error) {
		category := args.Category
		if category == "" {
			category = "general"
		}

		var result ragservice.CreateKBResult
		err := s.traced(ctx, "create_kb", map[string]interface{}{
			"kb_name":     args.KBName,
			"description": args.Description,
			"category":    category,
		}, func(ctx context.Context, tr *tracer.Trace) error {
			result = s.ragSvc.CreateKB(ctx, args.KBName, args.Description, category)
			if !result.Success {
				return fmt.Errorf("%s", result.Message)
			}
			tr.SetSuccess("", nil, 0, 0, 0, args.KBName)
			return nil
		})
		if err != nil {
			return nil, createKBOutput{}, err
		}

		output := createKBOutput{Success: result.Success, KBName: result.KBName, Message: result.Message}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: result.Message}},
		}, output, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "delete_kb",
		Description: "Delete a knowledge base and its collection",
		Meta:        s.toolMeta("delete_kb"),
	}, func(ctx context.Context, req *mcp.CallToolRequest, args deleteKBInput) (*mcp.CallToolResult, deleteKBOutput, error) {
		var result ragservice.DeleteKBResult
		err := s.traced(ctx, "delete_kb", map[string]interface{}{"kb_name": args.KBName}, func(ctx context.Context, tr *tracer.Trace) error {
			result = s.ragSvc.DeleteKB(ctx, args.KBName)
			if !result.Success {
				return fmt.Errorf("%s", result.Message)
			}
			tr.SetSuccess("", nil, 0, 0, 0, args.KBName)
			return nil
		})
		if err != nil {
			return nil, deleteKBOutput{}, err
		}

		output := deleteKBOutput{Success: result.Success, Message: result.Message}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: result.Message}},
		}, output, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_kbs",
		Description: "List all knowledge bases with their descriptions and categories",
		Meta:        s.toolMeta("list_kbs"),
	}, func(ctx context.Context, req *mcp.CallToolRequest, args listKBsInput) (*mcp.CallToolResult, listKBsOutput, error) {
		var result ragservice.ListKBsResult
		err := s.traced(ctx, "list_kbs", map[string]interface{}{}, func(ctx context.Context, tr *tracer.Trace) error {
			result = s.ragSvc.ListKBs(ctx)
			if !result.Success {
				return fmt.Errorf("%s", result.Message)
			}
			tr.SetSuccess("", nil, 0, 0, 0, "")
			return nil
		})
		if err != nil {
			return nil, listKBsOutput{}, err
		}

		kbs := make([]map[string]interface{}, 0, len(result.KBs))
		for _, kb := range result.KBs {
			kbs = append(kbs, map[string]interface{}{
				"kb_name":        kb.KBName,
				"description":    kb.Description,
				"category":       kb.Category,
				"document_count": kb.DocumentCount,
				"points_count":   kb.PointsCount,
			})
		}

		output := listKBsOutput{Success: result.Success, KBs: kbs, Total: result.Total, Message: result.Message}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("%d knowledge bases", result.Total)}},
		}, output, nil
	})
}

// ===== DOCUMENT MANAGEMENT TOOLS =====

type uploadDocumentInput struct {
	KBName      string                 `json:"kb_name" jsonschema:"required,Knowledge base to upload into"`
	Filename    string                 `json:"filename" jsonschema:"required,Document filename, used to pick an extractor"`
	FileContent string                 `json:"file_content" jsonschema:"required,Base64-encoded file bytes"`
	Metadata    map[string]interface{} `json:"metadata,omitempty" jsonschema:"Additional metadata merged into every chunk's payload"`
}

type uploadDocumentOutput struct {
	Success        bool     `json:"success" jsonschema:"Whether the upload succeeded"`
	ChunksCount    int      `json:"chunks_count" jsonschema:"Number of chunks created"`
	PointIDs       []string `json:"point_ids" jsonschema:"Generated vector point IDs"`
	VLMCost        float64  `json:"vlm_cost,omitempty" jsonschema:"VLM extraction cost in USD, if applicable"`
	PagesProcessed int      `json:"pages_processed" jsonschema:"Number of pages/sections processed"`
	Message        string   `json:"message" jsonschema:"Result message"`
}

type listDocumentsInput struct {
	KBName string `json:"kb_name" jsonschema:"required,Knowledge base to list documents from"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum documents to return"`
	Offset int    `json:"offset,omitempty" jsonschema:"Number of documents to skip"`
}

type listDocumentsOutput struct {
	Success   bool                     `json:"success" jsonschema:"Whether the listing succeeded"`
	Documents []map[string]interface{} `json:"documents" jsonschema:"One row per filename, with chunk counts and metadata"`
	Total     int                      `json:"total" jsonschema:"Total number of documents before pagination"`
	Message   string                   `json:"message,omitempty" jsonschema:"Error message, if any"`
}

type getDocumentInput struct {
	KBName        string `json:"kb_name" jsonschema:"required,Knowledge base the document belongs to"`
	Filename      string `json:"filename" jsonschema:"required,Document filename"`
	IncludeChunks bool   `json:"include_chunks,omitempty" jsonschema:"Include every chunk's text, ordered by chunk_index"`
}

type getDocumentOutput struct {
	Success  bool                     `json:"success" jsonschema:"Whether the document was found"`
	Document map[string]interface{}   `json:"document" jsonschema:"Document summary"`
	Chunks   []map[string]interface{} `json:"chunks,omitempty" jsonschema:"Chunk texts in document order, if requested"`
	Message  string                   `json:"message,omitempty" jsonschema:"Error message, if any"`
}

type deleteDocumentInput struct {
	KBName   string `json:"kb_name" jsonschema:"required,Knowledge base the document belongs to"`
	Filename string `json:"filename" jsonschema:"required,Document filename"`
}

type deleteDocumentOutput struct {
	Success bool   `json:"success" jsonschema:"Whether the document was deleted"`
	Message string `json:"message" jsonschema:"Result message"`
}

type updateDocumentInput struct {
	KBName      string `json:"kb_name" jsonschema:"required,Knowledge base the document belongs to"`
	Filename    string `json:"filename" jsonschema:"required,Document filename"`
	FileContent string `json:"file_content" jsonschema:"required,Base64-encoded replacement file bytes"`
}

type updateDocumentOutput struct {
	Success     bool     `json:"success" jsonschema:"Whether the update succeeded"`
	ChunksCount int      `json:"chunks_count" jsonschema:"Number of chunks created by the replacement upload"`
	PointIDs    []string `json:"point_ids" jsonschema:"Generated vector point IDs"`
	Message     string   `json:"message" jsonschema:"Result message"`
}

func (s *Server) registerDocumentTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "upload_document",
		Description: "Upload and index a document into a knowledge base",
		Meta:        s.toolMeta("upload_document"),
	}, func(ctx context.Context, req *mcp.CallToolRequest, args uploadDocumentInput) (*mcp.CallToolResult, uploadDocumentOutput, error) {
		fileBytes, decErr := base64.StdEncoding.DecodeString(args.FileContent)
		if decErr != nil {
			return nil, uploadDocumentOutput{}, fmt.Errorf("file_content is not valid base64: %w", decErr)
		}

		var result ragservice.UploadDocumentResult
		err := s.traced(ctx, "upload_document", map[string]interface{}{
			"kb_name":      args.KBName,
			"filename":     args.Filename,
			"file_content": args.FileContent,
		}, func(ctx context.Context, tr *tracer.Trace) error {
			result = s.ragSvc.UploadDocument(ctx, args.KBName, args.Filename, fileBytes, args.Metadata)
			if !result.Success {
				return fmt.Errorf("%s", result.Message)
			}
			tr.SetSuccess("", nil, result.VLMCost, result.PagesProcessed, result.ChunksCount, args.KBName)
			return nil
		})
		if err != nil {
			return nil, uploadDocumentOutput{}, err
		}

		output := uploadDocumentOutput{
			Success:        result.Success,
			ChunksCount:    result.ChunksCount,
			PointIDs:       result.PointIDs,
			VLMCost:        result.VLMCost,
			PagesProcessed: result.PagesProcessed,
			Message:        result.Message,
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: result.Message}},
		}, output, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_documents",
		Description: "List documents uploaded to a knowledge base",
		Meta:        s.toolMeta("list_documents"),
	}, func(ctx context.Context, req *mcp.CallToolRequest, args listDocumentsInput) (*mcp.CallToolResult, listDocumentsOutput, error) {
		var result ragservice.ListDocumentsResult
		err := s.traced(ctx, "list_documents", map[string]interface{}{
			"kb_name": args.KBName, "limit": args.Limit, "offset": args.Offset,
		}, func(ctx context.Context, tr *tracer.Trace) error {
			result = s.ragSvc.ListDocuments(ctx, args.KBName, args.Limit, args.Offset)
			if !result.Success {
				return fmt.Errorf("%s", result.Message)
			}
			tr.SetSuccess("", nil, 0, 0, 0, args.KBName)
			return nil
		})
		if err != nil {
			return nil, listDocumentsOutput{}, err
		}

		docs := make([]map[string]interface{}, 0, len(result.Documents))
		for _, d := range result.Documents {
			docs = append(docs, map[string]interface{}{
				"filename":      d.Filename,
				"chunks_count":  d.ChunksCount,
				"upload_date":   d.UploadDate,
				"tier_used":     d.TierUsed,
				"quality_score": d.QualityScore,
				"point_ids":     d.PointIDs,
			})
		}

		output := listDocumentsOutput{Success: result.Success, Documents: docs, Total: result.Total, Message: result.Message}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("%d documents in %s", result.Total, args.KBName)}},
		}, output, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_document",
		Description: "Fetch one document's summary and optionally its chunk text",
		Meta:        s.toolMeta("get_document"),
	}, func(ctx context.Context, req *mcp.CallToolRequest, args getDocumentInput) (*mcp.CallToolResult, getDocumentOutput, error) {
		var result ragservice.GetDocumentResult
		err := s.traced(ctx, "get_document", map[string]interface{}{
			"kb_name": args.KBName, "filename": args.Filename, "include_chunks": args.IncludeChunks,
		}, func(ctx context.Context, tr *tracer.Trace) error {
			result = s.ragSvc.GetDocument(ctx, args.KBName, args.Filename, args.IncludeChunks)
			if !result.Success {
				return fmt.Errorf("%s", result.Message)
			}
			tr.SetSuccess("", nil, 0, 0, 0, args.KBName)
			return nil
		})
		if err != nil {
			return nil, getDocumentOutput{}, err
		}

		doc := map[string]interface{}{
			"filename":      result.Document.Filename,
			"chunks_count":  result.Document.ChunksCount,
			"upload_date":   result.Document.UploadDate,
			"tier_used":     result.Document.TierUsed,
			"quality_score": result.Document.QualityScore,
			"point_ids":     result.Document.PointIDs,
		}

		var chunks []map[string]interface{}
		if args.IncludeChunks {
			chunks = make([]map[string]interface{}, len(result.Chunks))
			for i, c := range result.Chunks {
				chunks[i] = map[string]interface{}{
					"text":        c.Text,
					"chunk_index": c.ChunkIndex,
					"page":        c.Page,
				}
			}
		}

		output := getDocumentOutput{Success: result.Success, Document: doc, Chunks: chunks, Message: result.Message}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("document %s: %d chunks", args.Filename, result.Document.ChunksCount)}},
		}, output, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "delete_document",
		Description: "Delete a document from a knowledge base",
		Meta:        s.toolMeta("delete_document"),
	}, func(ctx context.Context, req *mcp.CallToolRequest, args deleteDocumentInput) (*mcp.CallToolResult, deleteDocumentOutput, error) {
		var result ragservice.DeleteDocumentResult
		err := s.traced(ctx, "delete_document", map[string]interface{}{
			"kb_name": args.KBName, "filename": args.Filename,
		}, func(ctx context.Context, tr *tracer.Trace) error {
			result = s.ragSvc.DeleteDocument(ctx, args.KBName, args.Filename)
			if !result.Success {
				return fmt.Errorf("%s", result.Message)
			}
			tr.SetSuccess("", nil, 0, 0, 0, args.KBName)
			return nil
		})
		if err != nil {
			return nil, deleteDocumentOutput{}, err
		}

		output := deleteDocumentOutput{Success: result.Success, Message: result.Message}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: result.Message}},
		}, output, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "update_document",
		Description: "Replace a document's content with a fresh upload",
		Meta:        s.toolMeta("update_document"),
	}, func(ctx context.Context, req *mcp.CallToolRequest, args updateDocumentInput) (*mcp.CallToolResult, updateDocumentOutput, error) {
		fileBytes, decErr := base64.StdEncoding.DecodeString(args.FileContent)
		if decErr != nil {
			return nil, updateDocumentOutput{}, fmt.Errorf("file_content is not valid base64: %w", decErr)
		}

		var result ragservice.UploadDocumentResult
		err := s.traced(ctx, "update_document", map[string]interface{}{
			"kb_name": args.KBName, "filename": args.Filename, "file_content": args.FileContent,
		}, func(ctx context.Context, tr *tracer.Trace) error {
			result = s.ragSvc.UpdateDocument(ctx, args.KBName, args.Filename, fileBytes)
			if !result.Success {
				return fmt.Errorf("%s", result.Message)
			}
			tr.SetSuccess("", nil, result.VLMCost, result.PagesProcessed, result.ChunksCount, args.KBName)
			return nil
		})
		if err != nil {
			return nil, updateDocumentOutput{}, err
		}

		output := updateDocumentOutput{Success: result.Success, ChunksCount: result.ChunksCount, PointIDs: result.PointIDs, Message: result.Message}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: result.Message}},
		}, output, nil
	})
}

// ===== SEARCH & CHAT TOOLS =====

type searchInput struct {
	Query        string `json:"query" jsonschema:"required,Search query"`
	KBName       string `json:"kb_name" jsonschema:"required,Knowledge base to search"`
	TopK         int    `json:"top_k,omitempty" jsonschema:"Maximum results to return (default: 5)"`
	UseReranking bool   `json:"use_reranking,omitempty" jsonschema:"Rescore candidates with the reranker"`
	Deduplicate  bool   `json:"deduplicate,omitempty" jsonschema:"Drop near-duplicate passages"`
}

type searchOutput struct {
	Success          bool                     `json:"success" jsonschema:"Whether the search succeeded"`
	KBName           string                   `json:"kb_name" jsonschema:"Knowledge base searched"`
	Query            string                   `json:"query" jsonschema:"Original query"`
	TotalResults     int                      `json:"total_results" jsonschema:"Number of results returned"`
	Results          []map[string]interface{} `json:"results" jsonschema:"Ranked search results"`
	FormattedContext string                   `json:"formatted_context" jsonschema:"Human-readable context block for prompting"`
	Message          string                   `json:"message,omitempty" jsonschema:"Error message, if any"`
}

type chatInput struct {
	Query        string `json:"query" jsonschema:"required,User question"`
	KBName       string `json:"kb_name" jsonschema:"required,Knowledge base to ground the answer in"`
	SessionID    string `json:"session_id,omitempty" jsonschema:"Chat session to append history to"`
	TopK         int    `json:"top_k,omitempty" jsonschema:"Maximum passages to retrieve (default: 5)"`
	UseReranking bool   `json:"use_reranking,omitempty" jsonschema:"Rescore candidates with the reranker"`
}

type autoRoutingChatInput struct {
	Query        string `json:"query" jsonschema:"required,User question"`
	SessionID    string `json:"session_id,omitempty" jsonschema:"Chat session to append history to"`
	TopK         int    `json:"top_k,omitempty" jsonschema:"Maximum passages to retrieve (default: 5)"`
	UseReranking bool   `json:"use_reranking,omitempty" jsonschema:"Rescore candidates with the reranker"`
}

type chatOutput struct {
	Success   bool                     `json:"success" jsonschema:"Whether the chat call succeeded"`
	Answer    string                   `json:"answer" jsonschema:"Generated answer"`
	KBName    string                   `json:"kb_name" jsonschema:"Knowledge base the answer was grounded in"`
	Sources   []map[string]interface{} `json:"sources" jsonschema:"Retrieved passages cited alongside the answer"`
	SessionID string                   `json:"session_id,omitempty" jsonschema:"Chat session the turn was appended to"`
	Model     string                   `json:"model,omitempty" jsonschema:"Model that generated the answer"`
	Message   string                   `json:"message,omitempty" jsonschema:"Error message, if any"`
}

type clearHistoryInput struct {
	SessionID string `json:"session_id" jsonschema:"required,Chat session to clear"`
}

type clearHistoryOutput struct {
	Success bool   `json:"success" jsonschema:"Whether a session was present to clear"`
	Message string `json:"message" jsonschema:"Result message"`
}

func (s *Server) registerSearchChatTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Search a knowledge base for relevant passages",
		Meta:        s.toolMeta("search"),
	}, func(ctx context.Context, req *mcp.CallToolRequest, args searchInput) (*mcp.CallToolResult, searchOutput, error) {
		var result ragservice.SearchResult
		err := s.traced(ctx, "search", map[string]interface{}{
			"kb_name": args.KBName, "query": args.Query, "top_k": args.TopK,
		}, func(ctx context.Context, tr *tracer.Trace) error {
			result = s.ragSvc.Search(ctx, args.KBName, args.Query, args.TopK, args.UseReranking, args.Deduplicate)
			if !result.Success {
				return fmt.Errorf("%s", result.Message)
			}
			tr.SetSuccess("", nil, 0, 0, 0, args.KBName)
			return nil
		})
		if err != nil {
			return nil, searchOutput{}, err
		}

		results := make([]map[string]interface{}, len(result.Results))
		for i, r := range result.Results {
			results[i] = map[string]interface{}{
				"rank":     r.Rank,
				"content":  r.Content,
				"score":    r.Score,
				"metadata": r.Metadata,
			}
		}

		output := searchOutput{
			Success:          result.Success,
			KBName:           result.KBName,
			Query:            result.Query,
			TotalResults:     result.TotalResults,
			Results:          results,
			FormattedContext: result.FormattedContext,
			Message:          result.Message,
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("%d results for %q", result.TotalResults, args.Query)}},
		}, output, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "chat",
		Description: "Chat against a knowledge base, grounded in retrieved passages",
		Meta:        s.toolMeta("chat"),
	}, func(ctx context.Context, req *mcp.CallToolRequest, args chatInput) (*mcp.CallToolResult, chatOutput, error) {
		var result ragservice.ChatResult
		err := s.traced(ctx, "chat", map[string]interface{}{
			"kb_name": args.KBName, "query": args.Query, "session_id": args.SessionID,
		}, func(ctx context.Context, tr *tracer.Trace) error {
			result = s.ragSvc.Chat(ctx, args.KBName, args.Query, args.SessionID, args.TopK, false, args.UseReranking)
			if !result.Success {
				return fmt.Errorf("%s", result.Message)
			}
			tr.SetSuccess(result.Model, nil, 0, 0, 0, result.KBName)
			return nil
		})
		if err != nil {
			return nil, chatOutput{}, err
		}

		output := chatOutput{
			Success:   result.Success,
			Answer:    result.Answer,
			KBName:    result.KBName,
			Sources:   chatSourcesToMaps(result.Sources),
			SessionID: result.SessionID,
			Model:     result.Model,
			Message:   result.Message,
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: result.Answer}},
		}, output, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "auto_routing_chat",
		Description: "Chat without naming a knowledge base; the best match is picked automatically",
		Meta:        s.toolMeta("auto_routing_chat"),
	}, func(ctx context.Context, req *mcp.CallToolRequest, args autoRoutingChatInput) (*mcp.CallToolResult, chatOutput, error) {
		var result ragservice.ChatResult
		err := s.traced(ctx, "auto_routing_chat", map[string]interface{}{
			"query": args.Query, "session_id": args.SessionID,
		}, func(ctx context.Context, tr *tracer.Trace) error {
			result = s.ragSvc.Chat(ctx, "", args.Query, args.SessionID, args.TopK, true, args.UseReranking)
			if !result.Success {
				return fmt.Errorf("%s", result.Message)
			}
			tr.SetSuccess(result.Model, nil, 0, 0, 0, result.KBName)
			return nil
		})
		if err != nil {
			return nil, chatOutput{}, err
		}

		output := chatOutput{
			Success:   result.Success,
			Answer:    result.Answer,
			KBName:    result.KBName,
			Sources:   chatSourcesToMaps(result.Sources),
			SessionID: result.SessionID,
			Model:     result.Model,
			Message:   result.Message,
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("[routed to %s] %s", result.KBName, result.Answer)}},
		}, output, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "clear_history",
		Description: "Clear a chat session's history",
		Meta:        s.toolMeta("clear_history"),
	}, func(ctx context.Context, req *mcp.CallToolRequest, args clearHistoryInput) (*mcp.CallToolResult, clearHistoryOutput, error) {
		var result ragservice.ClearChatHistoryResult
		err := s.traced(ctx, "clear_history", map[string]interface{}{"session_id": args.SessionID}, func(ctx context.Context, tr *tracer.Trace) error {
			result = s.ragSvc.ClearChatHistory(args.SessionID)
			if !result.Success {
				return fmt.Errorf("%s", result.Message)
			}
			tr.SetSuccess("", nil, 0, 0, 0, "")
			return nil
		})
		if err != nil {
			return nil, clearHistoryOutput{}, err
		}

		output := clearHistoryOutput{Success: result.Success, Message: result.Message}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: result.Message}},
		}, output, nil
	})
}

func chatSourcesToMaps(sources []ragservice.ChatSource) []map[string]interface{} {
	out := make([]map[string]interface{}, len(sources))
	for i, src := range sources {
		out[i] = map[string]interface{}{
			"text":     src.Text,
			"score":    src.Score,
			"filename": src.Filename,
			"page":     src.Page,
		}
	}
	return out
}

// ===== ADMIN TOOLS =====

type healthInput struct{}

type healthOutput struct {
	Healthy    bool                     `json:"healthy" jsonschema:"Whether every probed component reported ok"`
	Components map[string]interface{}   `json:"components" jsonschema:"Per-component status and detail"`
}

func (s *Server) registerAdminTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "health",
		Description: "Report the health of the vector store and embedding client",
		Meta:        s.toolMeta("health"),
	}, func(ctx context.Context, req *mcp.CallToolRequest, args healthInput) (*mcp.CallToolResult, healthOutput, error) {
		var result ragservice.HealthResult
		err := s.traced(ctx, "health", map[string]interface{}{}, func(ctx context.Context, tr *tracer.Trace) error {
			result = s.ragSvc.HealthCheck(ctx)
			if !result.Healthy {
				tr.SetError("one or more components unhealthy")
				return nil
			}
			tr.SetSuccess("", nil, 0, 0, 0, "")
			return nil
		})
		if err != nil {
			return nil, healthOutput{}, err
		}

		components := make(map[string]interface{}, len(result.Components))
		for name, c := range result.Components {
			components[name] = map[string]interface{}{"status": c.Status, "detail": c.Detail}
		}

		output := healthOutput{Healthy: result.Healthy, Components: components}
		status := "healthy"
		if !result.Healthy {
			status = "unhealthy"
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("service is %s", status)}},
		}, output, nil
	})
}
