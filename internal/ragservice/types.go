package ragservice

import "time"

// CreateKBResult is the outcome of CreateKB.
type CreateKBResult struct {
	Success bool
	KBName  string
	Message string
}

// DeleteKBResult is the outcome of DeleteKB.
type DeleteKBResult struct {
	Success bool
	Message string
}

// KBSummary describes one knowledge base as listed by ListKBs.
type KBSummary struct {
	KBName        string
	Description   string
	Category      string
	DocumentCount int
	PointsCount   int
}

// ListKBsResult is the outcome of ListKBs.
type ListKBsResult struct {
	Success bool
	KBs     []KBSummary
	Total   int
	Message string
}

// UploadDocumentResult is the outcome of UploadDocument.
type UploadDocumentResult struct {
	Success        bool
	ChunksCount    int
	PointIDs       []string
	Metadata       map[string]interface{}
	VLMCost        float64
	PagesProcessed int
	Message        string
}

// DocumentSummary describes one uploaded document, grouped from its
// chunk points.
type DocumentSummary struct {
	Filename     string
	ChunksCount  int
	UploadDate   string
	TierUsed     string
	QualityScore float64
	PointIDs     []string
}

// ListDocumentsResult is the outcome of ListDocuments.
type ListDocumentsResult struct {
	Success   bool
	Documents []DocumentSummary
	Total     int
	Message   string
}

// ChunkText is one chunk's text in document order, returned by
// GetDocument when IncludeChunks is requested.
type ChunkText struct {
	Text       string
	ChunkIndex int
	Page       int
}

// GetDocumentResult is the outcome of GetDocument.
type GetDocumentResult struct {
	Success  bool
	Document DocumentSummary
	Chunks   []ChunkText
	Message  string
}

// DeleteDocumentResult is the outcome of DeleteDocument.
type DeleteDocumentResult struct {
	Success bool
	Message string
}

// SearchResultItem is one ranked, formatted search hit.
type SearchResultItem struct {
	Rank     int
	Content  string
	Score    float64
	Metadata map[string]interface{}
}

// SourceSummary counts chunks contributed by one source file to a
// search's results.
type SourceSummary struct {
	SourceFile string
	ChunkCount int
}

// SearchResult is the outcome of Search.
type SearchResult struct {
	Success          bool
	KBName           string
	Query            string
	TotalResults     int
	Results          []SearchResultItem
	FormattedContext string
	MetadataSummary  []SourceSummary
	Message          string
}

// ChatSource is one retrieved passage cited alongside a chat answer.
type ChatSource struct {
	Text     string
	Score    float32
	Filename string
	Page     int
}

// ChatResult is the outcome of Chat.
type ChatResult struct {
	Success   bool
	Answer    string
	KBName    string
	Sources   []ChatSource
	SessionID string
	Model     string
	Timestamp time.Time
	Message   string
}

// ClearChatHistoryResult is the outcome of ClearChatHistory.
type ClearChatHistoryResult struct {
	Success bool
	Message string
}

// HealthComponent reports one dependency's probe result.
type HealthComponent struct {
	Status string
	Detail string
}

// HealthResult is the outcome of HealthCheck.
type HealthResult struct {
	Healthy    bool
	Components map[string]HealthComponent
	Timestamp  time.Time
}
