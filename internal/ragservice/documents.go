package ragservice

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragmcp/internal/document"
	"github.com/fyrsmithlabs/ragmcp/internal/document/progressive"
	"github.com/fyrsmithlabs/ragmcp/internal/vectorstore"
)

// maxDocumentScroll bounds how many chunk points ListDocuments and
// GetDocument pull into memory per call; Store.Scroll has no cursor,
// so pagination beyond this bound is not supported.
const maxDocumentScroll = 10000

// UploadDocument extracts, chunks, classifies, embeds, and upserts a
// document's chunks into kbName. PDFs route through the Progressive
// Processor when enabled; everything else goes through the Document
// Processor directly.
func (s *Service) UploadDocument(ctx context.Context, kbName, filename string, fileBytes []byte, userMetadata map[string]interface{}) UploadDocumentResult {
	exists, err := s.collections.Exists(ctx, kbName)
	if err != nil {
		return UploadDocumentResult{Success: false, Message: err.Error()}
	}
	if !exists {
		return UploadDocumentResult{Success: false, Message: fmt.Sprintf("knowledge base %q not found", kbName)}
	}

	ext := strings.ToLower(path.Ext(filename))
	useProgressive := ext == ".pdf" && s.opts.ProgressiveEnabled

	started := time.Now()
	var sections []document.Section
	var overallScore float64
	var tierUsed string
	var cost float64

	if useProgressive {
		extractors := map[string]progressive.TierExtractor{
			"fast": fastTierExtractor{proc: s.docProcessor, fileName: filename},
		}
		if s.balancedTier != nil {
			extractors["balanced"] = s.balancedTier
		}
		if s.premiumTier != nil {
			extractors["premium"] = s.premiumTier
		}
		proc := progressive.NewProcessor(s.progressiveOpts, extractors, s.logger)
		result := proc.ExtractWithSmartRouting(ctx, fileBytes, s.opts.TargetQuality, progressive.TierFast, true)
		if !result.Success || len(result.Pages) == 0 {
			return UploadDocumentResult{Success: false, Message: "failed to extract text from document"}
		}
		sections = result.Pages
		overallScore = result.QualityReport.OverallScore
		tierUsed = result.TierUsed
		cost = result.Cost
	} else {
		extracted, report, extractErr := s.docProcessor.ExtractAndScore(ctx, filename, fileBytes)
		if extractErr != nil || len(extracted) == 0 {
			return UploadDocumentResult{Success: false, Message: "failed to extract text from document"}
		}
		sections = extracted
		overallScore = report.OverallScore
		tierUsed = "standard"
	}
	extractionTime := time.Since(started).Seconds()

	chunks := s.docProcessor.ChunkText(sections, document.ChunkOptions{})
	if len(chunks) == 0 {
		return UploadDocumentResult{Success: false, Message: "failed to chunk document"}
	}

	autoMeta := s.metadataExtr.Extract(ctx, chunks[0].Text)
	uploadDate := nowISO()

	docMetadata := map[string]interface{}{
		"doc_type":        autoMeta.DocType,
		"category":        autoMeta.Category,
		"status":          autoMeta.Status,
		"title":           autoMeta.Title,
		"kb_name":         kbName,
		"filename":        filename,
		"upload_date":     uploadDate,
		"tier_used":       tierUsed,
		"quality_score":   overallScore,
		"extraction_cost": cost,
		"extraction_time": extractionTime,
	}
	for k, v := range userMetadata {
		docMetadata[k] = v
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	denseVecs, err := s.embedder.EmbedDense(ctx, texts)
	if err != nil {
		return UploadDocumentResult{Success: false, Message: err.Error()}
	}
	sparseVecs, err := s.embedder.EmbedSparse(ctx, texts)
	if err != nil {
		return UploadDocumentResult{Success: false, Message: err.Error()}
	}

	points := make([]vectorstore.Point, len(chunks))
	pointIDs := make([]string, len(chunks))
	for i, c := range chunks {
		payload := cloneMetadata(docMetadata)
		payload[vectorstore.TypeField] = vectorstore.TypeDocument
		payload["text"] = c.Text
		payload["page"] = c.Page
		payload["chunk_index"] = c.ChunkIndex

		id := uuid.NewString()
		points[i] = vectorstore.Point{ID: id, Dense: denseVecs[i], Sparse: sparseVecs[i], Payload: payload}
		pointIDs[i] = id
	}

	collection := vectorstore.CollectionName(kbName)
	if err := s.store.Upsert(ctx, collection, points); err != nil {
		return UploadDocumentResult{Success: false, Message: err.Error()}
	}

	if err := s.collections.IncrementDocumentCount(ctx, kbName, 1); err != nil {
		s.logger.Warn("document count increment failed", zap.String("kb_name", kbName), zap.Error(err))
	}

	s.logger.Info("uploaded document", zap.String("kb_name", kbName), zap.String("filename", filename), zap.Int("chunks", len(points)))

	return UploadDocumentResult{
		Success:        true,
		ChunksCount:    len(points),
		PointIDs:       pointIDs,
		Metadata:       docMetadata,
		VLMCost:        cost,
		PagesProcessed: len(sections),
		Message:        fmt.Sprintf("document uploaded successfully: %d chunks", len(points)),
	}
}

func cloneMetadata(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// documentGroup accumulates chunk points sharing one filename while
// scanning a KB's chunk points in arbitrary order.
type documentGroup struct {
	filename     string
	chunksCount  int
	uploadDate   string
	tierUsed     string
	qualityScore float64
	pointIDs     []string
	chunks       []vectorstore.Point
}

func groupByFilename(points []vectorstore.Point) map[string]*documentGroup {
	groups := make(map[string]*documentGroup)
	for _, p := range points {
		filename, _ := p.Payload["filename"].(string)
		g, ok := groups[filename]
		if !ok {
			g = &documentGroup{filename: filename}
			groups[filename] = g
		}
		g.chunksCount++
		g.pointIDs = append(g.pointIDs, p.ID)
		g.chunks = append(g.chunks, p)
		if uploadDate, ok := p.Payload["upload_date"].(string); ok && uploadDate > g.uploadDate {
			g.uploadDate = uploadDate
		}
		if tierUsed, ok := p.Payload["tier_used"].(string); ok {
			g.tierUsed = tierUsed
		}
		if qs, ok := p.Payload["quality_score"].(float64); ok {
			g.qualityScore = qs
		}
	}
	return groups
}

func (g *documentGroup) summary() DocumentSummary {
	return DocumentSummary{
		Filename:     g.filename,
		ChunksCount:  g.chunksCount,
		UploadDate:   g.uploadDate,
		TierUsed:     g.tierUsed,
		QualityScore: g.qualityScore,
		PointIDs:     g.pointIDs,
	}
}

// ListDocuments scrolls every chunk point in kbName, groups by
// filename, and returns one row per document, sorted by upload date
// descending and paginated over the in-memory grouped list.
func (s *Service) ListDocuments(ctx context.Context, kbName string, limit, offset int) ListDocumentsResult {
	exists, err := s.collections.Exists(ctx, kbName)
	if err != nil {
		return ListDocumentsResult{Success: false, Message: err.Error()}
	}
	if !exists {
		return ListDocumentsResult{Success: false, Message: fmt.Sprintf("knowledge base %q not found", kbName)}
	}

	collection := vectorstore.CollectionName(kbName)
	filter := &vectorstore.Filter{Must: []vectorstore.Condition{{Field: vectorstore.TypeField, Value: vectorstore.TypeDocument}}}
	points, err := s.store.Scroll(ctx, collection, filter, maxDocumentScroll)
	if err != nil {
		return ListDocumentsResult{Success: false, Message: err.Error()}
	}

	groups := groupByFilename(points)
	docs := make([]DocumentSummary, 0, len(groups))
	for _, g := range groups {
		docs = append(docs, g.summary())
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].UploadDate > docs[j].UploadDate })

	total := len(docs)
	if offset > 0 {
		if offset >= len(docs) {
			docs = nil
		} else {
			docs = docs[offset:]
		}
	}
	if limit > 0 && limit < len(docs) {
		docs = docs[:limit]
	}

	return ListDocumentsResult{Success: true, Documents: docs, Total: total}
}

// GetDocument scrolls kbName for filename's chunk points and builds its
// grouped summary, optionally including every chunk's text ordered by
// chunk index.
func (s *Service) GetDocument(ctx context.Context, kbName, filename string, includeChunks bool) GetDocumentResult {
	collection := vectorstore.CollectionName(kbName)
	filter := &vectorstore.Filter{Must: []vectorstore.Condition{
		{Field: vectorstore.TypeField, Value: vectorstore.TypeDocument},
		{Field: "filename", Value: filename},
	}}
	points, err := s.store.Scroll(ctx, collection, filter, maxDocumentScroll)
	if err != nil {
		return GetDocumentResult{Success: false, Message: err.Error()}
	}
	if len(points) == 0 {
		return GetDocumentResult{Success: false, Message: fmt.Sprintf("document %q not found in %q", filename, kbName)}
	}

	groups := groupByFilename(points)
	group := groups[filename]
	result := GetDocumentResult{Success: true, Document: group.summary()}

	if includeChunks {
		sort.Slice(group.chunks, func(i, j int) bool {
			ci, _ := group.chunks[i].Payload["chunk_index"].(int)
			cj, _ := group.chunks[j].Payload["chunk_index"].(int)
			return ci < cj
		})
		chunks := make([]ChunkText, len(group.chunks))
		for i, p := range group.chunks {
			text, _ := p.Payload["text"].(string)
			page, _ := p.Payload["page"].(int)
			chunkIndex, _ := p.Payload["chunk_index"].(int)
			chunks[i] = ChunkText{Text: text, ChunkIndex: chunkIndex, Page: page}
		}
		result.Chunks = chunks
	}

	return result
}

// DeleteDocument removes every chunk point carrying filename from
// kbName, after confirming at least one such chunk exists.
func (s *Service) DeleteDocument(ctx context.Context, kbName, filename string) DeleteDocumentResult {
	collection := vectorstore.CollectionName(kbName)
	filter := &vectorstore.Filter{Must: []vectorstore.Condition{
		{Field: vectorstore.TypeField, Value: vectorstore.TypeDocument},
		{Field: "filename", Value: filename},
	}}

	existing, err := s.store.Scroll(ctx, collection, filter, 1)
	if err != nil {
		return DeleteDocumentResult{Success: false, Message: err.Error()}
	}
	if len(existing) == 0 {
		return DeleteDocumentResult{Success: false, Message: fmt.Sprintf("document %q not found in %q", filename, kbName)}
	}

	if err := s.store.DeleteByFilter(ctx, collection, filter); err != nil {
		return DeleteDocumentResult{Success: false, Message: err.Error()}
	}

	if err := s.collections.IncrementDocumentCount(ctx, kbName, -1); err != nil {
		s.logger.Warn("document count decrement failed", zap.String("kb_name", kbName), zap.Error(err))
	}

	return DeleteDocumentResult{Success: true, Message: fmt.Sprintf("document %q deleted from %q", filename, kbName)}
}

// UpdateDocument replaces filename's chunks with a fresh upload of
// fileBytes. A delete that finds no existing document is tolerated.
func (s *Service) UpdateDocument(ctx context.Context, kbName, filename string, fileBytes []byte) UploadDocumentResult {
	del := s.DeleteDocument(ctx, kbName, filename)
	if !del.Success {
		s.logger.Info("update_document: no prior version to delete", zap.String("kb_name", kbName), zap.String("filename", filename))
	}
	return s.UploadDocument(ctx, kbName, filename, fileBytes, nil)
}
