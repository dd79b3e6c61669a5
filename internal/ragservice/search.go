package ragservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/ragmcp/internal/retrieval"
	"github.com/fyrsmithlabs/ragmcp/internal/vectorstore"
)

// dedupeOverlapThreshold is the character-set Jaccard overlap at or
// above which a candidate result is considered a near-duplicate of an
// already-kept one.
const dedupeOverlapThreshold = 0.9

// Search runs hybrid retrieval against kbName, optionally deduplicates
// near-identical passages, and formats the survivors for both
// programmatic and prompt consumption.
func (s *Service) Search(ctx context.Context, kbName, query string, topK int, useReranking, deduplicate bool) SearchResult {
	if kbName == "" {
		return SearchResult{Success: false, Message: "kb_name is required"}
	}

	exists, err := s.collections.Exists(ctx, kbName)
	if err != nil {
		return SearchResult{Success: false, Message: err.Error()}
	}
	if !exists {
		return SearchResult{Success: false, Message: fmt.Sprintf("knowledge base %q not found", kbName)}
	}

	if topK <= 0 {
		topK = s.opts.DefaultTopK
	}
	collection := vectorstore.CollectionName(kbName)
	filter := &vectorstore.Filter{Must: []vectorstore.Condition{{Field: vectorstore.TypeField, Value: vectorstore.TypeDocument}}}

	results, err := s.retriever.Retrieve(ctx, query, collection, topK, filter, useReranking)
	if err != nil {
		return SearchResult{Success: false, Message: err.Error()}
	}

	if deduplicate {
		results = deduplicateResults(results)
	}

	items := make([]SearchResultItem, len(results))
	sourceCounts := make(map[string]int)
	var sourceOrder []string
	for i, r := range results {
		text, _ := r.Payload["text"].(string)
		items[i] = SearchResultItem{
			Rank:     i + 1,
			Content:  text,
			Score:    float64(r.Score),
			Metadata: stripNils(r.Payload),
		}

		if filename, _ := r.Payload["filename"].(string); filename != "" {
			if sourceCounts[filename] == 0 {
				sourceOrder = append(sourceOrder, filename)
			}
			sourceCounts[filename]++
		}
	}

	summary := make([]SourceSummary, len(sourceOrder))
	for i, name := range sourceOrder {
		summary[i] = SourceSummary{SourceFile: name, ChunkCount: sourceCounts[name]}
	}

	return SearchResult{
		Success:          true,
		KBName:           kbName,
		Query:            query,
		TotalResults:     len(items),
		Results:          items,
		FormattedContext: formatContextForAgent(items),
		MetadataSummary:  summary,
	}
}

// stripNils drops payload entries carrying a nil value, matching the
// "metadata with None values removed" contract external callers see.
func stripNils(payload map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		if v == nil {
			continue
		}
		out[k] = v
	}
	return out
}

// deduplicateResults keeps results in rank order, dropping any whose
// normalized character set overlaps an already-kept result's by
// dedupeOverlapThreshold or more.
func deduplicateResults(results []retrieval.Result) []retrieval.Result {
	kept := make([]retrieval.Result, 0, len(results))
	keptCharSets := make([]map[rune]bool, 0, len(results))

	for _, r := range results {
		text, _ := r.Payload["text"].(string)
		candidate := charSet(strings.ToLower(strings.TrimSpace(text)))

		isDuplicate := false
		for _, existing := range keptCharSets {
			if jaccardOverlap(candidate, existing) >= dedupeOverlapThreshold {
				isDuplicate = true
				break
			}
		}
		if isDuplicate {
			continue
		}

		kept = append(kept, r)
		keptCharSets = append(keptCharSets, candidate)
	}

	return kept
}

func charSet(s string) map[rune]bool {
	set := make(map[rune]bool)
	for _, r := range s {
		set[r] = true
	}
	return set
}

// jaccardOverlap returns |a∩b| / max(|a|,|b|), 0 if either set is empty.
func jaccardOverlap(a, b map[rune]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for r := range a {
		if b[r] {
			intersection++
		}
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	return float64(intersection) / float64(maxLen)
}

// formatContextForAgent renders results as a numbered context block
// suitable for embedding in a chat prompt: one header line per result
// naming source, page, section, and relevance where available,
// followed by its content, prefixed with a one-line summary header.
func formatContextForAgent(items []SearchResultItem) string {
	if len(items) == 0 {
		return ""
	}

	blocks := make([]string, len(items))
	for i, item := range items {
		var attrs []string
		if file, _ := item.Metadata["filename"].(string); file != "" {
			attrs = append(attrs, fmt.Sprintf("Source: %s", file))
		}
		if page, ok := item.Metadata["page"]; ok {
			attrs = append(attrs, fmt.Sprintf("Page %v", page))
		}
		if section, _ := item.Metadata["section"].(string); section != "" {
			attrs = append(attrs, fmt.Sprintf("Section: %s", section))
		}
		attrs = append(attrs, fmt.Sprintf("Relevance: %.2f", item.Score))

		header := fmt.Sprintf("[%d] (%s)", item.Rank, strings.Join(attrs, ", "))
		blocks[i] = header + "\n" + item.Content
	}

	summaryHeader := fmt.Sprintf("Retrieved Context (%d relevant passages):", len(items))
	return summaryHeader + "\n\n" + strings.Join(blocks, "\n\n")
}
