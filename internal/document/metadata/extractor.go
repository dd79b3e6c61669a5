// Package metadata implements the Metadata Extractor: classifies a
// document's head text into {doc_type, category, status, title} via an
// LLM call, falling back to keyword heuristics when the LLM is
// unavailable or its response can't be parsed.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/ragmcp/internal/llm"
)

const maxChars = 3000

const promptTemplate = `You are an assistant analyzing documents. Read the following content and extract metadata as a JSON object.

Document content:
%s

Return only a JSON object with these fields:
- doc_type: document type (e.g. "law", "regulation", "guideline", "policy", "report", "other")
- category: document category (e.g. "firearms", "contracts", "hr", "finance", "general")
- status: document status (e.g. "active", "draft", "archived", "unknown")
- title: document title extracted from the content, or "Untitled" if none is found

JSON:`

// Metadata is the closed-set classification record produced by
// extraction.
type Metadata struct {
	DocType  string
	Category string
	Status   string
	Title    string
}

// Extractor classifies document head text into Metadata.
type Extractor struct {
	llm llm.Client
}

// NewExtractor creates an Extractor. A nil client means every call
// falls back to the keyword heuristic.
func NewExtractor(client llm.Client) *Extractor {
	return &Extractor{llm: client}
}

// Extract classifies text, truncating to maxChars before sending it to
// the LLM. Any LLM or parse failure falls back to the keyword heuristic.
func (e *Extractor) Extract(ctx context.Context, text string) Metadata {
	truncated := text
	if len(truncated) > maxChars {
		truncated = truncated[:maxChars] + "..."
	}

	if e.llm == nil {
		return fallbackMetadata(text)
	}

	completion, err := e.llm.Complete(ctx, llm.Request{
		Messages:    []llm.Message{{Role: "user", Content: fmt.Sprintf(promptTemplate, truncated)}},
		Temperature: 0.3,
		MaxTokens:   300,
	})
	if err != nil {
		return fallbackMetadata(text)
	}

	if m, ok := parseMetadataJSON(completion.Text); ok {
		return m
	}
	return fallbackMetadata(text)
}

type metadataResponse struct {
	DocType  string `json:"doc_type"`
	Category string `json:"category"`
	Status   string `json:"status"`
	Title    string `json:"title"`
}

// parseMetadataJSON tries, in order: a strict JSON parse, extraction
// from a fenced code block, and extraction of the outermost balanced
// brace pair.
func parseMetadataJSON(text string) (Metadata, bool) {
	if m, ok := tryUnmarshal(text); ok {
		return m, true
	}
	if fenced, ok := extractFencedBlock(text); ok {
		if m, ok := tryUnmarshal(fenced); ok {
			return m, true
		}
	}
	if braced, ok := extractOutermostBraces(text); ok {
		if m, ok := tryUnmarshal(braced); ok {
			return m, true
		}
	}
	return Metadata{}, false
}

func tryUnmarshal(text string) (Metadata, bool) {
	var resp metadataResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &resp); err != nil {
		return Metadata{}, false
	}
	return Metadata{
		DocType:  resp.DocType,
		Category: resp.Category,
		Status:   resp.Status,
		Title:    resp.Title,
	}, true
}

func extractFencedBlock(text string) (string, bool) {
	marker := "```json"
	start := strings.Index(text, marker)
	if start == -1 {
		return "", false
	}
	start += len(marker)
	end := strings.Index(text[start:], "```")
	if end == -1 {
		return "", false
	}
	return strings.TrimSpace(text[start : start+end]), true
}

func extractOutermostBraces(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return text[start : end+1], true
}

// category/doc-type keyword vocabularies, checked in a fixed priority
// order: the first entry with a matching keyword wins. Keywords are
// plain substrings, so "act" also matches inside words like "contract".
var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{"firearms", []string{"firearm", "gun", "weapon", "ammunition"}},
	{"contracts", []string{"contract", "agreement"}},
	{"hr", []string{"employee", "human resource", " hr "}},
	{"finance", []string{"finance", "budget", "invoice"}},
}

var docTypeKeywords = []struct {
	docType  string
	keywords []string
}{
	{"law", []string{"act", "statute", "law"}},
	{"regulation", []string{"regulation"}},
	{"guideline", []string{"guideline"}},
	{"policy", []string{"policy"}},
}

// fallbackMetadata derives metadata from simple keyword heuristics when
// the LLM is unavailable or its response couldn't be parsed.
func fallbackMetadata(text string) Metadata {
	title := "Untitled"
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			title = trimmed
			break
		}
	}
	if len(title) > 100 {
		title = title[:100]
	}

	lower := strings.ToLower(text)

	category := "general"
	for _, rule := range categoryKeywords {
		if containsAny(lower, rule.keywords) {
			category = rule.category
			break
		}
	}

	docType := "other"
	for _, rule := range docTypeKeywords {
		if containsAny(lower, rule.keywords) {
			docType = rule.docType
			break
		}
	}

	return Metadata{
		DocType:  docType,
		Category: category,
		Status:   "unknown",
		Title:    title,
	}
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
