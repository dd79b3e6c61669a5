// Package document implements the Document Processor: routes a file
// to the right extraction backend by extension, cleans the resulting
// pages, and splits them into structure-aware chunks.
package document

import (
	"context"
	"strings"
)

// Section is one ordered piece of extracted text, typically one page
// or one header-bounded region of a document.
type Section = string

// SectionExtractor produces ordered Markdown sections from a file's
// raw bytes. Implementations handle one format family (plain text,
// Office documents, structured documents with optional OCR).
type SectionExtractor interface {
	Extract(ctx context.Context, fileName string, content []byte) ([]Section, error)
}

// Chunk is one emitted unit of chunked text, carrying its originating
// page and a document-wide monotonic index.
type Chunk struct {
	Text       string
	Page       int
	ChunkIndex int
}

// extensionGroup names the SectionExtractor used for a set of file
// extensions, plus an optional fallback extractor to try if the
// primary yields no sections.
type extensionGroup struct {
	extractor SectionExtractor
	fallback  SectionExtractor
}

func extOf(fileName string) string {
	idx := strings.LastIndexByte(fileName, '.')
	if idx == -1 {
		return ""
	}
	return strings.ToLower(fileName[idx:])
}
