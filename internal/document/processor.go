package document

import (
	"context"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragmcp/internal/document/clean"
	"github.com/fyrsmithlabs/ragmcp/internal/document/quality"
)

// Extractors groups the backends the Processor routes to by file
// extension. Office and Structured may be nil, in which case their
// extension groups fall through to Structured (or are skipped if that
// is also nil).
type Extractors struct {
	PlainText  SectionExtractor
	Office     SectionExtractor
	Structured SectionExtractor
}

var officeExtensions = map[string]bool{
	".xlsx": true, ".xls": true, ".pptx": true, ".ppt": true,
}

var structuredExtensions = map[string]bool{
	".pdf": true, ".docx": true, ".doc": true,
	".png": true, ".jpg": true, ".jpeg": true,
}

var plainTextExtensions = map[string]bool{
	".txt": true, ".md": true,
}

// Processor extracts and chunks documents per the format-based
// routing table: plain text decodes directly, Office formats route to
// an Office-optimized extractor falling back to the structured
// extractor, and everything else (including PDFs, Word docs, images,
// and unrecognized extensions) routes to the structured extractor.
type Processor struct {
	extractors Extractors
	cleaner    *clean.Cleaner
	checker    *quality.Checker
	logger     *zap.Logger
}

// NewProcessor creates a Processor.
func NewProcessor(extractors Extractors, cleaner *clean.Cleaner, logger *zap.Logger) *Processor {
	if cleaner == nil {
		cleaner = clean.NewCleaner(clean.Options{}, logger)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		extractors: extractors,
		cleaner:    cleaner,
		checker:    quality.NewChecker(),
		logger:     logger,
	}
}

// ExtractText routes fileName to the matching extractor, falls back to
// the structured extractor for Office files that yield nothing, and
// cleans the resulting pages unless cleanText is false.
func (p *Processor) ExtractText(ctx context.Context, fileName string, content []byte, cleanText bool) ([]Section, error) {
	ext := extOf(fileName)

	var sections []Section
	var err error

	switch {
	case plainTextExtensions[ext] && p.extractors.PlainText != nil:
		sections, err = p.extractors.PlainText.Extract(ctx, fileName, content)

	case officeExtensions[ext] && p.extractors.Office != nil:
		sections, err = p.extractors.Office.Extract(ctx, fileName, content)
		if (err != nil || len(sections) == 0) && p.extractors.Structured != nil {
			p.logger.Warn("office extraction empty, falling back to structured extractor", zap.String("file", fileName))
			sections, err = p.extractors.Structured.Extract(ctx, fileName, content)
		}

	case p.extractors.Structured != nil:
		sections, err = p.extractors.Structured.Extract(ctx, fileName, content)

	default:
		return nil, nil
	}

	if err != nil {
		p.logger.Error("extraction failed", zap.String("file", fileName), zap.Error(err))
		return nil, err
	}

	if cleanText && len(sections) > 0 {
		sections = p.cleaner.CleanPages(sections)
	}

	return sections, nil
}

// ExtractAndScore extracts and cleans sections, then runs the Quality
// Checker over the result.
func (p *Processor) ExtractAndScore(ctx context.Context, fileName string, content []byte) ([]Section, quality.Report, error) {
	sections, err := p.ExtractText(ctx, fileName, content, true)
	if err != nil {
		return nil, quality.Report{}, err
	}
	return sections, p.checker.CheckQuality(sections), nil
}

// ChunkText splits already-extracted sections into structure-aware
// chunks using opts, or DefaultChunkOptions if opts is the zero value.
func (p *Processor) ChunkText(sections []Section, opts ChunkOptions) []Chunk {
	if opts.ChunkSize == 0 {
		opts = DefaultChunkOptions()
	}
	return ChunkSections(sections, opts)
}
