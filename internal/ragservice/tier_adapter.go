package ragservice

import (
	"context"

	"github.com/fyrsmithlabs/ragmcp/internal/document"
)

// fastTierExtractor adapts a *document.Processor into the fast tier of
// progressive extraction: the Document Processor's own extraction
// routing, run against whatever filename the upload declared.
type fastTierExtractor struct {
	proc     *document.Processor
	fileName string
}

func (f fastTierExtractor) Extract(ctx context.Context, source []byte) ([]string, error) {
	return f.proc.ExtractText(ctx, f.fileName, source, true)
}
