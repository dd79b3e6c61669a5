package progressive

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/fyrsmithlabs/ragmcp/internal/llm"
)

// VLMExtractor is a TierExtractor backed by a remote vision-language
// model reached through an llm.Client. Source bytes are treated as a
// single rendered page image and sent as an inline data URL.
type VLMExtractor struct {
	client llm.Client
	prompt string
}

const defaultVLMPrompt = "Extract all readable text from this document page, preserving reading order and paragraph breaks. Return only the extracted text."

// NewVLMExtractor creates a VLMExtractor. An empty prompt uses the
// default extraction instruction.
func NewVLMExtractor(client llm.Client, prompt string) *VLMExtractor {
	if prompt == "" {
		prompt = defaultVLMPrompt
	}
	return &VLMExtractor{client: client, prompt: prompt}
}

// Extract sends source as an inline image data URL alongside the
// extraction prompt and returns the model's response as a single page.
func (v *VLMExtractor) Extract(ctx context.Context, source []byte) ([]string, error) {
	dataURL := fmt.Sprintf("data:image/png;base64,%s", base64.StdEncoding.EncodeToString(source))
	content := fmt.Sprintf("%s\n\n%s", v.prompt, dataURL)

	completion, err := v.client.Complete(ctx, llm.Request{
		Messages: []llm.Message{{Role: "user", Content: content}},
	})
	if err != nil {
		return nil, err
	}
	if completion.Text == "" {
		return nil, nil
	}
	return []string{completion.Text}, nil
}

var _ TierExtractor = (*VLMExtractor)(nil)
