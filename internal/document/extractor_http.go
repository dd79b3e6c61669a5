package document

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"
)

// ErrExtractionFailed wraps a non-2xx response from a remote
// extraction service.
var ErrExtractionFailed = errors.New("document: remote extraction failed")

// HTTPExtractorConfig configures an HTTPSectionExtractor.
type HTTPExtractorConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// HTTPSectionExtractor calls a remote structure-aware extraction
// service (a Docling- or MarkItDown-compatible backend) over HTTP,
// posting the raw file and receiving ordered Markdown sections.
type HTTPSectionExtractor struct {
	config HTTPExtractorConfig
	http   *http.Client
}

// NewHTTPSectionExtractor creates an HTTPSectionExtractor. BaseURL is
// required.
func NewHTTPSectionExtractor(config HTTPExtractorConfig) (*HTTPSectionExtractor, error) {
	if config.BaseURL == "" {
		return nil, errors.New("document: BaseURL is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	return &HTTPSectionExtractor{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
	}, nil
}

type extractResponse struct {
	Sections []string `json:"sections"`
}

// Extract posts the file content as multipart form data to
// <BaseURL>/extract and decodes the ordered sections from the
// response.
func (e *HTTPSectionExtractor) Extract(ctx context.Context, fileName string, content []byte) ([]Section, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.BaseURL+"/extract", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if e.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	}

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrExtractionFailed, resp.StatusCode)
	}

	var decoded extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrExtractionFailed, err)
	}
	sections := make([]Section, len(decoded.Sections))
	for i, s := range decoded.Sections {
		sections[i] = s
	}
	return sections, nil
}

// Close releases idle connections held by the extractor's HTTP
// client.
func (e *HTTPSectionExtractor) Close() error {
	e.http.CloseIdleConnections()
	return nil
}

var _ SectionExtractor = (*HTTPSectionExtractor)(nil)
