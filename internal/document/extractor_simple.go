package document

import (
	"context"
	"unicode/utf8"
)

// PlainTextExtractor decodes .txt/.md content directly as UTF-8,
// producing a single section with no further structural parsing.
type PlainTextExtractor struct{}

// NewPlainTextExtractor creates a PlainTextExtractor.
func NewPlainTextExtractor() *PlainTextExtractor {
	return &PlainTextExtractor{}
}

// Extract returns content as a single Markdown section. Invalid UTF-8
// bytes are replaced with U+FFFD here; the Text Cleaner's
// encoding-repair subroutine acts on text that contains U+FFFD.
func (e *PlainTextExtractor) Extract(_ context.Context, _ string, content []byte) ([]Section, error) {
	if len(content) == 0 {
		return nil, nil
	}
	text := string(content)
	if !utf8.ValidString(text) {
		text = toValidUTF8(text)
	}
	return []Section{text}, nil
}

func toValidUTF8(s string) string {
	var out []rune
	for i, r := range s {
		if r == utf8.RuneError {
			_, size := utf8.DecodeRuneInString(s[i:])
			if size == 1 {
				out = append(out, '�')
				continue
			}
		}
		out = append(out, r)
	}
	return string(out)
}

var _ SectionExtractor = (*PlainTextExtractor)(nil)
