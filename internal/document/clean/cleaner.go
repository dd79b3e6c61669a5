// Package clean implements the Text Cleaner: removes extractor
// artifacts, normalizes whitespace and Unicode, repairs Thai
// combining-mark spacing, and drops empty or low-signal pages.
package clean

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"
)

var errInvalidUTF8Reinterpretation = errors.New("reinterpreted bytes are not valid UTF-8")

var (
	glyphAnglePattern     = regexp.MustCompile(`GLYPH<[^>]+>`)
	glyphEscapedPattern   = regexp.MustCompile(`GLYPH&lt;[^&]+&gt;`)
	glyphParenPattern     = regexp.MustCompile(`GLYPH\([^)]+\)`)
	controlCharPattern    = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	invisibleMarkPattern  = regexp.MustCompile(`[\x{FEFF}\x{200B}-\x{200F}\x{202A}-\x{202E}]`)
	thaiConsonantSpace    = regexp.MustCompile(`([ก-ฮ])\s+([ะ-ฺ])`)
	thaiLeadingVowelSpace = regexp.MustCompile(`([เแโใไ])\s+([ก-ฮ])`)
	dotLeaderLine         = regexp.MustCompile(`^[.\s]*\.[.\s]*$`)
	multiNewlinePattern   = regexp.MustCompile(`\n{3,}`)
	spaceBeforePunct      = regexp.MustCompile(`\s+([.,;:!?])`)
	runsOfSpaces          = regexp.MustCompile(`[ \t]+`)
)

// Options configures a Cleaner. Every cleaning step always runs; there
// are no per-step switches, and only the page-length floor is
// configurable.
type Options struct {
	MinPageChars int // floor below which a cleaned page is dropped; default 3
}

// Cleaner removes extractor artifacts from raw page text.
type Cleaner struct {
	opts   Options
	logger *zap.Logger
}

// NewCleaner creates a Cleaner. A nil logger falls back to a no-op one.
func NewCleaner(opts Options, logger *zap.Logger) *Cleaner {
	if opts.MinPageChars <= 0 {
		opts.MinPageChars = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cleaner{opts: opts, logger: logger}
}

// CleanText runs the full cleaning pipeline over a single page or
// section of text, in the fixed order: glyph removal, control/invisible
// character stripping, Thai sequence repair, NFC normalization, dot-leader
// line removal, and whitespace collapsing.
func (c *Cleaner) CleanText(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	text = repairEncoding(text)
	text = removeGlyphArtifacts(text)
	text = stripControlAndInvisible(text)
	text = fixThaiSequences(text)
	text = norm.NFC.String(text)
	text = dropDotLeaderLines(text)
	text = collapseWhitespace(text)

	return strings.TrimSpace(text)
}

// CleanPages cleans each page and drops any whose cleaned length falls
// below MinPageChars, logging the reason for each drop.
func (c *Cleaner) CleanPages(pages []string) []string {
	cleaned := make([]string, 0, len(pages))
	for i, page := range pages {
		original := len(page)
		page = c.CleanText(page)
		if len(page) >= c.opts.MinPageChars {
			cleaned = append(cleaned, page)
			continue
		}
		if page == "" {
			c.logger.Warn("page empty after cleaning", zap.Int("page", i+1), zap.Int("original_chars", original))
		} else {
			c.logger.Warn("page too short after cleaning",
				zap.Int("page", i+1), zap.Int("cleaned_chars", len(page)), zap.Int("min_chars", c.opts.MinPageChars))
		}
	}
	return cleaned
}

func removeGlyphArtifacts(text string) string {
	text = glyphAnglePattern.ReplaceAllString(text, "")
	text = glyphEscapedPattern.ReplaceAllString(text, "")
	text = glyphParenPattern.ReplaceAllString(text, "")
	return text
}

func stripControlAndInvisible(text string) string {
	text = controlCharPattern.ReplaceAllString(text, "")
	text = invisibleMarkPattern.ReplaceAllString(text, "")
	return text
}

func fixThaiSequences(text string) string {
	text = thaiConsonantSpace.ReplaceAllString(text, "$1$2")
	text = thaiLeadingVowelSpace.ReplaceAllString(text, "$1$2")
	return text
}

func dropDotLeaderLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && isDotLeader(trimmed) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// isDotLeader reports whether at least 70% of a line's non-space
// characters are dots, the signature of a table-of-contents leader run.
func isDotLeader(line string) bool {
	if !strings.Contains(line, ".") {
		return false
	}
	total, dots := 0, 0
	for _, r := range line {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if r == '.' {
			dots++
		}
	}
	if total == 0 {
		return false
	}
	return float64(dots)/float64(total) >= 0.7
}

func collapseWhitespace(text string) string {
	text = multiNewlinePattern.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		line = spaceBeforePunct.ReplaceAllString(line, "$1")
		line = runsOfSpaces.ReplaceAllString(line, " ")
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}

// repairEncoding attempts latin-1 and cp1252 reinterpretation when the
// Unicode replacement character is present: text that was really UTF-8
// but got decoded one byte at a time as a single-byte codepage shows up
// as mojibake, not U+FFFD, so this instead targets the mirror case — a
// single-byte codepage stream misread as UTF-8 — by re-encoding the
// current (lossy) text back into each codepage's byte values and
// checking whether that byte sequence is itself valid UTF-8, keeping
// whichever variant has fewer replacement characters left over.
func repairEncoding(text string) string {
	if !strings.ContainsRune(text, '�') {
		return text
	}

	best := text
	bestCount := strings.Count(text, "�")

	for _, enc := range []*charmap.Charmap{charmap.ISO8859_1, charmap.Windows1252} {
		repaired, err := reinterpret(text, enc)
		if err != nil {
			continue
		}
		if count := strings.Count(repaired, "�"); count < bestCount {
			best = repaired
			bestCount = count
		}
	}
	return best
}

func reinterpret(text string, enc *charmap.Charmap) (string, error) {
	raw, err := enc.NewEncoder().String(text)
	if err != nil {
		return "", err
	}
	if !utf8.ValidString(raw) {
		return "", errInvalidUTF8Reinterpretation
	}
	return raw, nil
}
