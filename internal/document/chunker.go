package document

import (
	"regexp"
	"strings"
)

var headerLinePattern = regexp.MustCompile(`(?m)^(#{2,6}\s+.+)$`)

var sentenceBoundaryPattern = regexp.MustCompile(`(?:[.!?。！？]|[ๆฯ])\s+`)

// ChunkOptions configures structure-aware chunking.
type ChunkOptions struct {
	ChunkSize    int
	ChunkOverlap int
}

// DefaultChunkOptions mirrors the original source's defaults.
func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{ChunkSize: 1000, ChunkOverlap: 200}
}

// ChunkSections splits ordered sections into Chunks, preferring
// Markdown headers, then paragraphs, then sentences, then raw
// characters as a section exceeds chunk_size. ChunkIndex increases
// monotonically across all sections.
func ChunkSections(sections []Section, opts ChunkOptions) []Chunk {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1000
	}

	var chunks []Chunk
	index := 0
	for pageNum, section := range sections {
		page := pageNum + 1
		for _, text := range chunkText(section, opts.ChunkSize, opts.ChunkOverlap) {
			if strings.TrimSpace(text) == "" {
				continue
			}
			chunks = append(chunks, Chunk{Text: text, Page: page, ChunkIndex: index})
			index++
		}
	}
	return chunks
}

func chunkText(text string, chunkSize, overlap int) []string {
	if len([]rune(text)) <= chunkSize {
		return []string{text}
	}
	return chunkByHeaders(text, chunkSize, overlap)
}

// chunkByHeaders splits at "##"-"######" boundaries, keeping the
// header as the first line of the chunk it introduces.
func chunkByHeaders(text string, chunkSize, overlap int) []string {
	indices := headerLinePattern.FindAllStringIndex(text, -1)
	if len(indices) == 0 {
		return chunkByParagraphs(text, chunkSize, overlap)
	}

	var regions []string
	prev := 0
	for _, idx := range indices {
		if idx[0] > prev {
			regions = append(regions, text[prev:idx[0]])
		}
		prev = idx[0]
	}
	regions = append(regions, text[prev:])

	var chunks []string
	for _, region := range regions {
		region = strings.TrimSpace(region)
		if region == "" {
			continue
		}
		if runeLen(region) <= chunkSize {
			chunks = append(chunks, withOverlap(chunks, region, overlap))
			continue
		}
		chunks = append(chunks, chunkByParagraphs(region, chunkSize, overlap)...)
	}
	return chunks
}

func chunkByParagraphs(text string, chunkSize, overlap int) []string {
	paragraphs := regexp.MustCompile(`\n\s*\n`).Split(text, -1)

	var chunks []string
	var current strings.Builder
	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		potential := joinWithBlank(current.String(), para)
		if runeLen(potential) <= chunkSize {
			current.Reset()
			current.WriteString(potential)
			continue
		}

		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}

		if runeLen(para) > chunkSize {
			chunks = append(chunks, chunkBySentences(para, chunkSize, overlap)...)
			continue
		}

		current.WriteString(withOverlap(chunks, para, overlap))
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

func chunkBySentences(text string, chunkSize, overlap int) []string {
	sentences := sentenceBoundaryPattern.Split(text, -1)

	var chunks []string
	var current strings.Builder
	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}

		var potential string
		if current.Len() > 0 {
			potential = current.String() + " " + sentence
		} else {
			potential = sentence
		}

		if runeLen(potential) <= chunkSize {
			current.Reset()
			current.WriteString(potential)
			continue
		}

		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}

		if runeLen(sentence) > chunkSize {
			chunks = append(chunks, chunkByCharacters(sentence, chunkSize, overlap)...)
			continue
		}

		if len(chunks) > 0 && overlap > 0 {
			current.WriteString(overlapText(chunks[len(chunks)-1], overlap) + " " + sentence)
		} else {
			current.WriteString(sentence)
		}
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

func chunkByCharacters(text string, chunkSize, overlap int) []string {
	runes := []rune(text)
	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
		start = end - overlap
		if start < 0 || overlap <= 0 {
			start = end
		}
	}
	return chunks
}

func withOverlap(prior []string, text string, overlap int) string {
	if len(prior) == 0 || overlap <= 0 {
		return text
	}
	return overlapText(prior[len(prior)-1], overlap) + "\n\n" + text
}

// overlapText returns the trailing overlapSize characters of text,
// snapped forward to the next word boundary so the overlap doesn't
// begin mid-word.
func overlapText(text string, overlapSize int) string {
	runes := []rune(text)
	if len(runes) <= overlapSize {
		return text
	}
	overlap := string(runes[len(runes)-overlapSize:])
	if idx := strings.IndexByte(overlap, ' '); idx >= 0 {
		overlap = overlap[idx+1:]
	}
	return strings.TrimSpace(overlap)
}

func joinWithBlank(current, next string) string {
	if current == "" {
		return next
	}
	return current + "\n\n" + next
}

func runeLen(s string) int {
	return len([]rune(s))
}
