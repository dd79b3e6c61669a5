// Package quality implements the Quality Checker: scores an extracted
// document along five weighted dimensions and emits an overall score
// with issues and recommendations.
package quality

import (
	"math"
	"strings"
	"unicode"
)

// Weights for each scoring dimension; must sum to 1.0.
const (
	weightTextQuality      = 0.25
	weightWordQuality      = 0.20
	weightConsistency      = 0.15
	weightStructureQuality = 0.20
	weightContentDensity   = 0.20
)

// Report is the result of scoring a document's extracted pages.
type Report struct {
	OverallScore      float64
	TextQuality       float64
	WordQuality       float64
	Consistency       float64
	StructureQuality  float64
	ContentDensity    float64
	Issues            []string
	Recommendations   []string
	Details           map[string]int
}

// Checker scores extracted pages along five dimensions.
type Checker struct{}

// NewChecker creates a Checker.
func NewChecker() *Checker {
	return &Checker{}
}

// CheckQuality scores pages and returns a weighted Report. Empty input
// returns an overall score of 0 with the issue "No content".
func (c *Checker) CheckQuality(pages []string) Report {
	if len(pages) == 0 {
		return Report{
			Issues:          []string{"No content"},
			Recommendations: []string{"Consider re-extraction"},
			Details:         map[string]int{},
		}
	}

	allText := strings.Join(pages, "\n")
	words := strings.Fields(allText)

	textQuality := printableRatio(allText)
	wordQuality := averageWordLengthScore(words)
	consistency := pageLengthConsistency(pages)
	structureQuality := headerDensity(allText, len(pages))
	contentDensity := charsPerPageScore(pages)

	overall := textQuality*weightTextQuality +
		wordQuality*weightWordQuality +
		consistency*weightConsistency +
		structureQuality*weightStructureQuality +
		contentDensity*weightContentDensity

	var issues, recommendations []string
	switch {
	case overall >= 0.85:
		recommendations = append(recommendations, "Excellent quality")
	case overall >= 0.70:
		recommendations = append(recommendations, "Good quality")
	default:
		issues = append(issues, "Low quality score")
		recommendations = append(recommendations, "Consider re-extraction")
	}

	return Report{
		OverallScore:     overall,
		TextQuality:      textQuality,
		WordQuality:      wordQuality,
		Consistency:      consistency,
		StructureQuality: structureQuality,
		ContentDensity:   contentDensity,
		Issues:           issues,
		Recommendations:  recommendations,
		Details: map[string]int{
			"pages": len(pages),
			"chars": len([]rune(allText)),
			"words": len(words),
		},
	}
}

// printableRatio is the fraction of characters that are printable or
// plain whitespace (newline/tab).
func printableRatio(text string) float64 {
	runes := []rune(text)
	if len(runes) == 0 {
		return 0
	}
	count := 0
	for _, r := range runes {
		if r == '\n' || r == '\t' || isPrintable(r) {
			count++
		}
	}
	return float64(count) / float64(len(runes))
}

func isPrintable(r rune) bool {
	return unicode.IsGraphic(r) && !unicode.IsControl(r)
}

// averageWordLengthScore maps average token length into [0,1]: 1.0 when
// in the "normal prose" band [4,10], 0.6 otherwise.
func averageWordLengthScore(words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	total := 0
	for _, w := range words {
		total += len([]rune(w))
	}
	avg := float64(total) / float64(len(words))
	if avg >= 4 && avg <= 10 {
		return 1.0
	}
	return 0.6
}

// pageLengthConsistency is 1 minus the coefficient of variation of page
// lengths, clamped to [0,1].
func pageLengthConsistency(pages []string) float64 {
	n := float64(len(pages))
	var sum float64
	lengths := make([]float64, len(pages))
	for i, p := range pages {
		l := float64(len([]rune(p)))
		lengths[i] = l
		sum += l
	}
	avg := sum / n
	if avg == 0 {
		return 0.5
	}

	var variance float64
	for _, l := range lengths {
		variance += (l - avg) * (l - avg)
	}
	variance /= n
	cv := math.Sqrt(variance) / avg
	return math.Max(0, 1.0-cv)
}

// headerDensity is the count of markdown header lines per page,
// normalized so that two headers per page saturates the score at 1.0.
func headerDensity(allText string, numPages int) float64 {
	lines := strings.Split(allText, "\n")
	headers := 0
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimLeft(l, " "), "#") {
			headers++
		}
	}
	denom := math.Max(float64(numPages*2), 1)
	return math.Min(1.0, float64(headers)/denom)
}

// charsPerPageScore is a piecewise function of average characters per
// page.
func charsPerPageScore(pages []string) float64 {
	total := 0
	for _, p := range pages {
		total += len([]rune(p))
	}
	avg := float64(total) / float64(len(pages))

	switch {
	case avg >= 800:
		return 1.0
	case avg >= 400:
		return 0.8
	case avg >= 200:
		return 0.6
	default:
		return 0.4
	}
}
