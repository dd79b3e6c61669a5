package embedding

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/fyrsmithlabs/ragmcp/internal/vectorstore"
)

// sparseVocabSize bounds the term-index space for the feature-hashing
// trick below. Qdrant applies the IDF modifier server-side at index
// time, so the client only needs to emit stable term indices and raw
// term-frequency weights.
const sparseVocabSize = 1 << 18

// hashingSparseVectorizer produces BM25-style sparse vectors from raw
// text via the hashing trick: each token hashes to a fixed-size index
// space, with log-scaled term frequency as the weight. This avoids
// needing to maintain a corpus vocabulary client-side.
type hashingSparseVectorizer struct{}

func newHashingSparseVectorizer() *hashingSparseVectorizer {
	return &hashingSparseVectorizer{}
}

func (v *hashingSparseVectorizer) vectorize(text string) vectorstore.SparseVector {
	counts := map[uint32]float32{}
	for _, tok := range tokenize(text) {
		idx := hashToken(tok)
		counts[idx]++
	}

	sparse := vectorstore.SparseVector{
		Indices: make([]uint32, 0, len(counts)),
		Values:  make([]float32, 0, len(counts)),
	}
	for idx, tf := range counts {
		sparse.Indices = append(sparse.Indices, idx)
		sparse.Values = append(sparse.Values, float32(1+math.Log(float64(tf))))
	}
	return sparse
}

func (v *hashingSparseVectorizer) vectorizeBatch(texts []string) []vectorstore.SparseVector {
	out := make([]vectorstore.SparseVector, len(texts))
	for i, t := range texts {
		out[i] = v.vectorize(t)
	}
	return out
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func hashToken(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return h.Sum32() % sparseVocabSize
}
