package vectorindex

import (
	"hash/fnv"
	"math"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Embedder turns skill text into a fixed-dimension vector.
type Embedder interface {
	Embed(text string) ([]float64, error)
	Dim() int
}

// maxEmbedTokens bounds how much of a skill's combined text feeds the
// embedder; content beyond this cap is truncated deterministically before
// hashing so the input length no longer skews the resulting vector.
const maxEmbedTokens = 2048

// hashingEmbedder is a deterministic, dependency-free text embedder: it
// projects overlapping character trigrams onto a fixed-dimension vector via
// FNV-1a (a fixed, seedless hash, so a vector computed today matches one
// computed after a process restart), then L2-normalizes the result. No
// example in the retrieved corpus ships a native-Go local text-embedding
// model, so this is a documented standard-library fallback (see the
// module's DESIGN.md). A per-instance random seed was tried first and
// rejected: it broke the Save/Load persistence contract, since a reloaded
// index would hash queries under a different seed than the one its stored
// vectors were built with.
type hashingEmbedder struct {
	dim int

	tokenizerOnce sync.Once
	tokenizer     *tiktoken.Tiktoken
}

// NewHashingEmbedder returns a deterministic embedder producing vectors of
// the given dimension.
func NewHashingEmbedder(dim int) Embedder {
	return &hashingEmbedder{dim: dim}
}

func (e *hashingEmbedder) Dim() int { return e.dim }

func (e *hashingEmbedder) Embed(text string) ([]float64, error) {
	truncated := e.truncate(text)

	vec := make([]float64, e.dim)
	normalized := strings.ToLower(strings.TrimSpace(truncated))
	if normalized == "" {
		return vec, nil
	}

	const n = 3 // trigram width
	runes := []rune(normalized)
	if len(runes) < n {
		e.accumulate(vec, normalized)
	} else {
		for i := 0; i+n <= len(runes); i++ {
			e.accumulate(vec, string(runes[i:i+n]))
		}
	}

	normalizeInPlace(vec)
	return vec, nil
}

func (e *hashingEmbedder) accumulate(vec []float64, gram string) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(gram))
	sum := h.Sum64()

	idx := int(sum % uint64(e.dim))
	sign := 1.0
	if (sum>>63)&1 == 1 {
		sign = -1.0
	}
	vec[idx] += sign
}

func normalizeInPlace(vec []float64) {
	var sumSquares float64
	for _, v := range vec {
		sumSquares += v * v
	}
	if sumSquares == 0 {
		return
	}
	norm := math.Sqrt(sumSquares)
	for i := range vec {
		vec[i] /= norm
	}
}

// truncate caps text to maxEmbedTokens using a cl100k_base tokenizer so
// truncation is stable across differently-encoded inputs rather than a raw
// byte slice cut mid-rune. Falls back to a byte-length cap if the tokenizer
// cannot be initialized.
func (e *hashingEmbedder) truncate(text string) string {
	e.tokenizerOnce.Do(func() {
		tk, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			e.tokenizer = tk
		}
	})
	if e.tokenizer == nil {
		const byteCap = 8192
		if len(text) <= byteCap {
			return text
		}
		return text[:byteCap]
	}

	tokens := e.tokenizer.Encode(text, nil, nil)
	if len(tokens) <= maxEmbedTokens {
		return text
	}
	return e.tokenizer.Decode(tokens[:maxEmbedTokens])
}

// cosineSimilarity returns the cosine similarity of two equal-length,
// L2-normalized vectors.
func cosineSimilarity(a, b []float64) float64 {
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot
}
