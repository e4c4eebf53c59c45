package embed

import (
	"context"
	"crypto/sha256"
	"math"
)

// SyntheticEmbedder is a deterministic, hash-derived embedder with no
// external dependency: it maps text to a unit vector by hashing the
// text into a float32 seed stream. Used as the default in tests and
// workspaces without a configured network embedder.
type SyntheticEmbedder struct {
	dimensions int
	modelID    string
}

// NewSyntheticEmbedder constructs a deterministic embedder of the given
// dimension.
func NewSyntheticEmbedder(dimensions int) *SyntheticEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &SyntheticEmbedder{dimensions: dimensions, modelID: "synthetic-hash-v1"}
}

func (e *SyntheticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.vectorFor(text), nil
}

func (e *SyntheticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vectorFor(t)
	}
	return out, nil
}

func (e *SyntheticEmbedder) vectorFor(text string) []float32 {
	v := make([]float32, e.dimensions)
	seed := []byte(text)
	block := sha256.Sum256(seed)
	bi := 0
	for i := range v {
		if bi >= len(block) {
			block = sha256.Sum256(block[:])
			bi = 0
		}
		// Map a hash byte to [-1, 1].
		v[i] = float32(block[bi])/127.5 - 1
		bi++
	}
	normalize(v)
	return v
}

func normalize(v []float32) {
	var sumSq float64
	for _, f := range v {
		sumSq += float64(f) * float64(f)
	}
	if sumSq == 0 {
		return
	}
	norm := math.Sqrt(sumSq)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}

func (e *SyntheticEmbedder) Dimension() int  { return e.dimensions }
func (e *SyntheticEmbedder) ModelID() string { return e.modelID }
func (e *SyntheticEmbedder) Close() error    { return nil }

var _ Embedder = (*SyntheticEmbedder)(nil)
