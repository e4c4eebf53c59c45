// Package embed defines the Embedder contract the core consumes and
// ships one HTTP-based implementation plus a deterministic test double.
// Implementation is opaque to the rest of the engine; the Index Manager
// and Retrieval depend only on the Embedder interface.
package embed

import "context"

// Embedder is the external embedding-model contract: embed(text) ->
// vector, embed_batch(texts) -> vectors, dimension, model_id.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	ModelID() string
	Close() error
}
