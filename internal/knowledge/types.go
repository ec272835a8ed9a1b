package knowledge

import "time"

// VectorDimension is the embedding dimension of the knowledge_chunks schema.
// Embedders must be configured to produce vectors of this size.
const VectorDimension = 768

// Chunk is one unit of stored knowledge text with visibility metadata.
// Read-only to this package's consumers; ingestion owns the content.
type Chunk struct {
	ID           string    // Unique identifier
	Text         string    // Chunk text content
	Source       string    // Originating document reference
	AllowedRoles []string  // Role visibility tags, never empty for valid chunks
	Score        float64   // Cosine similarity to the query (0-1), set by search
	CreatedAt    time.Time // Ingestion timestamp
}

// RetrieveOption configures retrieval behavior using the functional options
// pattern.
type RetrieveOption func(*retrieveConfig)

type retrieveConfig struct {
	topK           int
	scoreThreshold float64
}

// WithTopK overrides the maximum number of chunks to return for one call.
func WithTopK(k int) RetrieveOption {
	return func(c *retrieveConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithScoreThreshold overrides the minimum similarity score for one call.
func WithScoreThreshold(threshold float64) RetrieveOption {
	return func(c *retrieveConfig) {
		c.scoreThreshold = threshold
	}
}
