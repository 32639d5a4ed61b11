// Package llm provides the model-agnostic LLM capability set: plain text
// generation, JSON-constrained generation with a single repair retry,
// keyword extraction, and text embedding.
package llm

import "context"

// Client is the capability set the reasoning pipeline depends on.
// Implementations must be safe for concurrent use; the vendor client
// handles its own connection pooling.
type Client interface {
	// GenerateText returns a single completion for prompt.
	GenerateText(ctx context.Context, prompt string) (string, error)

	// GenerateJSON asks for JSON-shaped output and unmarshals it into
	// out. A malformed first response triggers exactly one retry with a
	// repair hint; a second failure is an LLMParseError.
	GenerateJSON(ctx context.Context, prompt string, out any) error

	// GenerateSearchKeywords distills a user message into a compact
	// phrase suited to semantic search against cluster labels.
	GenerateSearchKeywords(ctx context.Context, question string) (string, error)

	// Embed returns the embedding vector for text.
	Embed(ctx context.Context, text string) ([]float32, error)
}
