// Package llm defines the Provider interface for generative language model
// backends.
//
// The normalization pipeline uses an LLM for exactly three things: rewriting
// a raw transcript into professional documentation language, structuring the
// rewritten text into the fixed care-record shape, and translating foreign
// language transcripts into the documentation language. All three are plain
// single-turn completions, so the contract is deliberately small: one
// request in, one text response out. Streaming, tool calling, and multi-turn
// history are not part of this surface.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly.
package llm

import "context"

// Request carries everything a single completion needs.
type Request struct {
	// SystemPrompt is a high-priority instruction injected before the prompt.
	// Providers without a dedicated system slot prepend it as a system-role
	// message.
	SystemPrompt string

	// Prompt is the user-role input text. Must be non-empty.
	Prompt string

	// Temperature controls output randomness in [0.0, 2.0]. The pipeline
	// keeps this low; rewrites must not get creative with clinical facts.
	Temperature float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int
}

// Response is the completed text.
type Response struct {
	// Content is the full text of the model's reply.
	Content string
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// Returns an error if the request fails or ctx is cancelled first.
	Complete(ctx context.Context, req Request) (*Response, error)
}
