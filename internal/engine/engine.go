package engine

import "context"

// Chatter is the narrow capability the dialogue core needs: one chat
// completion, optionally constrained to a JSON schema.
type Chatter interface {
	// Chat sends messages to the given model and returns the assistant's response.
	// When jsonSchema is non-nil, structured JSON output is requested.
	Chat(ctx context.Context, model string, messages []Message, jsonSchema *Schema) (string, error)
}

// Engine abstracts an inference backend (a local Ollama server or an
// OpenAI-compatible cloud API).
type Engine interface {
	Chatter

	// IsRunning reports whether the inference backend is reachable.
	IsRunning(ctx context.Context) bool

	// HasModel reports whether the given model name is available.
	HasModel(ctx context.Context, name string) bool
}

// Puller is implemented by engines that can download missing models.
type Puller interface {
	// PullModel downloads a model. The optional callback receives progress updates.
	PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error
}
