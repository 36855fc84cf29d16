package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kalambet/ivy/internal/engine"
	"github.com/kalambet/ivy/internal/profile"
)

// LLMExtractor implements FactExtractor with a fast chat model.
type LLMExtractor struct {
	client engine.Chatter
	model  string
}

// NewLLMExtractor creates an LLMExtractor using the given chat engine and model name.
func NewLLMExtractor(client engine.Chatter, model string) *LLMExtractor {
	return &LLMExtractor{client: client, model: model}
}

// ExtractFacts asks the model for the traits mentioned in text.
func (e *LLMExtractor) ExtractFacts(ctx context.Context, text string) (profile.Traits, error) {
	if strings.TrimSpace(text) == "" {
		return profile.Traits{}, nil
	}

	raw, err := e.client.Chat(ctx, e.model, BuildPrompt(text), traitsSchema())
	if err != nil {
		return profile.Traits{}, fmt.Errorf("trait extraction chat: %w", err)
	}

	var t profile.Traits
	if err := json.Unmarshal([]byte(stripFences(raw)), &t); err != nil {
		return profile.Traits{}, fmt.Errorf("decoding traits: %w", err)
	}
	return t, nil
}

// stripFences removes a surrounding markdown code fence some models add even
// in JSON mode.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
