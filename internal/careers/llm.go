package careers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kalambet/ivy/internal/engine"
	"github.com/kalambet/ivy/internal/profile"
)

// LLMRecommender implements Recommender with a chat model.
type LLMRecommender struct {
	client engine.Chatter
	model  string
}

// NewLLMRecommender creates an LLMRecommender using the given chat engine and model name.
func NewLLMRecommender(client engine.Chatter, model string) *LLMRecommender {
	return &LLMRecommender{client: client, model: model}
}

type pathsResponse struct {
	Paths []profile.Recommendation `json:"paths"`
}

// RecommendPaths asks the model for career paths that fit s.
func (r *LLMRecommender) RecommendPaths(ctx context.Context, s profile.Snapshot) ([]profile.Recommendation, error) {
	raw, err := r.client.Chat(ctx, r.model, BuildPrompt(s), pathsSchema())
	if err != nil {
		return nil, fmt.Errorf("recommendation chat: %w", err)
	}

	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var resp pathsResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("decoding recommendations: %w", err)
	}
	if len(resp.Paths) > MaxPaths {
		resp.Paths = resp.Paths[:MaxPaths]
	}
	return resp.Paths, nil
}
