package engine

import (
	"context"
	"slices"

	"github.com/kalambet/ivy/internal/proxy"
)

// OpenAIEngine adapts an OpenAI-compatible cloud API (Groq by default) to the
// Engine interface. It cannot pull models.
type OpenAIEngine struct {
	client *proxy.Client
}

// NewOpenAIEngine creates an engine for the API at baseURL authenticated with apiKey.
func NewOpenAIEngine(baseURL, apiKey string) *OpenAIEngine {
	return &OpenAIEngine{client: proxy.NewClient(apiKey, proxy.WithBaseURL(baseURL))}
}

// NewOpenAIEngineWithClient wraps an existing client.
func NewOpenAIEngineWithClient(c *proxy.Client) *OpenAIEngine {
	return &OpenAIEngine{client: c}
}

// Chat requests a completion. A non-nil schema switches the response to JSON
// object mode; the prompt is expected to name the keys.
func (e *OpenAIEngine) Chat(ctx context.Context, model string, messages []Message, jsonSchema *Schema) (string, error) {
	msgs := make([]proxy.Message, len(messages))
	for i, m := range messages {
		msgs[i] = proxy.Message{Role: m.Role, Content: m.Content}
	}

	req := proxy.ChatRequest{Model: model, Messages: msgs}
	if jsonSchema != nil {
		req.ResponseFormat = &proxy.ResponseFormat{Type: "json_object"}
		temp := 0.2
		req.Temperature = &temp
	}
	return e.client.Chat(ctx, req)
}

// IsRunning reports whether the API answers the model listing.
func (e *OpenAIEngine) IsRunning(ctx context.Context) bool {
	_, err := e.client.ListModels(ctx)
	return err == nil
}

// HasModel reports whether the API key can use the named model.
func (e *OpenAIEngine) HasModel(ctx context.Context, name string) bool {
	models, err := e.client.ListModels(ctx)
	if err != nil {
		return false
	}
	return slices.ContainsFunc(models, func(m proxy.Model) bool { return m.ID == name })
}
