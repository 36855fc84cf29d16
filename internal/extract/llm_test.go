package extract

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/ivy/internal/engine"
	"github.com/kalambet/ivy/internal/profile"
)

// mockChatter implements engine.Chatter for testing.
type mockChatter struct {
	response string
	err      error
	delay    time.Duration

	gotModel  string
	gotSchema *engine.Schema
}

func (m *mockChatter) Chat(ctx context.Context, model string, messages []engine.Message, jsonSchema *engine.Schema) (string, error) {
	m.gotModel = model
	m.gotSchema = jsonSchema
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return m.response, m.err
}

func TestLLMExtractor_Parses(t *testing.T) {
	mock := &mockChatter{
		response: `{"interests":["robotics","chess"],"strengths":["logic"],"values":["impact"],"work_environment":"lab","goals":"build rovers"}`,
	}
	e := NewLLMExtractor(mock, "llama-3.1-8b-instant")
	got, err := e.ExtractFacts(context.Background(), "I love robotics and chess")
	if err != nil {
		t.Fatalf("ExtractFacts: %v", err)
	}

	want := profile.Traits{
		Interests:       []string{"robotics", "chess"},
		Strengths:       []string{"logic"},
		Values:          []string{"impact"},
		WorkEnvironment: "lab",
		Goals:           "build rovers",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractFacts() = %+v, want %+v", got, want)
	}
	if mock.gotModel != "llama-3.1-8b-instant" {
		t.Errorf("model = %q", mock.gotModel)
	}
	if mock.gotSchema == nil || len(mock.gotSchema.Required) != 5 {
		t.Errorf("schema = %+v, want five required keys", mock.gotSchema)
	}
}

func TestLLMExtractor_CodeFence(t *testing.T) {
	mock := &mockChatter{response: "```json\n{\"interests\":[\"art\"]}\n```"}
	got, err := NewLLMExtractor(mock, "m").ExtractFacts(context.Background(), "art")
	if err != nil {
		t.Fatalf("ExtractFacts: %v", err)
	}
	if !reflect.DeepEqual(got.Interests, []string{"art"}) {
		t.Errorf("Interests = %v", got.Interests)
	}
}

func TestLLMExtractor_MalformedJSON(t *testing.T) {
	mock := &mockChatter{response: `not json at all`}
	_, err := NewLLMExtractor(mock, "m").ExtractFacts(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error for malformed response")
	}
}

func TestLLMExtractor_ChatError(t *testing.T) {
	mock := &mockChatter{err: errors.New("connection refused")}
	_, err := NewLLMExtractor(mock, "m").ExtractFacts(context.Background(), "hello")
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("err = %v, want wrapped chat error", err)
	}
}

func TestLLMExtractor_ThroughExtractorTimeout(t *testing.T) {
	mock := &mockChatter{response: `{"interests":["art"]}`, delay: 2 * time.Second}
	e := New(NewLLMExtractor(mock, "m"), 50*time.Millisecond)

	start := time.Now()
	got := e.Extract(context.Background(), "I like art", profile.Profile{Board: "CBSE"})
	if time.Since(start) > time.Second {
		t.Error("extraction was not bounded by the timeout")
	}
	if got.Interests != nil {
		t.Errorf("Interests = %v, want none after timeout", got.Interests)
	}
}

func TestPromptContainsKeys(t *testing.T) {
	msgs := BuildPrompt("I enjoy painting")
	if len(msgs) != 2 || msgs[1].Content != "I enjoy painting" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
	for _, key := range []string{"interests", "strengths", "values", "work_environment", "goals"} {
		if !strings.Contains(msgs[0].Content, key) {
			t.Errorf("system prompt missing key %q", key)
		}
	}
}
