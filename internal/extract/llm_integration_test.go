//go:build integration

package extract

import (
	"context"
	"testing"
	"time"

	"github.com/kalambet/ivy/internal/engine"
)

func TestLLMExtractor_RealOllama(t *testing.T) {
	eng := engine.NewOllamaEngine("http://localhost:11434")
	if !eng.IsRunning(context.Background()) {
		t.Skip("Ollama is not running, skipping integration test")
	}
	if !eng.HasModel(context.Background(), "llama3.1") {
		t.Skip("llama3.1 model not available, skipping integration test")
	}

	e := NewLLMExtractor(eng, "llama3.1")

	start := time.Now()
	traits, err := e.ExtractFacts(context.Background(), "I love robotics and I'm really good at maths")
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("ExtractFacts: %v", err)
	}

	if len(traits.Interests) == 0 {
		t.Error("Interests is empty, expected robotics")
	}

	t.Logf("traits: %+v (took %v)", traits, elapsed)
}
