package careers

import (
	"fmt"
	"strings"

	"github.com/kalambet/ivy/internal/engine"
	"github.com/kalambet/ivy/internal/profile"
)

// MaxPaths is how many career paths the model is asked for.
const MaxPaths = 5

const systemPrompt = `You are a career counsellor for school students in India. Given a student's profile, suggest career paths that fit their interests, strengths, values, preferred work environment and goals. Your output must be ONLY a single valid JSON object of the form {"paths":[{"path":"...","reason":"..."}]}. Do not include any other text, prose, or markdown.

Rules:
- Suggest between 3 and %d distinct paths, best fit first.
- "path" is a short career title.
- "reason" is one sentence addressed to the student that links the path to what they told you.
- Keep suggestions realistic for the student's grade and school board.`

// BuildPrompt constructs the chat messages for path recommendation.
func BuildPrompt(s profile.Snapshot) []engine.Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Name: %s\n", s.Name)
	fmt.Fprintf(&sb, "Grade: %s\n", s.Grade)
	fmt.Fprintf(&sb, "Board: %s\n", s.Board)
	fmt.Fprintf(&sb, "Interests: %s\n", strings.Join(s.Interests, ", "))
	fmt.Fprintf(&sb, "Strengths: %s\n", strings.Join(s.Strengths, ", "))
	fmt.Fprintf(&sb, "Values: %s\n", strings.Join(s.Values, ", "))
	fmt.Fprintf(&sb, "Preferred work environment: %s\n", s.WorkEnvironment)
	fmt.Fprintf(&sb, "Goals: %s", s.Goals)

	return []engine.Message{
		{Role: "system", Content: fmt.Sprintf(systemPrompt, MaxPaths)},
		{Role: "user", Content: sb.String()},
	}
}

func pathsSchema() *engine.Schema {
	return &engine.Schema{
		Type: "object",
		Properties: map[string]engine.SchemaProperty{
			"paths": {
				Type:        "array",
				Description: "Recommended career paths, each an object with path and reason",
				Items:       &engine.SchemaProperty{Type: "object"},
			},
		},
		Required: []string{"paths"},
	}
}
