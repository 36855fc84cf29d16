package extract

import "github.com/kalambet/ivy/internal/engine"

const systemPrompt = `You are a data extractor for a student career-guidance conversation. Analyze the student's message and output ONLY a single valid JSON object with these keys. Do not include any other text, prose, or markdown.

Keys:
- "interests": subjects, hobbies or activities the student enjoys (array of short strings)
- "strengths": skills or personal traits the student is good at (array of short strings)
- "values": what matters to the student in life or work, e.g. helping people, money, creativity (array of short strings)
- "work_environment": the setting the student would like to work in, e.g. outdoors, office, lab, remote (string)
- "goals": the student's long-term aspiration in their own words (string)

Rules:
- Only extract what the student actually says. Do not guess.
- Use empty arrays and empty strings for anything not mentioned.
- Keep each item to a few words.`

// BuildPrompt constructs the chat messages for trait extraction.
func BuildPrompt(text string) []engine.Message {
	return []engine.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: text},
	}
}

// traitsSchema returns the JSON schema for structured trait output.
func traitsSchema() *engine.Schema {
	return &engine.Schema{
		Type: "object",
		Properties: map[string]engine.SchemaProperty{
			"interests":        engine.StringArray("Subjects, hobbies or activities the student enjoys"),
			"strengths":        engine.StringArray("Skills or traits the student is good at"),
			"values":           engine.StringArray("What matters to the student"),
			"work_environment": {Type: "string", Description: "Preferred work setting"},
			"goals":            {Type: "string", Description: "Long-term aspiration"},
		},
		Required: []string{"interests", "strengths", "values", "work_environment", "goals"},
	}
}
