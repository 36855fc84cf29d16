package dialogue

import (
	"fmt"

	"github.com/kalambet/ivy/internal/profile"
)

// Greeting opens every session.
const Greeting = "Hi! I'm Ivy. To start, what is your name, grade, and school board?"

// FallbackPrefix is prepended to the next prompt when a turn taught us nothing.
const FallbackPrefix = "I didn't quite catch that. "

// PromptReport is the terminal prompt once every required field is known.
const PromptReport = "I've gathered some great insights! Would you like to see your personalized career discovery report?"

var prompts = map[profile.Field]string{
	profile.FieldName:            "To get started, what's your name?",
	profile.FieldGrade:           "Nice to meet you, %s! Which grade are you in?",
	profile.FieldBoard:           "And which school board are you under (e.g., CBSE, ICSE, IB)?",
	profile.FieldInterests:       "What subjects do you enjoy most, or what do you find yourself doing in your free time?",
	profile.FieldStrengths:       "What would you say are your natural strengths? (e.g., leadership, technical logic, empathy, creativity?)",
	profile.FieldValues:          "What matters most to you in the work you'd do someday? (e.g., helping people, financial security, creativity, independence?)",
	profile.FieldWorkEnvironment: "Picture yourself at work. Where are you? (e.g., an office, a lab, outdoors, a studio, working remotely?)",
	profile.FieldGoals:           "Last one: what do you hope to achieve in the long run, or who would you love to become?",
}

// NextPrompt returns the question for the first missing field in priority
// order, or PromptReport when nothing is missing.
func NextPrompt(p profile.Profile) string {
	for _, f := range profile.RequiredFields {
		if p.Has(f) {
			continue
		}
		if f == profile.FieldGrade {
			return fmt.Sprintf(prompts[f], p.Name)
		}
		return prompts[f]
	}
	return PromptReport
}
