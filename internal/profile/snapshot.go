package profile

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MilestoneCount is the number of progress steps shown to the student.
const MilestoneCount = 8

// Snapshot is a read-only copy of a Profile handed to report generators and
// outer surfaces. It never aliases the live profile's slices.
type Snapshot struct {
	Profile
}

// Snapshot returns a deep copy of p.
func (p Profile) Snapshot() Snapshot {
	return Snapshot{Profile: p.clone()}
}

// Milestone returns how many of the MilestoneCount progress steps are reached.
func (s Snapshot) Milestone() int {
	return min(s.TurnCount, MilestoneCount)
}

// maxSummaryChars caps the summary to stay under ~500 tokens (4 chars/token).
const maxSummaryChars = 2000

// Summary renders the profile as compact prose suitable for a prompt or a
// plain-text report.
func (s Snapshot) Summary() string {
	var parts []string

	var who []string
	if s.Name != "" {
		who = append(who, s.Name)
	}
	if s.Grade != "" {
		who = append(who, "grade "+s.Grade)
	}
	if s.Board != "" {
		who = append(who, s.Board+" board")
	}
	if len(who) > 0 {
		parts = append(parts, fmt.Sprintf("Student: %s.", strings.Join(who, ", ")))
	}

	if len(s.Interests) > 0 {
		parts = append(parts, fmt.Sprintf("Interests: %s.", strings.Join(s.Interests, ", ")))
	}
	if len(s.Strengths) > 0 {
		parts = append(parts, fmt.Sprintf("Strengths: %s.", strings.Join(s.Strengths, ", ")))
	}
	if len(s.Values) > 0 {
		parts = append(parts, fmt.Sprintf("Values: %s.", strings.Join(s.Values, ", ")))
	}
	if s.WorkEnvironment != "" {
		parts = append(parts, fmt.Sprintf("Preferred work environment: %s.", s.WorkEnvironment))
	}
	if s.Goals != "" {
		parts = append(parts, fmt.Sprintf("Goals: %s.", s.Goals))
	}
	if len(s.Paths) > 0 {
		parts = append(parts, fmt.Sprintf("Suggested paths: %s.", strings.Join(s.Paths, ", ")))
	}

	if len(parts) == 0 {
		return "Student profile: nothing gathered yet."
	}

	summary := strings.Join(parts, " ")
	if len(summary) > maxSummaryChars {
		// Don't split a multi-byte UTF-8 character.
		end := maxSummaryChars
		for end > 0 && !utf8.RuneStart(summary[end]) {
			end--
		}
		if idx := strings.LastIndex(summary[:end], " "); idx > 0 {
			summary = summary[:idx]
		} else {
			summary = summary[:end]
		}
	}
	return summary
}
