package profile

import "strings"

// Field names one of the required profile fields.
type Field string

const (
	FieldName            Field = "name"
	FieldGrade           Field = "grade"
	FieldBoard           Field = "board"
	FieldInterests       Field = "interests"
	FieldStrengths       Field = "strengths"
	FieldValues          Field = "values"
	FieldWorkEnvironment Field = "work_environment"
	FieldGoals           Field = "goals"
)

// RequiredFields lists the fields that must be filled before career paths can be
// recommended, in the order the conversation asks for them.
var RequiredFields = []Field{
	FieldName,
	FieldGrade,
	FieldBoard,
	FieldInterests,
	FieldStrengths,
	FieldValues,
	FieldWorkEnvironment,
	FieldGoals,
}

// Boards is the set of recognised school boards, upper-cased.
var Boards = []string{"CBSE", "ICSE", "IB", "IGCSE", "STATE", "ISC"}

// ParseBoard normalises s to one of Boards.
func ParseBoard(s string) (string, bool) {
	up := strings.ToUpper(strings.TrimSpace(s))
	for _, b := range Boards {
		if up == b {
			return b, true
		}
	}
	return "", false
}

// Recommendation is one suggested career path with the reason it fits.
type Recommendation struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Profile is the structured record gathered about one student during a session.
// The zero value is the empty profile a session starts with.
type Profile struct {
	Name            string           `json:"name"`
	Grade           string           `json:"grade"`
	Board           string           `json:"board"`
	Interests       []string         `json:"interests"`
	Strengths       []string         `json:"strengths"`
	Values          []string         `json:"values"`
	WorkEnvironment string           `json:"work_environment"`
	Goals           string           `json:"goals"`
	Paths           []string         `json:"paths"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
	TurnCount       int              `json:"turn_count"`
}

// Has reports whether f is populated.
func (p Profile) Has(f Field) bool {
	switch f {
	case FieldName:
		return p.Name != ""
	case FieldGrade:
		return p.Grade != ""
	case FieldBoard:
		return p.Board != ""
	case FieldInterests:
		return len(p.Interests) > 0
	case FieldStrengths:
		return len(p.Strengths) > 0
	case FieldValues:
		return len(p.Values) > 0
	case FieldWorkEnvironment:
		return p.WorkEnvironment != ""
	case FieldGoals:
		return p.Goals != ""
	}
	return false
}

// Missing returns the unpopulated required fields in priority order.
func (p Profile) Missing() []Field {
	var out []Field
	for _, f := range RequiredFields {
		if !p.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// Ready reports whether every required field is populated.
func (p Profile) Ready() bool {
	return len(p.Missing()) == 0
}

// Complete reports whether career paths have been generated.
func (p Profile) Complete() bool {
	return len(p.Paths) > 0
}

// Traits is the result shape of unstructured extraction: the fields that cannot
// be recognised with patterns and need language understanding.
type Traits struct {
	Interests       []string `json:"interests"`
	Strengths       []string `json:"strengths"`
	Values          []string `json:"values"`
	WorkEnvironment string   `json:"work_environment"`
	Goals           string   `json:"goals"`
}

// Facts is the set of fields extracted from a single utterance. Zero values
// mean "not extracted".
type Facts struct {
	Name            string   `json:"name,omitempty"`
	Grade           string   `json:"grade,omitempty"`
	Board           string   `json:"board,omitempty"`
	Interests       []string `json:"interests,omitempty"`
	Strengths       []string `json:"strengths,omitempty"`
	Values          []string `json:"values,omitempty"`
	WorkEnvironment string   `json:"work_environment,omitempty"`
	Goals           string   `json:"goals,omitempty"`
}

// Fields returns the names of the populated facts in priority order.
func (f Facts) Fields() []Field {
	var out []Field
	add := func(ok bool, name Field) {
		if ok {
			out = append(out, name)
		}
	}
	add(f.Name != "", FieldName)
	add(f.Grade != "", FieldGrade)
	add(f.Board != "", FieldBoard)
	add(len(f.Interests) > 0, FieldInterests)
	add(len(f.Strengths) > 0, FieldStrengths)
	add(len(f.Values) > 0, FieldValues)
	add(f.WorkEnvironment != "", FieldWorkEnvironment)
	add(f.Goals != "", FieldGoals)
	return out
}

// IsEmpty reports whether no fact was extracted.
func (f Facts) IsEmpty() bool {
	return len(f.Fields()) == 0
}
