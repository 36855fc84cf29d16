package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kalambet/ivy/internal/profile"
)

var (
	namePattern  = regexp.MustCompile(`(?i)\b(my name is|i[’']m|i am|call me)\s+([\p{L}\p{M}]+(?:-[\p{L}\p{M}]+)*)`)
	gradePattern = regexp.MustCompile(`\d{1,2}`)
	boardPattern = regexp.MustCompile(`\b(cbse|icse|igcse|ib|state|isc)\b`)
)

// notNames are words that follow "I'm" or "I am" in ordinary sentences and
// would otherwise be captured as a name.
var notNames = map[string]bool{
	"a": true, "an": true, "the": true, "in": true, "at": true, "from": true,
	"into": true, "on": true, "of": true, "with": true, "and": true, "but": true,
	"so": true, "not": true, "very": true, "really": true, "quite": true,
	"just": true, "also": true, "still": true, "currently": true, "now": true,
	"here": true, "good": true, "fine": true, "ok": true, "okay": true,
	"great": true, "interested": true, "passionate": true, "curious": true,
	"studying": true, "doing": true, "going": true, "looking": true,
	"learning": true, "trying": true, "thinking": true, "working": true,
	"years": true, "year": true, "grade": true, "class": true, "student": true,
	"girl": true, "boy": true, "sure": true, "unsure": true, "confused": true,
	"happy": true, "excited": true, "bad": true, "better": true, "best": true,
	"more": true, "most": true, "strong": true, "weak": true, "done": true,
	"ready": true, "like": true, "love": true, "enjoy": true, "want": true,
	"hoping": true, "planning": true,
}

// Structured applies the pattern rules to utterance for every field of the
// name/grade/board group that p does not already have.
func Structured(utterance string, p profile.Profile) profile.Facts {
	var f profile.Facts
	if p.Name == "" {
		f.Name = matchName(utterance)
	}
	lower := strings.ToLower(utterance)
	if p.Grade == "" {
		f.Grade = matchGrade(lower)
	}
	if p.Board == "" {
		f.Board = matchBoard(lower)
	}
	return f
}

// matchName returns the first introduced word that is not a common word.
// After "I'm" or "I am" the word must be capitalised, since those forms
// also start ordinary sentences ("I'm pretty good at math").
func matchName(s string) string {
	for _, m := range namePattern.FindAllStringSubmatchIndex(s, -1) {
		intro := strings.ToLower(s[m[2]:m[3]])
		raw := s[m[4]:m[5]]

		// Part of a longer token such as "ravi123".
		if next, _ := utf8.DecodeRuneInString(s[m[5]:]); unicode.IsLetter(next) || unicode.IsDigit(next) || next == '_' {
			continue
		}
		if notNames[strings.ToLower(raw)] {
			continue
		}
		if intro != "my name is" && intro != "call me" {
			if first, _ := utf8.DecodeRuneInString(raw); !unicode.IsUpper(first) {
				continue
			}
		}
		// A Caser carries state and must not be shared across goroutines.
		return cases.Title(language.English).String(raw)
	}
	return ""
}

// matchGrade accepts the first one- or two-digit number only when it is a
// school grade.
func matchGrade(lower string) string {
	m := gradePattern.FindString(lower)
	if m == "" {
		return ""
	}
	n, err := strconv.Atoi(m)
	if err != nil || n < 1 || n > 12 {
		return ""
	}
	return strconv.Itoa(n)
}

func matchBoard(lower string) string {
	m := boardPattern.FindString(lower)
	if m == "" {
		return ""
	}
	b, _ := profile.ParseBoard(m)
	return b
}
