package profile

import (
	"strings"
	"testing"
)

func TestSnapshot_DeepCopy(t *testing.T) {
	p := fullProfile()
	s := p.Snapshot()
	p.Interests[0] = "changed"
	if s.Interests[0] != "robotics" {
		t.Errorf("snapshot aliased live profile: %q", s.Interests[0])
	}
}

func TestSnapshot_Milestone(t *testing.T) {
	for _, tt := range []struct{ turns, want int }{{0, 0}, {3, 3}, {8, 8}, {20, 8}} {
		s := Profile{TurnCount: tt.turns}.Snapshot()
		if got := s.Milestone(); got != tt.want {
			t.Errorf("Milestone(%d) = %d, want %d", tt.turns, got, tt.want)
		}
	}
}

func TestSummary_Empty(t *testing.T) {
	got := Profile{}.Snapshot().Summary()
	if got != "Student profile: nothing gathered yet." {
		t.Errorf("unexpected empty summary: %q", got)
	}
}

func TestSummary_Full(t *testing.T) {
	p := fullProfile()
	p.Paths = []string{"Robotics Engineer"}
	summary := p.Snapshot().Summary()
	for _, want := range []string{"Asha", "grade 10", "CBSE board", "robotics", "logic", "impact", "lab", "build rovers", "Robotics Engineer"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q: %s", want, summary)
		}
	}
}

func TestSummary_Capped(t *testing.T) {
	p := Profile{}
	for i := 0; i < 400; i++ {
		p.Interests = append(p.Interests, "interest-é")
	}
	summary := p.Snapshot().Summary()
	if len(summary) > maxSummaryChars {
		t.Errorf("summary too long: %d", len(summary))
	}
	if !strings.HasPrefix(summary, "Interests:") {
		t.Errorf("unexpected summary prefix: %.40s", summary)
	}
}
