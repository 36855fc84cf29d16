package dialogue

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/ivy/internal/careers"
	"github.com/kalambet/ivy/internal/extract"
	"github.com/kalambet/ivy/internal/profile"
)

// stubFacts counts unstructured extraction calls.
type stubFacts struct {
	traits profile.Traits
	err    error
	calls  int
}

func (s *stubFacts) ExtractFacts(ctx context.Context, text string) (profile.Traits, error) {
	s.calls++
	return s.traits, s.err
}

type stubRecommender struct {
	recs  []profile.Recommendation
	err   error
	calls int
}

func (s *stubRecommender) RecommendPaths(ctx context.Context, p profile.Snapshot) ([]profile.Recommendation, error) {
	s.calls++
	return s.recs, s.err
}

func newTestOrchestrator(f *stubFacts, r *stubRecommender) *Orchestrator {
	return NewOrchestrator(extract.New(f, time.Second), careers.NewGate(r, time.Second))
}

func TestProcessTurn_NilProfile(t *testing.T) {
	o := newTestOrchestrator(&stubFacts{}, &stubRecommender{})
	if _, err := o.ProcessTurn(context.Background(), "hi", nil); !errors.Is(err, ErrNilProfile) {
		t.Errorf("err = %v, want ErrNilProfile", err)
	}
}

func TestProcessTurn_OpeningTurn(t *testing.T) {
	o := newTestOrchestrator(&stubFacts{}, &stubRecommender{})
	var p profile.Profile

	res, err := o.ProcessTurn(context.Background(), "", &p)
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if res.Fallback || strings.HasPrefix(res.Reply, FallbackPrefix) {
		t.Errorf("opening turn used fallback: %q", res.Reply)
	}
	if res.Reply != prompts[profile.FieldName] {
		t.Errorf("Reply = %q", res.Reply)
	}
	if p.TurnCount != 0 {
		t.Errorf("TurnCount = %d, want 0", p.TurnCount)
	}
}

func TestProcessTurn_Scenario(t *testing.T) {
	facts := &stubFacts{traits: profile.Traits{Interests: []string{"robotics"}}}
	o := newTestOrchestrator(facts, &stubRecommender{})
	var p profile.Profile
	ctx := context.Background()

	res, err := o.ProcessTurn(ctx, "My name is Asha", &p)
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if p.Name != "Asha" {
		t.Errorf("Name = %q, want Asha", p.Name)
	}
	if res.Reply != "Nice to meet you, Asha! Which grade are you in?" {
		t.Errorf("Reply = %q", res.Reply)
	}

	res, _ = o.ProcessTurn(ctx, "I'm in grade 10, CBSE board", &p)
	if p.Grade != "10" || p.Board != "CBSE" {
		t.Errorf("Grade, Board = %q, %q; want 10, CBSE", p.Grade, p.Board)
	}
	if res.Reply != prompts[profile.FieldInterests] {
		t.Errorf("Reply = %q, want interests prompt", res.Reply)
	}
	if facts.calls != 0 {
		t.Errorf("extraction ran before board was known: %d calls", facts.calls)
	}

	res, _ = o.ProcessTurn(ctx, "I love building robots", &p)
	if facts.calls != 1 {
		t.Errorf("extraction calls = %d, want 1", facts.calls)
	}
	if !reflect.DeepEqual(p.Interests, []string{"robotics"}) {
		t.Errorf("Interests = %v", p.Interests)
	}
	if res.Reply != prompts[profile.FieldStrengths] {
		t.Errorf("Reply = %q, want strengths prompt", res.Reply)
	}
	if p.TurnCount != 3 {
		t.Errorf("TurnCount = %d, want 3", p.TurnCount)
	}
	if res.Profile.Milestone() != 3 {
		t.Errorf("Milestone = %d, want 3", res.Profile.Milestone())
	}
}

func TestProcessTurn_GradeBounds(t *testing.T) {
	o := newTestOrchestrator(&stubFacts{}, &stubRecommender{})
	p := profile.Profile{Name: "Asha"}

	res, _ := o.ProcessTurn(context.Background(), "I am 15 years old studying", &p)
	if p.Grade != "" {
		t.Errorf("Grade = %q, want empty", p.Grade)
	}
	if !res.Fallback {
		t.Error("expected fallback for out-of-range grade")
	}

	o.ProcessTurn(context.Background(), "grade 7", &p)
	if p.Grade != "7" {
		t.Errorf("Grade = %q, want 7", p.Grade)
	}
}

func TestProcessTurn_FallbackLeavesProfile(t *testing.T) {
	facts := &stubFacts{}
	o := newTestOrchestrator(facts, &stubRecommender{})
	p := profile.Profile{Name: "Asha", Grade: "9", Board: "IB", Interests: []string{"art"}, TurnCount: 4}
	before := p.Snapshot()

	res, err := o.ProcessTurn(context.Background(), "gibberish with no facts", &p)
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	want := FallbackPrefix + prompts[profile.FieldStrengths]
	if res.Reply != want {
		t.Errorf("Reply = %q, want %q", res.Reply, want)
	}
	if !reflect.DeepEqual(p, before.Profile) {
		t.Errorf("profile changed:\n%+v\n%+v", p, before.Profile)
	}
	if !res.Delta.IsEmpty() {
		t.Errorf("Delta = %+v, want empty", res.Delta)
	}
}

func TestProcessTurn_ExtractionFailureIsFallback(t *testing.T) {
	facts := &stubFacts{err: errors.New("timeout")}
	o := newTestOrchestrator(facts, &stubRecommender{})
	p := profile.Profile{Name: "Asha", Grade: "9", Board: "IB"}

	res, err := o.ProcessTurn(context.Background(), "I really enjoy chemistry", &p)
	if err != nil {
		t.Fatalf("ProcessTurn returned error: %v", err)
	}
	if !res.Fallback {
		t.Error("expected fallback when extraction fails")
	}
}

func completeButPaths() profile.Profile {
	return profile.Profile{
		Name:            "Asha",
		Grade:           "10",
		Board:           "CBSE",
		Interests:       []string{"robotics"},
		Strengths:       []string{"logic"},
		Values:          []string{"impact"},
		WorkEnvironment: "lab",
	}
}

func TestProcessTurn_GateFiresOnce(t *testing.T) {
	facts := &stubFacts{traits: profile.Traits{Goals: "build rovers"}}
	rec := &stubRecommender{recs: []profile.Recommendation{{Path: "Robotics Engineer", Reason: "r"}}}
	o := newTestOrchestrator(facts, rec)
	p := completeButPaths()

	res, _ := o.ProcessTurn(context.Background(), "I want to build rovers", &p)
	if !res.IsComplete || !res.Ready {
		t.Fatalf("IsComplete, Ready = %v, %v; want true, true", res.IsComplete, res.Ready)
	}
	if res.Reply != PromptReport {
		t.Errorf("Reply = %q, want report offer", res.Reply)
	}
	if !reflect.DeepEqual(p.Paths, []string{"Robotics Engineer"}) {
		t.Errorf("Paths = %v", p.Paths)
	}

	for i := 0; i < 3; i++ {
		o.ProcessTurn(context.Background(), "yes please", &p)
	}
	if rec.calls != 1 {
		t.Errorf("recommendation calls = %d, want 1", rec.calls)
	}
}

func TestProcessTurn_GateRetriesAfterFailure(t *testing.T) {
	rec := &stubRecommender{err: errors.New("unavailable")}
	o := newTestOrchestrator(&stubFacts{}, rec)
	p := completeButPaths()
	p.Goals = "build rovers"

	res, _ := o.ProcessTurn(context.Background(), "ok", &p)
	if res.IsComplete {
		t.Fatal("complete despite failed recommendation")
	}
	if !res.Ready {
		t.Error("Ready should be true with every field present")
	}
	if !res.Fallback {
		t.Error("turn with no delta and no paths should fall back")
	}

	rec.err = nil
	rec.recs = []profile.Recommendation{{Path: "Engineer"}}
	res, _ = o.ProcessTurn(context.Background(), "ok", &p)
	if !res.IsComplete {
		t.Error("gate did not retry on the next turn")
	}
	if res.Fallback {
		t.Error("turn that generated paths should not fall back")
	}
	if rec.calls != 2 {
		t.Errorf("calls = %d, want 2", rec.calls)
	}
}

func TestProcessTurn_SnapshotIsolated(t *testing.T) {
	o := newTestOrchestrator(&stubFacts{traits: profile.Traits{Interests: []string{"art"}}}, &stubRecommender{})
	p := profile.Profile{Name: "Asha", Grade: "9", Board: "IB"}

	res, _ := o.ProcessTurn(context.Background(), "I paint", &p)
	p.Interests[0] = "mutated"
	if res.Profile.Interests[0] != "art" {
		t.Errorf("snapshot aliases live profile: %v", res.Profile.Interests)
	}
}
