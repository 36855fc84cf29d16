package extract

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/ivy/internal/capability"
	"github.com/kalambet/ivy/internal/profile"
)

// DefaultTimeout bounds one unstructured extraction call.
const DefaultTimeout = 3 * time.Second

// FactExtractor pulls the free-form traits out of an utterance. Implementations
// may fail; the Extractor turns any failure into "no facts".
type FactExtractor interface {
	ExtractFacts(ctx context.Context, text string) (profile.Traits, error)
}

// Extractor turns one utterance into the facts it contains that the profile
// does not have yet.
type Extractor struct {
	facts   FactExtractor
	timeout time.Duration
}

// New creates an Extractor. facts may be nil, in which case only the pattern
// rules run.
func New(facts FactExtractor, timeout time.Duration) *Extractor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Extractor{facts: facts, timeout: timeout}
}

// Extract returns the facts found in utterance that p is still missing.
// It never fails: external errors degrade to fewer facts.
func (e *Extractor) Extract(ctx context.Context, utterance string, p profile.Profile) profile.Facts {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return profile.Facts{}
	}

	f := Structured(utterance, p)

	if !NeedsTraits(p) || e.facts == nil {
		return f
	}

	res := capability.Call(ctx, e.timeout, func(ctx context.Context) (profile.Traits, error) {
		return e.facts.ExtractFacts(ctx, utterance)
	})
	if !res.OK() {
		slog.Warn("trait extraction failed", "error", res.Err)
		return f
	}
	applyTraits(&f, res.Value, p)
	return f
}

// NeedsTraits reports whether unstructured extraction should run for p: the
// board is known and at least one free-form trait is missing.
func NeedsTraits(p profile.Profile) bool {
	if p.Board == "" {
		return false
	}
	return !p.Has(profile.FieldInterests) ||
		!p.Has(profile.FieldStrengths) ||
		!p.Has(profile.FieldValues) ||
		!p.Has(profile.FieldWorkEnvironment) ||
		!p.Has(profile.FieldGoals)
}

// applyTraits copies into f the traits p is missing.
func applyTraits(f *profile.Facts, t profile.Traits, p profile.Profile) {
	if !p.Has(profile.FieldInterests) {
		f.Interests = profile.NormalizeList(t.Interests)
	}
	if !p.Has(profile.FieldStrengths) {
		f.Strengths = profile.NormalizeList(t.Strengths)
	}
	if !p.Has(profile.FieldValues) {
		f.Values = profile.NormalizeList(t.Values)
	}
	if !p.Has(profile.FieldWorkEnvironment) {
		f.WorkEnvironment = strings.TrimSpace(t.WorkEnvironment)
	}
	if !p.Has(profile.FieldGoals) {
		f.Goals = strings.TrimSpace(t.Goals)
	}
}
