package dialogue

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kalambet/ivy/internal/logging"
	"github.com/kalambet/ivy/internal/profile"
)

// ErrNilProfile is returned when ProcessTurn is called without a profile.
var ErrNilProfile = errors.New("dialogue: nil profile")

// Extractor finds new facts in an utterance.
type Extractor interface {
	Extract(ctx context.Context, utterance string, p profile.Profile) profile.Facts
}

// PathGate populates career paths once the profile is ready.
type PathGate interface {
	Apply(ctx context.Context, p *profile.Profile) bool
}

// TurnResult is what one processed utterance produces.
type TurnResult struct {
	Reply      string           `json:"reply"`
	Profile    profile.Snapshot `json:"profile"`
	Delta      profile.Facts    `json:"delta"`
	Fallback   bool             `json:"fallback"`
	Ready      bool             `json:"ready"`
	IsComplete bool             `json:"is_complete"`
}

// Orchestrator runs one turn of the intake conversation: extract, merge,
// gate, plan. It holds no per-session state.
type Orchestrator struct {
	extractor Extractor
	gate      PathGate
}

// NewOrchestrator wires an Orchestrator. gate may be nil to disable path generation.
func NewOrchestrator(extractor Extractor, gate PathGate) *Orchestrator {
	return &Orchestrator{extractor: extractor, gate: gate}
}

// ProcessTurn applies utterance to p in place and returns the reply.
//
// A non-empty utterance that adds nothing and does not complete the profile
// gets the fallback prefix. An empty utterance is the opening turn and never
// does. The completion gate is consulted on every turn so a failed
// recommendation is retried on the next one.
func (o *Orchestrator) ProcessTurn(ctx context.Context, utterance string, p *profile.Profile) (TurnResult, error) {
	if p == nil {
		return TurnResult{}, ErrNilProfile
	}

	ctx, span := otel.Tracer("dialogue").Start(ctx, "ProcessTurn")
	defer span.End()

	utterance = strings.TrimSpace(utterance)

	var facts profile.Facts
	if utterance != "" && o.extractor != nil {
		facts = o.extractor.Extract(ctx, utterance, *p)
	}

	updated, delta := profile.Merge(*p, facts)

	generated := false
	if o.gate != nil {
		generated = o.gate.Apply(ctx, &updated)
	}

	changed := !delta.IsEmpty() || generated
	if changed {
		updated.TurnCount++
		*p = updated
	}

	reply := NextPrompt(*p)
	fallback := utterance != "" && !changed
	if fallback {
		reply = FallbackPrefix + reply
	}

	span.SetAttributes(
		attribute.Int("turn.delta_fields", len(delta.Fields())),
		attribute.Bool("turn.fallback", fallback),
		attribute.Bool("turn.paths_generated", generated),
	)
	logging.FromContext(ctx).Debug("turn processed",
		"delta", delta.Fields(),
		"fallback", fallback,
		"paths_generated", generated,
		"turn_count", p.TurnCount,
	)

	return TurnResult{
		Reply:      reply,
		Profile:    p.Snapshot(),
		Delta:      delta,
		Fallback:   fallback,
		Ready:      p.Ready(),
		IsComplete: p.Complete(),
	}, nil
}
