package careers

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/ivy/internal/capability"
	"github.com/kalambet/ivy/internal/profile"
)

// DefaultTimeout bounds one recommendation call.
const DefaultTimeout = 20 * time.Second

// Recommender suggests career paths for a completed profile.
type Recommender interface {
	RecommendPaths(ctx context.Context, p profile.Snapshot) ([]profile.Recommendation, error)
}

// Gate decides when a profile has enough information for recommendations and
// fetches them at most once per profile.
type Gate struct {
	rec     Recommender
	timeout time.Duration
}

// NewGate creates a Gate over rec.
func NewGate(rec Recommender, timeout time.Duration) *Gate {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gate{rec: rec, timeout: timeout}
}

// MaybeGeneratePaths returns recommendations for p when every required field
// is present and no paths exist yet. Any failure yields nil, leaving the gate
// pending so the next call tries again.
func (g *Gate) MaybeGeneratePaths(ctx context.Context, p profile.Profile) []profile.Recommendation {
	if g == nil || g.rec == nil || !p.Ready() || len(p.Paths) > 0 {
		return nil
	}

	snap := p.Snapshot()
	res := capability.Call(ctx, g.timeout, func(ctx context.Context) ([]profile.Recommendation, error) {
		return g.rec.RecommendPaths(ctx, snap)
	})
	if !res.OK() {
		slog.Warn("path recommendation failed", "error", res.Err)
		return nil
	}
	return clean(res.Value)
}

// Apply runs the gate against p and stores a successful result in it. It
// reports whether paths were written.
func (g *Gate) Apply(ctx context.Context, p *profile.Profile) bool {
	if p == nil {
		return false
	}
	recs := g.MaybeGeneratePaths(ctx, *p)
	if len(recs) == 0 {
		return false
	}
	p.Recommendations = recs
	p.Paths = make([]string, len(recs))
	for i, r := range recs {
		p.Paths[i] = r.Path
	}
	return true
}

// clean drops blank paths and repeated paths, keeping the first occurrence.
func clean(recs []profile.Recommendation) []profile.Recommendation {
	var out []profile.Recommendation
	seen := make(map[string]bool, len(recs))
	for _, r := range recs {
		r.Path = strings.TrimSpace(r.Path)
		r.Reason = strings.TrimSpace(r.Reason)
		key := strings.ToLower(r.Path)
		if r.Path == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}
