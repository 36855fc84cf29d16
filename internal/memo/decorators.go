package memo

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/kalambet/ivy/internal/profile"
)

// FactExtractor mirrors extract.FactExtractor.
type FactExtractor interface {
	ExtractFacts(ctx context.Context, text string) (profile.Traits, error)
}

// Recommender mirrors careers.Recommender.
type Recommender interface {
	RecommendPaths(ctx context.Context, p profile.Snapshot) ([]profile.Recommendation, error)
}

// FactCache memoises unstructured extraction by utterance text.
type FactCache struct {
	next  FactExtractor
	cache *Cache[profile.Traits]
}

// Facts wraps next with a cache of the given size.
func Facts(next FactExtractor, size int) *FactCache {
	return &FactCache{next: next, cache: New[profile.Traits](size)}
}

// ExtractFacts implements FactExtractor.
func (f *FactCache) ExtractFacts(ctx context.Context, text string) (profile.Traits, error) {
	key := Fingerprint("facts", strings.TrimSpace(text))
	return f.cache.Do(ctx, key, func(ctx context.Context) (profile.Traits, error) {
		return f.next.ExtractFacts(ctx, text)
	})
}

// PathCache memoises path recommendations by the content of the fields the
// recommendation depends on.
type PathCache struct {
	next  Recommender
	cache *Cache[[]profile.Recommendation]
}

// Paths wraps next with a cache of the given size.
func Paths(next Recommender, size int) *PathCache {
	return &PathCache{next: next, cache: New[[]profile.Recommendation](size)}
}

// RecommendPaths implements Recommender. Empty results are treated as failures
// and not cached so the next turn asks again.
func (c *PathCache) RecommendPaths(ctx context.Context, p profile.Snapshot) ([]profile.Recommendation, error) {
	key := ProfileKey(p.Profile)
	recs, err := c.cache.Do(ctx, key, func(ctx context.Context) ([]profile.Recommendation, error) {
		recs, err := c.next.RecommendPaths(ctx, p)
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			return nil, errEmpty
		}
		return recs, nil
	})
	if errors.Is(err, errEmpty) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]profile.Recommendation, len(recs))
	copy(out, recs)
	return out, nil
}

var errEmpty = errors.New("empty recommendation")

// ProfileKey fingerprints the required fields of p. List order and case do not
// affect the key.
func ProfileKey(p profile.Profile) string {
	return Fingerprint(
		"paths",
		strings.ToLower(p.Name),
		p.Grade,
		p.Board,
		joinSorted(p.Interests),
		joinSorted(p.Strengths),
		joinSorted(p.Values),
		strings.ToLower(p.WorkEnvironment),
		strings.ToLower(p.Goals),
	)
}

func joinSorted(items []string) string {
	norm := make([]string, 0, len(items))
	for _, s := range items {
		norm = append(norm, strings.ToLower(strings.TrimSpace(s)))
	}
	slices.Sort(norm)
	return strings.Join(norm, "\x1f")
}
