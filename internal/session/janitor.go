package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Expirer is what the Janitor needs from the session layer.
// Implemented by Manager.
type Expirer interface {
	Now() time.Time
	Idle(before time.Time, limit int) ([]string, error)
	Delete(ctx context.Context, id string) error
}

const janitorBatch = 100

// Janitor deletes sessions that have been idle longer than the TTL.
type Janitor struct {
	sessions Expirer
	ttl      time.Duration
	poll     time.Duration
	logger   *slog.Logger
}

// NewJanitor creates a Janitor. If pollInterval is <= 0, it defaults to one minute.
func NewJanitor(sessions Expirer, ttl, pollInterval time.Duration) *Janitor {
	if pollInterval <= 0 {
		pollInterval = time.Minute
	}
	return &Janitor{
		sessions: sessions,
		ttl:      ttl,
		poll:     pollInterval,
		logger:   slog.Default(),
	}
}

// Run sweeps until ctx is cancelled. A non-positive TTL disables expiry and
// Run just waits for cancellation.
func (j *Janitor) Run(ctx context.Context) {
	if j.ttl <= 0 {
		<-ctx.Done()
		return
	}
	for {
		if ctx.Err() != nil {
			return
		}

		more, err := j.RunOnce(ctx)
		if err != nil {
			j.logger.Error("session sweep failed", "error", err)
		}
		if more {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(j.poll):
		}
	}
}

// RunOnce deletes one batch of expired sessions. Returns true if the batch was
// full and another sweep should follow immediately.
func (j *Janitor) RunOnce(ctx context.Context) (bool, error) {
	cutoff := j.sessions.Now().Add(-j.ttl)
	ids, err := j.sessions.Idle(cutoff, janitorBatch)
	if err != nil {
		return false, fmt.Errorf("listing idle sessions: %w", err)
	}

	var errs []error
	deleted := 0
	for _, id := range ids {
		if err := j.sessions.Delete(ctx, id); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			errs = append(errs, fmt.Errorf("deleting session %s: %w", id, err))
			continue
		}
		deleted++
	}
	if deleted > 0 {
		j.logger.Info("expired sessions removed", "count", deleted)
	}
	if len(errs) > 0 {
		return false, errors.Join(errs...)
	}
	return len(ids) == janitorBatch, nil
}
