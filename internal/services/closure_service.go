// Package services – ClosureService
//
// This file implements the closure sweep. RunClosureCheck loads closure
// candidates, applies domain.EvaluateClosure and closes each eligible vote
// with one conditional update; only the caller whose update flipped the row
// publishes VoteClosed. Per-vote failures are logged and skipped, so a rerun
// picks up exactly what is left.
//
// The same run re-publishes VoteClosed for votes that were closed earlier but
// still have no guide (an AI outage, a crash between close and publish). The
// guide trigger is idempotent, so this only ever fills gaps.
package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/go-vote-backend/internal/cache"
	"github.com/tbourn/go-vote-backend/internal/domain"
	"github.com/tbourn/go-vote-backend/internal/events"
	"github.com/tbourn/go-vote-backend/internal/observability"
	"github.com/tbourn/go-vote-backend/internal/repo"
)

// ClosureService closes votes whose rules hold.
type ClosureService struct {
	DB    *gorm.DB
	Bus   events.Publisher
	Cache cache.Cache
	Clock Clock

	// ReconcileLimit caps guide re-triggers per run; <= 0 uses 100.
	ReconcileLimit int
	// ReconcileGrace skips votes closed this recently, whose guide is most
	// likely still being generated; <= 0 uses 10 minutes.
	ReconcileGrace time.Duration
}

// RunClosureCheck performs one sweep and returns how many votes it closed.
// The error is non-nil only when candidates could not be loaded at all.
func (s *ClosureService) RunClosureCheck(ctx context.Context) (int, error) {
	tr := otel.Tracer("services/ClosureService")
	ctx, span := tr.Start(ctx, "RunClosureCheck")
	defer span.End()

	start := time.Now()
	defer func() { observability.SweepDuration.Observe(time.Since(start).Seconds()) }()

	lg := logger(ctx).With().Str("component", "closure").Logger()
	today := s.Clock.Today()
	runAt := s.Clock.now().UTC()

	candidates, err := repo.ListClosureCandidates(ctx, s.DB, today)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	closed := 0
	for i := range candidates {
		v := &candidates[i]
		var participants int64
		if v.ClosureType == domain.ClosureParticipantCount {
			if participants, err = repo.CountResponses(ctx, s.DB, v.ID); err != nil {
				lg.Error().Err(err).Str("vote_id", v.ID).Msg("participant count failed, skipping")
				continue
			}
		}
		if !domain.EvaluateClosure(v, today, participants) {
			continue
		}
		flipped, err := repo.CloseVote(ctx, s.DB, v.ID, runAt)
		if err != nil {
			lg.Error().Err(err).Str("vote_id", v.ID).Msg("close failed, skipping")
			continue
		}
		if !flipped {
			continue
		}
		closed++
		observability.VotesClosed.WithLabelValues(TriggerSweep).Inc()
		s.publish(ctx, events.VoteClosed{
			VoteID:   v.ID,
			OwnerID:  v.UserID,
			Category: v.Category,
			ClosedAt: runAt,
			Trigger:  TriggerSweep,
		})
	}

	retriggered := s.reconcile(ctx, runAt)

	if closed > 0 && s.Cache != nil {
		if n, err := s.Cache.Flush(ctx); err != nil {
			lg.Warn().Err(err).Msg("cache flush failed")
		} else {
			lg.Debug().Int64("keys", n).Msg("cache flushed")
		}
	}
	if n, err := repo.PurgeExpiredIdempotency(ctx, s.DB, runAt); err != nil {
		lg.Warn().Err(err).Msg("idempotency purge failed")
	} else if n > 0 {
		lg.Debug().Int64("rows", n).Msg("expired idempotency records purged")
	}

	span.SetAttributes(
		attribute.Int("closure.candidates", len(candidates)),
		attribute.Int("closure.closed", closed),
		attribute.Int("closure.retriggered", retriggered),
	)
	lg.Info().
		Str("today", domain.DateKey(today)).
		Int("candidates", len(candidates)).
		Int("closed", closed).
		Int("retriggered", retriggered).
		Msg("closure sweep finished")
	return closed, nil
}

func (s *ClosureService) reconcile(ctx context.Context, runAt time.Time) int {
	limit := s.ReconcileLimit
	if limit <= 0 {
		limit = 100
	}
	grace := s.ReconcileGrace
	if grace <= 0 {
		grace = 10 * time.Minute
	}
	cutoff := runAt.Add(-grace)

	votes, err := repo.ListClosedWithoutGuide(ctx, s.DB, limit)
	if err != nil {
		logger(ctx).Error().Err(err).Msg("reconcile listing failed")
		return 0
	}
	n := 0
	for _, v := range votes {
		if v.ClosedAt != nil && v.ClosedAt.After(cutoff) {
			continue
		}
		n++
		closedAt := runAt
		if v.ClosedAt != nil {
			closedAt = *v.ClosedAt
		}
		s.publish(ctx, events.VoteClosed{
			VoteID:   v.ID,
			OwnerID:  v.UserID,
			Category: v.Category,
			ClosedAt: closedAt,
			Trigger:  TriggerReconcile,
		})
	}
	return n
}

func (s *ClosureService) publish(ctx context.Context, ev events.Event) {
	if s.Bus != nil {
		s.Bus.Publish(ctx, ev)
	}
}
