// Package services – ResponseService
//
// This file implements response ingestion. Submit validates in a fixed order
// (vote exists, vote open, deadline not passed, option belongs to vote) and
// relies on the (user_id, vote_id) unique index for deduplication, so N
// concurrent identical submissions yield exactly one stored response.
//
// After a successful insert the participant rule is evaluated immediately; a
// vote that reaches its threshold is closed on the request path and
// VoteClosed is published without waiting for the daily sweep.
package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-vote-backend/internal/cache"
	"github.com/tbourn/go-vote-backend/internal/domain"
	"github.com/tbourn/go-vote-backend/internal/events"
	"github.com/tbourn/go-vote-backend/internal/observability"
	"github.com/tbourn/go-vote-backend/internal/repo"
)

// Closure triggers reported on VoteClosed and in metrics.
const (
	TriggerSweep     = "sweep"
	TriggerResponse  = "response"
	TriggerReconcile = "reconcile"
)

// ResponseService ingests vote responses.
type ResponseService struct {
	DB    *gorm.DB
	Cache cache.Cache
	Bus   events.Publisher
	Clock Clock

	// IdempotencyTTL bounds how long a replayed Idempotency-Key is honored.
	IdempotencyTTL time.Duration
}

// Submit records userID's answer optionID on voteID.
func (s *ResponseService) Submit(ctx context.Context, userID, voteID, optionID string) (*domain.VoteResponse, error) {
	tr := otel.Tracer("services/ResponseService")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("vote.id", voteID),
			attribute.String("option.id", optionID),
		),
	)
	defer span.End()

	if err := RequireUser(Identity{UserID: userID}); err != nil {
		return nil, err
	}

	var (
		vote *domain.Vote
		resp *domain.VoteResponse
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		v, err := repo.GetVote(ctx, tx, voteID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrVoteNotFound
		}
		if err != nil {
			return err
		}
		if !v.IsOpen() {
			return ErrVoteClosed
		}
		if domain.DeadlinePassed(v, s.Clock.Today()) {
			return ErrDeadlinePassed
		}
		if !hasOption(v, optionID) {
			return ErrOptionNotInVote
		}
		r, err := repo.CreateResponse(ctx, tx, userID, voteID, optionID)
		if errors.Is(err, repo.ErrDuplicate) {
			return ErrAlreadyVoted
		}
		if err != nil {
			return err
		}
		vote, resp = v, r
		return nil
	})
	if err != nil {
		return nil, err
	}

	if cerr := s.cacheDelete(ctx, cache.VoteKey(voteID)); cerr != nil {
		logger(ctx).Warn().Err(cerr).Str("vote_id", voteID).Msg("vote cache invalidation failed")
	}
	s.closeIfThresholdReached(ctx, vote)
	return resp, nil
}

// SubmitIdempotent is Submit keyed by a client-supplied idempotency key. A
// retry with the same key returns the stored response and replay=true instead
// of ErrAlreadyVoted. An empty key behaves exactly like Submit.
func (s *ResponseService) SubmitIdempotent(ctx context.Context, userID, voteID, optionID, key string) (resp *domain.VoteResponse, replay bool, err error) {
	key = strings.TrimSpace(key)
	if key == "" {
		resp, err = s.Submit(ctx, userID, voteID, optionID)
		return resp, false, err
	}

	if prev, ok := s.replay(ctx, userID, voteID, key); ok {
		return prev, true, nil
	}

	resp, err = s.Submit(ctx, userID, voteID, optionID)
	if errors.Is(err, ErrAlreadyVoted) {
		// A concurrent retry with the same key may have won the insert.
		if prev, ok := s.replay(ctx, userID, voteID, key); ok {
			return prev, true, nil
		}
	}
	if err != nil {
		return nil, false, err
	}

	ttl := s.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	rec := domain.NewIdempotency(userID, voteID, key, resp.ID, http.StatusCreated, s.Clock.now(), ttl)
	if ierr := repo.SaveIdempotency(ctx, s.DB, rec); ierr != nil && !errors.Is(ierr, repo.ErrDuplicate) {
		logger(ctx).Warn().Err(ierr).Str("vote_id", voteID).Msg("idempotency record not stored")
	}
	return resp, false, nil
}

// HasReplay reports whether key already maps to a stored response.
func (s *ResponseService) HasReplay(ctx context.Context, userID, voteID, key string, now time.Time) (bool, error) {
	_, err := repo.FindIdempotency(ctx, s.DB, userID, voteID, key, now)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *ResponseService) replay(ctx context.Context, userID, voteID, key string) (*domain.VoteResponse, bool) {
	rec, err := repo.FindIdempotency(ctx, s.DB, userID, voteID, key, s.Clock.now().UTC())
	if err != nil {
		return nil, false
	}
	prev, err := repo.GetResponse(ctx, s.DB, rec.ResponseID)
	if err != nil {
		return nil, false
	}
	return prev, true
}

// closeIfThresholdReached applies the participant rule right after a
// response. Failures are logged; the sweep catches anything missed here.
func (s *ResponseService) closeIfThresholdReached(ctx context.Context, v *domain.Vote) {
	if v.ClosureType != domain.ClosureParticipantCount {
		return
	}
	n, err := repo.CountResponses(ctx, s.DB, v.ID)
	if err != nil {
		logger(ctx).Error().Err(err).Str("vote_id", v.ID).Msg("participant count failed")
		return
	}
	if !domain.EvaluateClosure(v, s.Clock.Today(), n) {
		return
	}
	now := s.Clock.now().UTC()
	flipped, err := repo.CloseVote(ctx, s.DB, v.ID, now)
	if err != nil {
		logger(ctx).Error().Err(err).Str("vote_id", v.ID).Msg("close on threshold failed")
		return
	}
	if !flipped {
		return
	}
	observability.VotesClosed.WithLabelValues(TriggerResponse).Inc()
	if cerr := s.cacheDelete(ctx, cache.VoteKey(v.ID)); cerr != nil {
		logger(ctx).Warn().Err(cerr).Str("vote_id", v.ID).Msg("vote cache invalidation failed")
	}
	if s.Bus != nil {
		s.Bus.Publish(ctx, events.VoteClosed{
			VoteID:   v.ID,
			OwnerID:  v.UserID,
			Category: v.Category,
			ClosedAt: now,
			Trigger:  TriggerResponse,
		})
	}
}

func (s *ResponseService) cacheDelete(ctx context.Context, keys ...string) error {
	if s.Cache == nil {
		return nil
	}
	return s.Cache.Delete(ctx, keys...)
}

func hasOption(v *domain.Vote, optionID string) bool {
	for _, o := range v.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}
