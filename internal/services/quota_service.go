// Package services – QuotaService
//
// This file implements the per-user daily AI quota. Only user-initiated AI
// calls are gated; guide generation on closure never consumes quota.
//
// Consumption is a conditional update in the store, so concurrent calls by
// one user can never exceed the daily limit. A call whose AI request fails is
// refunded: the user is charged only for suggestions they received.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-vote-backend/internal/ai"
	"github.com/tbourn/go-vote-backend/internal/domain"
	"github.com/tbourn/go-vote-backend/internal/observability"
	"github.com/tbourn/go-vote-backend/internal/repo"
)

// QuotaStatus is a user's AI budget for today.
type QuotaStatus struct {
	Limit         int    `json:"limit"`
	UsageCount    int    `json:"usage_count"`
	Remaining     int    `json:"remaining"`
	CanUseNow     bool   `json:"can_use_now"`
	LastResetDate string `json:"last_reset_date" example:"2024-01-11"`
}

// QuotaService gates user-initiated AI calls.
type QuotaService struct {
	DB    *gorm.DB
	AI    ai.Generator
	Clock Clock

	// Limit is the number of calls per user per day; <= 0 uses
	// domain.DefaultDailyAIQuota.
	Limit int
	// Timeout bounds a single AI call; <= 0 uses 20s.
	Timeout time.Duration
}

func (s *QuotaService) limit() int {
	if s.Limit <= 0 {
		return domain.DefaultDailyAIQuota
	}
	return s.Limit
}

func statusOf(q *domain.AIUsageQuota, today time.Time, limit int) QuotaStatus {
	// A stale row is reset lazily, so today is always the effective reset date.
	return QuotaStatus{
		Limit:         limit,
		UsageCount:    q.EffectiveUsage(today),
		Remaining:     q.Remaining(today, limit),
		CanUseNow:     q.CanUseNow(today, limit),
		LastResetDate: domain.DateKey(today),
	}
}

// Status returns userID's budget as seen today. A missing row or one last
// reset on an earlier day reports zero usage.
func (s *QuotaService) Status(ctx context.Context, userID string) (QuotaStatus, error) {
	tr := otel.Tracer("services/QuotaService")
	ctx, span := tr.Start(ctx, "Status", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	if err := RequireUser(Identity{UserID: userID}); err != nil {
		return QuotaStatus{}, err
	}
	today := s.Clock.Today()
	q, err := repo.GetQuota(ctx, s.DB, userID)
	if errors.Is(err, repo.ErrNotFound) {
		q = nil
	} else if err != nil {
		return QuotaStatus{}, err
	}
	return statusOf(q, today, s.limit()), nil
}

// Consume takes one call from userID's budget, returning ErrQuotaExhausted
// when none remain today.
func (s *QuotaService) Consume(ctx context.Context, userID string) (QuotaStatus, error) {
	today := s.Clock.Today()
	q, err := repo.ConsumeQuota(ctx, s.DB, userID, domain.DateKey(today), s.limit())
	if errors.Is(err, repo.ErrQuotaExhausted) {
		observability.QuotaRejections.Inc()
		return QuotaStatus{}, ErrQuotaExhausted
	}
	if err != nil {
		return QuotaStatus{}, err
	}
	return statusOf(q, today, s.limit()), nil
}

// SimilarOptions asks the AI for up to n more answers to question. It is
// quota-gated; a failed AI call is refunded.
func (s *QuotaService) SimilarOptions(ctx context.Context, userID, question string, existing []string, n int) ([]string, QuotaStatus, error) {
	tr := otel.Tracer("services/QuotaService")
	ctx, span := tr.Start(ctx, "SimilarOptions",
		trace.WithAttributes(attribute.String("user.id", userID), attribute.Int("ai.count", n)),
	)
	defer span.End()

	if err := RequireUser(Identity{UserID: userID}); err != nil {
		return nil, QuotaStatus{}, err
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, QuotaStatus{}, ErrEmptyQuestion
	}
	if n <= 0 {
		n = 3
	}
	if n > maxOptions {
		n = maxOptions
	}

	st, err := s.Consume(ctx, userID)
	if err != nil {
		return nil, QuotaStatus{}, err
	}

	opts, err := s.generate(ctx, question, existing, n)
	if err != nil {
		span.RecordError(err)
		logger(ctx).Warn().Err(err).Str("user_id", userID).Msg("similar options failed, refunding quota")
		today := domain.DateKey(s.Clock.Today())
		if rerr := repo.RefundQuota(context.WithoutCancel(ctx), s.DB, userID, today); rerr != nil {
			logger(ctx).Error().Err(rerr).Str("user_id", userID).Msg("quota refund failed")
		}
		return nil, QuotaStatus{}, ErrAIUnavailable
	}
	return opts, st, nil
}

func (s *QuotaService) generate(ctx context.Context, question string, existing []string, n int) ([]string, error) {
	if s.AI == nil {
		return nil, ai.ErrUnavailable
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := s.AI.Generate(actx, ai.SimilarOptionsPrompt(question, existing, n))
	if err != nil {
		return nil, err
	}
	opts := ai.ParseOptions(raw, existing, n)
	if len(opts) == 0 {
		return nil, ai.ErrEmptyResponse
	}
	return opts, nil
}
