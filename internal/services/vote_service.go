// Package services – VoteService
//
// This file implements VoteService, which owns vote creation, the cached vote
// detail view and owner deletion. Creation applies the closure-type defaults:
// DEFAULT votes run for DefaultDays, CUSTOM_DAYS votes need a caller-supplied
// last day, and PARTICIPANT_COUNT votes need a threshold (and may carry a last
// day; otherwise they get the default one).
//
// Observability: all public methods are OpenTelemetry-instrumented.
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-vote-backend/internal/cache"
	"github.com/tbourn/go-vote-backend/internal/domain"
	"github.com/tbourn/go-vote-backend/internal/repo"
)

const (
	maxQuestionRunes = 500
	maxOptionRunes   = 200
	maxOptions       = 20
	maxCategoryRunes = 64
)

// CreateVoteInput carries the caller-supplied fields of a new vote.
type CreateVoteInput struct {
	Question             string
	Category             string
	Options              []string
	ClosureType          domain.ClosureType
	FinishedAt           *time.Time // calendar date; time of day is ignored
	ParticipantThreshold *int
}

// OptionResult is one option with its tally.
type OptionResult struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
	Content  string `json:"content"`
	Count    int64  `json:"count"`
}

// VoteView is the read model served for a single vote.
type VoteView struct {
	ID                   string             `json:"id"`
	UserID               string             `json:"user_id"`
	Question             string             `json:"question"`
	Category             string             `json:"category"`
	Status               domain.VoteStatus  `json:"status"`
	ClosureType          domain.ClosureType `json:"closure_type"`
	FinishedAt           string             `json:"finished_at" example:"2024-01-10"`
	ParticipantThreshold *int               `json:"participant_threshold,omitempty"`
	ClosedAt             *time.Time         `json:"closed_at,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
	Participants         int64              `json:"participants"`
	GuideGenerated       bool               `json:"guide_generated"`
	Options              []OptionResult     `json:"options"`
}

// VoteService coordinates vote persistence and the vote detail view.
type VoteService struct {
	DB    *gorm.DB
	Cache cache.Cache
	Clock Clock

	// DefaultDays is the run length of DEFAULT votes.
	DefaultDays int
}

func (s *VoteService) cache() cache.Cache {
	if s.Cache == nil {
		return cache.Noop{}
	}
	return s.Cache
}

// Create validates in and stores a new OPEN vote owned by userID.
func (s *VoteService) Create(ctx context.Context, userID string, in CreateVoteInput) (*domain.Vote, error) {
	tr := otel.Tracer("services/VoteService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("vote.closure_type", string(in.ClosureType)),
		),
	)
	defer span.End()

	if err := RequireUser(Identity{UserID: userID}); err != nil {
		return nil, err
	}
	v, options, err := s.buildVote(userID, in)
	if err != nil {
		return nil, err
	}
	if err := repo.CreateVote(ctx, s.DB, v, options); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("vote.id", v.ID))
	return v, nil
}

func (s *VoteService) buildVote(userID string, in CreateVoteInput) (*domain.Vote, []string, error) {
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return nil, nil, ErrEmptyQuestion
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		return nil, nil, ErrEmptyCategory
	}
	if utf8.RuneCountInString(question) > maxQuestionRunes || utf8.RuneCountInString(category) > maxCategoryRunes {
		return nil, nil, ErrTooLong
	}

	options := make([]string, 0, len(in.Options))
	seen := make(map[string]struct{}, len(in.Options))
	for _, o := range in.Options {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if utf8.RuneCountInString(o) > maxOptionRunes {
			return nil, nil, ErrTooLong
		}
		key := strings.ToLower(o)
		if _, dup := seen[key]; dup {
			return nil, nil, ErrDuplicateOption
		}
		seen[key] = struct{}{}
		options = append(options, o)
	}
	if len(options) < 2 {
		return nil, nil, ErrTooFewOptions
	}
	if len(options) > maxOptions {
		return nil, nil, ErrTooManyOptions
	}

	ct := in.ClosureType
	if ct == "" {
		ct = domain.ClosureDefault
	}
	if !ct.Valid() {
		return nil, nil, ErrInvalidClosureType
	}

	today := s.Clock.Today()
	days := s.DefaultDays
	if days <= 0 {
		days = 7
	}
	finishedAt := today.AddDate(0, 0, days)

	switch ct {
	case domain.ClosureDefault:
		if in.FinishedAt != nil {
			return nil, nil, ErrFinishedAtNotAllowed
		}
	case domain.ClosureCustomDays:
		if in.FinishedAt == nil {
			return nil, nil, ErrFinishedAtRequired
		}
	}
	if in.FinishedAt != nil {
		finishedAt = domain.Day(*in.FinishedAt)
		if finishedAt.Before(today) {
			return nil, nil, ErrFinishedAtInPast
		}
	}

	var threshold *int
	if ct == domain.ClosureParticipantCount {
		if in.ParticipantThreshold == nil || *in.ParticipantThreshold < 1 {
			return nil, nil, ErrThresholdRequired
		}
		n := *in.ParticipantThreshold
		threshold = &n
	} else if in.ParticipantThreshold != nil {
		return nil, nil, ErrThresholdNotAllowed
	}

	return &domain.Vote{
		UserID:               userID,
		Question:             question,
		Category:             category,
		Status:               domain.VoteOpen,
		ClosureType:          ct,
		FinishedAt:           finishedAt,
		ParticipantThreshold: threshold,
	}, options, nil
}

// Get returns the detail view of a vote, serving from cache when possible.
func (s *VoteService) Get(ctx context.Context, id string) (*VoteView, error) {
	tr := otel.Tracer("services/VoteService")
	ctx, span := tr.Start(ctx, "Get", trace.WithAttributes(attribute.String("vote.id", id)))
	defer span.End()

	var view VoteView
	hit, err := s.cache().GetJSON(ctx, cache.VoteKey(id), &view)
	if err != nil {
		logger(ctx).Warn().Err(err).Str("vote_id", id).Msg("vote cache read failed")
	}
	span.SetAttributes(attribute.Bool("cache.hit", hit))
	if hit {
		return &view, nil
	}

	built, err := s.buildView(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache().SetJSON(ctx, cache.VoteKey(id), built); err != nil {
		logger(ctx).Warn().Err(err).Str("vote_id", id).Msg("vote cache write failed")
	}
	return built, nil
}

func (s *VoteService) buildView(ctx context.Context, id string) (*VoteView, error) {
	v, err := repo.GetVote(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrVoteNotFound
	}
	if err != nil {
		return nil, err
	}
	counts, err := repo.OptionCounts(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	hasGuide, err := repo.GuideExistsForVote(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}

	view := &VoteView{
		ID:                   v.ID,
		UserID:               v.UserID,
		Question:             v.Question,
		Category:             v.Category,
		Status:               v.Status,
		ClosureType:          v.ClosureType,
		FinishedAt:           domain.StoredDay(v.FinishedAt).Format("2006-01-02"),
		ParticipantThreshold: v.ParticipantThreshold,
		ClosedAt:             v.ClosedAt,
		CreatedAt:            v.CreatedAt,
		GuideGenerated:       hasGuide,
		Options:              make([]OptionResult, 0, len(counts)),
	}
	for _, c := range counts {
		view.Participants += c.Count
		view.Options = append(view.Options, OptionResult{ID: c.OptionID, Position: c.Position, Content: c.Content, Count: c.Count})
	}
	sort.Slice(view.Options, func(i, j int) bool { return view.Options[i].Position < view.Options[j].Position })
	return view, nil
}

// ETag returns a weak validator that changes whenever the vote detail view
// can change: a new response, closure or guide generation.
func (s *VoteService) ETag(ctx context.Context, id string) (string, error) {
	v, err := repo.GetVote(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return "", ErrVoteNotFound
	}
	if err != nil {
		return "", err
	}
	count, lastAt, err := repo.VoteStats(ctx, s.DB, id)
	if err != nil {
		return "", err
	}
	hasGuide, err := repo.GuideExistsForVote(ctx, s.DB, id)
	if err != nil {
		return "", err
	}
	var last int64
	if lastAt != nil {
		last = lastAt.UnixNano()
	}
	return fmt.Sprintf(`W/"%s-%s-%d-%d-%t"`, v.ID, v.Status, count, last, hasGuide), nil
}

// Delete removes a vote owned by userID together with its options and
// responses. Existing guides are independent documents and stay.
func (s *VoteService) Delete(ctx context.Context, userID, id string) error {
	tr := otel.Tracer("services/VoteService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(attribute.String("vote.id", id), attribute.String("user.id", userID)),
	)
	defer span.End()

	if err := RequireUser(Identity{UserID: userID}); err != nil {
		return err
	}
	if err := repo.DeleteVote(ctx, s.DB, id, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrVoteNotFound
		}
		return err
	}
	if err := s.cache().Delete(ctx, cache.VoteKey(id)); err != nil {
		logger(ctx).Warn().Err(err).Str("vote_id", id).Msg("vote cache invalidation failed")
	}
	return nil
}
