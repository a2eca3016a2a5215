// Package services – GuideService
//
// This file implements the guide generation trigger and guide administration.
//
// OnVoteClosed is idempotent: it returns early when a guide already exists,
// and the unique index on guides.vote_id settles races between instances or
// between the sweep and the response path. The AI call runs under an explicit
// timeout and is never retried inline; a failure leaves the vote CLOSED
// without a guide, which the next sweep's reconcile step retries.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/go-vote-backend/internal/ai"
	"github.com/tbourn/go-vote-backend/internal/cache"
	"github.com/tbourn/go-vote-backend/internal/domain"
	"github.com/tbourn/go-vote-backend/internal/events"
	"github.com/tbourn/go-vote-backend/internal/observability"
	"github.com/tbourn/go-vote-backend/internal/repo"
	"github.com/tbourn/go-vote-backend/internal/search"
)

// GuideSearcher answers guide queries.
type GuideSearcher interface {
	Search(ctx context.Context, q search.Query) search.Response
}

// GuideService generates, serves and removes guides.
type GuideService struct {
	DB       *gorm.DB
	AI       ai.Generator
	Bus      events.Publisher
	Cache    cache.Cache
	Searcher GuideSearcher

	// Timeout bounds a single AI call; <= 0 uses 20s.
	Timeout time.Duration

	TitleLocale language.Tag
	TitleMaxLen int
}

// HandleVoteClosed adapts OnVoteClosed to the event bus.
func (s *GuideService) HandleVoteClosed(ctx context.Context, ev events.Event) error {
	vc, ok := ev.(events.VoteClosed)
	if !ok {
		return nil
	}
	_, err := s.OnVoteClosed(ctx, vc.VoteID, vc.Category)
	return err
}

// OnVoteClosed generates the guide for a closed vote and reports whether this
// call created it. An existing guide is not an error.
func (s *GuideService) OnVoteClosed(ctx context.Context, voteID, category string) (created bool, err error) {
	tr := otel.Tracer("services/GuideService")
	ctx, span := tr.Start(ctx, "OnVoteClosed",
		trace.WithAttributes(
			attribute.String("vote.id", voteID),
			attribute.String("vote.category", category),
		),
	)
	defer span.End()
	lg := logger(ctx).With().Str("component", "guides").Str("vote_id", voteID).Logger()

	exists, err := repo.GuideExistsForVote(ctx, s.DB, voteID)
	if err != nil {
		return false, err
	}
	if exists {
		observability.GuidesGenerated.WithLabelValues("exists").Inc()
		return false, nil
	}

	vote, err := repo.GetVote(ctx, s.DB, voteID)
	if errors.Is(err, repo.ErrNotFound) {
		return false, ErrVoteNotFound
	}
	if err != nil {
		return false, err
	}
	if vote.IsOpen() {
		return false, ErrInvalidState
	}
	if category == "" {
		category = vote.Category
	}
	counts, err := repo.OptionCounts(ctx, s.DB, voteID)
	if err != nil {
		return false, err
	}
	if len(counts) == 0 {
		return false, newError(ErrInvalidState, "vote has no options")
	}

	in := ai.GuideInput{
		Question: vote.Question,
		Category: category,
		Leading:  counts[0].Content,
		Tallies:  make([]ai.OptionTally, 0, len(counts)),
	}
	for _, c := range counts {
		in.Tallies = append(in.Tallies, ai.OptionTally{Content: c.Content, Count: c.Count})
	}

	title, body, err := s.generate(ctx, in)
	if err != nil {
		observability.GuidesGenerated.WithLabelValues("failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "guide generation failed")
		lg.Error().Err(err).Msg("guide generation failed; vote stays closed without guide")
		return false, ErrAIUnavailable
	}

	g, err := repo.CreateGuide(ctx, s.DB, voteID, category, title, body)
	if errors.Is(err, repo.ErrDuplicate) {
		observability.GuidesGenerated.WithLabelValues("exists").Inc()
		return false, nil
	}
	if err != nil {
		return false, err
	}
	observability.GuidesGenerated.WithLabelValues("created").Inc()
	span.SetAttributes(attribute.String("guide.id", g.ID))
	lg.Info().Str("guide_id", g.ID).Str("leading_option", in.Leading).Msg("guide created")

	if s.Bus != nil {
		s.Bus.Publish(ctx, events.GuideCreated{GuideID: g.ID, VoteID: voteID})
	}
	return true, nil
}

func (s *GuideService) generate(ctx context.Context, in ai.GuideInput) (title, body string, err error) {
	if s.AI == nil {
		return "", "", ai.ErrUnavailable
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := s.AI.Generate(actx, ai.GuidePrompt(in))
	if err != nil {
		return "", "", err
	}
	title, body, err = ai.ParseGuide(raw, 0)
	if err != nil {
		return "", "", err
	}
	return s.formatTitle(title), body, nil
}

// formatTitle applies locale-aware title casing (acronyms are kept) and the
// configured length cap.
func (s *GuideService) formatTitle(title string) string {
	tag := s.TitleLocale
	if tag == language.Und {
		tag = language.English
	}
	title = cases.Title(tag, cases.NoLower).String(strings.TrimSpace(title))
	max := s.TitleMaxLen
	if max <= 0 {
		max = 120
	}
	if utf8.RuneCountInString(title) > max {
		title = strings.TrimSpace(string([]rune(title)[:max]))
	}
	return title
}

// Get returns a guide, serving from cache when possible.
func (s *GuideService) Get(ctx context.Context, id string) (*domain.Guide, error) {
	tr := otel.Tracer("services/GuideService")
	ctx, span := tr.Start(ctx, "Get", trace.WithAttributes(attribute.String("guide.id", id)))
	defer span.End()

	c := s.Cache
	if c == nil {
		c = cache.Noop{}
	}
	var g domain.Guide
	if hit, err := c.GetJSON(ctx, cache.GuideKey(id), &g); err == nil && hit {
		return &g, nil
	}
	got, err := repo.GetGuide(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrGuideNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := c.SetJSON(ctx, cache.GuideKey(id), got); err != nil {
		logger(ctx).Warn().Err(err).Str("guide_id", id).Msg("guide cache write failed")
	}
	return got, nil
}

// Delete removes a single guide (admin only) and publishes GuideDeleted.
func (s *GuideService) Delete(ctx context.Context, id Identity, guideID string) error {
	tr := otel.Tracer("services/GuideService")
	ctx, span := tr.Start(ctx, "Delete", trace.WithAttributes(attribute.String("guide.id", guideID)))
	defer span.End()

	if err := RequireAdmin(id); err != nil {
		return err
	}
	g, err := repo.GetGuide(ctx, s.DB, guideID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrGuideNotFound
	}
	if err != nil {
		return err
	}
	if err := repo.DeleteGuide(ctx, s.DB, guideID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrGuideNotFound
		}
		return err
	}
	if s.Bus != nil {
		s.Bus.Publish(ctx, events.GuideDeleted{GuideID: g.ID, VoteID: g.VoteID})
	}
	return nil
}

// DeleteByCategory removes every guide of category (admin only). A non-zero
// deletion publishes GuideBulkChanged so downstream views are rebuilt.
func (s *GuideService) DeleteByCategory(ctx context.Context, id Identity, category string) (int64, error) {
	tr := otel.Tracer("services/GuideService")
	ctx, span := tr.Start(ctx, "DeleteByCategory", trace.WithAttributes(attribute.String("guide.category", category)))
	defer span.End()

	if err := RequireAdmin(id); err != nil {
		return 0, err
	}
	category = strings.TrimSpace(category)
	if category == "" {
		return 0, ErrEmptyCategory
	}
	n, err := repo.DeleteGuidesByCategory(ctx, s.DB, category)
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int64("guide.deleted", n))
	if n > 0 && s.Bus != nil {
		s.Bus.Publish(ctx, events.GuideBulkChanged{Reason: "category deleted: " + category})
	}
	return n, nil
}

// Search queries the guide index.
func (s *GuideService) Search(ctx context.Context, q search.Query) search.Response {
	tr := otel.Tracer("services/GuideService")
	ctx, span := tr.Start(ctx, "Search",
		trace.WithAttributes(
			attribute.String("query", q.Text),
			attribute.String("guide.category", q.Category),
		),
	)
	defer span.End()

	if s.Searcher == nil {
		return search.Response{Hits: []search.Hit{}, Query: q.Text}
	}
	resp := s.Searcher.Search(ctx, q)
	span.SetAttributes(attribute.String("search.backend", resp.Backend), attribute.Int("search.total", resp.Total))
	return resp
}
