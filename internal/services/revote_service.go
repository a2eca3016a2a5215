// Package services – RevoteService
//
// Revote requests let a user ask admins to rerun the vote behind a guide.
// Requests are never applied automatically; an admin approves or rejects
// each PENDING request exactly once.
package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-vote-backend/internal/domain"
	"github.com/tbourn/go-vote-backend/internal/events"
	"github.com/tbourn/go-vote-backend/internal/repo"
)

const (
	maxReasonRunes = 64
	maxDetailRunes = 2000
)

// RevoteService manages revote requests.
type RevoteService struct {
	DB  *gorm.DB
	Bus events.Publisher
}

// Create files a revote request by userID against guideID.
func (s *RevoteService) Create(ctx context.Context, userID, guideID, reason string, detail *string) (*domain.RevoteRequest, error) {
	tr := otel.Tracer("services/RevoteService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.String("user.id", userID), attribute.String("guide.id", guideID)),
	)
	defer span.End()

	if err := RequireUser(Identity{UserID: userID}); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrEmptyReason
	}
	if utf8.RuneCountInString(reason) > maxReasonRunes {
		return nil, ErrTooLong
	}
	if detail != nil {
		d := strings.TrimSpace(*detail)
		if utf8.RuneCountInString(d) > maxDetailRunes {
			return nil, ErrTooLong
		}
		if d == "" {
			detail = nil
		} else {
			detail = &d
		}
	}

	if _, err := repo.GetGuide(ctx, s.DB, guideID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrGuideNotFound
		}
		return nil, err
	}
	r, err := repo.CreateRevoteRequest(ctx, s.DB, userID, guideID, reason, detail)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, ErrRevoteExists
	}
	return r, err
}

// List returns requests for guideID (all guides when empty), optionally
// filtered by status. Admin only.
func (s *RevoteService) List(ctx context.Context, id Identity, guideID string, status domain.RevoteStatus) ([]domain.RevoteRequest, error) {
	if err := RequireAdmin(id); err != nil {
		return nil, err
	}
	switch status {
	case "", domain.RevotePending, domain.RevoteApproved, domain.RevoteRejected:
	default:
		return nil, newError(ErrInvalidArgument, "unknown revote status")
	}
	return repo.ListRevoteRequests(ctx, s.DB, guideID, status)
}

// Resolve approves or rejects a PENDING request. Admin only; a request that
// is already resolved yields ErrRevoteResolved.
func (s *RevoteService) Resolve(ctx context.Context, id Identity, requestID string, approve bool) (*domain.RevoteRequest, error) {
	tr := otel.Tracer("services/RevoteService")
	ctx, span := tr.Start(ctx, "Resolve",
		trace.WithAttributes(attribute.String("revote.id", requestID), attribute.Bool("revote.approve", approve)),
	)
	defer span.End()

	if err := RequireAdmin(id); err != nil {
		return nil, err
	}
	if _, err := repo.GetRevoteRequest(ctx, s.DB, requestID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRevoteNotFound
		}
		return nil, err
	}

	status := domain.RevoteRejected
	if approve {
		status = domain.RevoteApproved
	}
	flipped, err := repo.ResolveRevoteRequest(ctx, s.DB, requestID, status)
	if err != nil {
		return nil, err
	}
	if !flipped {
		return nil, ErrRevoteResolved
	}
	r, err := repo.GetRevoteRequest(ctx, s.DB, requestID)
	if err != nil {
		return nil, err
	}
	if s.Bus != nil {
		s.Bus.Publish(ctx, events.RevoteResolved{
			RequestID: r.ID,
			GuideID:   r.GuideID,
			UserID:    r.UserID,
			Status:    string(r.Status),
		})
	}
	return r, nil
}
