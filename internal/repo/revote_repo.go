// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for RevoteRequest.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-vote-backend/internal/domain"
)

// CreateRevoteRequest records a PENDING request. A second request by the same
// user for the same guide fails with ErrDuplicate.
func CreateRevoteRequest(ctx context.Context, db *gorm.DB, userID, guideID, reason string, detail *string) (*domain.RevoteRequest, error) {
	now := time.Now().UTC()
	r := &domain.RevoteRequest{
		ID:        uuid.NewString(),
		UserID:    userID,
		GuideID:   guideID,
		Reason:    reason,
		Detail:    detail,
		Status:    domain.RevotePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := createOrDuplicate(db.WithContext(ctx), r); err != nil {
		return nil, err
	}
	return r, nil
}

// GetRevoteRequest fetches a request by ID.
func GetRevoteRequest(ctx context.Context, db *gorm.DB, id string) (*domain.RevoteRequest, error) {
	var r domain.RevoteRequest
	if err := db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// ResolveRevoteRequest moves a PENDING request to status. It reports false
// when the request is missing or no longer PENDING, so decisions are terminal
// even under concurrent reviewers.
func ResolveRevoteRequest(ctx context.Context, db *gorm.DB, id string, status domain.RevoteStatus) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.RevoteRequest{}).
		Where("id = ? AND status = ?", id, domain.RevotePending).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListRevoteRequests returns requests for guideID, newest first. An empty
// guideID or status matches every guide or status.
func ListRevoteRequests(ctx context.Context, db *gorm.DB, guideID string, status domain.RevoteStatus) ([]domain.RevoteRequest, error) {
	var out []domain.RevoteRequest
	q := db.WithContext(ctx)
	if guideID != "" {
		q = q.Where("guide_id = ?", guideID)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Order("created_at DESC, id ASC").Find(&out).Error
	return out, err
}
