// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Guide model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-vote-backend/internal/domain"
)

// CreateGuide inserts a guide for voteID. A second guide for the same vote
// fails with ErrDuplicate (unique vote_id).
func CreateGuide(ctx context.Context, db *gorm.DB, voteID, category, title, content string) (*domain.Guide, error) {
	now := time.Now().UTC()
	g := &domain.Guide{
		ID:        uuid.NewString(),
		VoteID:    voteID,
		Category:  category,
		Title:     title,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := createOrDuplicate(db.WithContext(ctx), g); err != nil {
		return nil, err
	}
	return g, nil
}

// GetGuide fetches a guide by ID.
func GetGuide(ctx context.Context, db *gorm.DB, id string) (*domain.Guide, error) {
	var g domain.Guide
	if err := db.WithContext(ctx).Where("id = ?", id).First(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

// GuideExistsForVote reports whether a guide has been generated for voteID.
func GuideExistsForVote(ctx context.Context, db *gorm.DB, voteID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Guide{}).
		Where("vote_id = ?", voteID).
		Count(&n).Error
	return n > 0, err
}

// DeleteGuide removes a guide by ID, returning ErrNotFound if absent.
func DeleteGuide(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("guide_id = ?", id).Delete(&domain.RevoteRequest{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&domain.Guide{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// DeleteGuidesByCategory removes every guide in category and returns how
// many rows were deleted.
func DeleteGuidesByCategory(ctx context.Context, db *gorm.DB, category string) (int64, error) {
	var deleted int64
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub := tx.Model(&domain.Guide{}).Select("id").Where("category = ?", category)
		if err := tx.Where("guide_id IN (?)", sub).Delete(&domain.RevoteRequest{}).Error; err != nil {
			return err
		}
		res := tx.Where("category = ?", category).Delete(&domain.Guide{})
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted, err
}

// CountGuides returns the total number of guides.
func CountGuides(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Guide{}).Count(&total).Error
	return total, err
}

// ListGuidesPage returns guides ordered (created_at ASC, id ASC) for batched
// scans such as a full search reindex.
func ListGuidesPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Guide, error) {
	var out []domain.Guide
	err := db.WithContext(ctx).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
