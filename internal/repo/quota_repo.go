// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the AI usage quota store.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-vote-backend/internal/domain"
)

// ErrQuotaExhausted is returned by ConsumeQuota when no uses remain today.
var ErrQuotaExhausted = errors.New("quota exhausted")

// GetQuota returns the stored quota row for userID, or ErrNotFound.
func GetQuota(ctx context.Context, db *gorm.DB, userID string) (*domain.AIUsageQuota, error) {
	var q domain.AIUsageQuota
	if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&q).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

// ConsumeQuota atomically takes one use from userID's budget for the day
// identified by today (YYYY-MM-DD). Each step is a single conditional
// statement, so concurrent callers can never exceed max:
//  1. same day, under the cap: usage_count + 1
//  2. stale day: reset to 1 and stamp today (lazy daily reset)
//  3. no row: insert with usage_count 1
//
// When none applies, ErrQuotaExhausted is returned.
func ConsumeQuota(ctx context.Context, db *gorm.DB, userID, today string, max int) (*domain.AIUsageQuota, error) {
	if max <= 0 {
		return nil, ErrQuotaExhausted
	}
	db = db.WithContext(ctx)
	now := time.Now().UTC()

	for attempt := 0; attempt < 2; attempt++ {
		res := db.Model(&domain.AIUsageQuota{}).
			Where("user_id = ? AND last_reset_date = ? AND usage_count < ?", userID, today, max).
			Updates(map[string]any{"usage_count": gorm.Expr("usage_count + 1"), "updated_at": now})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			return GetQuota(ctx, db, userID)
		}

		res = db.Model(&domain.AIUsageQuota{}).
			Where("user_id = ? AND last_reset_date <> ?", userID, today).
			Updates(map[string]any{"usage_count": 1, "last_reset_date": today, "updated_at": now})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			return GetQuota(ctx, db, userID)
		}

		q := &domain.AIUsageQuota{UserID: userID, UsageCount: 1, LastResetDate: today, UpdatedAt: now}
		err := createOrDuplicate(db, q)
		if err == nil {
			return q, nil
		}
		if !errors.Is(err, ErrDuplicate) {
			return nil, err
		}
		// Row exists for today and is at the cap, or a concurrent caller
		// inserted it first; one more pass settles which.
	}
	return nil, ErrQuotaExhausted
}

// RefundQuota gives back one use consumed today, never going below zero.
func RefundQuota(ctx context.Context, db *gorm.DB, userID, today string) error {
	return db.WithContext(ctx).
		Model(&domain.AIUsageQuota{}).
		Where("user_id = ? AND last_reset_date = ? AND usage_count > 0", userID, today).
		Updates(map[string]any{"usage_count": gorm.Expr("usage_count - 1"), "updated_at": time.Now().UTC()}).Error
}
