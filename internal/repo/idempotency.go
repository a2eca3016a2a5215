// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file stores the Idempotency-Key outcomes that make
// response submission safe to retry.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-vote-backend/internal/domain"
)

// SaveIdempotency inserts rec, assigning an ID when missing. A second record
// for the same (user, vote, key) yields ErrDuplicate.
func SaveIdempotency(ctx context.Context, db *gorm.DB, rec *domain.Idempotency) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	return createOrDuplicate(db.WithContext(ctx), rec)
}

// FindIdempotency returns the record for (userID, voteID, key) that is still
// live at now. Blank ids, unknown keys and expired records all give
// ErrNotFound.
func FindIdempotency(ctx context.Context, db *gorm.DB, userID, voteID, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(voteID) == "" || strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where(&domain.Idempotency{UserID: userID, VoteID: voteID, Key: key}).
		Where("expires_at > ?", now.UTC()).
		Take(&rec).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrNotFound
	case err != nil:
		return nil, err
	}
	return &rec, nil
}

// PurgeExpiredIdempotency deletes records expired at now and reports how
// many went.
func PurgeExpiredIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&domain.Idempotency{})
	return res.RowsAffected, res.Error
}
