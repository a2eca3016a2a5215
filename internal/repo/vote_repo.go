// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Vote and
// Option models.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business rules, only persistence and query composition.
//
// Error semantics:
//   - A missing vote yields ErrNotFound (gorm.ErrRecordNotFound).
//   - Other DB errors are propagated unchanged.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-vote-backend/internal/domain"
)

// CreateVote inserts a vote together with its options. IDs and positions are
// assigned here; options keep the order in which they were supplied.
func CreateVote(ctx context.Context, db *gorm.DB, v *domain.Vote, options []string) error {
	now := time.Now().UTC()
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.Status == "" {
		v.Status = domain.VoteOpen
	}
	v.CreatedAt, v.UpdatedAt = now, now
	v.Options = make([]domain.Option, 0, len(options))
	for i, content := range options {
		v.Options = append(v.Options, domain.Option{
			ID:        uuid.NewString(),
			VoteID:    v.ID,
			Position:  i,
			Content:   content,
			CreatedAt: now,
		})
	}
	return db.WithContext(ctx).Create(v).Error
}

// GetVote loads a vote and its options ordered by position.
func GetVote(ctx context.Context, db *gorm.DB, id string) (*domain.Vote, error) {
	var v domain.Vote
	err := db.WithContext(ctx).
		Preload("Options", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		Where("id = ?", id).
		First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetOption fetches a single option by ID.
func GetOption(ctx context.Context, db *gorm.DB, id string) (*domain.Option, error) {
	var o domain.Option
	if err := db.WithContext(ctx).Where("id = ?", id).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// CloseVote performs the OPEN -> CLOSED transition as a single conditional
// update. It reports true only for the caller whose update flipped the row;
// closing an already-closed (or missing) vote returns false without error.
func CloseVote(ctx context.Context, db *gorm.DB, id string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Vote{}).
		Where("id = ? AND status = ?", id, domain.VoteOpen).
		Updates(map[string]any{
			"status":     domain.VoteClosed,
			"closed_at":  now.UTC(),
			"updated_at": now.UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListClosureCandidates returns OPEN votes that may be closeable on today:
// those whose deadline is today or earlier, plus every PARTICIPANT_COUNT vote
// so a threshold met while no response triggered the check is still caught.
func ListClosureCandidates(ctx context.Context, db *gorm.DB, today time.Time) ([]domain.Vote, error) {
	var out []domain.Vote
	err := db.WithContext(ctx).
		Where("status = ?", domain.VoteOpen).
		Where("(finished_at <= ? OR closure_type = ?)", domain.Day(today), domain.ClosureParticipantCount).
		Order("finished_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// ListClosedWithoutGuide returns up to limit CLOSED votes that have no guide
// yet, oldest closure first.
func ListClosedWithoutGuide(ctx context.Context, db *gorm.DB, limit int) ([]domain.Vote, error) {
	var out []domain.Vote
	q := db.WithContext(ctx).
		Where("status = ?", domain.VoteClosed).
		Where("NOT EXISTS (SELECT 1 FROM guides g WHERE g.vote_id = votes.id)").
		Order("closed_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// DeleteVote removes a vote owned by userID. Options and responses cascade.
// Returns ErrNotFound if nothing matched.
func DeleteVote(ctx context.Context, db *gorm.DB, id, userID string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Explicit child deletes keep behavior identical when the driver
		// does not enforce foreign keys.
		if err := tx.Where("vote_id = ?", id).Delete(&domain.VoteResponse{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&domain.Vote{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("vote_id = ?", id).Delete(&domain.Option{}).Error
	})
}
