// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for VoteResponse.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-vote-backend/internal/domain"
)

// CreateResponse inserts a response. A second response for the same
// (user_id, vote_id) pair fails with ErrDuplicate via the unique index, which
// holds across concurrent writers and server instances.
func CreateResponse(ctx context.Context, db *gorm.DB, userID, voteID, optionID string) (*domain.VoteResponse, error) {
	r := &domain.VoteResponse{
		ID:        uuid.NewString(),
		UserID:    userID,
		VoteID:    voteID,
		OptionID:  optionID,
		CreatedAt: time.Now().UTC(),
	}
	if err := createOrDuplicate(db.WithContext(ctx), r); err != nil {
		return nil, err
	}
	return r, nil
}

// GetResponse fetches a response by ID.
func GetResponse(ctx context.Context, db *gorm.DB, id string) (*domain.VoteResponse, error) {
	var r domain.VoteResponse
	if err := db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// GetUserResponse returns the response userID gave on voteID, or ErrNotFound.
func GetUserResponse(ctx context.Context, db *gorm.DB, userID, voteID string) (*domain.VoteResponse, error) {
	var r domain.VoteResponse
	err := db.WithContext(ctx).
		Where("user_id = ? AND vote_id = ?", userID, voteID).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CountResponses returns the number of distinct participants of a vote.
func CountResponses(ctx context.Context, db *gorm.DB, voteID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.VoteResponse{}).
		Where("vote_id = ?", voteID).
		Count(&total).Error
	return total, err
}
