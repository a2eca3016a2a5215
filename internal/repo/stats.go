// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides aggregate queries over vote responses:
// per-option tallies for ranking and lightweight stats for ETag generation.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-vote-backend/internal/domain"
)

// OptionCount is the tally of one option.
type OptionCount struct {
	OptionID string `json:"option_id"`
	Position int    `json:"position"`
	Content  string `json:"content"`
	Count    int64  `json:"count" gorm:"column:total"`
}

// OptionCounts returns every option of voteID with its response count,
// ranked by count DESC then position ASC. The first element is therefore the
// leading option, with ties going to the earliest-created option. Options
// without responses are included with Count 0.
func OptionCounts(ctx context.Context, db *gorm.DB, voteID string) ([]OptionCount, error) {
	var out []OptionCount
	err := db.WithContext(ctx).
		Table("vote_options AS o").
		Select("o.id AS option_id, o.position AS position, o.content AS content, COUNT(r.id) AS total").
		Joins("LEFT JOIN vote_responses r ON r.option_id = o.id").
		Where("o.vote_id = ?", voteID).
		Group("o.id, o.position, o.content").
		Order("total DESC, o.position ASC, o.id ASC").
		Scan(&out).Error
	return out, err
}

// VoteStats returns the number of responses for voteID and the time of the
// latest one (nil when there are none).
func VoteStats(ctx context.Context, db *gorm.DB, voteID string) (count int64, lastAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.VoteResponse{}).Where("vote_id = ?", voteID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Avoid MAX() which SQLite returns as TEXT.
	var row struct {
		CreatedAt time.Time
	}
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}
