package domain

import "time"

// Idempotency records the outcome of a response submission keyed by
// (user_id, vote_id, key). A retried request carrying the same key is answered
// with the stored response instead of a duplicate-vote conflict.
type Idempotency struct {
	ID         string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	UserID     string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_vote_key,priority:1"`
	VoteID     string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_vote_key,priority:2"`
	Key        string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_vote_key,priority:3"`
	ResponseID string    `gorm:"type:TEXT NOT NULL"`
	Status     int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt  time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt  time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }

// NewIdempotency records that key produced responseID at now, valid for ttl.
func NewIdempotency(userID, voteID, key, responseID string, status int, now time.Time, ttl time.Duration) *Idempotency {
	now = now.UTC()
	return &Idempotency{
		UserID:     userID,
		VoteID:     voteID,
		Key:        key,
		ResponseID: responseID,
		Status:     status,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
}
