// Package domain defines the persistence models for votes, options, responses,
// guides, revote requests and AI usage quotas. These types are mapped with GORM
// and form the core data layer of the vote lifecycle engine.
package domain

import (
	"time"
)

// VoteStatus is the lifecycle state of a vote. The only legal transition is
// OPEN -> CLOSED.
type VoteStatus string

const (
	VoteOpen   VoteStatus = "OPEN"
	VoteClosed VoteStatus = "CLOSED"
)

// ClosureType selects which closure rules apply to a vote.
type ClosureType string

const (
	ClosureDefault          ClosureType = "DEFAULT"
	ClosureCustomDays       ClosureType = "CUSTOM_DAYS"
	ClosureParticipantCount ClosureType = "PARTICIPANT_COUNT"
)

// Valid reports whether t is a known closure type.
func (t ClosureType) Valid() bool {
	switch t {
	case ClosureDefault, ClosureCustomDays, ClosureParticipantCount:
		return true
	}
	return false
}

// Vote is a poll owned by a user.
//
// Fields:
//   - FinishedAt: the last day (midnight, date granularity) on which responses
//     are accepted. The vote is eligible for date-based closure the day after.
//   - ParticipantThreshold: set iff ClosureType is PARTICIPANT_COUNT.
//   - GuideGenerated: derived from the existence of a Guide row; never stored.
type Vote struct {
	ID                   string      `json:"id"          gorm:"type:char(36);primaryKey"`
	UserID               string      `json:"user_id"     gorm:"type:varchar(64);not null;index"`
	Question             string      `json:"question"    gorm:"type:text;not null"`
	Category             string      `json:"category"    gorm:"type:varchar(64);not null;index"`
	Status               VoteStatus  `json:"status"      gorm:"type:varchar(16);not null;default:'OPEN';index:idx_votes_status_finished,priority:1;check:status IN ('OPEN','CLOSED')"`
	ClosureType          ClosureType `json:"closure_type" gorm:"type:varchar(32);not null;default:'DEFAULT'"`
	FinishedAt           time.Time   `json:"finished_at" gorm:"not null;index:idx_votes_status_finished,priority:2"`
	ParticipantThreshold *int        `json:"participant_threshold,omitempty"`
	ClosedAt             *time.Time  `json:"closed_at,omitempty"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`

	GuideGenerated bool `json:"guide_generated" gorm:"-"`

	// Options are cascade-deleted with their vote.
	Options []Option `json:"options,omitempty" gorm:"foreignKey:VoteID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Vote.
func (Vote) TableName() string { return "votes" }

// IsOpen reports whether the vote still accepts state transitions.
func (v *Vote) IsOpen() bool { return v.Status == VoteOpen }

// Option is a selectable answer that belongs to exactly one vote. Position
// preserves creation order and breaks ties when ranking options.
type Option struct {
	ID        string    `json:"id"       gorm:"type:char(36);primaryKey"`
	VoteID    string    `json:"vote_id"  gorm:"type:char(36);not null;index:idx_vote_options,priority:1"`
	Position  int       `json:"position" gorm:"not null;index:idx_vote_options,priority:2"`
	Content   string    `json:"content"  gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Option.
func (Option) TableName() string { return "vote_options" }

// VoteResponse is a single user's answer to a vote. The (user_id, vote_id)
// pair is unique; this index is the dedup contract of response ingestion.
type VoteResponse struct {
	ID        string    `json:"id"        gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"   gorm:"type:varchar(64);not null;uniqueIndex:ux_response_user_vote,priority:1"`
	VoteID    string    `json:"vote_id"   gorm:"type:char(36);not null;index;uniqueIndex:ux_response_user_vote,priority:2"`
	OptionID  string    `json:"option_id" gorm:"type:char(36);not null;index"`
	CreatedAt time.Time `json:"created_at"`

	Vote   Vote   `json:"-" gorm:"foreignKey:VoteID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Option Option `json:"-" gorm:"foreignKey:OptionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for VoteResponse.
func (VoteResponse) TableName() string { return "vote_responses" }

// Guide is the AI-written summary of a closed vote. At most one guide exists
// per vote (unique vote_id), which makes guide generation idempotent across
// instances.
type Guide struct {
	ID        string    `json:"id"       gorm:"type:char(36);primaryKey"`
	VoteID    string    `json:"vote_id"  gorm:"type:char(36);not null;uniqueIndex:ux_guides_vote"`
	Category  string    `json:"category" gorm:"type:varchar(64);not null;index"`
	Title     string    `json:"title"    gorm:"type:varchar(255);not null"`
	Content   string    `json:"content"  gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Guide.
func (Guide) TableName() string { return "guides" }

// RevoteStatus is the review state of a revote request.
type RevoteStatus string

const (
	RevotePending  RevoteStatus = "PENDING"
	RevoteApproved RevoteStatus = "APPROVED"
	RevoteRejected RevoteStatus = "REJECTED"
)

// RevoteRequest records a user's wish to redo voting on a guide's vote. It is
// never applied automatically.
type RevoteRequest struct {
	ID        string       `json:"id"       gorm:"type:char(36);primaryKey"`
	UserID    string       `json:"user_id"  gorm:"type:varchar(64);not null;uniqueIndex:ux_revote_user_guide,priority:1"`
	GuideID   string       `json:"guide_id" gorm:"type:char(36);not null;index;uniqueIndex:ux_revote_user_guide,priority:2"`
	Reason    string       `json:"reason"   gorm:"type:varchar(64);not null"`
	Detail    *string      `json:"detail,omitempty" gorm:"type:text"`
	Status    RevoteStatus `json:"status"   gorm:"type:varchar(16);not null;default:'PENDING';check:status IN ('PENDING','APPROVED','REJECTED')"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// TableName returns the database table name for RevoteRequest.
func (RevoteRequest) TableName() string { return "revote_requests" }

// Notification is an in-app message delivered to a user.
type Notification struct {
	ID        string     `json:"id"      gorm:"type:char(36);primaryKey"`
	UserID    string     `json:"user_id" gorm:"type:varchar(64);not null;index"`
	Kind      string     `json:"kind"    gorm:"type:varchar(32);not null"`
	Title     string     `json:"title"   gorm:"type:varchar(255);not null"`
	Body      string     `json:"body"    gorm:"type:text"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// TableName returns the database table name for Notification.
func (Notification) TableName() string { return "notifications" }

// UserContact holds delivery addresses for out-of-app notifications. Rows are
// written by the identity provider integration; the engine only reads them.
type UserContact struct {
	UserID    string `gorm:"type:varchar(64);primaryKey"`
	Email     string `gorm:"type:varchar(255)"`
	PushToken string `gorm:"type:varchar(255)"`
}

// TableName returns the database table name for UserContact.
func (UserContact) TableName() string { return "user_contacts" }
