// Package events defines the typed lifecycle events of the vote engine and a
// small in-process bus that delivers them to subscribers.
//
// Producers publish after their own write has committed; delivery happens on
// a background worker pool so a slow subscriber (an AI call, an index push)
// never delays the producer. Subscribers are best-effort: their errors are
// logged and never reach the publisher.
package events

import "time"

// Event is implemented by every lifecycle event.
type Event interface {
	// Topic names the event type; subscribers register against it.
	Topic() string
}

// Topics.
const (
	TopicVoteClosed       = "vote.closed"
	TopicGuideCreated     = "guide.created"
	TopicGuideDeleted     = "guide.deleted"
	TopicGuideBulkChanged = "guide.bulk_changed"
	TopicRevoteResolved   = "revote.resolved"
)

// VoteClosed is emitted exactly once per vote, by whichever caller performed
// the OPEN -> CLOSED transition.
type VoteClosed struct {
	VoteID   string
	OwnerID  string
	Category string
	ClosedAt time.Time
	Trigger  string // "sweep", "response" or "reconcile"
}

func (VoteClosed) Topic() string { return TopicVoteClosed }

// GuideCreated is emitted after a guide row is persisted.
type GuideCreated struct {
	GuideID string
	VoteID  string
}

func (GuideCreated) Topic() string { return TopicGuideCreated }

// GuideDeleted is emitted after a single guide is removed.
type GuideDeleted struct {
	GuideID string
	VoteID  string
}

func (GuideDeleted) Topic() string { return TopicGuideDeleted }

// GuideBulkChanged signals that many guides changed at once and per-item
// propagation is not enough.
type GuideBulkChanged struct {
	Reason string
}

func (GuideBulkChanged) Topic() string { return TopicGuideBulkChanged }

// RevoteResolved is emitted when an admin approves or rejects a request.
type RevoteResolved struct {
	RequestID string
	GuideID   string
	UserID    string
	Status    string
}

func (RevoteResolved) Topic() string { return TopicRevoteResolved }
