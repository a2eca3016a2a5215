package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/tbourn/go-vote-backend/internal/events"
	"github.com/tbourn/go-vote-backend/internal/notify"
	"github.com/tbourn/go-vote-backend/internal/repo"
)

// Notification kinds stored with in-app messages.
const (
	KindVoteClosed     = "vote_closed"
	KindGuideCreated   = "guide_created"
	KindRevoteResolved = "revote_resolved"
)

// Notifier is the dispatcher surface used by lifecycle subscribers.
type Notifier interface {
	NotifyEmail(ctx context.Context, m notify.Message) <-chan error
	NotifyPush(ctx context.Context, m notify.Message) <-chan error
	NotifyInApp(ctx context.Context, m notify.Message) <-chan error
}

// NotificationSubscriber turns lifecycle events into user notifications.
// Handlers only enqueue; they never wait for delivery.
type NotificationSubscriber struct {
	DB       *gorm.DB
	Notifier Notifier
}

// Register subscribes to the events that notify users.
func (n *NotificationSubscriber) Register(bus *events.Bus) {
	bus.Subscribe(events.TopicVoteClosed, "notify.vote_closed", n.onVoteClosed)
	bus.Subscribe(events.TopicGuideCreated, "notify.guide_created", n.onGuideCreated)
	bus.Subscribe(events.TopicRevoteResolved, "notify.revote_resolved", n.onRevoteResolved)
}

func (n *NotificationSubscriber) onVoteClosed(ctx context.Context, ev events.Event) error {
	e, ok := ev.(events.VoteClosed)
	if !ok || e.Trigger == TriggerReconcile {
		return nil
	}
	n.Notifier.NotifyInApp(ctx, notify.Message{
		UserID: e.OwnerID,
		Kind:   KindVoteClosed,
		Title:  "Your vote has closed",
		Body:   fmt.Sprintf("Vote %s closed on %s.", e.VoteID, e.ClosedAt.UTC().Format("2006-01-02")),
	})
	return nil
}

func (n *NotificationSubscriber) onGuideCreated(ctx context.Context, ev events.Event) error {
	e, ok := ev.(events.GuideCreated)
	if !ok {
		return nil
	}
	g, err := repo.GetGuide(ctx, n.DB, e.GuideID)
	if err != nil {
		return err
	}
	v, err := repo.GetVote(ctx, n.DB, e.VoteID)
	if err != nil {
		return err
	}
	m := notify.Message{
		UserID: v.UserID,
		Kind:   KindGuideCreated,
		Title:  "Guide ready: " + g.Title,
		Body:   fmt.Sprintf("The results of %q are summarized in a new guide.", v.Question),
	}
	n.Notifier.NotifyInApp(ctx, m)
	n.Notifier.NotifyEmail(ctx, m)
	n.Notifier.NotifyPush(ctx, m)
	return nil
}

func (n *NotificationSubscriber) onRevoteResolved(ctx context.Context, ev events.Event) error {
	e, ok := ev.(events.RevoteResolved)
	if !ok {
		return nil
	}
	n.Notifier.NotifyInApp(ctx, notify.Message{
		UserID: e.UserID,
		Kind:   KindRevoteResolved,
		Title:  "Revote request " + e.Status,
		Body:   fmt.Sprintf("Your revote request for guide %s was %s.", e.GuideID, e.Status),
	})
	return nil
}
