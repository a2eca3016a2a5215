package notify

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-vote-backend/internal/repo"
	"github.com/tbourn/go-vote-backend/internal/workers"
)

// Message is one notification addressed to a user.
type Message struct {
	UserID string
	Kind   string
	Title  string
	Body   string
}

// Dispatcher queues deliveries on its own pool so slow transports never hold
// up guide generation or request handling. Each Notify* call returns a
// channel that receives exactly one value once delivery finished.
//
// A user without a stored email address or push token is skipped: the
// channel receives nil.
type Dispatcher struct {
	pool    *workers.Pool
	db      *gorm.DB
	email   EmailSender
	push    PushSender
	inApp   InAppStore
	timeout time.Duration
	logger  zerolog.Logger
}

// NewDispatcher wires transports onto pool. Nil transports make the matching
// channel report ErrNotConfigured.
func NewDispatcher(pool *workers.Pool, db *gorm.DB, email EmailSender, push PushSender, inApp InAppStore) *Dispatcher {
	return &Dispatcher{
		pool:    pool,
		db:      db,
		email:   email,
		push:    push,
		inApp:   inApp,
		timeout: 15 * time.Second,
		logger:  log.With().Str("component", "notify").Logger(),
	}
}

// NotifyEmail sends m to the user's stored email address.
func (d *Dispatcher) NotifyEmail(ctx context.Context, m Message) <-chan error {
	if d.email == nil {
		return done(ErrNotConfigured)
	}
	return d.submit(ctx, "email", m, func(ctx context.Context) error {
		c, err := d.contact(ctx, m.UserID)
		if err != nil || c.Email == "" {
			return err
		}
		return d.email.SendEmail(ctx, c.Email, m.Title, m.Body)
	})
}

// NotifyPush sends m to the user's stored device token.
func (d *Dispatcher) NotifyPush(ctx context.Context, m Message) <-chan error {
	if d.push == nil {
		return done(ErrNotConfigured)
	}
	return d.submit(ctx, "push", m, func(ctx context.Context) error {
		c, err := d.contact(ctx, m.UserID)
		if err != nil || c.PushToken == "" {
			return err
		}
		return d.push.SendPush(ctx, c.PushToken, m.Title, m.Body)
	})
}

// NotifyInApp stores m as an in-app notification.
func (d *Dispatcher) NotifyInApp(ctx context.Context, m Message) <-chan error {
	if d.inApp == nil {
		return done(ErrNotConfigured)
	}
	return d.submit(ctx, "in_app", m, func(ctx context.Context) error {
		return d.inApp.SaveInApp(ctx, m.UserID, m.Kind, m.Title, m.Body)
	})
}

func (d *Dispatcher) submit(ctx context.Context, channel string, m Message, send func(context.Context) error) <-chan error {
	// Delivery outlives the request that triggered it.
	base := context.WithoutCancel(ctx)
	task := func(context.Context) error {
		tctx, cancel := context.WithTimeout(base, d.timeout)
		defer cancel()
		err := send(tctx)
		if err != nil {
			d.logger.Error().Err(err).
				Str("channel", channel).
				Str("user_id", m.UserID).
				Str("kind", m.Kind).
				Msg("notification delivery failed")
		}
		return err
	}
	if d.pool == nil {
		return done(task(base))
	}
	return d.pool.Submit(task)
}

// contact returns the user's addresses; a missing row yields an empty contact.
func (d *Dispatcher) contact(ctx context.Context, userID string) (contact, error) {
	if d.db == nil {
		return contact{}, nil
	}
	c, err := repo.GetContact(ctx, d.db, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return contact{}, nil
	}
	if err != nil {
		return contact{}, err
	}
	return contact{Email: c.Email, PushToken: c.PushToken}, nil
}

type contact struct {
	Email     string
	PushToken string
}

func done(err error) <-chan error {
	ch := make(chan error, 1)
	ch <- err
	return ch
}
