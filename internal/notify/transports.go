// Package notify delivers user notifications over email, push and in-app
// channels. Delivery runs on a dedicated worker pool; see Dispatcher.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-vote-backend/internal/config"
	"github.com/tbourn/go-vote-backend/internal/repo"
)

// ErrNotConfigured is delivered when a channel has no transport.
var ErrNotConfigured = errors.New("notify: channel not configured")

// EmailSender sends one plain-text email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// PushSender sends one push notification to a device token.
type PushSender interface {
	SendPush(ctx context.Context, token, title, body string) error
}

// InAppStore persists an in-app notification.
type InAppStore interface {
	SaveInApp(ctx context.Context, userID, kind, title, body string) error
}

// ----------------------------------------------------------------------------
// SMTP

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender sends email through an SMTP relay.
type SMTPSender struct {
	cfg      config.SMTPConfig
	server   string
	auth     smtp.Auth
	sendMail sendMailFunc
}

// NewSMTPSender returns a sender for cfg. Authentication is only used when a
// username is set.
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPSender{
		cfg:      cfg,
		server:   cfg.Host + ":" + strconv.Itoa(cfg.Port),
		auth:     auth,
		sendMail: smtp.SendMail,
	}
}

// SendEmail sends a plain text email. net/smtp has no context support, so
// ctx is only checked before dialing.
func (s *SMTPSender) SendEmail(ctx context.Context, to, subject, body string) error {
	if !s.cfg.IsConfigured() {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := []byte(fmt.Sprintf(
		"To: %s\r\n"+
			"From: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/plain; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		to,
		s.cfg.From,
		strings.ReplaceAll(subject, "\n", " "),
		body,
	))
	return s.sendMail(s.server, s.auth, s.cfg.From, []string{to}, msg)
}

// ----------------------------------------------------------------------------
// Push

// WebhookPush forwards push notifications to an HTTP gateway as JSON.
type WebhookPush struct {
	URL    string
	Client *http.Client
}

// NewWebhookPush returns a push sender posting to url.
func NewWebhookPush(url string) *WebhookPush {
	return &WebhookPush{URL: url, Client: &http.Client{Timeout: 10 * time.Second}}
}

type pushPayload struct {
	Token string `json:"token"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// SendPush posts one notification; any non-2xx status is an error.
func (w *WebhookPush) SendPush(ctx context.Context, token, title, body string) error {
	if w.URL == "" {
		return ErrNotConfigured
	}
	buf, err := json.Marshal(pushPayload{Token: token, Title: title, Body: body})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("push gateway: status %d", resp.StatusCode)
	}
	return nil
}

// ----------------------------------------------------------------------------
// In-app

// DBInApp stores notifications in the notifications table.
type DBInApp struct {
	DB *gorm.DB
}

func (s DBInApp) SaveInApp(ctx context.Context, userID, kind, title, body string) error {
	_, err := repo.CreateNotification(ctx, s.DB, userID, kind, title, body)
	return err
}
