package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-vote-backend/internal/config"
	"github.com/tbourn/go-vote-backend/internal/domain"
	"github.com/tbourn/go-vote-backend/internal/repo"
	"github.com/tbourn/go-vote-backend/internal/workers"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return db
}

type fakeEmail struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeEmail) SendEmail(_ context.Context, to, subject, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to+"|"+subject)
	return f.err
}

type fakePush struct {
	mu     sync.Mutex
	tokens []string
}

func (f *fakePush) SendPush(_ context.Context, token, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	return nil
}

func TestSMTPSender_BuildsMessage(t *testing.T) {
	cfg := config.SMTPConfig{Host: "smtp.local", Port: 2525, Username: "u", Password: "p", From: "noreply@votes"}
	s := NewSMTPSender(cfg)

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	s.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		if a == nil {
			t.Errorf("auth should be set when username is configured")
		}
		return nil
	}
	if err := s.SendEmail(context.Background(), "a@x", "Guide\nready", "hello"); err != nil {
		t.Fatalf("SendEmail: %v", err)
	}
	if gotAddr != "smtp.local:2525" || gotFrom != "noreply@votes" || len(gotTo) != 1 || gotTo[0] != "a@x" {
		t.Fatalf("envelope unexpected: %s %s %v", gotAddr, gotFrom, gotTo)
	}
	msg := string(gotMsg)
	if !strings.Contains(msg, "Subject: Guide ready\r\n") || !strings.HasSuffix(msg, "\r\n\r\nhello") {
		t.Fatalf("message unexpected: %q", msg)
	}
}

func TestSMTPSender_NotConfiguredAndCanceled(t *testing.T) {
	if err := NewSMTPSender(config.SMTPConfig{}).SendEmail(context.Background(), "a", "s", "b"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("want ErrNotConfigured, got %v", err)
	}
	s := NewSMTPSender(config.SMTPConfig{Host: "h", Port: 25, From: "f"})
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatalf("must not dial with a canceled context")
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.SendEmail(ctx, "a", "s", "b"); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestWebhookPush(t *testing.T) {
	var got pushPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		if got.Token == "bad" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	p := NewWebhookPush(srv.URL)
	if err := p.SendPush(context.Background(), "tok", "T", "B"); err != nil {
		t.Fatalf("SendPush: %v", err)
	}
	if got != (pushPayload{Token: "tok", Title: "T", Body: "B"}) {
		t.Fatalf("payload unexpected: %+v", got)
	}
	if err := p.SendPush(context.Background(), "bad", "T", "B"); err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected status error, got %v", err)
	}
	if err := (&WebhookPush{}).SendPush(context.Background(), "t", "", ""); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("empty URL should be ErrNotConfigured, got %v", err)
	}
}

func TestDispatcher_AllChannels(t *testing.T) {
	db := newTestDB(t)
	if err := db.Create(&domain.UserContact{UserID: "u1", Email: "u1@x", PushToken: "tok-1"}).Error; err != nil {
		t.Fatalf("seed contact: %v", err)
	}
	pool := workers.New("notify-test", 2, 8)
	defer pool.Close(context.Background())

	email, push := &fakeEmail{}, &fakePush{}
	d := NewDispatcher(pool, db, email, push, DBInApp{DB: db})
	m := Message{UserID: "u1", Kind: "guide_created", Title: "Guide ready", Body: "b"}

	for name, ch := range map[string]<-chan error{
		"email":  d.NotifyEmail(context.Background(), m),
		"push":   d.NotifyPush(context.Background(), m),
		"in_app": d.NotifyInApp(context.Background(), m),
	} {
		select {
		case err := <-ch:
			if err != nil {
				t.Fatalf("%s: %v", name, err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("%s: no completion", name)
		}
	}

	if len(email.sent) != 1 || email.sent[0] != "u1@x|Guide ready" {
		t.Fatalf("email not sent: %v", email.sent)
	}
	if len(push.tokens) != 1 || push.tokens[0] != "tok-1" {
		t.Fatalf("push not sent: %v", push.tokens)
	}
	list, err := repo.ListNotifications(context.Background(), db, "u1", 10)
	if err != nil || len(list) != 1 || list[0].Kind != "guide_created" {
		t.Fatalf("in-app not stored: %v %+v", err, list)
	}
}

func TestDispatcher_SkipsMissingContactAndReportsErrors(t *testing.T) {
	db := newTestDB(t)
	email := &fakeEmail{}
	d := NewDispatcher(nil, db, email, nil, nil)

	if err := <-d.NotifyEmail(context.Background(), Message{UserID: "ghost"}); err != nil {
		t.Fatalf("missing contact should be skipped, got %v", err)
	}
	if len(email.sent) != 0 {
		t.Fatalf("nothing should be sent")
	}
	if err := <-d.NotifyPush(context.Background(), Message{UserID: "u"}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("nil push transport: %v", err)
	}
	if err := <-d.NotifyInApp(context.Background(), Message{UserID: "u"}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("nil in-app store: %v", err)
	}

	_ = db.Create(&domain.UserContact{UserID: "u2", Email: "u2@x"}).Error
	email.err = errors.New("relay down")
	if err := <-d.NotifyEmail(context.Background(), Message{UserID: "u2"}); err == nil || err.Error() != "relay down" {
		t.Fatalf("transport error should be delivered, got %v", err)
	}
}

func TestDispatcher_DetachedFromCallerContext(t *testing.T) {
	db := newTestDB(t)
	d := NewDispatcher(nil, db, nil, nil, DBInApp{DB: db})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := <-d.NotifyInApp(ctx, Message{UserID: "u", Kind: "k", Title: "t"}); err != nil {
		t.Fatalf("canceled request context must not abort delivery: %v", err)
	}
}
