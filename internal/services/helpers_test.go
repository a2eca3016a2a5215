package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tbourn/go-vote-backend/internal/config"
	"github.com/tbourn/go-vote-backend/internal/domain"
	"github.com/tbourn/go-vote-backend/internal/events"
	"github.com/tbourn/go-vote-backend/internal/notify"
	"github.com/tbourn/go-vote-backend/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	// Shared-cache memory DBs lock per table; one connection serializes writers.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return db
}

// ----- Clock -----

type stubClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStubClock(y int, m time.Month, d int) *stubClock {
	return &stubClock{t: time.Date(y, m, d, 12, 0, 0, 0, time.UTC)}
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *stubClock) Set(y int, m time.Month, d int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func (c *stubClock) SetTime(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *stubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// ----- Fake AI -----

type fakeGenerator struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	reply   string
	err     error
	block   bool
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.block {
		f.mu.Unlock()
		<-ctx.Done()
		return "", ctx.Err()
	}
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if f.reply != "" {
		return f.reply, nil
	}
	return "TITLE: community picks\n\nMost people chose the leading answer.", nil
}

func (f *fakeGenerator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeGenerator) SetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Hang makes every call wait until its context is done.
func (f *fakeGenerator) Hang() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.block = true
}

func (f *fakeGenerator) LastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

// ----- Fake notifier -----

type sentMessage struct {
	channel string
	msg     notify.Message
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (n *fakeNotifier) record(channel string, m notify.Message) <-chan error {
	n.mu.Lock()
	n.sent = append(n.sent, sentMessage{channel: channel, msg: m})
	n.mu.Unlock()
	ch := make(chan error, 1)
	ch <- nil
	return ch
}

func (n *fakeNotifier) NotifyEmail(_ context.Context, m notify.Message) <-chan error {
	return n.record("email", m)
}

func (n *fakeNotifier) NotifyPush(_ context.Context, m notify.Message) <-chan error {
	return n.record("push", m)
}

func (n *fakeNotifier) NotifyInApp(_ context.Context, m notify.Message) <-chan error {
	return n.record("in_app", m)
}

func (n *fakeNotifier) Sent() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMessage(nil), n.sent...)
}

// ----- Engine fixture -----

type fixture struct {
	db       *gorm.DB
	clock    *stubClock
	ai       *fakeGenerator
	notifier *fakeNotifier
	eng      *Engine
}

// newFixture builds an engine with inline event delivery, an in-memory
// search index and no cache, starting on 2024-01-05.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, newTestDB(t))
}

// newFileDB opens a pooled SQLite file database through repo.Open, so writers
// really contend.
func newFileDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.Open(filepath.Join(t.TempDir(), "votes.db"))
	if err != nil {
		t.Fatalf("repo.Open: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return db
}

func newFixtureOn(t *testing.T, db *gorm.DB) *fixture {
	t.Helper()
	f := &fixture{
		db:       db,
		clock:    newStubClock(2024, time.January, 5),
		ai:       &fakeGenerator{},
		notifier: &fakeNotifier{},
	}
	f.eng = NewEngine(EngineDeps{
		DB:       f.db,
		Bus:      events.NewBus(nil),
		AI:       f.ai,
		Notifier: f.notifier,
		Now:      f.clock.Now,
		Config: config.Config{
			VoteDefaultDays: 7,
			IdempotencyTTL:  time.Hour,
			AI:              config.AIConfig{Timeout: time.Second, DailyQuota: 3},
		},
	})
	return f
}

func (f *fixture) createVote(t *testing.T, in CreateVoteInput) *domain.Vote {
	t.Helper()
	if in.Question == "" {
		in.Question = "Best pizza topping?"
	}
	if in.Category == "" {
		in.Category = "food"
	}
	if len(in.Options) == 0 {
		in.Options = []string{"Cheese", "Pepperoni", "Mushroom"}
	}
	v, err := f.eng.Votes.Create(context.Background(), "owner", in)
	if err != nil {
		t.Fatalf("create vote: %v", err)
	}
	return v
}

func (f *fixture) guideCount(t *testing.T) int64 {
	t.Helper()
	n, err := repo.CountGuides(context.Background(), f.db)
	if err != nil {
		t.Fatalf("CountGuides: %v", err)
	}
	return n
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func intPtr(n int) *int { return &n }
