package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Enforce FKs so cascades actually execute.
	db.Exec("PRAGMA foreign_keys=ON;")
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		Vote{}.TableName():          "votes",
		Option{}.TableName():        "vote_options",
		VoteResponse{}.TableName():  "vote_responses",
		Guide{}.TableName():         "guides",
		RevoteRequest{}.TableName(): "revote_requests",
		AIUsageQuota{}.TableName():  "ai_usage_quotas",
		Notification{}.TableName():  "notifications",
		UserContact{}.TableName():   "user_contacts",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestMigrations_UniqueIndexes_AndCascades(t *testing.T) {
	db := newDomainDB(t)

	if err := db.AutoMigrate(&Vote{}, &Option{}, &VoteResponse{}, &Guide{}, &RevoteRequest{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()

	for _, idx := range []struct {
		model any
		name  string
	}{
		{&VoteResponse{}, "ux_response_user_vote"},
		{&Guide{}, "ux_guides_vote"},
		{&RevoteRequest{}, "ux_revote_user_guide"},
		{&Vote{}, "idx_votes_status_finished"},
	} {
		if !m.HasIndex(idx.model, idx.name) {
			t.Fatalf("expected index %s on %T", idx.name, idx.model)
		}
	}

	now := time.Now().UTC()
	v := &Vote{ID: "v1", UserID: "owner", Question: "Q?", Category: "food", Status: VoteOpen,
		ClosureType: ClosureDefault, FinishedAt: Day(now), CreatedAt: now, UpdatedAt: now}
	if err := db.Create(v).Error; err != nil {
		t.Fatalf("insert vote: %v", err)
	}
	o1 := &Option{ID: "o1", VoteID: "v1", Position: 0, Content: "A", CreatedAt: now}
	o2 := &Option{ID: "o2", VoteID: "v1", Position: 1, Content: "B", CreatedAt: now}
	if err := db.Create([]*Option{o1, o2}).Error; err != nil {
		t.Fatalf("insert options: %v", err)
	}

	r := &VoteResponse{ID: "r1", UserID: "u1", VoteID: "v1", OptionID: "o1", CreatedAt: now}
	if err := db.Create(r).Error; err != nil {
		t.Fatalf("insert response: %v", err)
	}
	dup := &VoteResponse{ID: "r2", UserID: "u1", VoteID: "v1", OptionID: "o2", CreatedAt: now}
	if err := db.Create(dup).Error; err == nil {
		t.Fatalf("expected unique violation on (user_id, vote_id)")
	}

	g := &Guide{ID: "g1", VoteID: "v1", Category: "food", Title: "T", Content: "C", CreatedAt: now}
	if err := db.Create(g).Error; err != nil {
		t.Fatalf("insert guide: %v", err)
	}
	if err := db.Create(&Guide{ID: "g2", VoteID: "v1", Category: "food", Title: "T", Content: "C"}).Error; err == nil {
		t.Fatalf("expected unique violation on guides.vote_id")
	}

	// CASCADE: deleting the vote removes its options and responses.
	if err := db.Delete(&Vote{}, "id = ?", "v1").Error; err != nil {
		t.Fatalf("delete vote: %v", err)
	}
	var cnt int64
	if err := db.Model(&Option{}).Where("vote_id = ?", "v1").Count(&cnt).Error; err != nil || cnt != 0 {
		t.Fatalf("expected options to cascade-delete, count=%d err=%v", cnt, err)
	}
	if err := db.Model(&VoteResponse{}).Where("vote_id = ?", "v1").Count(&cnt).Error; err != nil || cnt != 0 {
		t.Fatalf("expected responses to cascade-delete, count=%d err=%v", cnt, err)
	}
}

func TestVote_IsOpen(t *testing.T) {
	if !(&Vote{Status: VoteOpen}).IsOpen() {
		t.Fatalf("OPEN vote should be open")
	}
	if (&Vote{Status: VoteClosed}).IsOpen() {
		t.Fatalf("CLOSED vote should not be open")
	}
}
