package repo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tbourn/go-vote-backend/internal/domain"
)

func TestCreateResponse_DuplicateUserVote(t *testing.T) {
	db := newMigratedDB(t)
	ctx := context.Background()
	v := seedVote(t, db, &domain.Vote{UserID: "owner", FinishedAt: domain.Day(time.Now())})
	full, _ := GetVote(ctx, db, v.ID)

	r, err := CreateResponse(ctx, db, "u1", v.ID, full.Options[0].ID)
	if err != nil {
		t.Fatalf("CreateResponse: %v", err)
	}
	if r.ID == "" || r.UserID != "u1" || r.VoteID != v.ID {
		t.Fatalf("unexpected response: %+v", r)
	}
	if _, err := CreateResponse(ctx, db, "u1", v.ID, full.Options[1].ID); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := GetUserResponse(ctx, db, "u1", v.ID)
	if err != nil || got.ID != r.ID {
		t.Fatalf("GetUserResponse: %+v %v", got, err)
	}
	if _, err := GetResponse(ctx, db, r.ID); err != nil {
		t.Fatalf("GetResponse: %v", err)
	}
	if n, err := CountResponses(ctx, db, v.ID); err != nil || n != 1 {
		t.Fatalf("CountResponses = %d, %v", n, err)
	}
}

func TestCreateResponse_ConcurrentSameUser_OneWins(t *testing.T) {
	db := newMigratedDB(t)
	// One connection serializes writers the way a real server's row locks
	// would, so errors are only ever unique violations.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	ctx := context.Background()
	v := seedVote(t, db, &domain.Vote{UserID: "owner", FinishedAt: domain.Day(time.Now())})
	full, _ := GetVote(ctx, db, v.ID)

	const n = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, dups int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := CreateResponse(ctx, db, "same-user", v.ID, full.Options[0].ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrDuplicate):
				dups++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if ok != 1 || dups != n-1 {
		t.Fatalf("want 1 success and %d duplicates, got %d/%d", n-1, ok, dups)
	}
}
