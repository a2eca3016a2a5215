package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-vote-backend/internal/domain"
)

func TestNotifications_CreateAndList(t *testing.T) {
	db := newTestDB(t, &domain.Notification{}, &domain.UserContact{})
	ctx := context.Background()

	for _, title := range []string{"one", "two"} {
		if _, err := CreateNotification(ctx, db, "u1", "VOTE_CLOSED", title, "body"); err != nil {
			t.Fatalf("CreateNotification: %v", err)
		}
	}
	if _, err := CreateNotification(ctx, db, "u2", "VOTE_CLOSED", "x", ""); err != nil {
		t.Fatalf("CreateNotification: %v", err)
	}

	out, err := ListNotifications(ctx, db, "u1", 0)
	if err != nil || len(out) != 2 {
		t.Fatalf("ListNotifications: %d %v", len(out), err)
	}
	if out, _ := ListNotifications(ctx, db, "u1", 1); len(out) != 1 {
		t.Fatalf("limit not applied")
	}

	if _, err := GetContact(ctx, db, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	db.Create(&domain.UserContact{UserID: "u1", Email: "u1@example.com"})
	c, err := GetContact(ctx, db, "u1")
	if err != nil || c.Email != "u1@example.com" {
		t.Fatalf("GetContact: %+v %v", c, err)
	}
}
