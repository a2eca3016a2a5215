package services

import (
	"context"
	"testing"
)

func TestNotificationSubscriber_GuideCreatedReachesOwner(t *testing.T) {
	f := newFixture(t)
	v := closedVote(t, f, "food", 0)
	if _, err := f.eng.Guides.OnVoteClosed(context.Background(), v.ID, ""); err != nil {
		t.Fatalf("OnVoteClosed: %v", err)
	}

	channels := map[string]bool{}
	for _, s := range f.notifier.Sent() {
		if s.msg.Kind != KindGuideCreated {
			continue
		}
		if s.msg.UserID != "owner" {
			t.Fatalf("guide notification went to %q", s.msg.UserID)
		}
		channels[s.channel] = true
	}
	for _, c := range []string{"in_app", "email", "push"} {
		if !channels[c] {
			t.Fatalf("missing %s notification; sent=%+v", c, f.notifier.Sent())
		}
	}
}

func TestNotificationSubscriber_VoteClosedSkipsReconcile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.createVote(t, CreateVoteInput{ClosureType: "PARTICIPANT_COUNT", ParticipantThreshold: intPtr(1)})
	if _, err := f.eng.Responses.Submit(ctx, "u1", v.ID, v.Options[0].ID); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	count := func() int {
		n := 0
		for _, s := range f.notifier.Sent() {
			if s.msg.Kind == KindVoteClosed && s.msg.UserID == "owner" {
				n++
			}
		}
		return n
	}
	if count() != 1 {
		t.Fatalf("vote_closed notifications = %d", count())
	}
}
