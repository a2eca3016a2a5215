package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestQuotaService_DailyLimitAndLazyReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ai.reply = "Extra cheese\nOlives"

	st, err := f.eng.Quota.Status(ctx, "u1")
	if err != nil || st.UsageCount != 0 || st.Remaining != 3 || !st.CanUseNow {
		t.Fatalf("fresh status = %+v err=%v", st, err)
	}

	for i := 1; i <= 3; i++ {
		opts, st, err := f.eng.Quota.SimilarOptions(ctx, "u1", "Best pizza topping?", []string{"Cheese"}, 2)
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if len(opts) != 2 || st.UsageCount != i {
			t.Fatalf("call %d: opts=%v status=%+v", i, opts, st)
		}
	}
	_, _, err = f.eng.Quota.SimilarOptions(ctx, "u1", "Best pizza topping?", nil, 2)
	if !errors.Is(err, ErrQuotaExhausted) || !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("fourth call: %v", err)
	}
	if f.ai.Calls() != 3 {
		t.Fatalf("rejected call must not reach the AI, calls=%d", f.ai.Calls())
	}
	st, _ = f.eng.Quota.Status(ctx, "u1")
	if st.CanUseNow || st.Remaining != 0 {
		t.Fatalf("exhausted status = %+v", st)
	}

	// Other users are unaffected.
	if _, _, err := f.eng.Quota.SimilarOptions(ctx, "u2", "q", nil, 1); err != nil {
		t.Fatalf("other user: %v", err)
	}

	f.clock.Set(2024, time.January, 6)
	st, _ = f.eng.Quota.Status(ctx, "u1")
	if st.UsageCount != 0 || !st.CanUseNow || st.LastResetDate != "2024-01-06" {
		t.Fatalf("next-day status = %+v", st)
	}
	_, st, err = f.eng.Quota.SimilarOptions(ctx, "u1", "Best pizza topping?", nil, 1)
	if err != nil || st.UsageCount != 1 {
		t.Fatalf("next-day call: status=%+v err=%v", st, err)
	}
}

func TestQuotaService_RefundOnAIFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ai.SetErr(errors.New("boom"))

	_, _, err := f.eng.Quota.SimilarOptions(ctx, "u1", "q", nil, 3)
	if !errors.Is(err, ErrAIUnavailable) {
		t.Fatalf("AI failure: %v", err)
	}
	if strings.Contains(err.Error(), "boom") {
		t.Fatalf("upstream detail leaked into error: %v", err)
	}
	st, _ := f.eng.Quota.Status(ctx, "u1")
	if st.UsageCount != 0 {
		t.Fatalf("failed call must be refunded: %+v", st)
	}
}

func TestQuotaService_AITimeoutIsTransientAndRefunded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ai.Hang()
	f.eng.Quota.Timeout = 50 * time.Millisecond

	start := time.Now()
	_, _, err := f.eng.Quota.SimilarOptions(ctx, "u1", "Best pizza topping?", nil, 2)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("timeout: %v", err)
	}
	if d := time.Since(start); d > 2*time.Second {
		t.Fatalf("call not bounded by timeout, took %v", d)
	}
	if st, _ := f.eng.Quota.Status(ctx, "u1"); st.UsageCount != 0 || !st.CanUseNow {
		t.Fatalf("timed-out call must be refunded: %+v", st)
	}
}

func TestQuotaService_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, _, err := f.eng.Quota.SimilarOptions(ctx, "u1", "  ", nil, 3); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("empty question: %v", err)
	}
	if _, _, err := f.eng.Quota.SimilarOptions(ctx, "", "q", nil, 3); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("anonymous: %v", err)
	}
	if _, err := f.eng.Quota.Status(ctx, ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("anonymous status: %v", err)
	}
	if st, _ := f.eng.Quota.Status(ctx, "u1"); st.UsageCount != 0 {
		t.Fatalf("invalid calls must not consume quota: %+v", st)
	}
}
