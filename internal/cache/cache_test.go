package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

type view struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

func setupTestRedis(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	c, err := NewRedisCache("redis://"+s.Addr(), "cache:", ttl)
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, s
}

func TestNewRedisCache_BadURL(t *testing.T) {
	if _, err := NewRedisCache("://nope", "p:", time.Minute); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestRedisCache_SetGetDelete(t *testing.T) {
	c, _ := setupTestRedis(t, time.Minute)
	ctx := context.Background()

	var got view
	if hit, err := c.GetJSON(ctx, VoteKey("v1"), &got); err != nil || hit {
		t.Fatalf("expected miss, hit=%v err=%v", hit, err)
	}
	if err := c.SetJSON(ctx, VoteKey("v1"), view{ID: "v1", Count: 3}); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	if hit, err := c.GetJSON(ctx, VoteKey("v1"), &got); err != nil || !hit || got.Count != 3 {
		t.Fatalf("expected hit with count 3, got %+v hit=%v err=%v", got, hit, err)
	}
	if err := c.Delete(ctx, VoteKey("v1"), VoteKey("absent")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if hit, _ := c.GetJSON(ctx, VoteKey("v1"), &got); hit {
		t.Fatalf("expected miss after delete")
	}
	if err := c.Delete(ctx); err != nil {
		t.Fatalf("Delete with no keys: %v", err)
	}
}

func TestRedisCache_TTLExpiry(t *testing.T) {
	c, s := setupTestRedis(t, 30*time.Second)
	ctx := context.Background()
	_ = c.SetJSON(ctx, GuideKey("g1"), view{ID: "g1"})

	if ttl := s.TTL("cache:" + GuideKey("g1")); ttl != 30*time.Second {
		t.Fatalf("TTL = %v; want 30s", ttl)
	}
	s.FastForward(31 * time.Second)

	var got view
	if hit, _ := c.GetJSON(ctx, GuideKey("g1"), &got); hit {
		t.Fatalf("entry should have expired")
	}
}

func TestRedisCache_FlushOnlyOwnPrefix(t *testing.T) {
	c, s := setupTestRedis(t, time.Minute)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		_ = c.SetJSON(ctx, VoteKey(id), view{ID: id})
	}
	if err := s.Set("other:key", "keep"); err != nil {
		t.Fatalf("seed foreign key: %v", err)
	}

	n, err := c.Flush(ctx)
	if err != nil || n != 3 {
		t.Fatalf("Flush = %d, %v", n, err)
	}
	if !s.Exists("other:key") {
		t.Fatalf("Flush must not touch foreign keys")
	}
}

func TestRedisCache_DecodeError(t *testing.T) {
	c, s := setupTestRedis(t, time.Minute)
	_ = s.Set("cache:"+VoteKey("bad"), "{not json")
	var got view
	if _, err := c.GetJSON(context.Background(), VoteKey("bad"), &got); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestNoop(t *testing.T) {
	var c Cache = Noop{}
	ctx := context.Background()
	if err := c.SetJSON(ctx, "k", 1); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	var v int
	if hit, err := c.GetJSON(ctx, "k", &v); hit || err != nil {
		t.Fatalf("noop must always miss")
	}
	if n, err := c.Flush(ctx); n != 0 || err != nil {
		t.Fatalf("Flush = %d, %v", n, err)
	}
	_ = c.Delete(ctx, "k")
}

var _ Cache = (*RedisCache)(nil)
