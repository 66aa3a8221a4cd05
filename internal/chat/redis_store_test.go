package chat

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		ttl:    time.Hour,
	}
}

func TestRedisStore_RoundTrip(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	session := NewSession("s1")
	session.State = StateCollectItems
	session.Period = "Apr 2025"
	session.LastInvoiceID = 42

	if err := store.Put(ctx, session); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	loaded, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected a session")
	}
	if loaded.State != StateCollectItems || loaded.Period != "Apr 2025" || loaded.LastInvoiceID != 42 {
		t.Fatalf("round trip lost data: %+v", loaded)
	}
}

func TestRedisStore_MissingSessionIsNil(t *testing.T) {
	store := newTestRedisStore(t)

	loaded, err := store.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if loaded != nil {
		t.Fatalf("expected nil for a missing session, got %+v", loaded)
	}
}

func TestRedisStore_Delete(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, NewSession("s1")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	loaded, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if loaded != nil {
		t.Fatal("session should be gone after delete")
	}
}
