package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "testbot"), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)

	missing, err := store.Get(ctx, "scope", "chat1")
	if err != nil || missing != nil {
		t.Fatalf("expected (nil, nil) for unknown dialog, got %+v, %v", missing, err)
	}

	s := New("chat1")
	s.LeadID = 101
	s.Mode = ModeManual
	s.AppendTurn(RoleClient, "нужен номер 4N0907998", 5, "OEM", time.Now(), 0)
	if err := store.Put(ctx, "scope", "chat1", s); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	if !mr.Exists("testbot:session:scope::chat1") {
		t.Fatalf("expected prefixed session key in redis")
	}

	loaded, err := store.Get(ctx, "scope", "chat1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if loaded.LeadID != 101 || loaded.Mode != ModeManual || len(loaded.History) != 1 {
		t.Fatalf("unexpected loaded session: %+v", loaded)
	}
	if loaded.LastProcessedMessageID != 0 {
		t.Fatalf("expected untouched message tracking, got %d", loaded.LastProcessedMessageID)
	}
}

func TestRedisStoreUnavailableBackend(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)
	mr.Close()

	if _, err := store.Get(ctx, "scope", "chat1"); err == nil {
		t.Fatalf("expected error when backend is down")
	}
	if err := store.Put(ctx, "scope", "chat1", New("chat1")); err == nil {
		t.Fatalf("expected error when backend is down")
	}
}
