package token

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisStore_SaveAndLoad(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(rdb)
	ctx := context.Background()

	st := State{
		Token:     "tok-1",
		ExpiresAt: time.Now().Add(30 * time.Minute).UTC().Truncate(time.Second),
	}
	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	if !mr.Exists(redisKey) {
		t.Fatalf("expected key %q to exist", redisKey)
	}
	if ttl := mr.TTL(redisKey); ttl <= 0 {
		t.Fatalf("expected TTL to be set, got %v", ttl)
	}

	got, ok, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !ok {
		t.Fatalf("expected state to be present")
	}
	if got.Token != st.Token || !got.ExpiresAt.Equal(st.ExpiresAt) {
		t.Fatalf("expected %+v, got %+v", st, got)
	}
}

func TestRedisStore_LoadMissingKey(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(rdb)

	_, ok, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if ok {
		t.Fatalf("expected no state for empty redis")
	}
}

func TestRedisStore_LastWriteWins(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(rdb)
	ctx := context.Background()

	// Two racing refreshes both succeed; the second write replaces the
	// first entirely.
	_ = store.Save(ctx, State{Token: "first", ExpiresAt: time.Now().Add(time.Hour)})
	_ = store.Save(ctx, State{Token: "second", ExpiresAt: time.Now().Add(2 * time.Hour)})

	raw, err := mr.Get(redisKey)
	if err != nil {
		t.Fatalf("failed to read key: %v", err)
	}

	var got State
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("failed to unmarshal state: %v", err)
	}
	if got.Token != "second" {
		t.Fatalf("expected last write to win, got %q", got.Token)
	}
}

func TestRedisStore_ExpiredStateGetsMinimumTTL(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(rdb)

	st := State{Token: "old", ExpiresAt: time.Now().Add(-time.Hour)}
	if err := store.Save(context.Background(), st); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if ttl := mr.TTL(redisKey); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("expected bounded minimum TTL, got %v", ttl)
	}
}
