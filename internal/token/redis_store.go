package token

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKey = "smsapp:gateway_token"

// RedisStore shares the token state between processes. The key carries a
// TTL matching the token expiry so a stale token ages out on its own.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Load(ctx context.Context) (State, bool, error) {
	raw, err := s.rdb.Get(ctx, redisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, err
	}

	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return State{}, false, err
	}
	return st, true, nil
}

func (s *RedisStore) Save(ctx context.Context, st State) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}

	ttl := time.Until(st.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Minute
	}
	return s.rdb.Set(ctx, redisKey, b, ttl).Err()
}
