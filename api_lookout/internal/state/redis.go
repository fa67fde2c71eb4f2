package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "lookout:session:"

// RedisStore keeps each session as one JSON string. SET replaces the value
// atomically.
type RedisStore struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client goredis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: defaultRedisPrefix, ttl: ttl}
}

func (r *RedisStore) key(id string) string { return r.prefix + id }

func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := r.client.Set(ctx, r.key(s.SessionID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.SessionID, err)
	}
	return nil
}

func (r *RedisStore) Load(ctx context.Context, id string) (*Session, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", id, err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", id, err)
	}
	return &s, nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
