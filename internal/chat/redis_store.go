package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"invoicing_backend/platform/config"
)

// RedisStore persists sessions in Redis so the dialog survives process
// restarts. Keys expire after the configured session TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(cfg config.SessionStoreConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.GetSessionRedisURL())
	if err != nil {
		return nil, fmt.Errorf("parse session redis url: %w", err)
	}
	return &RedisStore{
		client: redis.NewClient(opts),
		ttl:    cfg.GetSessionTTL(),
	}, nil
}

func sessionKey(id string) string {
	return "chat:session:" + id
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

func (r *RedisStore) Put(ctx context.Context, session *Session) error {
	session.UpdatedAt = time.Now()
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.client.Set(ctx, sessionKey(session.ID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, sessionKey(id)).Err()
}

// Close releases the underlying Redis connection pool.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
