package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisSessionPrefix = "patient360:session:"

// RedisSessionStore keeps sessions as JSON values whose Redis TTL matches
// the session expiry, so Redis itself evicts them.
type RedisSessionStore struct {
	client  *redis.Client
	prefix  string
	nowFunc func() time.Time
}

// NewRedisSessionStore connects to the Redis instance at url
// (redis://[user:pass@]host:port/db) and pings it.
func NewRedisSessionStore(ctx context.Context, url string) (*RedisSessionStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisSessionStore{client: client, prefix: defaultRedisSessionPrefix, nowFunc: time.Now}, nil
}

func (s *RedisSessionStore) key(id string) string {
	return s.prefix + id
}

// Put stores sess with a TTL of its own lifetime, measured from IssuedAt
// on the issuer's clock. The store clock is only used when IssuedAt is
// unset.
func (s *RedisSessionStore) Put(ctx context.Context, sess Session) error {
	from := sess.IssuedAt
	if from.IsZero() {
		from = s.nowFunc()
	}
	ttl := sess.ExpiresAt.Sub(from)
	if ttl <= 0 {
		return fmt.Errorf("store session %s: %w", sess.ID, ErrSessionExpired)
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sess.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (Session, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return sess, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *RedisSessionStore) Close() error {
	return s.client.Close()
}
