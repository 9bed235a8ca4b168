// Package session is the shared key-value store holding MFA challenges and
// the token revocation list.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aipowereddevteam/auth2026/pkg/database"
	apperrors "github.com/aipowereddevteam/auth2026/pkg/errors"
)

// Store is a key-value store with per-key expiry. Get and Take return
// apperrors.ErrNotFound for absent or expired keys; any other error means the
// store itself is unavailable.
type Store interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	// Take atomically reads and deletes key. Of several concurrent callers
	// at most one observes the value.
	Take(ctx context.Context, key string) (string, error)
}

// RedisStore implements Store on Redis.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

// Set stores value under key for ttl. Entries without an expiry are refused.
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) (err error) {
	if ttl <= 0 {
		return apperrors.InvalidInput("session ttl must be positive")
	}
	ctx, end := database.TraceCommand(ctx, "SET", keyspace(key))
	defer func() { end(err) }()

	if err = s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return apperrors.Unavailable("session store", fmt.Errorf("redis set: %w", err))
	}
	return nil
}

// Get returns the value stored under key.
func (s *RedisStore) Get(ctx context.Context, key string) (val string, err error) {
	ctx, end := database.TraceCommand(ctx, "GET", keyspace(key))
	defer func() { end(ignoreMiss(err)) }()

	val, err = s.client.Get(ctx, key).Result()
	return val, mapErr("get", err)
}

// Delete removes key. Deleting an absent key is not an error.
func (s *RedisStore) Delete(ctx context.Context, key string) (err error) {
	ctx, end := database.TraceCommand(ctx, "DEL", keyspace(key))
	defer func() { end(err) }()

	if err = s.client.Del(ctx, key).Err(); err != nil {
		return apperrors.Unavailable("session store", fmt.Errorf("redis del: %w", err))
	}
	return nil
}

// Take reads and deletes key with GETDEL.
func (s *RedisStore) Take(ctx context.Context, key string) (val string, err error) {
	ctx, end := database.TraceCommand(ctx, "GETDEL", keyspace(key))
	defer func() { end(ignoreMiss(err)) }()

	val, err = s.client.GetDel(ctx, key).Result()
	return val, mapErr("getdel", err)
}

// Ping checks connectivity; used by readiness checks.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func mapErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.Nil):
		return apperrors.ErrNotFound
	default:
		return apperrors.Unavailable("session store", fmt.Errorf("redis %s: %w", op, err))
	}
}

func ignoreMiss(err error) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil
	}
	return err
}

// keyspace returns the prefix before the first colon. Keys can embed bearer
// tokens, which must not reach traces or logs.
func keyspace(key string) string {
	if prefix, _, ok := strings.Cut(key, ":"); ok {
		return prefix
	}
	return "default"
}
