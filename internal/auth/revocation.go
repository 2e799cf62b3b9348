package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRevocationPrefix = "rbac:revoked:"

// RedisRevocationStore keeps revoked token ids as Redis keys that expire
// together with the token they block.
type RedisRevocationStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisRevocationStore(client redis.UniversalClient, prefix string) *RedisRevocationStore {
	if prefix == "" {
		prefix = defaultRevocationPrefix
	}
	return &RedisRevocationStore{client: client, prefix: prefix, now: time.Now}
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return errors.New("revoke: empty token id")
	}
	ttl := expiresAt.Sub(s.now())
	if expiresAt.IsZero() || ttl <= 0 {
		// already expired tokens are rejected by signature validation
		return nil
	}
	if err := s.client.Set(ctx, s.key(tokenID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke %s: %w", tokenID, err)
	}
	return nil
}

// Claim revokes tokenID only if nobody has yet, using SET NX so concurrent
// callers cannot both win. An expired token cannot be claimed.
func (s *RedisRevocationStore) Claim(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error) {
	if tokenID == "" {
		return false, errors.New("claim: empty token id")
	}
	ttl := expiresAt.Sub(s.now())
	if expiresAt.IsZero() || ttl <= 0 {
		return false, nil
	}
	ok, err := s.client.SetNX(ctx, s.key(tokenID), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", tokenID, err)
	}
	return ok, nil
}

func (s *RedisRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", tokenID, err)
	}
	return n > 0, nil
}

func (s *RedisRevocationStore) key(tokenID string) string {
	return s.prefix + tokenID
}
