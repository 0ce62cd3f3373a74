package principals

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hash066/ey-bcm-project-full-repo-sub002/internal/shared"
)

// TokenStore keeps opaque bearer tokens in Redis with a TTL.
type TokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTokenStore constructs a TokenStore.
func NewTokenStore(client *redis.Client, ttl time.Duration) *TokenStore {
	return &TokenStore{client: client, ttl: ttl}
}

func tokenKey(token string) string {
	return "authz:token:" + token
}

// Issue creates a token for the principal.
func (s *TokenStore) Issue(ctx context.Context, principalID int64) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("principals: token entropy: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	if err := s.client.Set(ctx, tokenKey(token), principalID, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("principals: store token: %w", err)
	}
	return token, nil
}

// Resolve returns the principal id for a token, refreshing its TTL.
func (s *TokenStore) Resolve(ctx context.Context, token string) (int64, error) {
	value, err := s.client.Get(ctx, tokenKey(token)).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, fmt.Errorf("principals: token: %w", shared.ErrInvalidCredentials)
		}
		return 0, fmt.Errorf("principals: resolve token: %w", err)
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("principals: token payload: %w", err)
	}
	_ = s.client.Expire(ctx, tokenKey(token), s.ttl).Err()
	return id, nil
}

// Revoke deletes the token.
func (s *TokenStore) Revoke(ctx context.Context, token string) error {
	return s.client.Del(ctx, tokenKey(token)).Err()
}
