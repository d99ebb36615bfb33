package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	// M2MTokenKey is the Redis key the cached M2M token lives under
	M2MTokenKey = "checkout:m2m_token"
	// TokenExpiryBuffer refreshes the token this many seconds before it
	// actually expires
	TokenExpiryBuffer = 60
)

type TokenCache struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsValid reports whether the token is still usable, with a refresh buffer
// before the real expiry.
func (tc *TokenCache) IsValid() bool {
	if tc == nil || tc.Token == "" {
		return false
	}
	return time.Now().Add(TokenExpiryBuffer * time.Second).Before(tc.ExpiresAt)
}

type RedisTokenCache struct {
	Client *redis.Client
}

func NewRedisTokenCache(client *redis.Client) *RedisTokenCache {
	return &RedisTokenCache{Client: client}
}

func (c *RedisTokenCache) GetToken(ctx context.Context) (*TokenCache, error) {
	if c.Client == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}

	raw, err := c.Client.Get(ctx, M2MTokenKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cached TokenCache
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return nil, fmt.Errorf("failed to decode cached token: %w", err)
	}
	return &cached, nil
}

func (c *RedisTokenCache) SetToken(ctx context.Context, token string, expiresIn int) error {
	if c.Client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	cached := TokenCache{
		Token:     token,
		ExpiresAt: time.Now().Add(time.Duration(expiresIn) * time.Second),
	}

	raw, err := json.Marshal(cached)
	if err != nil {
		return err
	}

	ttl := time.Duration(expiresIn) * time.Second
	return c.Client.Set(ctx, M2MTokenKey, raw, ttl).Err()
}
