package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/rootedapp/portal/internal/cache"
)

// TokenBlacklist stores revoked credentials in a Redis sorted set scored by
// expiry, so cleanup can drop entries whose tokens would no longer verify anyway.
type TokenBlacklist struct {
	client *redis.Client
}

var _ Revocations = (*TokenBlacklist)(nil)

// NewTokenBlacklist creates a blacklist over the shared Redis client.
func NewTokenBlacklist(client *redis.Client) *TokenBlacklist {
	return &TokenBlacklist{client: client}
}

func blacklistKey() string {
	return cache.Keys("token_blacklist").Build()
}

func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Revoke marks a credential revoked until expiresAt.
func (b *TokenBlacklist) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	member := &redis.Z{
		Score:  float64(expiresAt.Unix()),
		Member: tokenDigest(token),
	}
	return b.client.ZAdd(ctx, blacklistKey(), member).Err()
}

// IsRevoked reports whether the credential is currently revoked.
func (b *TokenBlacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	score, err := b.client.ZScore(ctx, blacklistKey(), tokenDigest(token)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return int64(score) > time.Now().Unix(), nil
}

// Cleanup drops entries whose expiry already passed. Run periodically by the
// maintenance scheduler.
func (b *TokenBlacklist) Cleanup(ctx context.Context) error {
	max := strconv.FormatInt(time.Now().Unix(), 10)
	return b.client.ZRemRangeByScore(ctx, blacklistKey(), "-inf", max).Err()
}
