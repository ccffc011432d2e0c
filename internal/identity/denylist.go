package identity

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const denylistPrefix = "todoapp:revoked:"

// RedisDenylist stores revoked token ids as keys that expire with the token
type RedisDenylist struct {
	redis *redis.Client
}

func NewRedisDenylist(client *redis.Client) *RedisDenylist {
	if client == nil {
		panic("identity.NewRedisDenylist: client is nil")
	}
	return &RedisDenylist{redis: client}
}

func (d *RedisDenylist) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return d.redis.Set(ctx, denylistPrefix+jti, "1", ttl).Err()
}

func (d *RedisDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := d.redis.Exists(ctx, denylistPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
