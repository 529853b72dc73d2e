package cache

import (
	"context"
	"time"
)

const blacklistPrefix = "blacklist:"

// BlacklistToken revokes a token id until its natural expiry.
func (c *Cache) BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error {
	if !c.Enabled() || jti == "" || ttl <= 0 {
		return nil
	}
	return c.rdb.Set(ctx, blacklistPrefix+jti, "1", ttl).Err()
}

func (c *Cache) IsTokenBlacklisted(ctx context.Context, jti string) bool {
	if !c.Enabled() || jti == "" {
		return false
	}
	n, err := c.rdb.Exists(ctx, blacklistPrefix+jti).Result()
	return err == nil && n > 0
}
