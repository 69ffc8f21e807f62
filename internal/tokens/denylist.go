package tokens

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultDenylistPrefix = "taskhub:refresh"

// Denylist remembers consumed refresh tokens until they would have expired.
type Denylist interface {
	// Consume records jti and reports whether this call was the first to do so.
	Consume(ctx context.Context, jti string, ttl time.Duration) (bool, error)
}

// RedisDenylist stores consumed token ids as expiring keys.
type RedisDenylist struct {
	client *redis.Client
	prefix string
}

func NewRedisDenylist(client *redis.Client, keyPrefix string) *RedisDenylist {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultDenylistPrefix
	}
	return &RedisDenylist{client: client, prefix: prefix}
}

func (d *RedisDenylist) Consume(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return false, errors.New("jti must not be empty")
	}
	if ttl <= 0 {
		// Already expired; parsing would have rejected it anyway.
		return false, nil
	}
	first, err := d.client.SetNX(ctx, fmt.Sprintf("%s:%s", d.prefix, jti), "used", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx refresh jti: %w", err)
	}
	return first, nil
}

// NopDenylist accepts every token. Refresh tokens stay reusable until expiry.
type NopDenylist struct{}

func (NopDenylist) Consume(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}
