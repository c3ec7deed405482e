package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const claimKeyPrefix = "qrscan:claim:"

// RedisLedger shares claims between instances through SET NX with expiry.
type RedisLedger struct {
	client redis.UniversalClient
	prefix string
}

// RedisOption configures a RedisLedger.
type RedisOption func(*RedisLedger)

// WithKeyPrefix namespaces claim keys.
func WithKeyPrefix(prefix string) RedisOption {
	return func(l *RedisLedger) {
		l.prefix = prefix
	}
}

func NewRedis(client redis.UniversalClient, opts ...RedisOption) *RedisLedger {
	l := &RedisLedger{client: client, prefix: claimKeyPrefix}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *RedisLedger) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.prefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return ok, nil
}

func (l *RedisLedger) Release(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.prefix+key).Err(); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}
