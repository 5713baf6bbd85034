package playground

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrAnonymousLimit is returned when an anonymous identity attempts a second
// free run. The client routes this to a sign-up prompt.
var ErrAnonymousLimit = errors.New("anonymous run limit exceeded")

// Limiter decides whether an anonymous identity still has its free run.
type Limiter interface {
	Allow(ctx context.Context, identity string) (bool, error)
}

// RedisLimiter grants exactly one run per identity using SETNX with a TTL.
// The first caller to claim the key wins; everyone after gets rejected until
// the key expires.
type RedisLimiter struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisLimiter(rdb *redis.Client, ttl time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, ttl: ttl}
}

func (l *RedisLimiter) Allow(ctx context.Context, identity string) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, "prpm:anon:"+identity, 1, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check anonymous limit: %w", err)
	}
	return ok, nil
}

// AnonymousIdentity derives a stable identity for an unauthenticated caller
// from its network address and user agent.
func AnonymousIdentity(ip, userAgent string) string {
	sum := sha256.Sum256([]byte(ip + "|" + userAgent))
	return hex.EncodeToString(sum[:])
}
