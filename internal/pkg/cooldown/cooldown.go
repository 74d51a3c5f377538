package cooldown

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "auction:cooldown:"

// Cooldown allows one action per subject within a window, backed by a redis SETNX key.
type Cooldown struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func New(rdb *redis.Client, scope string, ttl time.Duration) *Cooldown {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cooldown{
		rdb:    rdb,
		ttl:    ttl,
		prefix: keyPrefix + scope + ":",
	}
}

// Acquire claims the window for subject. When the window is already held it returns
// false and the time left until it frees up.
func (c *Cooldown) Acquire(ctx context.Context, subject string) (bool, time.Duration, error) {
	if c == nil || c.rdb == nil || subject == "" {
		return true, 0, nil
	}
	key := c.key(subject)
	ok, err := c.rdb.SetNX(ctx, key, "1", c.ttl).Result()
	if err != nil {
		return false, 0, fmt.Errorf("cooldown setnx: %w", err)
	}
	if ok {
		return true, 0, nil
	}
	left, err := c.rdb.PTTL(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("cooldown pttl: %w", err)
	}
	if left < 0 {
		left = c.ttl
	}
	return false, left, nil
}

// Release drops the window so the next Acquire succeeds immediately.
func (c *Cooldown) Release(ctx context.Context, subject string) error {
	if c == nil || c.rdb == nil || subject == "" {
		return nil
	}
	if err := c.rdb.Del(ctx, c.key(subject)).Err(); err != nil {
		return fmt.Errorf("cooldown del: %w", err)
	}
	return nil
}

func (c *Cooldown) key(subject string) string {
	return c.prefix + hashSubject(subject)
}

func hashSubject(subject string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(subject)))
	return hex.EncodeToString(sum[:])
}
