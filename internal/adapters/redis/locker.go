// Package redis holds the Redis-backed uniqueness lock. The lock turns the
// check-then-act duplicate detection into an atomic claim on the
// class|date|email slot; without it the scan-based check stays best-effort.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type Locker struct {
	client *redis.Client
}

func NewLocker(client *redis.Client) *Locker {
	return &Locker{client: client}
}

func (l *Locker) Client() *redis.Client {
	return l.client
}

// Acquire claims the slot key for owner. Returns false when another
// confirmed booking already holds it.
func (l *Locker) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	res := l.client.SetNX(ctx, "uniq:"+key, owner, ttl)
	return res.Val(), res.Err()
}

// Release frees the slot, typically after cancellation so the customer can
// rebook the same class and date.
func (l *Locker) Release(ctx context.Context, key string) error {
	return l.client.Del(ctx, "uniq:"+key).Err()
}
