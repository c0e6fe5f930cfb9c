package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var _ Locker = (*Redis)(nil)

// releaseScript deletes the key only if it still holds our token, so a lock
// that expired and was re-acquired by another instance is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the TTL only while the key still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Redis is a Locker shared by every instance talking to the same Redis.
// Locks expire after TTL so a crashed holder cannot wedge a vehicle; a live
// holder renews its key every TTL/3 until it unlocks.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	renew  time.Duration
	poll   time.Duration
	logger *slog.Logger
}

// NewRedis creates a Redis locker. ttl bounds how long a crashed holder can
// block a vehicle; held locks are renewed, so it need not cover the longest
// mutation.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration, logger *slog.Logger) *Redis {
	if prefix == "" {
		prefix = "vg:lock:"
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		renew:  max(ttl/3, time.Millisecond),
		poll:   25 * time.Millisecond,
		logger: logger,
	}
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := r.prefix + key
	token := uuid.NewString()

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrTimeout, key, ctx.Err())
			}
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		t := time.NewTimer(r.poll)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("%w: %s: %v", ErrTimeout, key, ctx.Err())
		case <-t.C:
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go r.keepAlive(context.WithoutCancel(ctx), key, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			// Release must happen even when the request context is already gone.
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, r.client, []string{redisKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				r.logger.Warn("release lock failed", "key", key, "error", err)
			}
		})
	}, nil
}

// keepAlive pushes the key's expiry forward until stop is closed or the key
// no longer holds token.
func (r *Redis) keepAlive(ctx context.Context, key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	redisKey := r.prefix + key
	ticker := time.NewTicker(r.renew)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		rctx, cancel := context.WithTimeout(ctx, r.renew)
		n, err := renewScript.Run(rctx, r.client, []string{redisKey}, token, r.ttl.Milliseconds()).Int()
		cancel()
		switch {
		case err != nil:
			r.logger.Warn("renew lock failed", "key", key, "error", err)
		case n == 0:
			r.logger.Error("lock lost before release", "key", key)
			return
		}
	}
}
