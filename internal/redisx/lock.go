package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrLockNotAcquired = errors.New("could not acquire distributed lock")

// releaseScript deletes the key only if it still holds our token, so an
// expired lock re-taken by another process is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker is a SET NX PX lock shared by every api and reconciler instance.
type Locker struct {
	RDB        *redis.Client
	TTL        time.Duration
	RetryEvery time.Duration
	MaxRetries int
	Logger     *zap.Logger
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	ttl := l.TTL
	if ttl <= 0 {
		ttl = TTLLock
	}
	every := l.RetryEvery
	if every <= 0 {
		every = 100 * time.Millisecond
	}
	retries := l.MaxRetries
	if retries <= 0 {
		retries = 50
	}

	k := fmt.Sprintf(KeyLock, key)
	token := uuid.NewString()
	for i := 0; i < retries; i++ {
		ok, err := l.RDB.SetNX(ctx, k, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock error: %w", err)
		}
		if ok {
			return func() { l.release(k, token) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(every):
		}
	}
	return nil, ErrLockNotAcquired
}

func (l *Locker) release(key, token string) {
	// context baru: request ctx mungkin sudah dibatalkan
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, l.RDB, []string{key}, token).Err(); err != nil && l.Logger != nil {
		l.Logger.Warn("lock release failed", zap.String("key", key), zap.Error(err))
	}
}
