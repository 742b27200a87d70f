package locking

import (
	"context"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "fern:lock:"

// Redis is a distributed locker for multi-process deployments. Locks are
// SET NX keys holding a random owner token; release and extend are guarded
// by Lua scripts so only the owner can touch them, and the TTL bounds how
// long a crashed holder can block others.
type Redis struct {
	rdb    *goredis.Client
	logger ectologger.Logger
}

// NewRedis creates a Redis-backed locker over an existing client
func NewRedis(rdb *goredis.Client, logger ectologger.Logger) *Redis {
	return &Redis{
		rdb:    rdb,
		logger: logger,
	}
}

// TryAcquire attempts to take the key's lock, retrying with exponential
// backoff capped at 500ms until the wait budget runs out.
func (l *Redis) TryAcquire(ctx context.Context, key string, ttl, wait time.Duration) (Lock, error) {
	deadline := time.Now().Add(wait)
	backoff := 10 * time.Millisecond

	for {
		lock, err := l.acquire(ctx, key, ttl)
		if err == nil {
			return lock, nil
		}
		if !errors.Is(err, ErrLockNotAcquired) {
			return nil, err
		}
		if !time.Now().Add(backoff).Before(deadline) {
			return nil, ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
			backoff = backoff * 2
			if backoff > 500*time.Millisecond {
				backoff = 500 * time.Millisecond
			}
		}
	}
}

func (l *Redis) acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	lockKey := redisKeyPrefix + key
	lockValue := uuid.New().String()

	ok, err := l.rdb.SetNX(ctx, lockKey, lockValue, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	l.logger.WithContext(ctx).Debugf("Acquired lock: %s", key)

	return &redisLock{
		rdb:    l.rdb,
		logger: l.logger,
		key:    lockKey,
		value:  lockValue,
	}, nil
}

type redisLock struct {
	rdb    *goredis.Client
	logger ectologger.Logger
	key    string
	value  string
}

// releaseScript deletes the lock only when the caller still owns it.
var releaseScript = goredis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

func (lock *redisLock) Release(ctx context.Context) error {
	result, err := releaseScript.Run(ctx, lock.rdb, []string{lock.key}, lock.value).Int64()
	if err != nil {
		return err
	}
	if result == 0 {
		return ErrLockNotHeld
	}

	lock.logger.WithContext(ctx).Debugf("Released lock: %s", lock.key)
	return nil
}
