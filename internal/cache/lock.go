package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	ri "github.com/redis/go-redis/v9"

	"MediCare/storage/redis"
)

// ErrLockNotHeld 锁已过期或被他人持有
var ErrLockNotHeld = errors.New("lock not held")

const lockPrefix = "lock"

// 只有持有者才能释放锁
var unlockScript = ri.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock 基于 SET NX 的分布式锁
type Lock struct {
	key   string
	token string
}

// TryLock 尝试获取锁，已被占用时返回 (nil, nil)
func TryLock(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	l := &Lock{key: redis.Key(lockPrefix, key), token: uuid.NewString()}

	ok, err := redis.Client().SetNX(ctx, l.key, l.token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return l, nil
}

// Unlock 释放锁
func (l *Lock) Unlock(ctx context.Context) error {
	n, err := unlockScript.Run(ctx, redis.Client(), []string{l.key}, l.token).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}
