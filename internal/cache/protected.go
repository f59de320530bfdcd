package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	ri "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"MediCare/pkg/breaker"
	"MediCare/pkg/logger"
	"MediCare/storage/redis"
)

const (
	// 空值缓存标识，防止缓存穿透
	emptyValueFlag = "__EMPTY__"
	emptyValueTTL  = 2 * time.Minute
	// TTL 随机抖动上限，防止同时失效
	ttlJitterMax = 30 * time.Second
)

// redisBreaker Redis 连续失败 5 次后熔断 30 秒，期间缓存读写直接降级
var redisBreaker = breaker.New("redis_cache", 5, 30*time.Second)

// Store JSON 缓存的读写接口，ProtectedCache 为默认实现
type Store interface {
	Key(key string) string
	Set(ctx context.Context, key string, value interface{}) error
	Get(ctx context.Context, key string, dest interface{}) (hit bool, empty bool, err error)
	Delete(ctx context.Context, keys ...string) error
}

// ProtectedCache 带空值保护、TTL 抖动和熔断的 JSON 缓存
type ProtectedCache struct {
	keyPrefix string
	ttl       time.Duration
	emptyTTL  time.Duration
}

func NewProtectedCache(keyPrefix string, ttl time.Duration) *ProtectedCache {
	return &ProtectedCache{
		keyPrefix: keyPrefix,
		ttl:       ttl,
		emptyTTL:  emptyValueTTL,
	}
}

// Key 返回完整的 Redis 键
func (pc *ProtectedCache) Key(key string) string {
	return redis.Key(pc.keyPrefix, key)
}

// Set value 为 nil 时写入空值标识
func (pc *ProtectedCache) Set(ctx context.Context, key string, value interface{}) error {
	data, ttl := emptyValueFlag, pc.emptyTTL
	if value != nil {
		b, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal cache value: %w", err)
		}
		data, ttl = string(b), pc.ttl+jitter()
	}

	return redisBreaker.Call(ctx, func(ctx context.Context) error {
		return redis.Client().Set(ctx, pc.Key(key), data, ttl).Err()
	})
}

// Get 返回 (命中, 是否为空值, 错误)，命中正常值时反序列化到 dest
func (pc *ProtectedCache) Get(ctx context.Context, key string, dest interface{}) (hit bool, empty bool, err error) {
	data, err := breaker.Do(ctx, redisBreaker, func(ctx context.Context) (string, error) {
		v, err := redis.Client().Get(ctx, pc.Key(key)).Result()
		if errors.Is(err, ri.Nil) {
			return "", nil
		}
		return v, err
	})
	if err != nil {
		return false, false, fmt.Errorf("failed to get cache: %w", err)
	}

	switch data {
	case "":
		return false, false, nil
	case emptyValueFlag:
		return true, true, nil
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, false, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return true, false, nil
}

// Delete 删除若干键
func (pc *ProtectedCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = pc.Key(k)
	}
	return redisBreaker.Call(ctx, func(ctx context.Context) error {
		return redis.Client().Del(ctx, full...).Err()
	})
}

// GetOrLoad 先读缓存，未命中时调用 load 并回填。
// 缓存故障只记录日志，不影响 load 的结果。
func GetOrLoad[T any](ctx context.Context, pc Store, key string, load func(ctx context.Context) (*T, error)) (*T, error) {
	var cached T
	hit, empty, err := pc.Get(ctx, key, &cached)
	if err != nil {
		logger.Logger.Warn("Cache read failed, falling back to loader",
			zap.String("key", pc.Key(key)),
			zap.Error(err),
		)
	} else if hit {
		if empty {
			return nil, nil
		}
		return &cached, nil
	}

	value, err := load(ctx)
	if err != nil {
		return nil, err
	}

	var toStore interface{}
	if value != nil {
		toStore = value
	}
	if err := pc.Set(ctx, key, toStore); err != nil {
		logger.Logger.Warn("Cache write failed",
			zap.String("key", pc.Key(key)),
			zap.Error(err),
		)
	}
	return value, nil
}

func jitter() time.Duration {
	return time.Duration(rand.Int63n(int64(ttlJitterMax)))
}

// 预定义的缓存实例
var (
	MedicationsCache = NewProtectedCache("meds", 10*time.Minute)
	AdherenceCache   = NewProtectedCache("adherence", 5*time.Minute)
	UserCache        = NewProtectedCache("user", time.Hour)
)
