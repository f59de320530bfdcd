package cache

import (
	"context"
	"errors"
	"time"

	ri "github.com/redis/go-redis/v9"

	"MediCare/config"
	"MediCare/storage/redis"
)

const tokenPrefix = "token"

// SetRefreshToken 保存用户当前有效的 refresh token，每个用户只保留一个
func SetRefreshToken(ctx context.Context, userID, refreshToken string) error {
	key := redis.Key(tokenPrefix, "refresh", userID)
	ttl := time.Duration(config.Cfg.JWTRefreshDays) * 24 * time.Hour
	return redis.Client().Set(ctx, key, refreshToken, ttl).Err()
}

// DeleteRefreshToken 登出时调用
func DeleteRefreshToken(ctx context.Context, userID string) error {
	return redis.Client().Del(ctx, redis.Key(tokenPrefix, "refresh", userID)).Err()
}

// RefreshTokenMatches refresh token 是否仍为该用户当前有效的 token
func RefreshTokenMatches(ctx context.Context, userID, refreshToken string) (bool, error) {
	stored, err := redis.Client().Get(ctx, redis.Key(tokenPrefix, "refresh", userID)).Result()
	if errors.Is(err, ri.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return stored == refreshToken, nil
}
