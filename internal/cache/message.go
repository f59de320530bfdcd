package cache

import (
	"context"
	"fmt"
	"time"

	"MediCare/storage/redis"
)

const (
	messagePrefix = "mq:msg"
	missedPrefix  = "missed"
	processedTTL  = 48 * time.Hour
)

// TryMarkMessageProcessing 原子地标记消息处理中，false 表示重复消息或正在被处理
func TryMarkMessageProcessing(ctx context.Context, messageID string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = processedTTL
	}
	ok, err := redis.Client().SetNX(ctx, redis.Key(messagePrefix, messageID), "processing", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark message as processing: %w", err)
	}
	return ok, nil
}

// UnmarkMessageProcessing 处理失败时调用，允许重试
func UnmarkMessageProcessing(ctx context.Context, messageID string) error {
	return redis.Client().Del(ctx, redis.Key(messagePrefix, messageID)).Err()
}

// MarkMessageProcessed 处理成功后延长标记
func MarkMessageProcessed(ctx context.Context, messageID string) error {
	return redis.Client().Set(ctx, redis.Key(messagePrefix, messageID), "completed", processedTTL).Err()
}

// TryMarkMissedAlert 同一患者同一天只提醒一次
func TryMarkMissedAlert(ctx context.Context, patientID int64, date string) (bool, error) {
	return redis.Client().SetNX(ctx, missedAlertKey(patientID, date), "1", 36*time.Hour).Result()
}

// ReleaseMissedAlert 提醒未发出时撤销标记，下次扫描可以重试
func ReleaseMissedAlert(ctx context.Context, patientID int64, date string) error {
	return redis.Client().Del(ctx, missedAlertKey(patientID, date)).Err()
}

func missedAlertKey(patientID int64, date string) string {
	return redis.Key(missedPrefix, date, fmt.Sprintf("%d", patientID))
}
