package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"MediCare/internal/cache"
	"MediCare/internal/model"
	"MediCare/internal/repository"
	"MediCare/pkg/errors"
	"MediCare/pkg/logger"
	"MediCare/pkg/metrics"
	"MediCare/storage/database"
	"MediCare/storage/mq"
)

// Deduper 消息幂等标记
type Deduper interface {
	TryMark(ctx context.Context, messageID string) (bool, error)
	Done(ctx context.Context, messageID string) error
	Release(ctx context.Context, messageID string) error
}

// CaretakerLookup 查询患者的照护者
type CaretakerLookup interface {
	CaretakerIDs(ctx context.Context, patientID int64) ([]int64, error)
}

// Notifier 向照护者发送通知
type Notifier interface {
	DoseTaken(ctx context.Context, caretakerID int64, msg model.DoseLoggedMessage) error
	DoseMissed(ctx context.Context, caretakerID int64, msg model.MissedDoseMessage) error
}

// Consumer 事件消费者
type Consumer struct {
	dedup      Deduper
	caretakers CaretakerLookup
	notifier   Notifier
	adherence  cache.Store
}

func NewConsumer(dedup Deduper, caretakers CaretakerLookup, notifier Notifier, adherence cache.Store) *Consumer {
	return &Consumer{dedup: dedup, caretakers: caretakers, notifier: notifier, adherence: adherence}
}

// DefaultConsumer 使用 Redis 幂等标记、数据库照护关系和日志通知
func DefaultConsumer() *Consumer {
	return NewConsumer(
		redisDeduper{},
		repository.NewCaretakerRepository(database.DB()),
		LogNotifier{},
		cache.AdherenceCache,
	)
}

// begin 幂等检查，Redis 不可用时仍继续处理
func (c *Consumer) begin(ctx context.Context, messageID string) error {
	ok, err := c.dedup.TryMark(ctx, messageID)
	if err != nil {
		logger.Logger.Warn("Failed to check message processed status",
			zap.String("message_id", messageID),
			zap.Error(err),
		)
		return nil
	}
	if !ok {
		logger.Logger.Info("Message already processed or being processed, skipping",
			zap.String("message_id", messageID),
		)
		return &errors.SkipMessageError{Reason: fmt.Sprintf("Message %s already processed", messageID)}
	}
	return nil
}

func (c *Consumer) finish(ctx context.Context, messageID string, err error) error {
	if err != nil {
		// 取消标记，允许重新投递后再处理
		if uerr := c.dedup.Release(ctx, messageID); uerr != nil {
			logger.Logger.Warn("Failed to unmark message", zap.String("message_id", messageID), zap.Error(uerr))
		}
		return err
	}
	if derr := c.dedup.Done(ctx, messageID); derr != nil {
		logger.Logger.Warn("Failed to mark message as processed",
			zap.String("message_id", messageID),
			zap.Error(derr),
		)
	}
	return nil
}

// HandleDoseLogged 失效依从性缓存并通知照护者
func (c *Consumer) HandleDoseLogged(ctx context.Context, body []byte) error {
	var msg model.DoseLoggedMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return &errors.SkipMessageError{Reason: fmt.Sprintf("malformed dose logged message: %v", err)}
	}
	if err := c.begin(ctx, msg.MessageID); err != nil {
		return err
	}

	logger.Logger.Info("Processing dose logged event",
		zap.String("message_id", msg.MessageID),
		zap.Int64("user_id", msg.UserID),
		zap.Int64("dose_log_id", msg.DoseLogID),
	)

	if err := c.adherence.Delete(ctx, strconv.FormatInt(msg.UserID, 10)); err != nil {
		logger.Logger.Warn("Failed to invalidate adherence cache",
			zap.Int64("user_id", msg.UserID),
			zap.Error(err),
		)
	}

	ids, err := c.caretakers.CaretakerIDs(ctx, msg.UserID)
	if err != nil {
		return c.finish(ctx, msg.MessageID, fmt.Errorf("failed to load caretakers: %w", err))
	}
	for _, id := range ids {
		if err := c.notifier.DoseTaken(ctx, id, msg); err != nil {
			logger.Logger.Warn("Failed to notify caretaker",
				zap.Int64("caretaker_id", id),
				zap.Int64("patient_id", msg.UserID),
				zap.Error(err),
			)
		}
	}

	return c.finish(ctx, msg.MessageID, nil)
}

// HandleMissedDose 通知照护者患者当日未服药
func (c *Consumer) HandleMissedDose(ctx context.Context, body []byte) error {
	var msg model.MissedDoseMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return &errors.SkipMessageError{Reason: fmt.Sprintf("malformed missed dose message: %v", err)}
	}
	if err := c.begin(ctx, msg.MessageID); err != nil {
		return err
	}

	logger.Logger.Info("Processing missed dose alert",
		zap.String("message_id", msg.MessageID),
		zap.Int64("patient_id", msg.PatientID),
		zap.String("date", msg.Date),
		zap.Int("caretakers", len(msg.CaretakerIDs)),
	)

	var failed error
	sent := 0
	for _, id := range msg.CaretakerIDs {
		if err := c.notifier.DoseMissed(ctx, id, msg); err != nil {
			failed = fmt.Errorf("notify caretaker %d: %w", id, err)
			continue
		}
		sent++
	}
	metrics.RecordMissedDoseAlert(ctx, sent)

	// 全部失败才重试，部分成功时避免重复打扰已通知的照护者
	if sent == 0 && failed != nil {
		return c.finish(ctx, msg.MessageID, failed)
	}
	return c.finish(ctx, msg.MessageID, nil)
}

// StartAllConsumers 启动所有消费者，阻塞直到全部退出
func StartAllConsumers(ctx context.Context) {
	c := DefaultConsumer()

	consumers := []mq.ConsumeOptions{
		{Queue: mq.QueueDoseLogged, ConsumerTag: "dose_logged_consumer", PrefetchCount: 20, Handler: c.HandleDoseLogged},
		{Queue: mq.QueueDoseMissed, ConsumerTag: "dose_missed_consumer", PrefetchCount: 10, Handler: c.HandleMissedDose},
	}

	var wg sync.WaitGroup
	for _, opts := range consumers {
		wg.Add(1)
		go func(opts mq.ConsumeOptions) {
			defer wg.Done()

			logger.Logger.Info("Starting consumer", zap.String("queue", opts.Queue))

			if err := mq.Consume(ctx, opts); err != nil {
				logger.Logger.Error("Consumer exited with error",
					zap.String("queue", opts.Queue),
					zap.Error(err),
				)
			}
		}(opts)
	}

	wg.Wait()

	logger.Logger.Info("All consumers stopped")
}

type redisDeduper struct{}

func (redisDeduper) TryMark(ctx context.Context, messageID string) (bool, error) {
	return cache.TryMarkMessageProcessing(ctx, messageID, 24*time.Hour)
}

func (redisDeduper) Done(ctx context.Context, messageID string) error {
	return cache.MarkMessageProcessed(ctx, messageID)
}

func (redisDeduper) Release(ctx context.Context, messageID string) error {
	return cache.UnmarkMessageProcessing(ctx, messageID)
}

// LogNotifier 只记录日志，推送渠道接入前使用
type LogNotifier struct{}

func (LogNotifier) DoseTaken(ctx context.Context, caretakerID int64, msg model.DoseLoggedMessage) error {
	logger.Logger.Info("Caretaker notified of dose",
		zap.Int64("caretaker_id", caretakerID),
		zap.Int64("patient_id", msg.UserID),
		zap.Int64("medication_id", msg.MedicationID),
		zap.String("taken_at", msg.TakenAt),
		zap.Bool("has_proof", msg.HasProof),
	)
	return nil
}

func (LogNotifier) DoseMissed(ctx context.Context, caretakerID int64, msg model.MissedDoseMessage) error {
	logger.Logger.Warn("Caretaker notified of missed dose",
		zap.Int64("caretaker_id", caretakerID),
		zap.Int64("patient_id", msg.PatientID),
		zap.String("date", msg.Date),
		zap.Int("streak_before", msg.StreakBefore),
	)
	return nil
}
