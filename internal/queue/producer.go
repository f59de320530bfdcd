package queue

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"MediCare/internal/model"
	"MediCare/pkg/logger"
	"MediCare/pkg/snowflake"
	"MediCare/storage/mq"
)

// Producer 发布领域事件到 medicare.events
type Producer struct{}

// PublishDoseLogged 发布服药记录创建事件
func (Producer) PublishDoseLogged(ctx context.Context, msg model.DoseLoggedMessage) error {
	if msg.MessageID == "" {
		id, err := snowflake.NextMessageID("dose_logged")
		if err != nil {
			return fmt.Errorf("failed to generate message ID: %w", err)
		}
		msg.MessageID = id
	}

	if err := mq.PublishJSON(ctx, mq.EventsExchange, mq.RoutingDoseLogged, msg.MessageID, msg); err != nil {
		logger.Logger.Error("Failed to publish dose logged message",
			zap.Int64("user_id", msg.UserID),
			zap.Int64("dose_log_id", msg.DoseLogID),
			zap.Error(err),
		)
		return err
	}

	logger.Logger.Debug("Published dose logged message",
		zap.String("message_id", msg.MessageID),
		zap.Int64("dose_log_id", msg.DoseLogID),
	)
	return nil
}

// PublishMissedDose 发布漏服提醒
func (Producer) PublishMissedDose(ctx context.Context, msg model.MissedDoseMessage) error {
	if msg.MessageID == "" {
		id, err := snowflake.NextMessageID("dose_missed")
		if err != nil {
			return fmt.Errorf("failed to generate message ID: %w", err)
		}
		msg.MessageID = id
	}

	if err := mq.PublishJSON(ctx, mq.EventsExchange, mq.RoutingDoseMissed, msg.MessageID, msg); err != nil {
		logger.Logger.Error("Failed to publish missed dose message",
			zap.Int64("patient_id", msg.PatientID),
			zap.String("date", msg.Date),
			zap.Error(err),
		)
		return err
	}

	logger.Logger.Info("Published missed dose message",
		zap.String("message_id", msg.MessageID),
		zap.Int64("patient_id", msg.PatientID),
		zap.String("date", msg.Date),
		zap.Int("caretakers", len(msg.CaretakerIDs)),
	)
	return nil
}
