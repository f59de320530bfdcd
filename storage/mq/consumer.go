package mq

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	pkgerrors "MediCare/pkg/errors"
	"MediCare/pkg/logger"
	"MediCare/pkg/metrics"
	mqotel "MediCare/pkg/mq"
)

// MessageHandler 处理一条消息，返回 SkipMessageError 时直接 ack
type MessageHandler func(ctx context.Context, body []byte) error

type ConsumeOptions struct {
	Queue         string
	ConsumerTag   string
	PrefetchCount int
	Handler       MessageHandler
}

// Consume 阻塞消费直到 ctx 取消或通道关闭。
// 处理失败的消息首次重新入队，再次失败则进入死信队列。
func Consume(ctx context.Context, opts ConsumeOptions) error {
	c := Connection()
	if c == nil {
		return fmt.Errorf("RabbitMQ connection is nil")
	}

	ch, err := c.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if opts.PrefetchCount > 0 {
		if err := ch.Qos(opts.PrefetchCount, 0, false); err != nil {
			return fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	msgs, err := ch.Consume(opts.Queue, opts.ConsumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	logger.Logger.Info("Started consuming messages",
		zap.String("queue", opts.Queue),
		zap.String("consumer_tag", opts.ConsumerTag),
		zap.Int("prefetch_count", opts.PrefetchCount),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed for queue %s", opts.Queue)
			}
			handleDelivery(ctx, opts, d)
		}
	}
}

func handleDelivery(ctx context.Context, opts ConsumeOptions, d amqp.Delivery) {
	msgCtx, span := mqotel.StartConsumeSpan(ctx, opts.Queue, d)
	err := opts.Handler(msgCtx, d.Body)
	mqotel.EndSpan(span, err)

	result := Settle(d, err)
	metrics.RecordMessageConsumed(ctx, opts.Queue, result)

	if err != nil && result != "skip" {
		logger.Logger.Error("Failed to process message",
			zap.String("queue", opts.Queue),
			zap.String("message_id", d.MessageId),
			zap.Bool("redelivered", d.Redelivered),
			zap.String("result", result),
			zap.Error(err),
		)
	}
}

// Acknowledger 是 amqp.Delivery 的确认能力
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// Settle 根据处理结果确认消息，返回 ack / skip / requeue / drop
func Settle(d amqp.Delivery, err error) string {
	return settle(d, d.Redelivered, err)
}

func settle(ack Acknowledger, redelivered bool, err error) string {
	var skip *pkgerrors.SkipMessageError
	switch {
	case err == nil:
		_ = ack.Ack(false)
		return "ack"
	case errors.As(err, &skip):
		_ = ack.Ack(false)
		return "skip"
	case !redelivered:
		_ = ack.Nack(false, true)
		return "requeue"
	default:
		_ = ack.Nack(false, false)
		return "drop"
	}
}
