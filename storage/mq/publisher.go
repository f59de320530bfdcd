package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"MediCare/pkg/logger"
	mqotel "MediCare/pkg/mq"
)

var (
	publisherCh *amqp.Channel
	pubMutex    sync.Mutex
)

func getPublisherChannel() (*amqp.Channel, error) {
	pubMutex.Lock()
	defer pubMutex.Unlock()

	if publisherCh != nil && !publisherCh.IsClosed() {
		return publisherCh, nil
	}

	c := Connection()
	if c == nil {
		return nil, fmt.Errorf("RabbitMQ connection is nil")
	}

	ch, err := c.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open publish channel: %w", err)
	}
	publisherCh = ch

	closeChan := ch.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		<-closeChan
		pubMutex.Lock()
		if publisherCh == ch {
			publisherCh = nil
		}
		pubMutex.Unlock()

		logger.Logger.Warn("Publisher channel closed, will recreate on next publish",
			zap.String("component", "rabbitmq"),
		)
	}()

	logger.Logger.Info("Publisher channel created", zap.String("component", "rabbitmq"))
	return ch, nil
}

func resetPublisher() {
	pubMutex.Lock()
	defer pubMutex.Unlock()
	if publisherCh != nil {
		_ = publisherCh.Close()
		publisherCh = nil
	}
}

// PublishJSON 以 JSON 持久化消息发布到 exchange，trace 上下文写入消息头
func PublishJSON(ctx context.Context, exchange, routingKey, messageID string, body interface{}) (err error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    messageID,
		Body:         payload,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	}

	ctx, span := mqotel.StartPublishSpan(ctx, exchange, routingKey, &msg)
	defer func() { mqotel.EndSpan(span, err) }()

	ch, err := getPublisherChannel()
	if err != nil {
		return err
	}

	if err = ch.PublishWithContext(ctx, exchange, routingKey, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}
