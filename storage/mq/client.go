package mq

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"MediCare/config"
	"MediCare/pkg/logger"
)

// 交换机与队列
const (
	EventsExchange = "medicare.events"

	RoutingDoseLogged  = "dose.logged"
	RoutingDoseMissed  = "dose.missed"
	QueueDoseLogged    = "medicare.dose.logged"
	QueueDoseMissed    = "medicare.dose.missed"
	DeadLetterExchange = "medicare.dlx"
	DeadLetterQueue    = "medicare.dead"
)

var (
	conn   *amqp.Connection
	connMu sync.RWMutex
)

func Init() error {
	c, err := amqp.Dial(config.Cfg.GetRabbitMQURL())
	if err != nil {
		return fmt.Errorf("failed to dial rabbitmq: %w", err)
	}

	if err := declareTopology(c); err != nil {
		_ = c.Close()
		return err
	}

	connMu.Lock()
	conn = c
	connMu.Unlock()

	logger.Logger.Info("RabbitMQ connected",
		zap.String("addr", config.Cfg.RabbitMQAddr),
		zap.String("exchange", EventsExchange),
	)
	return nil
}

// Connection 返回当前连接，未初始化时为 nil
func Connection() *amqp.Connection {
	connMu.RLock()
	defer connMu.RUnlock()
	return conn
}

func Close(ctx context.Context) error {
	resetPublisher()

	connMu.Lock()
	defer connMu.Unlock()

	if conn == nil || conn.IsClosed() {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- conn.Close() }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		conn = nil
		return err
	}
}

// declareTopology 声明事件交换机、业务队列和死信队列，重复声明是幂等的
func declareTopology(c *amqp.Connection) error {
	ch, err := c.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(EventsExchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", EventsExchange, err)
	}
	if err := ch.ExchangeDeclare(DeadLetterExchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", DeadLetterExchange, err)
	}
	if _, err := ch.QueueDeclare(DeadLetterQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", DeadLetterQueue, err)
	}
	if err := ch.QueueBind(DeadLetterQueue, "", DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", DeadLetterQueue, err)
	}

	bindings := map[string]string{
		QueueDoseLogged: RoutingDoseLogged,
		QueueDoseMissed: RoutingDoseMissed,
	}
	for queue, key := range bindings {
		args := amqp.Table{"x-dead-letter-exchange": DeadLetterExchange}
		if _, err := ch.QueueDeclare(queue, true, false, false, false, args); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", queue, err)
		}
		if err := ch.QueueBind(queue, key, EventsExchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %s: %w", queue, err)
		}
	}

	return nil
}
