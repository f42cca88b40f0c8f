package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"pmplanner/pkg/metrics"
	pmotel "pmplanner/pkg/otel"
	"pmplanner/pkg/trace"
	"pmplanner/pkg/util"
)

type MessageHandler func(ctx context.Context, data json.RawMessage) error

// DeadLetterer 接收不可重试的失败消息
type DeadLetterer interface {
	PublishToDLQ(ctx context.Context, routingKey string, payload []byte, errorType string, cause error) error
}

type Consumer struct {
	channel    *amqp091.Channel
	queue      amqp091.Queue
	routingKey string
	handler    MessageHandler
	dlq        DeadLetterer
	conn       *amqp091.Connection
	logger     *zap.Logger

	stopOnce sync.Once
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewConsumer creates a consumer for a specific routing key.
func NewConsumer(url, queueName, routingKey string, logger *zap.Logger) (*Consumer, error) {
	conn, err := NewConnection(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	closeAll := func() {
		ch.Close()
		conn.Close()
	}

	if err := DeclareExchanges(ch); err != nil {
		closeAll()
		return nil, err
	}

	q, err := ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, routingKey, ExchangeName, false, nil); err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	if _, err := DeclareDLQQueue(ch, routingKey); err != nil {
		closeAll()
		return nil, err
	}

	// 每次只投递一条，规划计算是 CPU 密集型
	if err := ch.Qos(1, 0, false); err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to set qos: %w", err)
	}

	logger.Info("Consumer initialized",
		zap.String("routing_key", routingKey),
		zap.String("queue", queueName),
		zap.String("exchange", ExchangeName),
	)

	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		conn:       conn,
		channel:    ch,
		queue:      q,
		routingKey: routingKey,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

// SetDeadLetterer 设置死信发布方；未设置时不可重试的消息直接丢弃
func (c *Consumer) SetDeadLetterer(d DeadLetterer) {
	c.dlq = d
}

func (c *Consumer) IsConnected() bool {
	return c.conn != nil && !c.conn.IsClosed()
}

// Stop 取消正在处理的消息的 context 并关闭连接
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() {
		c.cancel()
		c.Close()
	})
}

func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// StartConsuming starts consuming messages. This method blocks and should be called in a goroutine.
func (c *Consumer) StartConsuming() error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	deliveries, err := c.channel.Consume(
		c.queue.Name,
		"planner-"+c.routingKey,
		false, // 手动ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started consuming messages",
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
	)

	for msg := range deliveries {
		c.process(c.ctx, msg)
	}
	return nil
}

// process 保证每条消息都会被 ack 或 nack
func (c *Consumer) process(parent context.Context, msg amqp091.Delivery) {
	start := time.Now()
	result := "ack"

	ctx := otel.GetTextMapPropagator().Extract(parent, pmotel.MQHeaderCarrier(msg.Headers))
	if traceID, ok := msg.Headers[trace.HeaderName()].(string); ok && traceID != "" {
		ctx = trace.WithContext(ctx, traceID)
	}
	ctx = trace.EnsureContext(ctx)
	ctx, span := pmotel.MQConsumeSpan(ctx, c.routingKey, c.queue.Name)

	log := c.logger.With(
		zap.String("routing_key", c.routingKey),
		zap.String("trace_id", trace.FromContext(ctx)),
	)

	var handlerErr error
	defer func() {
		if r := recover(); r != nil {
			log.Error("Handler panic recovered", zap.Any("panic", r))
			handlerErr = fmt.Errorf("handler panic: %v", r)
			result = "panic"
			if err := msg.Nack(false, false); err != nil {
				log.Error("Failed to nack message after panic", zap.Error(err))
			}
		}
		pmotel.End(span, handlerErr)
		metrics.RecordMQConsumeLatency(c.routingKey, result, time.Since(start))
	}()

	log.Debug("Received message", zap.Int("message_size", len(msg.Body)))

	handlerErr = c.handler(ctx, msg.Body)
	if handlerErr == nil {
		if err := msg.Ack(false); err != nil {
			log.Error("Failed to ack message", zap.Error(err))
		}
		return
	}

	retryable, errType := util.IsRetryableError(handlerErr)
	log.Error("Handler error",
		zap.Error(handlerErr),
		zap.Bool("retryable", retryable),
		zap.String("error_type", errType),
	)

	if retryable && !msg.Redelivered {
		result = "requeue"
		if err := msg.Nack(false, true); err != nil {
			log.Error("Failed to nack message", zap.Error(err))
		}
		return
	}

	result = "dead_letter"
	if c.dlq != nil {
		if err := c.dlq.PublishToDLQ(ctx, c.routingKey, msg.Body, errType, handlerErr); err != nil {
			log.Error("Failed to publish to DLQ", zap.Error(err))
			if err := msg.Nack(false, true); err != nil {
				log.Error("Failed to nack message", zap.Error(err))
			}
			return
		}
	}
	if err := msg.Ack(false); err != nil {
		log.Error("Failed to ack message", zap.Error(err))
	}
}
