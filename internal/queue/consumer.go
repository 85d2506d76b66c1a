package queue

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Consumer 从 Kafka 读取订单事件并交给 Handler（通知 worker）。
type Consumer struct {
	r       *kafka.Reader
	handler Handler
	log     *zap.Logger
}

func NewConsumer(brokers []string, topic, groupID string, handler Handler, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 1e6,
		}),
		handler: handler,
		log:     logger.With(zap.String("component", "consumer"), zap.String("topic", topic)),
	}
}

func (c *Consumer) Close() error { return c.r.Close() }

// Run 逐条消费。通知是尽力而为的：处理失败记录日志后照常提交 offset，不阻塞后续消息。
func (c *Consumer) Run(ctx context.Context) {
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, context.Canceled) {
				c.log.Error("consumer_fetch_failed", zap.Error(err))
			}
			return // ctx cancel / 连接断开等
		}

		var e OrderEvent
		if err := json.Unmarshal(m.Value, &e); err != nil {
			c.log.Warn("consumer_unmarshal_failed", zap.Int64("offset", m.Offset), zap.Error(err))
		} else if err := e.Validate(); err != nil {
			c.log.Warn("consumer_invalid_event", zap.Int64("offset", m.Offset), zap.Error(err))
		} else if err := c.handler(ctx, e); err != nil {
			c.log.Error("consumer_handle_failed",
				zap.String("event", string(e.Type)),
				zap.String("order_id", e.OrderID),
				zap.Error(err),
			)
		}

		if err := c.r.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Error("consumer_commit_failed", zap.Error(err))
		}
	}
}
