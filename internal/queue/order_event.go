package queue

import (
	"context"
	"fmt"
	"time"
)

// EventType 订单事件类型。
type EventType string

const (
	EventOrderPaid      EventType = "order.paid"
	EventOrderFailed    EventType = "order.failed"
	EventOrderFulfilled EventType = "order.fulfilled"
)

func (t EventType) valid() bool {
	switch t {
	case EventOrderPaid, EventOrderFailed, EventOrderFulfilled:
		return true
	default:
		return false
	}
}

// OrderEvent 订单状态落库之后发出的事件，由通知 worker 异步消费。
// 只携带订单 id，消费者自行回查订单与已绑定的条目。
type OrderEvent struct {
	EventID    string    `json:"event_id"`
	Type       EventType `json:"type"`
	OrderID    string    `json:"order_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Validate 做最小字段校验，防止消费者处理脏消息。
func (e OrderEvent) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if !e.Type.valid() {
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.OrderID == "" {
		return fmt.Errorf("order_id is required")
	}
	return nil
}

// Publisher 事件投递端。
type Publisher interface {
	Publish(ctx context.Context, e OrderEvent) error
}

// Handler 事件消费回调。
type Handler func(ctx context.Context, e OrderEvent) error
