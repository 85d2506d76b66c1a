package queue

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrBusStopped Stop 之后继续 Publish 返回该错误。
	ErrBusStopped = errors.New("queue: bus stopped")
	// ErrBusFull 队列已满；Publish 不等待通知处理，直接丢弃并返回该错误。
	ErrBusFull = errors.New("queue: bus full")
)

// Bus 进程内事件总线：不持久化，进程退出即丢失队列中的事件。
// 单机部署时代替 Redis Stream + Kafka 链路。
type Bus struct {
	mu       sync.RWMutex
	subs     map[EventType][]Handler
	queue    chan OrderEvent
	stopped  bool
	startOne sync.Once
	stopOne  sync.Once
	cancel   context.CancelFunc
	done     chan struct{}

	handlerTimeout time.Duration
	log            *zap.Logger
}

func NewBus(buffer int, logger *zap.Logger) *Bus {
	if buffer <= 0 {
		buffer = 1024
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		subs:           make(map[EventType][]Handler),
		queue:          make(chan OrderEvent, buffer),
		done:           make(chan struct{}),
		handlerTimeout: 30 * time.Second,
		log:            logger.With(zap.String("component", "bus")),
	}
}

// Subscribe 注册某类事件的处理函数，需在 Start 之前调用。
func (b *Bus) Subscribe(t EventType, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[t] = append(b.subs[t], h)
}

// Start 启动分发协程。ctx 取消不会中断分发，已入队事件由 Stop 排空。
func (b *Bus) Start(ctx context.Context) {
	b.startOne.Do(func() {
		bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
		b.cancel = cancel
		go b.dispatchLoop(bg)
		b.log.Info("event_bus_started")
	})
}

// Stop 停止接收新事件，并等待已入队事件处理完（或 ctx 超时）。
func (b *Bus) Stop(ctx context.Context) {
	b.stopOne.Do(func() {
		b.mu.Lock()
		b.stopped = true
		close(b.queue)
		b.mu.Unlock()

		if b.cancel == nil {
			return
		}
		select {
		case <-b.done:
		case <-ctx.Done():
			b.log.Warn("event_bus_drain_timeout", zap.Int("pending", len(b.queue)))
		}
		b.cancel()
		b.log.Info("event_bus_stopped")
	})
}

func (b *Bus) Publish(ctx context.Context, e OrderEvent) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	// 持锁期间只做非阻塞发送，Stop 关闭 queue 时不会与发送并发
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.stopped {
		return ErrBusStopped
	}
	select {
	case b.queue <- e:
		return nil
	default:
		b.log.Warn("event_dropped_queue_full",
			zap.String("event", string(e.Type)),
			zap.String("order_id", e.OrderID),
			zap.Int("capacity", cap(b.queue)),
		)
		return ErrBusFull
	}
}

func (b *Bus) dispatchLoop(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-b.queue:
			if !ok {
				return
			}
			b.dispatch(ctx, e)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, e OrderEvent) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subs[e.Type]...)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.log.Debug("event_dropped_no_subscriber", zap.String("event", string(e.Type)))
		return
	}
	for _, h := range handlers {
		b.invoke(ctx, h, e)
	}
}

func (b *Bus) invoke(ctx context.Context, h Handler, e OrderEvent) {
	log := b.log.With(zap.String("event", string(e.Type)), zap.String("order_id", e.OrderID))
	defer func() {
		if r := recover(); r != nil {
			log.Error("event_handler_panic",
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())),
			)
		}
	}()

	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.handlerTimeout)
	defer cancel()
	if err := h(hctx, e); err != nil {
		log.Warn("event_handler_error", zap.Error(err))
	}
}
