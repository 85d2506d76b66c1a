package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"storefront/internal/catalog"
	"storefront/internal/model"
	"storefront/internal/observability"
	"storefront/internal/order"
	"storefront/internal/queue"
	pkgredis "storefront/pkg/redis"

	rd "github.com/redis/go-redis/v9"
)

// 通知去重的种类
const (
	KindPaid     = "paid"
	KindDelivery = "delivery"
)

// OrderReader 读取订单及其已绑定条目。
type OrderReader interface {
	GetOrderWithItems(ctx context.Context, orderID string) (*order.OrderWithItems, error)
}

// ProductReader 按 slug 查商品。
type ProductReader interface {
	GetBySlug(ctx context.Context, slug string) (*model.Product, error)
}

// Guard 通知去重：Mark 首次返回 true；发送失败时 Release 允许重投递再次发送。
type Guard interface {
	Mark(ctx context.Context, key, token string) (bool, error)
	Release(ctx context.Context, key, token string) error
}

// RedisGuard 基于 SETNX 的去重实现。
type RedisGuard struct {
	rdb *rd.Client
	ttl time.Duration
}

func NewRedisGuard(rdb *rd.Client, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisGuard{rdb: rdb, ttl: ttl}
}

func (g *RedisGuard) Mark(ctx context.Context, key, token string) (bool, error) {
	return pkgredis.MarkOnce(ctx, g.rdb, key, token, g.ttl)
}

func (g *RedisGuard) Release(ctx context.Context, key, token string) error {
	return pkgredis.ReleaseIfMatch(ctx, g.rdb, key, token)
}

// Dispatcher 订单事件的消费端，把事件翻译成通知。
type Dispatcher struct {
	orders   OrderReader
	products ProductReader
	notifier Notifier
	guard    Guard // nil 表示不去重
	log      *zap.Logger
	metrics  *observability.Metrics
}

func NewDispatcher(orders OrderReader, products ProductReader, notifier Notifier, guard Guard, logger *zap.Logger, metrics *observability.Metrics) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewMetrics(nil)
	}
	return &Dispatcher{
		orders:   orders,
		products: products,
		notifier: notifier,
		guard:    guard,
		log:      logger.With(zap.String("component", "notify")),
		metrics:  metrics,
	}
}

// Handle 处理一条订单事件，可直接作为 queue.Handler 使用。
// 返回的错误只用于日志，调用方不会据此回滚任何状态。
func (d *Dispatcher) Handle(ctx context.Context, e queue.OrderEvent) error {
	log := d.log.With(zap.String("event", string(e.Type)), zap.String("order_id", e.OrderID))

	if e.Type == queue.EventOrderFailed {
		log.Debug("notify_skip_failed_order")
		return nil
	}

	ow, err := d.orders.GetOrderWithItems(ctx, e.OrderID)
	if err != nil {
		return fmt.Errorf("load order %s: %w", e.OrderID, err)
	}
	if ow.Status != model.OrderPaid {
		log.Warn("notify_skip_not_paid", zap.String("status", string(ow.Status)))
		return nil
	}

	o := OrderSummary{ID: ow.ID, Email: ow.Email, CreatedAt: ow.CreatedAt}
	p, err := d.productSummary(ctx, &ow.Order)
	if err != nil {
		return err
	}

	var errs []error
	if e.Type == queue.EventOrderPaid {
		errs = append(errs, d.once(ctx, log, e, KindPaid, func(ctx context.Context) error {
			return d.notifier.NotifyPaid(ctx, ow.Email, o, p)
		}))
	}
	if len(ow.Items) > 0 {
		items := make([]ItemSummary, 0, len(ow.Items))
		for _, it := range ow.Items {
			s := ItemSummary{Type: string(it.Type), Value: it.Value}
			if it.Note != nil {
				s.Note = *it.Note
			}
			items = append(items, s)
		}
		errs = append(errs, d.once(ctx, log, e, KindDelivery, func(ctx context.Context) error {
			return d.notifier.NotifyDelivery(ctx, ow.Email, o, p, items)
		}))
	}
	return errors.Join(errs...)
}

// productSummary 商品可能已被删除，此时用 slug 作名称、订单快照作价格。
func (d *Dispatcher) productSummary(ctx context.Context, o *model.Order) (ProductSummary, error) {
	fallback := ProductSummary{Name: o.ProductSlug, Slug: o.ProductSlug, Price: o.Amount, Currency: o.Currency}
	p, err := d.products.GetBySlug(ctx, o.ProductSlug)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return fallback, nil
		}
		return ProductSummary{}, fmt.Errorf("load product %s: %w", o.ProductSlug, err)
	}
	return ProductSummary{Name: p.Name, Slug: p.Slug, Price: p.Price, Currency: p.Currency}, nil
}

func (d *Dispatcher) once(ctx context.Context, log *zap.Logger, e queue.OrderEvent, kind string, send func(context.Context) error) error {
	key := pkgredis.NotifyOnceKey(e.OrderID, kind)
	if d.guard != nil {
		first, err := d.guard.Mark(ctx, key, e.EventID)
		if err != nil {
			// Redis 不可用时宁可重复发送也不漏发
			log.Warn("notify_guard_unavailable", zap.String("kind", kind), zap.Error(err))
		} else if !first {
			log.Info("notify_duplicate_suppressed", zap.String("kind", kind))
			return nil
		}
	}

	if err := send(ctx); err != nil {
		d.metrics.NotificationFailure.WithLabelValues(kind).Inc()
		log.Error("notification_failed", zap.String("kind", kind), zap.Error(err))
		if d.guard != nil {
			if relErr := d.guard.Release(ctx, key, e.EventID); relErr != nil {
				log.Warn("notify_guard_release_failed", zap.String("kind", kind), zap.Error(relErr))
			}
		}
		return fmt.Errorf("notify %s: %w", kind, err)
	}
	log.Info("notification_sent", zap.String("kind", kind))
	return nil
}
