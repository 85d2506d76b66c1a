// Package order 管理订单生命周期：创建（价格快照）、状态迁移、PAID 时认领库存并发出事件。
package order

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/catalog"
	"storefront/internal/model"
	"storefront/internal/observability"
	"storefront/internal/queue"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrOrderNotFound     = apperr.NotFound("order: not found")
	ErrProductNotFound   = catalog.ErrProductNotFound
	ErrInvalidStatus     = apperr.Invalid("order: status must be PENDING, PAID or FAILED")
	ErrInvalidTransition = apperr.Conflict("order: status transition not allowed")
	ErrInvalidPayment    = apperr.Invalid("order: payment method must be ALIPAY, WECHAT or MANUAL")
	ErrProductMismatch   = apperr.Invalid("order: product does not match the order")
)

var tracer = observability.Tracer("order")

// ProductLookup 商品注册表中订单需要的部分。
type ProductLookup interface {
	GetBySlug(ctx context.Context, slug string) (*model.Product, error)
}

// Allocator 库存认领；库存耗尽返回 (nil, nil)。
type Allocator interface {
	ClaimOneAvailable(ctx context.Context, productID uint, orderID string) (*model.InventoryItem, error)
}

// ItemLister 按订单查询已绑定的条目。
type ItemLister interface {
	ListByOrder(ctx context.Context, orderID string) ([]model.InventoryItem, error)
}

// Service 订单生命周期管理器。
type Service struct {
	db        *gorm.DB
	products  ProductLookup
	allocator Allocator
	items     ItemLister
	publisher queue.Publisher
	log       *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

// Deps Service 的依赖，全部由调用方构造后注入。
type Deps struct {
	DB        *gorm.DB
	Products  ProductLookup
	Allocator Allocator
	Items     ItemLister
	Publisher queue.Publisher
	Logger    *zap.Logger
	Metrics   *observability.Metrics
}

func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := d.Metrics
	if metrics == nil {
		metrics = observability.NewMetrics(nil)
	}
	return &Service{
		db:        d.DB,
		products:  d.Products,
		allocator: d.Allocator,
		items:     d.Items,
		publisher: d.Publisher,
		log:       logger.With(zap.String("component", "order")),
		metrics:   metrics,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrderInput 下单参数；UserID 仅在调用方已登录时存在。
type CreateOrderInput struct {
	ProductSlug   string
	Email         string
	Notes         string
	PaymentMethod string
	UserID        string
}

// OrderWithItems 订单及其绑定的库存条目。
type OrderWithItems struct {
	model.Order
	Items []model.InventoryItem `json:"items"`
}

// CreateOrder 创建 PENDING 订单，金额与币种从商品快照，不触碰库存。
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*model.Order, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	slug := strings.TrimSpace(in.ProductSlug)
	if slug == "" {
		return nil, apperr.Field("product_slug", "required")
	}

	var method *model.PaymentMethod
	if strings.TrimSpace(in.PaymentMethod) != "" {
		pm, ok := model.ParsePaymentMethod(in.PaymentMethod)
		if !ok {
			return nil, ErrInvalidPayment
		}
		method = &pm
	}

	product, err := s.products.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	o := &model.Order{
		ID:            uuid.NewString(),
		ProductSlug:   product.Slug,
		Email:         email,
		Notes:         optional(in.Notes),
		Status:        model.OrderPending,
		Amount:        product.Price,
		Currency:      product.Currency,
		PaymentMethod: method,
		UserID:        optional(in.UserID),
	}
	if err := s.db.WithContext(ctx).Create(o).Error; err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.log.Info("order_created",
		zap.String("order_id", o.ID),
		zap.String("product_slug", o.ProductSlug),
		zap.Int64("amount", o.Amount),
		zap.String("currency", o.Currency),
	)
	return o, nil
}

// SetStatus 推进订单状态。
//
// 同状态请求直接成功（不重复认领、不重复发事件）；终态不能再迁移。
// 状态写入是唯一必须成功的步骤：PAID 之后的库存认领和事件投递失败只记日志。
func (s *Service) SetStatus(ctx context.Context, orderID string, status model.OrderStatus) (_ *model.Order, err error) {
	ctx, span := tracer.Start(ctx, "order.SetStatus")
	span.SetAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.status", string(status)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if st, ok := model.ParseOrderStatus(string(status)); !ok || st != status {
		return nil, ErrInvalidStatus
	}

	o, err := s.get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch CheckTransition(o.Status, status) {
	case Noop:
		return o, nil
	case Reject:
		if IsTerminal(o.Status) {
			return nil, fmt.Errorf("%w: order is already %s", ErrInvalidTransition, o.Status)
		}
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, status)
	}

	now := s.now()
	updates := map[string]any{
		"status":     status,
		"updated_at": now,
	}
	if status == model.OrderPaid {
		updates["paid_at"] = now
	}
	// 条件更新：并发的重复回调只有一个能把 PENDING 改掉
	res := s.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ?", orderID, o.Status).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("update order %s status: %w", orderID, res.Error)
	}
	if res.RowsAffected == 0 {
		current, err := s.get(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if current.Status == status {
			return current, nil
		}
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
	}

	from := o.Status
	o.Status = status
	o.UpdatedAt = now
	if status == model.OrderPaid {
		o.PaidAt = &now
	}
	s.metrics.OrderTransitions.WithLabelValues(string(status)).Inc()

	logger := observability.FromContext(ctx, s.log).With(zap.String("order_id", o.ID))
	logger.Info("order_status_changed",
		zap.String("from", string(from)),
		zap.String("to", string(status)),
	)

	switch status {
	case model.OrderPaid:
		s.claimFor(ctx, logger, o)
		s.emit(ctx, logger, queue.EventOrderPaid, o.ID)
	case model.OrderFailed:
		s.emit(ctx, logger, queue.EventOrderFailed, o.ID)
	}
	return o, nil
}

// Fulfill 人工补发：只对已 PAID 且尚未绑定条目的订单认领一次。
// 已有条目时直接返回当前结果。
func (s *Service) Fulfill(ctx context.Context, orderID string) (*OrderWithItems, error) {
	ow, err := s.GetOrderWithItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if ow.Status != model.OrderPaid {
		return nil, fmt.Errorf("%w: fulfill requires PAID, order is %s", ErrInvalidTransition, ow.Status)
	}
	if len(ow.Items) > 0 {
		return ow, nil
	}

	logger := observability.FromContext(ctx, s.log).With(zap.String("order_id", ow.ID))
	product, err := s.products.GetBySlug(ctx, ow.ProductSlug)
	if err != nil {
		return nil, err
	}
	item, err := s.allocator.ClaimOneAvailable(ctx, product.ID, ow.ID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		logger.Warn("order_fulfill_stockout", zap.String("product_slug", ow.ProductSlug))
		return ow, nil
	}

	ow.Items = append(ow.Items, *item)
	s.emit(ctx, logger, queue.EventOrderFulfilled, ow.ID)
	return ow, nil
}

// ClaimFor 管理端手工认领：productID 必须是订单下单时的商品，其余规则同 Fulfill。
// 库存耗尽时返回 (nil, nil)；订单已有条目时返回已绑定的条目。
func (s *Service) ClaimFor(ctx context.Context, productID uint, orderID string) (*model.InventoryItem, error) {
	o, err := s.get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	product, err := s.products.GetBySlug(ctx, o.ProductSlug)
	if err != nil {
		return nil, err
	}
	if product.ID != productID {
		return nil, fmt.Errorf("%w: order %s is for %q", ErrProductMismatch, o.ID, o.ProductSlug)
	}
	ow, err := s.Fulfill(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if len(ow.Items) == 0 {
		return nil, nil
	}
	return &ow.Items[0], nil
}

// GetOrderWithItems 返回订单以及 order_id 指向它的全部条目。
func (s *Service) GetOrderWithItems(ctx context.Context, orderID string) (*OrderWithItems, error) {
	o, err := s.get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	items, err := s.items.ListByOrder(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	return &OrderWithItems{Order: *o, Items: items}, nil
}

// ListFilter 订单列表过滤条件，零值字段不参与过滤。
type ListFilter struct {
	Status model.OrderStatus
	Email  string
	UserID string
	Limit  int
}

// ListOrders 按创建时间倒序列出订单。
func (s *Service) ListOrders(ctx context.Context, f ListFilter) ([]model.Order, error) {
	q := s.db.WithContext(ctx).Model(&model.Order{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if email := strings.ToLower(strings.TrimSpace(f.Email)); email != "" && f.UserID != "" {
		q = q.Where("(email = ? OR user_id = ?)", email, f.UserID)
	} else if email != "" {
		q = q.Where("email = ?", email)
	} else if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Limit <= 0 {
		f.Limit = 100
	}

	list := make([]model.Order, 0)
	if err := q.Order("created_at DESC, id DESC").Limit(f.Limit).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return list, nil
}

// ListUnfulfilled 已 PAID 但没有绑定任何条目的订单，需要运营处理。
func (s *Service) ListUnfulfilled(ctx context.Context, limit int) ([]model.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	list := make([]model.Order, 0)
	err := s.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("status = ?", model.OrderPaid).
		Where("NOT EXISTS (SELECT 1 FROM inventory_items WHERE inventory_items.order_id = orders.id)").
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list unfulfilled orders: %w", err)
	}
	return list, nil
}

// claimFor 尽力为 PAID 订单认领一个条目；任何失败都只记录，不影响状态迁移结果。
func (s *Service) claimFor(ctx context.Context, logger *zap.Logger, o *model.Order) {
	product, err := s.products.GetBySlug(ctx, o.ProductSlug)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			logger.Warn("order_paid_product_missing", zap.String("product_slug", o.ProductSlug))
		} else {
			logger.Error("order_paid_product_lookup_failed", zap.Error(err))
		}
		s.metrics.PaidUnfulfilled.Inc()
		return
	}

	item, err := s.allocator.ClaimOneAvailable(ctx, product.ID, o.ID)
	if err != nil {
		logger.Error("order_paid_claim_failed", zap.Uint("product_id", product.ID), zap.Error(err))
		s.metrics.PaidUnfulfilled.Inc()
		return
	}
	if item == nil {
		logger.Warn("order_paid_unfulfilled",
			zap.Uint("product_id", product.ID),
			zap.String("product_slug", product.Slug),
		)
		s.metrics.PaidUnfulfilled.Inc()
		return
	}
	logger.Info("order_item_bound", zap.Uint("item_id", item.ID))
}

func (s *Service) emit(ctx context.Context, logger *zap.Logger, typ queue.EventType, orderID string) {
	if s.publisher == nil {
		return
	}
	e := queue.OrderEvent{
		EventID:    uuid.NewString(),
		Type:       typ,
		OrderID:    orderID,
		OccurredAt: s.now(),
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.metrics.PublishFailure.WithLabelValues(string(typ)).Inc()
		logger.Error("order_event_publish_failed",
			zap.String("event", string(typ)),
			zap.Error(err),
		)
	}
}

func (s *Service) get(ctx context.Context, orderID string) (*model.Order, error) {
	var o model.Order
	if err := s.db.WithContext(ctx).Where("id = ?", orderID).First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}
	return &o, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", apperr.Field("email", "required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.Field("email", "not a valid address")
	}
	return email, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
