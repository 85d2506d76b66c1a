package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/model"
	"storefront/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrClaimContention 连续多次 CAS 都被其他认领者抢先。
var ErrClaimContention = errors.New("inventory: claim lost too many races")

// maxClaimAttempts 每次失败都意味着别人认领成功，池子在缩小；
// 这里只防御管理员不断把条目放回池中造成的活锁。
const maxClaimAttempts = 64

var tracer = observability.Tracer("inventory")

// ClaimOneAvailable 为订单认领一个可用条目。
//
// 分配策略：在 (product_id, is_used=false, order_id IS NULL) 中按 created_at、id 升序取第一条，
// 再用条件 UPDATE 做 compare-and-swap；RowsAffected=0 说明被并发认领抢走，重新选取。
// 条件里同时要求该订单尚未绑定任何条目，所以同一订单重复认领只会拿回已绑定的那一条。
// 库存耗尽返回 (nil, nil)，不是错误。
func (s *Store) ClaimOneAvailable(ctx context.Context, productID uint, orderID string) (_ *model.InventoryItem, err error) {
	ctx, span := tracer.Start(ctx, "inventory.ClaimOneAvailable")
	span.SetAttributes(
		attribute.Int64("product.id", int64(productID)),
		attribute.String("order.id", orderID),
	)
	start := time.Now()
	outcome := observability.ClaimClaimed
	defer func() {
		s.metrics.ClaimDuration.Observe(time.Since(start).Seconds())
		s.metrics.Claims.WithLabelValues(outcome).Inc()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if orderID == "" {
		outcome = observability.ClaimError
		return nil, fmt.Errorf("claim for product %d: order id is required", productID)
	}

	db := s.db.WithContext(ctx)
	if bound, err := s.boundItem(ctx, orderID); err != nil || bound != nil {
		if err != nil {
			outcome = observability.ClaimError
		}
		return bound, err
	}

	for attempt := 1; attempt <= maxClaimAttempts; attempt++ {
		var candidate model.InventoryItem
		err := db.Where("product_id = ? AND is_used = ? AND order_id IS NULL", productID, false).
			Order("created_at ASC, id ASC").
			Take(&candidate).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			outcome = observability.ClaimStockout
			return nil, nil
		}
		if err != nil {
			outcome = observability.ClaimError
			return nil, fmt.Errorf("select claim candidate for product %d: %w", productID, err)
		}

		now := s.now()
		res := db.Model(&model.InventoryItem{}).
			Where("id = ? AND is_used = ? AND order_id IS NULL", candidate.ID, false).
			Where("NOT EXISTS (SELECT 1 FROM inventory_items AS bound WHERE bound.order_id = ?)", orderID).
			Updates(map[string]any{
				"is_used":    true,
				"used_at":    now,
				"order_id":   orderID,
				"updated_at": now,
			})
		if res.Error != nil {
			outcome = observability.ClaimError
			return nil, fmt.Errorf("claim item %d: %w", candidate.ID, res.Error)
		}
		if res.RowsAffected == 1 {
			candidate.IsUsed = true
			candidate.UsedAt = &now
			candidate.OrderID = &orderID
			candidate.UpdatedAt = now
			s.log.Info("inventory_claimed",
				zap.Uint("product_id", productID),
				zap.Uint("item_id", candidate.ID),
				zap.String("order_id", orderID),
				zap.Int("attempt", attempt),
			)
			return &candidate, nil
		}
		// 可能是并发的同订单认领先成功了
		if bound, err := s.boundItem(ctx, orderID); err != nil || bound != nil {
			if err != nil {
				outcome = observability.ClaimError
			}
			return bound, err
		}
		s.log.Debug("inventory_claim_race_lost",
			zap.Uint("product_id", productID),
			zap.Uint("item_id", candidate.ID),
			zap.Int("attempt", attempt),
		)
	}

	outcome = observability.ClaimError
	return nil, ErrClaimContention
}

// boundItem 返回订单已绑定的最早一条，没有时为 nil。
func (s *Store) boundItem(ctx context.Context, orderID string) (*model.InventoryItem, error) {
	var item model.InventoryItem
	err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load item bound to order %s: %w", orderID, err)
	}
	return &item, nil
}
