// Package inventory 管理每个商品的一次性库存池：计数、导入、认领、人工标记和删除。
package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/model"
	"storefront/internal/observability"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrItemNotFound    = apperr.NotFound("inventory: item not found")
	ErrProductNotFound = apperr.NotFound("inventory: product not found")
	ErrInvalidItemType = apperr.Invalid("inventory: item type must be ACCOUNT or CODE")
	ErrEmptyValue      = apperr.Invalid("inventory: item value is required")
)

const importBatchSize = 500

// Store 库存存储，持有调用方注入的 *gorm.DB。
type Store struct {
	db      *gorm.DB
	log     *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

func NewStore(db *gorm.DB, logger *zap.Logger, metrics *observability.Metrics) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewMetrics(nil)
	}
	return &Store{
		db:      db,
		log:     logger.With(zap.String("component", "inventory")),
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CountAvailable 统计 is_used=false 的条目数（展示库存）。
func (s *Store) CountAvailable(ctx context.Context, productID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.InventoryItem{}).
		Where("product_id = ? AND is_used = ?", productID, false).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count available for product %d: %w", productID, err)
	}
	return n, nil
}

// CountAvailableByProducts 一次查询多个商品的可用库存，缺失的商品计为 0。
func (s *Store) CountAvailableByProducts(ctx context.Context, productIDs []uint) (map[uint]int64, error) {
	out := make(map[uint]int64, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	for _, id := range productIDs {
		out[id] = 0
	}

	var rows []struct {
		ProductID uint
		N         int64
	}
	err := s.db.WithContext(ctx).Model(&model.InventoryItem{}).
		Select("product_id, COUNT(*) AS n").
		Where("product_id IN ? AND is_used = ?", productIDs, false).
		Group("product_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count available by products: %w", err)
	}
	for _, r := range rows {
		out[r.ProductID] = r.N
	}
	return out, nil
}

// BulkImport 解析 rawLines 并批量插入，返回实际写入条数；没有有效行时返回 0。
func (s *Store) BulkImport(ctx context.Context, productID uint, itemType model.ItemType, rawLines string) (int, error) {
	return s.ImportLines(ctx, productID, itemType, ParseLines(rawLines))
}

// ImportLines 写入已解析好的行（表格导入走这里，不经过文本格式）；value 为空的行跳过。
func (s *Store) ImportLines(ctx context.Context, productID uint, itemType model.ItemType, lines []Line) (int, error) {
	if !itemType.Valid() {
		return 0, ErrInvalidItemType
	}
	kept := lines[:0:0]
	for _, l := range lines {
		if strings.TrimSpace(l.Value) != "" {
			kept = append(kept, l)
		}
	}
	lines = kept
	if len(lines) == 0 {
		return 0, nil
	}
	if err := s.ensureProduct(ctx, productID); err != nil {
		return 0, err
	}

	items := make([]model.InventoryItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, model.InventoryItem{
			ProductID: productID,
			Type:      itemType,
			Value:     l.Value,
			Note:      l.Note,
		})
	}
	if err := s.db.WithContext(ctx).CreateInBatches(items, importBatchSize).Error; err != nil {
		return 0, fmt.Errorf("bulk import for product %d: %w", productID, err)
	}

	s.log.Info("inventory_imported",
		zap.Uint("product_id", productID),
		zap.String("type", string(itemType)),
		zap.Int("count", len(items)),
	)
	return len(items), nil
}

// Create 单条录入。
func (s *Store) Create(ctx context.Context, productID uint, itemType model.ItemType, value, note string) (*model.InventoryItem, error) {
	if !itemType.Valid() {
		return nil, ErrInvalidItemType
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, ErrEmptyValue
	}
	if err := s.ensureProduct(ctx, productID); err != nil {
		return nil, err
	}
	item := &model.InventoryItem{
		ProductID: productID,
		Type:      itemType,
		Value:     value,
		Note:      optional(note),
	}
	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, fmt.Errorf("create item for product %d: %w", productID, err)
	}
	return item, nil
}

// Update 修改 value/note，不触碰使用状态。
func (s *Store) Update(ctx context.Context, itemID uint, value, note string) (*model.InventoryItem, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, ErrEmptyValue
	}
	res := s.db.WithContext(ctx).Model(&model.InventoryItem{}).
		Where("id = ?", itemID).
		Updates(map[string]any{
			"value":      value,
			"note":       optional(note),
			"updated_at": s.now(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("update item %d: %w", itemID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrItemNotFound
	}
	return s.Get(ctx, itemID)
}

// SetUsed 管理员手动标记。
// used=false 一次性清空 is_used/used_at/order_id，条目回到可用池；
// used=true 只打 used_at，不关联订单（订单流之外的人工预留）。
func (s *Store) SetUsed(ctx context.Context, itemID uint, used bool) (*model.InventoryItem, error) {
	now := s.now()
	updates := map[string]any{
		"is_used":    used,
		"updated_at": now,
	}
	if used {
		updates["used_at"] = now
	} else {
		updates["used_at"] = nil
		updates["order_id"] = nil
	}

	res := s.db.WithContext(ctx).Model(&model.InventoryItem{}).Where("id = ?", itemID).Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("set used=%t on item %d: %w", used, itemID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrItemNotFound
	}
	s.log.Info("inventory_item_toggled", zap.Uint("item_id", itemID), zap.Bool("used", used))
	return s.Get(ctx, itemID)
}

// Delete 无条件删除；不影响订单状态。
func (s *Store) Delete(ctx context.Context, itemID uint) error {
	res := s.db.WithContext(ctx).Delete(&model.InventoryItem{}, itemID)
	if res.Error != nil {
		return fmt.Errorf("delete item %d: %w", itemID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrItemNotFound
	}
	s.log.Info("inventory_item_deleted", zap.Uint("item_id", itemID))
	return nil
}

func (s *Store) Get(ctx context.Context, itemID uint) (*model.InventoryItem, error) {
	var item model.InventoryItem
	if err := s.db.WithContext(ctx).First(&item, itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("get item %d: %w", itemID, err)
	}
	return &item, nil
}

// ListByOrder 某订单绑定的全部条目（通常 0 或 1 条），按认领顺序。
func (s *Store) ListByOrder(ctx context.Context, orderID string) ([]model.InventoryItem, error) {
	items := make([]model.InventoryItem, 0)
	err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("list items for order %s: %w", orderID, err)
	}
	return items, nil
}

// ListByProduct 管理后台按商品查看，新录入的在前。
func (s *Store) ListByProduct(ctx context.Context, productID uint) ([]model.InventoryItem, error) {
	items := make([]model.InventoryItem, 0)
	err := s.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC, id DESC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("list items for product %d: %w", productID, err)
	}
	return items, nil
}

// ListLatest 最近录入的条目。
func (s *Store) ListLatest(ctx context.Context, limit int) ([]model.InventoryItem, error) {
	if limit <= 0 {
		limit = 100
	}
	items := make([]model.InventoryItem, 0, limit)
	err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit).Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("list latest items: %w", err)
	}
	return items, nil
}

func (s *Store) ensureProduct(ctx context.Context, productID uint) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.Product{}).Where("id = ?", productID).Count(&n).Error; err != nil {
		return fmt.Errorf("check product %d: %w", productID, err)
	}
	if n == 0 {
		return ErrProductNotFound
	}
	return nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
