package model

import "time"

// ItemType 库存条目的载荷类型。
type ItemType string

const (
	ItemTypeAccount ItemType = "ACCOUNT" // "email;password;note"
	ItemTypeCode    ItemType = "CODE"    // "CODE;note"
)

// Valid 报告类型是否为已知取值。
func (t ItemType) Valid() bool {
	return t == ItemTypeAccount || t == ItemTypeCode
}

// InventoryItem 一次性秘密（账号或兑换码）。
// IsUsed、UsedAt、OrderID 三个字段只能在同一条 UPDATE 中一起变化。
type InventoryItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProductID uint       `gorm:"not null;index" json:"product_id"`
	Type      ItemType   `gorm:"size:16;not null" json:"type"`
	Value     string     `gorm:"type:text;not null" json:"value"`
	Note      *string    `gorm:"type:text" json:"note,omitempty"`
	IsUsed    bool       `gorm:"not null;default:false;index" json:"is_used"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	OrderID   *string    `gorm:"size:36;index" json:"order_id,omitempty"`
}

func (InventoryItem) TableName() string { return "inventory_items" }
