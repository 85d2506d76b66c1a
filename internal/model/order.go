package model

import (
	"strings"
	"time"
)

// OrderStatus 订单状态：PENDING -> PAID | FAILED，后两者为终态。
type OrderStatus string

const (
	OrderPending OrderStatus = "PENDING"
	OrderPaid    OrderStatus = "PAID"
	OrderFailed  OrderStatus = "FAILED"
)

// ParseOrderStatus 大小写不敏感地解析状态字符串。
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch st := OrderStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case OrderPending, OrderPaid, OrderFailed:
		return st, true
	default:
		return "", false
	}
}

// PaymentMethod 下单时选择的支付方式（可空）。
type PaymentMethod string

const (
	PaymentAlipay PaymentMethod = "ALIPAY"
	PaymentWechat PaymentMethod = "WECHAT"
	PaymentManual PaymentMethod = "MANUAL"
)

// ParsePaymentMethod 大小写不敏感地解析支付方式。
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch pm := PaymentMethod(strings.ToUpper(strings.TrimSpace(s))); pm {
	case PaymentAlipay, PaymentWechat, PaymentManual:
		return pm, true
	default:
		return "", false
	}
}

// Order 单商品订单。Amount/Currency 是创建时的快照，之后不再从商品重新计算。
type Order struct {
	ID        string    `gorm:"primarykey;size:36" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProductSlug   string         `gorm:"size:128;not null;index" json:"product_slug"`
	Email         string         `gorm:"size:255;not null;index" json:"email"`
	Notes         *string        `gorm:"type:text" json:"notes,omitempty"`
	Status        OrderStatus    `gorm:"size:16;not null;default:PENDING;index" json:"status"`
	Amount        int64          `gorm:"not null" json:"amount"`
	Currency      string         `gorm:"size:8;not null" json:"currency"`
	PaymentMethod *PaymentMethod `gorm:"size:16" json:"payment_method,omitempty"`
	UserID        *string        `gorm:"size:64;index" json:"user_id,omitempty"`
	PaidAt        *time.Time     `json:"paid_at,omitempty"`
}

// 显式实现结构，确定表名
func (Order) TableName() string { return "orders" }
