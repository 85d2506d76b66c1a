// Package notify 负责订单通知：支付成功邮件和条目交付邮件。
// 通知在订单事件的消费端异步发送，失败只记录，不影响订单状态。
package notify

import (
	"context"
	"time"

	"storefront/internal/model"
)

// OrderSummary 通知中展示的订单信息。
type OrderSummary struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

// ProductSummary 通知中展示的商品信息；商品已删除时用订单快照兜底。
type ProductSummary struct {
	Name     string
	Slug     string
	Price    int64
	Currency string
}

// PriceText 纯文本金额，例如 "50000 IDR"。
func (p ProductSummary) PriceText() string {
	return model.FormatAmount(p.Price, p.Currency)
}

// ItemSummary 交付给客户的一条秘密。
type ItemSummary struct {
	Type  string
	Value string
	Note  string
}

// Notifier 通知网关。
type Notifier interface {
	NotifyPaid(ctx context.Context, recipient string, o OrderSummary, p ProductSummary) error
	NotifyDelivery(ctx context.Context, recipient string, o OrderSummary, p ProductSummary, items []ItemSummary) error
}

// Message 渲染好的一封邮件。
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}
