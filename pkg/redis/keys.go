package redis

import "fmt"

const keyPrefix = "storefront"

// CheckoutRateKey 下单限流窗口键，subject 为邮箱或客户端 IP。
func CheckoutRateKey(kind, subject string) string {
	return fmt.Sprintf("%s:rate_limit:checkout:%s:%s", keyPrefix, kind, subject)
}

// NotifyOnceKey 标记某订单的某类通知是否已发送过。
func NotifyOnceKey(orderID, kind string) string {
	return fmt.Sprintf("%s:notify:sent:%s:%s", keyPrefix, orderID, kind)
}
