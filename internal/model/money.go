package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// currencyExponent 记录币种的小数位；价格以该币种最小单位的整数存储。
// IDR 按整数主单位计价（与历史数据一致）。
var currencyExponent = map[string]int32{
	"IDR": 0,
	"JPY": 0,
	"USD": 2,
	"CNY": 2,
	"EUR": 2,
}

// FormatAmount 返回 "amount CURRENCY" 形式的纯文本金额，用于通知内容。
func FormatAmount(amount int64, currency string) string {
	cur := strings.ToUpper(currency)
	exp, ok := currencyExponent[cur]
	if !ok {
		exp = 2
	}
	d := decimal.New(amount, -exp)
	return d.StringFixed(exp) + " " + cur
}
