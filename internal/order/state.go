package order

import "storefront/internal/model"

// transitions 合法的状态迁移；PAID 与 FAILED 为终态。
var transitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderPending: {model.OrderPaid, model.OrderFailed},
}

// Decision CheckTransition 的结论。
type Decision int

const (
	// Apply 需要写库并执行副作用。
	Apply Decision = iota
	// Noop 目标状态与当前相同，直接成功。
	Noop
	// Reject 非法迁移。
	Reject
)

// CheckTransition 判断 from -> to 是否合法。
func CheckTransition(from, to model.OrderStatus) Decision {
	if from == to {
		return Noop
	}
	for _, next := range transitions[from] {
		if next == to {
			return Apply
		}
	}
	return Reject
}

// IsTerminal 终态不再有出边。
func IsTerminal(s model.OrderStatus) bool {
	return len(transitions[s]) == 0
}
