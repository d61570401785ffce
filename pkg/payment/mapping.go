package payment

import (
	model "studysphere/app/models/payment"
	"studysphere/pkg/payment/types"
)

// stateTable 网关状态到本地状态的固定映射
var stateTable = map[types.ProviderState]model.Status{
	types.StateComplete: model.StatusComplete,
	types.StateFailed:   model.StatusFailed,
	types.StatePending:  model.StatusPending,
	types.StateUnknown:  model.StatusUnknown,
}

// MapState 根据当前本地状态与网关状态计算下一个本地状态
// 已终结的记录保持不变，避免过期的查询结果覆盖终态
func MapState(current model.Status, state types.ProviderState) model.Status {
	if current.IsTerminal() {
		return current
	}
	next, ok := stateTable[state]
	if !ok {
		return model.StatusUnknown
	}
	return next
}
