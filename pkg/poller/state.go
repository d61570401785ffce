// Package poller 单次支付尝试的轮询状态机
package poller

// State 轮询状态
type State string

const (
	StateIdle       State = "idle"
	StateInitiating State = "initiating"
	StatePolling    State = "polling"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
	StateGaveUp     State = "gave_up" // 预算耗尽，支付仍可能在之后完成
)

// IsTerminal 是否停止轮询
func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateGaveUp
}

// Event 驱动状态变化的事件
type Event string

const (
	EventSubmit          Event = "submit"
	EventInitiated       Event = "initiated"
	EventInitiateFailed  Event = "initiate_failed"
	EventComplete        Event = "complete"
	EventFailed          Event = "failed"
	EventPending         Event = "pending" // pending 或 unknown
	EventCheckError      Event = "check_error"
	EventBudgetExhausted Event = "budget_exhausted"
)

type edge struct {
	from  State
	event Event
}

var transitions = map[edge]State{
	{StateIdle, EventSubmit}:               StateInitiating,
	{StateInitiating, EventInitiated}:      StatePolling,
	{StateInitiating, EventInitiateFailed}: StateFailed,

	{StatePolling, EventComplete}:        StateSucceeded,
	{StatePolling, EventFailed}:          StateFailed,
	{StatePolling, EventPending}:         StatePolling,
	{StatePolling, EventCheckError}:      StatePolling,
	{StatePolling, EventBudgetExhausted}: StateGaveUp,

	// gave_up 可以按需复查
	{StateGaveUp, EventComplete}:   StateSucceeded,
	{StateGaveUp, EventFailed}:     StateFailed,
	{StateGaveUp, EventPending}:    StateGaveUp,
	{StateGaveUp, EventCheckError}: StateGaveUp,
}

// Transition 纯函数，返回下一个状态以及事件是否被接受
// 不被接受的事件保持原状态
func Transition(current State, event Event) (State, bool) {
	next, ok := transitions[edge{current, event}]
	if !ok {
		return current, false
	}
	return next, true
}
