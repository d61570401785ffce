package poller

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		from   State
		event  Event
		want   State
		accept bool
	}{
		{StateIdle, EventSubmit, StateInitiating, true},
		{StateInitiating, EventInitiated, StatePolling, true},
		{StateInitiating, EventInitiateFailed, StateFailed, true},
		{StatePolling, EventComplete, StateSucceeded, true},
		{StatePolling, EventFailed, StateFailed, true},
		{StatePolling, EventPending, StatePolling, true},
		{StatePolling, EventCheckError, StatePolling, true},
		{StatePolling, EventBudgetExhausted, StateGaveUp, true},
		{StateGaveUp, EventComplete, StateSucceeded, true},
		{StateGaveUp, EventFailed, StateFailed, true},
		{StateGaveUp, EventPending, StateGaveUp, true},

		// 不允许的事件保持原状态
		{StateIdle, EventComplete, StateIdle, false},
		{StateSucceeded, EventFailed, StateSucceeded, false},
		{StateFailed, EventComplete, StateFailed, false},
		{StateInitiating, EventComplete, StateInitiating, false},
		{StateSucceeded, EventSubmit, StateSucceeded, false},
	}

	for _, tt := range tests {
		got, ok := Transition(tt.from, tt.event)
		assert.Equal(t, tt.want, got, "%s --%s-->", tt.from, tt.event)
		assert.Equal(t, tt.accept, ok, "%s --%s-->", tt.from, tt.event)
	}
}

func TestStateIsTerminal(t *testing.T) {
	assert.True(t, StateSucceeded.IsTerminal())
	assert.True(t, StateFailed.IsTerminal())
	assert.True(t, StateGaveUp.IsTerminal())
	assert.False(t, StatePolling.IsTerminal())
	assert.False(t, StateInitiating.IsTerminal())
	assert.False(t, StateIdle.IsTerminal())
}
