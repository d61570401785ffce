package alipay

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"studysphere/pkg/payment/types"
)

func TestTradeState(t *testing.T) {
	assert.Equal(t, types.StateComplete, tradeState("TRADE_SUCCESS"))
	assert.Equal(t, types.StateComplete, tradeState("TRADE_FINISHED"))
	assert.Equal(t, types.StateFailed, tradeState("TRADE_CLOSED"))
	assert.Equal(t, types.StatePending, tradeState("WAIT_BUYER_PAY"))
	assert.Equal(t, types.StateUnknown, tradeState(""))
	assert.Equal(t, types.StateUnknown, tradeState("TRADE_PENDING_REVIEW"))
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "Premium", subject(&types.GatewayRequest{Description: "Premium"}))
	assert.Equal(t, "StudySphere Payment", subject(&types.GatewayRequest{}))
}
