package wechat

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wechatpay-apiv3/wechatpay-go/core"

	"studysphere/pkg/payment"
	"studysphere/pkg/payment/types"
)

func TestTradeState(t *testing.T) {
	assert.Equal(t, types.StateComplete, tradeState("SUCCESS"))
	for _, s := range []string{"CLOSED", "PAYERROR", "REVOKED"} {
		assert.Equal(t, types.StateFailed, tradeState(s), s)
	}
	assert.Equal(t, types.StatePending, tradeState("NOTPAY"))
	assert.Equal(t, types.StatePending, tradeState("USERPAYING"))
	assert.Equal(t, types.StateUnknown, tradeState("REFUND"))
	assert.Equal(t, types.StateUnknown, tradeState(""))
}

func TestGatewayError(t *testing.T) {
	err := gatewayError("query", &core.APIError{StatusCode: http.StatusNotFound, Code: "ORDER_NOT_EXIST", Message: "订单不存在"})

	var gErr *payment.GatewayError
	require.True(t, errors.As(err, &gErr))
	assert.Equal(t, http.StatusNotFound, gErr.StatusCode)
	assert.Equal(t, "订单不存在", gErr.Message)

	err = gatewayError("initiate", errors.New("dial tcp: timeout"))
	require.True(t, errors.As(err, &gErr))
	assert.Equal(t, "initiate", gErr.Op)
}
