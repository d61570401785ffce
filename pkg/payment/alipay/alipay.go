package alipay

import (
	"context"
	"fmt"

	"github.com/smartwalle/alipay/v3"

	model "studysphere/app/models/payment"
	"studysphere/config"
	"studysphere/pkg/payment"
	"studysphere/pkg/payment/types"
)

// tradeNotExist 买家尚未扫码时支付宝侧还没有交易
const tradeNotExist = "ACQ.TRADE_NOT_EXIST"

// AlipayService 支付宝网关，以本地 api_ref 作为商户订单号
type AlipayService struct {
	client    *alipay.Client
	notifyURL string
	returnURL string
}

// NewAlipayService 创建支付宝网关
func NewAlipayService(config config.AlipayConfig) (*AlipayService, error) {
	client, err := alipay.New(config.AppID, config.PrivateKey, config.IsProduction)
	if err != nil {
		return nil, fmt.Errorf("create alipay client error: %w", err)
	}

	if err := client.LoadAliPayPublicKey(config.PublicKey); err != nil {
		return nil, fmt.Errorf("load alipay public key error: %w", err)
	}

	return &AlipayService{
		client:    client,
		notifyURL: config.NotifyURL,
		returnURL: config.ReturnURL,
	}, nil
}

// Name 渠道名称
func (s *AlipayService) Name() model.Provider {
	return model.ProviderAlipay
}

// Initiate 生成电脑网站支付链接
func (s *AlipayService) Initiate(ctx context.Context, req *types.GatewayRequest) (*types.GatewayResult, error) {
	trade := alipay.TradePagePay{}
	trade.NotifyURL = s.notifyURL
	trade.ReturnURL = s.returnURL
	trade.Subject = subject(req)
	trade.OutTradeNo = req.APIRef
	trade.TotalAmount = req.Amount.StringFixed(2)
	trade.ProductCode = "FAST_INSTANT_TRADE_PAY"

	url, err := s.client.TradePagePay(trade)
	if err != nil {
		return nil, &payment.GatewayError{Op: "initiate", Err: err}
	}

	return &types.GatewayResult{
		ProviderReference: req.APIRef,
		PaymentURL:        url.String(),
	}, nil
}

// QueryStatus 查询交易状态
func (s *AlipayService) QueryStatus(ctx context.Context, reference string) (*types.StatusResult, error) {
	rsp, err := s.client.TradeQuery(ctx, alipay.TradeQuery{OutTradeNo: reference})
	if err != nil {
		return nil, &payment.GatewayError{Op: "query", Err: err}
	}

	if rsp.IsFailure() {
		if rsp.SubCode == tradeNotExist {
			return &types.StatusResult{State: types.StatePending, RawState: rsp.SubCode}, nil
		}
		return nil, &payment.GatewayError{
			Op:      "query",
			Message: fmt.Sprintf("%s %s", rsp.Msg, rsp.SubMsg),
		}
	}

	return &types.StatusResult{
		State:    tradeState(string(rsp.TradeStatus)),
		RawState: string(rsp.TradeStatus),
	}, nil
}

// tradeState 支付宝交易状态映射
func tradeState(status string) types.ProviderState {
	switch alipay.TradeStatus(status) {
	case alipay.TradeStatusSuccess, alipay.TradeStatusFinished:
		return types.StateComplete
	case alipay.TradeStatusClosed:
		return types.StateFailed
	case alipay.TradeStatusWaitBuyerPay:
		return types.StatePending
	default:
		return types.StateUnknown
	}
}

func subject(req *types.GatewayRequest) string {
	if req.Description != "" {
		return req.Description
	}
	return "StudySphere Payment"
}
