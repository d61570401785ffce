package wechat

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/wechatpay-apiv3/wechatpay-go/core"
	"github.com/wechatpay-apiv3/wechatpay-go/core/option"
	"github.com/wechatpay-apiv3/wechatpay-go/services/payments/native"
	"github.com/wechatpay-apiv3/wechatpay-go/utils"

	model "studysphere/app/models/payment"
	"studysphere/config"
	"studysphere/pkg/payment"
	"studysphere/pkg/payment/types"
)

// WechatPayService 微信支付 Native 网关，以本地 api_ref 作为商户订单号
type WechatPayService struct {
	client    *core.Client
	appID     string
	mchID     string
	notifyURL string
}

// NewWechatPayService 创建微信支付网关
func NewWechatPayService(config config.WechatConfig) (*WechatPayService, error) {
	// 1. 加载商户私钥
	mchPrivateKey, err := utils.LoadPrivateKeyWithPath(config.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("load merchant private key error: %w", err)
	}

	// 2. 自动获取平台证书
	opts := []core.ClientOption{
		option.WithWechatPayAutoAuthCipher(
			config.MchID,
			config.SerialNo,
			mchPrivateKey,
			config.APIv3Key,
		),
	}

	client, err := core.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("create wechat pay client error: %w", err)
	}

	return &WechatPayService{
		client:    client,
		appID:     config.AppID,
		mchID:     config.MchID,
		notifyURL: config.NotifyURL,
	}, nil
}

// Name 渠道名称
func (s *WechatPayService) Name() model.Provider {
	return model.ProviderWechat
}

// Initiate Native 下单，返回二维码链接
func (s *WechatPayService) Initiate(ctx context.Context, req *types.GatewayRequest) (*types.GatewayResult, error) {
	description := req.Description
	if description == "" {
		description = "StudySphere Payment"
	}

	svc := native.NativeApiService{Client: s.client}
	resp, result, err := svc.Prepay(ctx, native.PrepayRequest{
		Appid:       core.String(s.appID),
		Mchid:       core.String(s.mchID),
		Description: core.String(description),
		OutTradeNo:  core.String(req.APIRef),
		NotifyUrl:   core.String(s.notifyURL),
		Amount: &native.Amount{
			// 微信以分为单位
			Total:    core.Int64(req.Amount.Shift(2).IntPart()),
			Currency: core.String(req.Currency),
		},
	})
	if err != nil {
		return nil, gatewayError("initiate", err)
	}
	if result != nil && result.Response.StatusCode != http.StatusOK {
		return nil, &payment.GatewayError{Op: "initiate", StatusCode: result.Response.StatusCode}
	}

	var codeURL string
	if resp != nil && resp.CodeUrl != nil {
		codeURL = *resp.CodeUrl
	}

	return &types.GatewayResult{
		ProviderReference: req.APIRef,
		PaymentURL:        codeURL,
	}, nil
}

// QueryStatus 按商户订单号查询
func (s *WechatPayService) QueryStatus(ctx context.Context, reference string) (*types.StatusResult, error) {
	svc := native.NativeApiService{Client: s.client}
	tx, _, err := svc.QueryOrderByOutTradeNo(ctx, native.QueryOrderByOutTradeNoRequest{
		OutTradeNo: core.String(reference),
		Mchid:      core.String(s.mchID),
	})
	if err != nil {
		return nil, gatewayError("query", err)
	}

	var raw string
	if tx != nil && tx.TradeState != nil {
		raw = *tx.TradeState
	}

	return &types.StatusResult{
		State:    tradeState(raw),
		RawState: raw,
	}, nil
}

// tradeState 微信交易状态映射
func tradeState(state string) types.ProviderState {
	switch state {
	case "SUCCESS":
		return types.StateComplete
	case "CLOSED", "PAYERROR", "REVOKED":
		return types.StateFailed
	case "NOTPAY", "USERPAYING":
		return types.StatePending
	default:
		return types.StateUnknown
	}
}

func gatewayError(op string, err error) error {
	var apiErr *core.APIError
	if errors.As(err, &apiErr) {
		return &payment.GatewayError{
			Op:         op,
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Message,
			Err:        err,
		}
	}
	return &payment.GatewayError{Op: op, Err: err}
}
