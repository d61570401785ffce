// Package factory 根据配置选择支付网关
package factory

import (
	"fmt"

	model "studysphere/app/models/payment"
	"studysphere/config"
	"studysphere/pkg/payment/alipay"
	"studysphere/pkg/payment/intasend"
	"studysphere/pkg/payment/types"
	"studysphere/pkg/payment/wechat"
)

// NewGateway 创建指定渠道的网关
func NewGateway(provider model.Provider) (types.Gateway, error) {
	switch provider {
	case model.ProviderIntaSend, "":
		return intasend.NewIntaSendService(config.LoadIntaSendConfig())
	case model.ProviderAlipay:
		return alipay.NewAlipayService(config.LoadAlipayConfig())
	case model.ProviderWechat:
		return wechat.NewWechatPayService(config.LoadWechatConfig())
	default:
		return nil, fmt.Errorf("unsupported payment provider: %s", provider)
	}
}
