package config

import (
	"studysphere/pkg/config"
)

func init() {
	config.Add("payment", func() map[string]interface{} {
		return map[string]interface{}{
			// 支付渠道：intasend（默认，M-Pesa STK Push）、alipay、wechat
			"provider": config.Env("PAYMENT_PROVIDER", "intasend"),
			"currency": config.Env("PAYMENT_CURRENCY", "KES"),
			"method":   config.Env("PAYMENT_METHOD", "M-PESA"),

			"intasend": map[string]interface{}{
				"base_url":    config.Env("INTASEND_BASE_URL", "https://sandbox.intasend.com/api/v1"),
				"secret_key":  config.Env("INTASEND_SECRET_KEY", ""),
				"push_path":   config.Env("INTASEND_PUSH_PATH", "/payment/mpesa-stk-push/"),
				"status_path": config.Env("INTASEND_STATUS_PATH", "/payment/status/%s/"),
				"timeout":     config.Env("INTASEND_TIMEOUT", 30),
				"max_retries": config.Env("INTASEND_MAX_RETRIES", 2),
				"label":       config.Env("INTASEND_WALLET_LABEL", "StudySphere Payment"),
			},

			"alipay": map[string]interface{}{
				"app_id":        config.Env("ALIPAY_APP_ID", ""),
				"private_key":   config.Env("ALIPAY_PRIVATE_KEY", ""),
				"public_key":    config.Env("ALIPAY_PUBLIC_KEY", ""),
				"notify_url":    config.Env("ALIPAY_NOTIFY_URL", ""),
				"return_url":    config.Env("ALIPAY_RETURN_URL", ""),
				"is_production": config.Env("ALIPAY_IS_PRODUCTION", false),
			},

			"wechat": map[string]interface{}{
				"app_id":      config.Env("WECHAT_APP_ID", ""),
				"mch_id":      config.Env("WECHAT_MCH_ID", ""),
				"serial_no":   config.Env("WECHAT_SERIAL_NO", ""),
				"private_key": config.Env("WECHAT_PRIVATE_KEY_PATH", ""),
				"api_v3_key":  config.Env("WECHAT_API_V3_KEY", ""),
				"notify_url":  config.Env("WECHAT_NOTIFY_URL", ""),
			},
		}
	})
}

// IntaSendConfig IntaSend（M-Pesa STK Push）配置
type IntaSendConfig struct {
	BaseURL    string
	SecretKey  string
	PushPath   string
	StatusPath string
	Timeout    int
	MaxRetries int
	Label      string
}

// WechatConfig 微信支付配置
type WechatConfig struct {
	AppID      string
	MchID      string
	SerialNo   string
	PrivateKey string
	APIv3Key   string
	NotifyURL  string
}

// AlipayConfig 支付宝配置
type AlipayConfig struct {
	AppID        string
	PrivateKey   string
	PublicKey    string
	NotifyURL    string
	ReturnURL    string
	IsProduction bool
}

// LoadIntaSendConfig 从配置中读取 IntaSend 配置
func LoadIntaSendConfig() IntaSendConfig {
	return IntaSendConfig{
		BaseURL:    config.GetString("payment.intasend.base_url"),
		SecretKey:  config.GetString("payment.intasend.secret_key"),
		PushPath:   config.GetString("payment.intasend.push_path"),
		StatusPath: config.GetString("payment.intasend.status_path"),
		Timeout:    config.GetInt("payment.intasend.timeout", 30),
		MaxRetries: config.GetInt("payment.intasend.max_retries", 2),
		Label:      config.GetString("payment.intasend.label"),
	}
}

// LoadAlipayConfig 从配置中读取支付宝配置
func LoadAlipayConfig() AlipayConfig {
	return AlipayConfig{
		AppID:        config.GetString("payment.alipay.app_id"),
		PrivateKey:   config.GetString("payment.alipay.private_key"),
		PublicKey:    config.GetString("payment.alipay.public_key"),
		NotifyURL:    config.GetString("payment.alipay.notify_url"),
		ReturnURL:    config.GetString("payment.alipay.return_url"),
		IsProduction: config.GetBool("payment.alipay.is_production"),
	}
}

// LoadWechatConfig 从配置中读取微信支付配置
func LoadWechatConfig() WechatConfig {
	return WechatConfig{
		AppID:      config.GetString("payment.wechat.app_id"),
		MchID:      config.GetString("payment.wechat.mch_id"),
		SerialNo:   config.GetString("payment.wechat.serial_no"),
		PrivateKey: config.GetString("payment.wechat.private_key"),
		APIv3Key:   config.GetString("payment.wechat.api_v3_key"),
		NotifyURL:  config.GetString("payment.wechat.notify_url"),
	}
}
