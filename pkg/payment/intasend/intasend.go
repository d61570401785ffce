// Package intasend M-Pesa STK Push 网关（IntaSend）
package intasend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	model "studysphere/app/models/payment"
	"studysphere/config"
	"studysphere/pkg/payment"
	"studysphere/pkg/payment/types"
)

// IntaSendService IntaSend 网关，只负责与网关通信，不读写本地记录
type IntaSendService struct {
	client     *resty.Client
	pushPath   string
	statusPath string
	label      string
}

// pushBody STK Push 请求体
type pushBody struct {
	Amount      string     `json:"amount"`
	Currency    string     `json:"currency"`
	PhoneNumber string     `json:"phone_number"`
	Email       string     `json:"email,omitempty"`
	APIRef      string     `json:"api_ref"`
	Method      string     `json:"method"`
	Provider    string     `json:"provider"`
	Narrative   string     `json:"narrative,omitempty"`
	Wallet      walletBody `json:"wallet"`
}

type walletBody struct {
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email,omitempty"`
	Label       string `json:"label"`
}

// gatewayBody 网关返回中我们关心的字段
type gatewayBody struct {
	ID        string `json:"id"`
	Reference string `json:"reference"`
	State     string `json:"state"`
	Message   string `json:"message"`
	Detail    string `json:"detail"`
	Invoice   *struct {
		InvoiceID string `json:"invoice_id"`
		State     string `json:"state"`
	} `json:"invoice"`
}

// NewIntaSendService 创建 IntaSend 网关
func NewIntaSendService(cfg config.IntaSendConfig) (*IntaSendService, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("intasend secret key not configured")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("intasend base url not configured")
	}
	if cfg.PushPath == "" {
		cfg.PushPath = "/payment/mpesa-stk-push/"
	}
	if cfg.StatusPath == "" {
		cfg.StatusPath = "/payment/status/%s/"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30
	}
	if cfg.Label == "" {
		cfg.Label = "StudySphere Payment"
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetAuthToken(cfg.SecretKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(time.Duration(cfg.Timeout) * time.Second).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		// 只重试网络错误和 5xx，4xx 说明请求本身有问题
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	return &IntaSendService{
		client:     client,
		pushPath:   cfg.PushPath,
		statusPath: cfg.StatusPath,
		label:      cfg.Label,
	}, nil
}

// Name 渠道名称
func (s *IntaSendService) Name() model.Provider {
	return model.ProviderIntaSend
}

// Initiate 发起 STK Push
func (s *IntaSendService) Initiate(ctx context.Context, req *types.GatewayRequest) (*types.GatewayResult, error) {
	body := pushBody{
		Amount:      req.Amount.StringFixed(2),
		Currency:    req.Currency,
		PhoneNumber: req.PhoneNumber,
		Email:       req.Email,
		APIRef:      req.APIRef,
		Method:      req.Method,
		Provider:    "MPESA",
		Narrative:   req.Description,
		Wallet: walletBody{
			PhoneNumber: req.PhoneNumber,
			Email:       req.Email,
			Label:       s.label,
		},
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(s.pushPath)
	if err != nil {
		return nil, &payment.GatewayError{Op: "initiate", Err: err}
	}

	raw := resp.Body()
	if !resp.IsSuccess() {
		return nil, &payment.GatewayError{
			Op:         "initiate",
			StatusCode: resp.StatusCode(),
			Message:    errorMessage(raw, "payment initiation failed"),
		}
	}

	var parsed gatewayBody
	if len(raw) == 0 || json.Unmarshal(raw, &parsed) != nil {
		return nil, &payment.GatewayError{Op: "initiate", StatusCode: resp.StatusCode(), Message: "missing reference"}
	}

	reference := firstNonEmpty(parsed.ID, parsed.Reference)
	if reference == "" && parsed.Invoice != nil {
		reference = parsed.Invoice.InvoiceID
	}
	// 网关返回了合法对象但未给出引用时，沿用我们发送的 api_ref
	if reference == "" {
		reference = req.APIRef
	}

	return &types.GatewayResult{
		ProviderReference: reference,
		Raw:               raw,
	}, nil
}

// QueryStatus 查询支付状态
func (s *IntaSendService) QueryStatus(ctx context.Context, reference string) (*types.StatusResult, error) {
	if reference == "" {
		return nil, &payment.GatewayError{Op: "query", Message: "missing reference"}
	}

	resp, err := s.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf(s.statusPath, url.PathEscape(reference)))
	if err != nil {
		return nil, &payment.GatewayError{Op: "query", Err: err}
	}

	raw := resp.Body()
	if !resp.IsSuccess() {
		return nil, &payment.GatewayError{
			Op:         "query",
			StatusCode: resp.StatusCode(),
			Message:    errorMessage(raw, "payment verification failed"),
		}
	}

	var parsed gatewayBody
	if err := json.Unmarshal(raw, &parsed); err != nil {
		// 无法解析的返回当作状态未知，交给下一次轮询
		return &types.StatusResult{State: types.StateUnknown, Raw: raw}, nil
	}

	rawState := parsed.State
	if rawState == "" && parsed.Invoice != nil {
		rawState = parsed.Invoice.State
	}

	return &types.StatusResult{
		State:    types.ParseState(rawState),
		RawState: rawState,
		Raw:      raw,
	}, nil
}

// errorMessage 提取网关错误信息
func errorMessage(raw []byte, fallback string) string {
	var parsed gatewayBody
	if err := json.Unmarshal(raw, &parsed); err == nil {
		if msg := firstNonEmpty(parsed.Message, parsed.Detail); msg != "" {
			return msg
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
