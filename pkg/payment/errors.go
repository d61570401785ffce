package payment

import (
	"errors"
	"fmt"
)

// ErrTerminalStatus 支付已处于终态，拒绝再次修改
var ErrTerminalStatus = errors.New("payment already in terminal status")

// ValidationError 调用方输入缺失或格式错误，不会自动重试
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// GatewayError 支付网关调用失败或返回了非成功状态
type GatewayError struct {
	Op         string // initiate / query
	StatusCode int
	Message    string // 网关返回的错误信息
	Err        error
}

func (e *GatewayError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("gateway %s failed (status %d): %s", e.Op, e.StatusCode, msg)
	}
	return fmt.Sprintf("gateway %s failed: %s", e.Op, msg)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// PersistenceError 本地存储操作失败
type PersistenceError struct {
	Op        string
	Reference string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist payment %s (%s): %v", e.Op, e.Reference, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NotFoundError 对账时找不到对应的支付记录
type NotFoundError struct {
	Reference string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("payment %s not found", e.Reference)
}

// ConflictError provider_reference 已存在
type ConflictError struct {
	Reference string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("payment %s already exists", e.Reference)
}

// IsValidation 判断是否为输入校验错误
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsNotFound 判断是否为记录不存在
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsGateway 判断是否为网关错误
func IsGateway(err error) bool {
	var g *GatewayError
	return errors.As(err, &g)
}
