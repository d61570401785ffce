// Package requests 处理请求数据和表单验证
package requests

import (
	"fmt"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/thedevsaddam/govalidator"
)

// ValidationError 表单验证错误
type ValidationError struct {
	Errors url.Values
}

// Error 实现 error 接口，只取第一条信息
func (v ValidationError) Error() string {
	for field, msgs := range v.Errors {
		if len(msgs) > 0 {
			return msgs[0]
		}
		return field + " is invalid"
	}
	return "validation failed"
}

// ValidateStruct 通用的结构体验证函数，data 必须是指针
func ValidateStruct(data interface{}, rules govalidator.MapData, messages govalidator.MapData) error {
	opts := govalidator.Options{
		Data:     data,
		Rules:    rules,
		Messages: messages,
	}

	if errs := govalidator.New(opts).ValidateStruct(); len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// normalizer 请求体在验证前需要规整的字段
type normalizer interface {
	Normalize()
}

// ValidateRequest 解析 JSON 请求体并验证
func ValidateRequest[T any](c *gin.Context, rules govalidator.MapData, messages govalidator.MapData) (*T, error) {
	var req T

	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}

	if n, ok := any(&req).(normalizer); ok {
		n.Normalize()
	}

	if err := ValidateStruct(&req, rules, messages); err != nil {
		return nil, err
	}

	return &req, nil
}
