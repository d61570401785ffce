// Package response 提供统一的 HTTP 响应处理
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studysphere/pkg/logger"
)

// 预定义响应状态
const (
	Success = "success" // 成功状态
	Error   = "error"   // 错误状态
)

/* 标准响应结构
{
    "status": "success",
    "data": {},     // 成功时返回的数据
    "error": "",    // 错误时返回的信息，失败响应必定携带
    "message": "",  // 提示信息
}
*/

// Response 统一响应结构体
type Response struct {
	Status  string      `json:"status"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// ------------------ 成功响应系列 ------------------

// Data 响应 200 和数据
func Data(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Status: Success,
		Data:   data,
	})
}

// JSON 直接返回 JSON 数据
func JSON(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created 成功创建的响应
func Created(c *gin.Context, data interface{}, msg ...string) {
	c.JSON(http.StatusCreated, Response{
		Status:  Success,
		Message: getMsg("created", msg...),
		Data:    data,
	})
}

// Accepted 已受理，异步处理
func Accepted(c *gin.Context, data interface{}, msg ...string) {
	c.JSON(http.StatusAccepted, Response{
		Status:  Success,
		Message: getMsg("accepted", msg...),
		Data:    data,
	})
}

//  ------------------ 错误响应系列 ------------------

// Abort400 响应 400 错误
func Abort400(c *gin.Context, msg ...string) {
	abort(c, http.StatusBadRequest, getMsg("bad request", msg...))
}

// Abort404 响应 404 错误
func Abort404(c *gin.Context, msg ...string) {
	abort(c, http.StatusNotFound, getMsg("resource not found", msg...))
}

// Abort429 响应 429 错误
func Abort429(c *gin.Context, msg ...string) {
	abort(c, http.StatusTooManyRequests, getMsg("too many requests, please try again later", msg...))
}

// Abort500 响应 500 错误
func Abort500(c *gin.Context, msg ...string) {
	abort(c, http.StatusInternalServerError, getMsg("internal server error", msg...))
}

// BadRequest 响应 400 错误（带错误信息）
func BadRequest(c *gin.Context, err error) {
	logger.LogWarnIf(err)
	abort(c, http.StatusBadRequest, err.Error())
}

// NotFound 响应 404 错误（带错误信息）
func NotFound(c *gin.Context, err error) {
	abort(c, http.StatusNotFound, err.Error())
}

// ServerError 响应 500 错误
// msg 为返回给用户的简短信息，err 只写日志
func ServerError(c *gin.Context, err error, msg ...string) {
	logger.LogIf(err)
	abort(c, http.StatusInternalServerError, getMsg("internal server error", msg...))
}

// ValidationError 响应 400 表单验证错误
func ValidationError(c *gin.Context, err error, errors map[string][]string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{
		Status:  Error,
		Error:   err.Error(),
		Message: "validation failed",
		Data:    errors,
	})
}

func abort(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, Response{
		Status: Error,
		Error:  msg,
	})
}

// getMsg 获取消息内容
func getMsg(defaultMsg string, msg ...string) string {
	if len(msg) > 0 && msg[0] != "" {
		return msg[0]
	}
	return defaultMsg
}
