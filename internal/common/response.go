package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// 响应包络:
//   成功: {"message": "success", "data": <object|array>}
//   失败: {"error": "<message>"} + 非 2xx 状态码

// SuccessEnvelope 成功响应包络
type SuccessEnvelope struct {
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// ErrorEnvelope 错误响应包络
type ErrorEnvelope struct {
	Error string `json:"error"`
}

// ResponseSuccess 200 成功响应
func ResponseSuccess(c *gin.Context, data any) {
	c.JSON(http.StatusOK, SuccessEnvelope{Message: "success", Data: data})
}

// ResponseSuccessMessage 200 成功响应（自定义提示信息）
func ResponseSuccessMessage(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, SuccessEnvelope{Message: message, Data: data})
}

// ResponseCreated 201 创建成功
func ResponseCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, SuccessEnvelope{Message: "success", Data: data})
}

// ResponseBadRequest 400 参数错误
func ResponseBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorEnvelope{Error: message})
}

// ResponseNotFound 404 资源不存在
func ResponseNotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, ErrorEnvelope{Error: message})
}

// ResponseServerError 500 内部错误
func ResponseServerError(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, ErrorEnvelope{Error: message})
}

// ResponseError 按错误分类映射状态码
func ResponseError(c *gin.Context, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		switch appErr.Kind {
		case KindValidation:
			ResponseBadRequest(c, appErr.Message)
		case KindNotFound:
			ResponseNotFound(c, appErr.Message)
		default:
			// 外部服务错误保留底层信息以便排查
			ResponseServerError(c, appErr.Error())
		}
		return
	}
	ResponseServerError(c, err.Error())
}
