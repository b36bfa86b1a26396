package common

import (
	"errors"
	"fmt"
)

// ErrorKind 错误分类
type ErrorKind int

const (
	// KindValidation 请求参数错误 → 400
	KindValidation ErrorKind = iota
	// KindNotFound 资源不存在（包括零行变更）→ 404
	KindNotFound
	// KindExternal 外部服务调用失败（嵌入服务/向量索引）→ 500
	KindExternal
	// KindStore 存储层错误（连接/约束失败）→ 500
	KindStore
)

// AppError 业务错误
// 在请求边界统一转换为错误响应包络
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error // 底层错误（可选）
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 支持 errors.Is / errors.As
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewValidationError 创建参数校验错误
func NewValidationError(message string) *AppError {
	return &AppError{Kind: KindValidation, Message: message}
}

// NewNotFoundError 创建资源不存在错误
func NewNotFoundError(message string) *AppError {
	return &AppError{Kind: KindNotFound, Message: message}
}

// NewExternalServiceError 创建外部服务错误，底层错误信息保留以便排查
func NewExternalServiceError(message string, err error) *AppError {
	return &AppError{Kind: KindExternal, Message: message, Err: err}
}

// NewStoreError 创建存储层错误
func NewStoreError(message string, err error) *AppError {
	return &AppError{Kind: KindStore, Message: message, Err: err}
}

// KindOf 提取错误分类，非业务错误一律按存储层错误处理
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindStore
}
