package client

import (
	"encoding/json"
	"fmt"

	"github.com/weisyn/libretto-go/types"
)

// Error 客户端错误
type Error struct {
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("client error [%d]: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("client error [%d]: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// 错误码定义
const (
	ErrCodeNetwork         = 1000 // 网络错误
	ErrCodeTimeout         = 1001 // 超时错误
	ErrCodeInvalidResponse = 1002 // 无效响应
	ErrCodeNotSupported    = 1004 // 不支持的操作
)

// NewNetworkError 创建网络错误
func NewNetworkError(err error) *Error {
	return &Error{Code: ErrCodeNetwork, Message: "network error", Err: err}
}

// NewTimeoutError 创建超时错误
func NewTimeoutError() *Error {
	return &Error{Code: ErrCodeTimeout, Message: "request timeout"}
}

// NewInvalidResponseError 创建无效响应错误
func NewInvalidResponseError(message string) *Error {
	return &Error{Code: ErrCodeInvalidResponse, Message: message}
}

// NewNotSupportedError 创建不支持的操作错误
func NewNotSupportedError(operation string) *Error {
	return &Error{Code: ErrCodeNotSupported, Message: fmt.Sprintf("operation not supported: %s", operation)}
}

// RPCError 节点返回的 JSON-RPC 错误
//
// Error() 返回节点给出的原始消息；带 Problem Details 时，
// errors.Is / errors.As 可以直接匹配还原出的 *types.VaultError。
type RPCError struct {
	Code    int
	Message string
	Problem *types.ProblemDetails
	vault   *types.VaultError
}

func (e *RPCError) Error() string {
	if e.vault != nil {
		return e.vault.Error()
	}
	return e.Message
}

func (e *RPCError) Unwrap() error {
	if e.vault == nil {
		return nil
	}
	return e.vault
}

// VaultError 还原出的金库错误（无 Problem Details 时为 nil）
func (e *RPCError) VaultError() *types.VaultError {
	return e.vault
}

// newRPCError 从 JSON-RPC 错误对象构建 RPCError
func newRPCError(raw *jsonRPCError) *RPCError {
	e := &RPCError{Code: raw.Code, Message: raw.Message}
	if len(raw.Data) == 0 {
		return e
	}
	var data interface{}
	if err := json.Unmarshal(raw.Data, &data); err != nil {
		return e
	}
	if pd, err := types.ParseProblemDetails(data); err == nil {
		e.Problem = pd
		e.vault = pd.ToVaultError()
	}
	return e
}

// IsVaultError 检查错误链中是否为金库错误
func IsVaultError(err error) (*types.VaultError, bool) {
	return types.AsVaultError(err)
}
