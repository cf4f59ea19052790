package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/weisyn/libretto-go/types"
)

// JSON-RPC 2.0 标准错误码
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// 金库错误码（-32000 ~ -32099 为服务端保留区间）
const (
	CodeVaultLocked        = -32001
	CodeVaultNotAuthorized = -32002
	CodeVaultConfiguration = -32003
	CodeVaultNotFound      = -32004
	CodeVaultUnsupported   = -32005
	CodeTransferFailed     = -32006
	CodeInsufficientFunds  = -32007
	CodeBadSignature       = -32008
	CodeBadNonce           = -32009
)

// Request JSON-RPC 请求
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// Response JSON-RPC 响应
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// Notification 服务端推送（订阅事件）
type Notification struct {
	JSONRPC string             `json:"jsonrpc"`
	Method  string             `json:"method"`
	Params  NotificationParams `json:"params"`
}

// NotificationParams 订阅推送参数
type NotificationParams struct {
	Subscription string      `json:"subscription"`
	Result       interface{} `json:"result"`
}

// Error JSON-RPC 错误对象，Data 为 Problem Details
type Error struct {
	Code    int                   `json:"code"`
	Message string                `json:"message"`
	Data    *types.ProblemDetails `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("json-rpc error %d: %s", e.Code, e.Message)
}

func newError(code int, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// rpcCode 金库错误码到 JSON-RPC 错误码
func rpcCode(code types.ErrorCode) int {
	switch code {
	case types.CodeLocked:
		return CodeVaultLocked
	case types.CodeNotAuthorized:
		return CodeVaultNotAuthorized
	case types.CodeConfiguration:
		return CodeVaultConfiguration
	case types.CodeNotFound:
		return CodeVaultNotFound
	case types.CodeUnsupported:
		return CodeVaultUnsupported
	case types.CodeTransferFailed:
		return CodeTransferFailed
	case types.CodeInsufficientFunds:
		return CodeInsufficientFunds
	case types.CodeBadSignature:
		return CodeBadSignature
	case types.CodeBadNonce:
		return CodeBadNonce
	case types.CodeInvalidParams:
		return CodeInvalidParams
	default:
		return CodeInternalError
	}
}

// toRPCError 把任意错误转换为 JSON-RPC 错误
//
// VaultError 的 message 保持原文，data 携带 Problem Details。
func toRPCError(err error) *Error {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	ve, ok := types.AsVaultError(err)
	if !ok {
		ve = &types.VaultError{Code: types.CodeInternal, Message: "internal error", Cause: err}
	}
	return &Error{
		Code:    rpcCode(ve.Code),
		Message: ve.Message,
		Data:    ve.ToProblemDetails(),
	}
}

// positional 解析位置参数数组
func positional(params json.RawMessage, min int) ([]json.RawMessage, error) {
	var out []json.RawMessage
	if len(params) > 0 && string(params) != "null" {
		if err := json.Unmarshal(params, &out); err != nil {
			return nil, newError(CodeInvalidParams, "params must be an array: %v", err)
		}
	}
	if len(out) < min {
		return nil, newError(CodeInvalidParams, "expected at least %d params, got %d", min, len(out))
	}
	return out, nil
}

// firstParam 把第一个位置参数解码到 out
func firstParam(params json.RawMessage, out interface{}) error {
	list, err := positional(params, 1)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(list[0], out); err != nil {
		return newError(CodeInvalidParams, "invalid params: %v", err)
	}
	return nil
}
