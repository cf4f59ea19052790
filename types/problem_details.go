package types

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// LayerNode 错误来源层
const LayerNode = "libretto-node"

// ProblemDetails 错误详情（RFC7807 + 扩展字段）
//
// 节点在 JSON-RPC error.data 中返回该结构，客户端据此还原 VaultError。
type ProblemDetails struct {
	// RFC7807 标准字段
	Type     string `json:"type,omitempty"`
	Title    string `json:"title,omitempty"`
	Status   *int   `json:"status,omitempty"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	// 扩展字段（必填）
	Code        string                 `json:"code"`
	Layer       string                 `json:"layer"`
	UserMessage string                 `json:"userMessage"`
	Details     map[string]interface{} `json:"details,omitempty"`
	TraceID     string                 `json:"traceId"`
	Timestamp   string                 `json:"timestamp"`
}

// HTTPStatus 错误码对应的 HTTP 语义状态
func HTTPStatus(code ErrorCode) int {
	switch code {
	case CodeLocked:
		return http.StatusConflict
	case CodeNotAuthorized, CodeBadSignature, CodeBadNonce:
		return http.StatusForbidden
	case CodeConfiguration, CodeInvalidParams:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnsupported:
		return http.StatusMethodNotAllowed
	case CodeInsufficientFunds, CodeTransferFailed:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// ToProblemDetails 转换为 Problem Details
func (e *VaultError) ToProblemDetails() *ProblemDetails {
	status := HTTPStatus(e.Code)
	details := map[string]interface{}{}
	if e.Role != "" {
		details["role"] = string(e.Role)
	}
	pd := &ProblemDetails{
		Title:       http.StatusText(status),
		Status:      &status,
		Code:        string(e.Code),
		Layer:       LayerNode,
		UserMessage: e.Message,
		Details:     details,
		TraceID:     uuid.New().String(),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	if e.Cause != nil {
		pd.Detail = e.Cause.Error()
	}
	return pd
}

// ToVaultError 从 Problem Details 还原 VaultError
//
// 原因链无法跨网络传递，Detail 以普通错误的形式保留在 Cause 中。
func (pd *ProblemDetails) ToVaultError() *VaultError {
	ve := &VaultError{
		Code:    ErrorCode(pd.Code),
		Message: pd.UserMessage,
	}
	if role, ok := pd.Details["role"].(string); ok {
		ve.Role = Role(role)
	}
	if pd.Detail != "" {
		ve.Cause = fmt.Errorf("%s", pd.Detail)
	}
	return ve
}

// ParseProblemDetails 从 JSON-RPC error.data 解析 Problem Details
func ParseProblemDetails(data interface{}) (*ProblemDetails, error) {
	m, ok := data.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid problem details format")
	}

	code, _ := m["code"].(string)
	layer, _ := m["layer"].(string)
	userMessage, _ := m["userMessage"].(string)
	traceID, _ := m["traceId"].(string)
	if code == "" || layer == "" || userMessage == "" || traceID == "" {
		return nil, fmt.Errorf("missing required fields in problem details")
	}

	pd := &ProblemDetails{
		Code:        code,
		Layer:       layer,
		UserMessage: userMessage,
		TraceID:     traceID,
	}
	pd.Type, _ = m["type"].(string)
	pd.Title, _ = m["title"].(string)
	pd.Detail, _ = m["detail"].(string)
	pd.Instance, _ = m["instance"].(string)
	pd.Details, _ = m["details"].(map[string]interface{})
	pd.Timestamp, _ = m["timestamp"].(string)
	if pd.Timestamp == "" {
		pd.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	if s, ok := m["status"].(float64); ok {
		status := int(s)
		pd.Status = &status
	}
	return pd, nil
}
