package types

import (
	"errors"
	"fmt"
)

// ErrorCode 金库错误码
type ErrorCode string

const (
	CodeLocked            ErrorCode = "VAULT_LOCKED"
	CodeNotAuthorized     ErrorCode = "VAULT_NOT_AUTHORIZED"
	CodeConfiguration     ErrorCode = "VAULT_CONFIGURATION"
	CodeNotFound          ErrorCode = "VAULT_NOT_FOUND"
	CodeUnsupported       ErrorCode = "VAULT_UNSUPPORTED"
	CodeTransferFailed    ErrorCode = "LEDGER_TRANSFER_FAILED"
	CodeInsufficientFunds ErrorCode = "LEDGER_INSUFFICIENT_FUNDS"
	CodeBadSignature      ErrorCode = "AUTH_BAD_SIGNATURE"
	CodeBadNonce          ErrorCode = "AUTH_BAD_NONCE"
	CodeInvalidParams     ErrorCode = "COMMON_VALIDATION_ERROR"
	CodeInternal          ErrorCode = "COMMON_INTERNAL_ERROR"
)

// Role 授权角色，用于区分 NotAuthorized 的上下文
type Role string

const (
	RoleOwner       Role = "owner"
	RoleBeneficiary Role = "beneficiary"
)

// 固定错误消息，调用方按原文匹配
const (
	MsgLocked          = "Abort: funds are still locked"
	MsgNotOwner        = "Abort: caller is not the owner"
	MsgNotBeneficiary  = "Abort: caller is not the beneficiary"
	MsgNotAuthorized   = "Abort: caller is not authorized"
	MsgLockDuration    = "Abort: lock duration must be at least one year"
	MsgLockOverflow    = "Abort: lock duration overflows unlock time"
	MsgOwnerRequired   = "Abort: owner is required"
	MsgBeneficiaryReq  = "Abort: beneficiary is required"
	MsgTransferFailed  = "Abort: transfer failed"
	MsgInsufficientBal = "Abort: insufficient funds"
	MsgBadSignature    = "Abort: invalid signature"
	MsgBadNonce        = "Abort: invalid nonce"
	MsgVaultNotFound   = "Abort: vault not found"
	MsgUnsupported     = "Abort: operation not supported by this vault"
	MsgAddressInUse    = "Abort: vault address already in use"
)

// VaultError 金库操作错误
//
// Error() 返回稳定的消息原文；带 Cause 时追加底层原因。
// errors.Is 按错误码匹配（Role 非空时同时匹配角色）。
type VaultError struct {
	Code    ErrorCode
	Message string
	Role    Role
	Cause   error
}

func (e *VaultError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *VaultError) Unwrap() error {
	return e.Cause
}

// Is 实现 errors.Is 的按码匹配
func (e *VaultError) Is(target error) bool {
	t, ok := target.(*VaultError)
	if !ok {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	return t.Role == "" || t.Role == e.Role
}

// 哨兵错误
var (
	ErrLocked            = &VaultError{Code: CodeLocked, Message: MsgLocked}
	ErrNotAuthorized     = &VaultError{Code: CodeNotAuthorized, Message: MsgNotAuthorized}
	ErrNotOwner          = &VaultError{Code: CodeNotAuthorized, Message: MsgNotOwner, Role: RoleOwner}
	ErrNotBeneficiary    = &VaultError{Code: CodeNotAuthorized, Message: MsgNotBeneficiary, Role: RoleBeneficiary}
	ErrConfiguration     = &VaultError{Code: CodeConfiguration, Message: MsgLockDuration}
	ErrNotFound          = &VaultError{Code: CodeNotFound, Message: MsgVaultNotFound}
	ErrUnsupported       = &VaultError{Code: CodeUnsupported, Message: MsgUnsupported}
	ErrTransferFailed    = &VaultError{Code: CodeTransferFailed, Message: MsgTransferFailed}
	ErrInsufficientFunds = &VaultError{Code: CodeInsufficientFunds, Message: MsgInsufficientBal}
	ErrBadSignature      = &VaultError{Code: CodeBadSignature, Message: MsgBadSignature}
	ErrBadNonce          = &VaultError{Code: CodeBadNonce, Message: MsgBadNonce}
)

// NewLockedError 创建时间锁未到期错误
func NewLockedError() *VaultError {
	return &VaultError{Code: CodeLocked, Message: MsgLocked}
}

// NewNotAuthorizedError 创建未授权错误，消息按角色区分
func NewNotAuthorizedError(role Role) *VaultError {
	msg := MsgNotAuthorized
	switch role {
	case RoleOwner:
		msg = MsgNotOwner
	case RoleBeneficiary:
		msg = MsgNotBeneficiary
	}
	return &VaultError{Code: CodeNotAuthorized, Message: msg, Role: role}
}

// NewConfigurationError 创建构造期配置错误
func NewConfigurationError(message string) *VaultError {
	return &VaultError{Code: CodeConfiguration, Message: message}
}

// NewTransferError 包装账本转账失败
func NewTransferError(cause error) *VaultError {
	return &VaultError{Code: CodeTransferFailed, Message: MsgTransferFailed, Cause: cause}
}

// NewNotFoundError 创建金库不存在错误
func NewNotFoundError(addr Address) *VaultError {
	return &VaultError{Code: CodeNotFound, Message: MsgVaultNotFound, Cause: fmt.Errorf("no vault at %s", addr.Hex())}
}

// NewInvalidParamsError 创建参数校验错误
func NewInvalidParamsError(format string, args ...interface{}) *VaultError {
	return &VaultError{Code: CodeInvalidParams, Message: fmt.Sprintf(format, args...)}
}

// AsVaultError 提取错误链中的 VaultError
func AsVaultError(err error) (*VaultError, bool) {
	var ve *VaultError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
