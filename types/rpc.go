package types

import (
	"encoding/binary"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// 需要签名的 JSON-RPC 方法
const (
	MethodCreateVault       = "vault_create"
	MethodCreateGiftable    = "vault_createGiftable"
	MethodDeposit           = "vault_deposit"
	MethodWithdraw          = "vault_withdraw"
	MethodUpdateBeneficiary = "vault_updateBeneficiary"
)

// 只读 / 开发方法
const (
	MethodGetVault     = "vault_get"
	MethodListVaults   = "vault_list"
	MethodGetEvents    = "vault_getEvents"
	MethodSubscribe    = "vault_subscribe"
	MethodUnsubscribe  = "vault_unsubscribe"
	MethodGetBalance   = "ledger_getBalance"
	MethodGetNonce     = "ledger_getNonce"
	MethodDevFund      = "dev_fund"
	MethodIncreaseTime = "dev_increaseTime"
)

// Envelope 签名请求
//
// 签名覆盖 keccak256(method || payload || nonce)，节点从签名恢复调用者身份。
// 同一账户的 nonce 必须严格递增。
type Envelope struct {
	Method    string          `json:"method"`
	Payload   json.RawMessage `json:"payload"`
	Nonce     uint64          `json:"nonce"`
	Signature hexutil.Bytes   `json:"signature"`
}

// EnvelopeDigest 计算签名摘要
func EnvelopeDigest(method string, payload []byte, nonce uint64) []byte {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	return crypto.Keccak256([]byte(method), payload, n[:])
}

// Digest 当前信封的签名摘要
func (e *Envelope) Digest() []byte {
	return EnvelopeDigest(e.Method, e.Payload, e.Nonce)
}

// CreateVaultPayload vault_create 参数
type CreateVaultPayload struct {
	LockYears int64 `json:"lockYears"`
}

// CreateGiftablePayload vault_createGiftable 参数
type CreateGiftablePayload struct {
	LockYears   int64   `json:"lockYears"`
	Beneficiary Address `json:"beneficiary"`
}

// DepositPayload vault_deposit 参数
type DepositPayload struct {
	Vault  Address      `json:"vault"`
	Amount *uint256.Int `json:"amount"`
}

// WithdrawPayload vault_withdraw 参数
type WithdrawPayload struct {
	Vault Address `json:"vault"`
}

// UpdateBeneficiaryPayload vault_updateBeneficiary 参数
type UpdateBeneficiaryPayload struct {
	Vault       Address `json:"vault"`
	Beneficiary Address `json:"beneficiary"`
}

// FundParams dev_fund 参数
type FundParams struct {
	Address Address      `json:"address"`
	Amount  *uint256.Int `json:"amount"`
}

// IncreaseTimeParams dev_increaseTime 参数
type IncreaseTimeParams struct {
	Seconds int64 `json:"seconds"`
}

// BalanceResult ledger_getBalance / dev_fund 结果
type BalanceResult struct {
	Address Address      `json:"address"`
	Balance *uint256.Int `json:"balance"`
}

// NonceResult ledger_getNonce 结果，Next 为下一次签名应使用的 nonce
type NonceResult struct {
	Address Address `json:"address"`
	Nonce   uint64  `json:"nonce"`
	Next    uint64  `json:"next"`
}

// TimeResult dev_increaseTime 结果（Unix 秒）
type TimeResult struct {
	Now uint64 `json:"now"`
}

// SubscriptionResult vault_subscribe 结果
type SubscriptionResult struct {
	Subscription string `json:"subscription"`
}
