package vault

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/weisyn/libretto-go/client"
	"github.com/weisyn/libretto-go/event"
	"github.com/weisyn/libretto-go/types"
	"github.com/weisyn/libretto-go/vault"
	"github.com/weisyn/libretto-go/wallet"
)

// createVault 创建时间锁金库
//
// **流程**：
// 1. 参数验证
// 2. 获取 Wallet 并校验地址
// 3. 查询 nonce、签名信封
// 4. 调用 vault_create 提交
func (s *vaultService) createVault(ctx context.Context, req *CreateVaultRequest, wallets ...wallet.Wallet) (*vault.Snapshot, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if req.LockYears <= 0 {
		return nil, fmt.Errorf("lock years must be positive")
	}

	w, err := s.signer(req.From, wallets...)
	if err != nil {
		return nil, err
	}

	var snap vault.Snapshot
	payload := &types.CreateVaultPayload{LockYears: req.LockYears}
	if err := s.submit(ctx, w, types.MethodCreateVault, payload, &snap); err != nil {
		return nil, fmt.Errorf("create vault failed: %w", err)
	}
	return &snap, nil
}

func (s *vaultService) CreateVault(ctx context.Context, req *CreateVaultRequest, wallets ...wallet.Wallet) (*vault.Snapshot, error) {
	return s.createVault(ctx, req, wallets...)
}

func (s *vaultService) CreateGiftableVault(ctx context.Context, req *CreateGiftableVaultRequest, wallets ...wallet.Wallet) (*vault.Snapshot, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if req.LockYears <= 0 {
		return nil, fmt.Errorf("lock years must be positive")
	}
	if req.Beneficiary.IsZero() {
		return nil, fmt.Errorf("beneficiary is required")
	}

	w, err := s.signer(req.From, wallets...)
	if err != nil {
		return nil, err
	}

	var snap vault.Snapshot
	payload := &types.CreateGiftablePayload{LockYears: req.LockYears, Beneficiary: req.Beneficiary}
	if err := s.submit(ctx, w, types.MethodCreateGiftable, payload, &snap); err != nil {
		return nil, fmt.Errorf("create giftable vault failed: %w", err)
	}
	return &snap, nil
}

func (s *vaultService) Deposit(ctx context.Context, req *DepositRequest, wallets ...wallet.Wallet) (*vault.Snapshot, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if req.Vault.IsZero() {
		return nil, fmt.Errorf("vault address is required")
	}
	if req.Amount == nil {
		return nil, fmt.Errorf("amount is required")
	}

	w, err := s.signer(req.From, wallets...)
	if err != nil {
		return nil, err
	}

	var snap vault.Snapshot
	payload := &types.DepositPayload{Vault: req.Vault, Amount: req.Amount}
	if err := s.submit(ctx, w, types.MethodDeposit, payload, &snap); err != nil {
		return nil, fmt.Errorf("deposit failed: %w", err)
	}
	return &snap, nil
}

func (s *vaultService) Withdraw(ctx context.Context, req *WithdrawRequest, wallets ...wallet.Wallet) (*event.Withdraw, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if req.Vault.IsZero() {
		return nil, fmt.Errorf("vault address is required")
	}

	w, err := s.signer(req.From, wallets...)
	if err != nil {
		return nil, err
	}

	var out event.Withdraw
	if err := s.submit(ctx, w, types.MethodWithdraw, &types.WithdrawPayload{Vault: req.Vault}, &out); err != nil {
		return nil, fmt.Errorf("withdraw failed: %w", err)
	}
	return &out, nil
}

func (s *vaultService) UpdateBeneficiary(ctx context.Context, req *UpdateBeneficiaryRequest, wallets ...wallet.Wallet) (*event.BeneficiaryChanged, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if req.Vault.IsZero() {
		return nil, fmt.Errorf("vault address is required")
	}

	w, err := s.signer(req.From, wallets...)
	if err != nil {
		return nil, err
	}

	// 零地址受益人交给节点拒绝，保持与节点一致的错误信息
	var out event.BeneficiaryChanged
	payload := &types.UpdateBeneficiaryPayload{Vault: req.Vault, Beneficiary: req.Beneficiary}
	if err := s.submit(ctx, w, types.MethodUpdateBeneficiary, payload, &out); err != nil {
		return nil, fmt.Errorf("update beneficiary failed: %w", err)
	}
	return &out, nil
}

// signer 选出 Wallet 并校验其地址与请求方一致
func (s *vaultService) signer(from types.Address, wallets ...wallet.Wallet) (wallet.Wallet, error) {
	w := s.getWallet(wallets...)
	if w == nil {
		return nil, fmt.Errorf("wallet is required")
	}
	if w.Address() != from {
		return nil, fmt.Errorf("wallet address does not match from address")
	}
	return w, nil
}

// submit 查询下一个 nonce，签名信封并调用 method，结果解码到 out
func (s *vaultService) submit(ctx context.Context, w wallet.Wallet, method string, payload interface{}, out interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	var nonce types.NonceResult
	if err := client.CallInto(ctx, s.client, types.MethodGetNonce, []interface{}{w.Address()}, &nonce); err != nil {
		return fmt.Errorf("get nonce: %w", err)
	}

	env := &types.Envelope{Method: method, Payload: raw, Nonce: nonce.Next}
	env.Signature, err = w.SignHash(env.Digest())
	if err != nil {
		return fmt.Errorf("sign envelope: %w", err)
	}

	return client.CallInto(ctx, s.client, method, []interface{}{env}, out)
}
