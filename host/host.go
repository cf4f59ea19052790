// Package host 金库宿主：进程内账本、时钟、事件总线与金库注册表。
//
// 宿主扮演“链”的角色：为金库派生账户地址、记录每个账户的 nonce、
// 校验签名请求并把调用者身份交给金库。
package host

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/weisyn/libretto-go/event"
	"github.com/weisyn/libretto-go/ledger"
	"github.com/weisyn/libretto-go/logger"
	"github.com/weisyn/libretto-go/metrics"
	"github.com/weisyn/libretto-go/types"
	"github.com/weisyn/libretto-go/vault"
	"github.com/weisyn/libretto-go/wallet"
)

// ErrDevOnly 仅开发模式可用的操作
var ErrDevOnly = &types.VaultError{Code: types.CodeUnsupported, Message: "Abort: only available in dev mode"}

// Host 金库宿主
type Host struct {
	cfg     *Config
	ledger  *ledger.MemoryLedger
	clock   ledger.Clock
	bus     *event.Bus
	logger  logger.Logger
	metrics metrics.Recorder

	mu       sync.RWMutex
	vaults   map[types.Address]vault.Vault
	order    []types.Address
	deployed map[types.Address]uint64 // owner → 已创建金库数
	nonces   map[types.Address]uint64 // 账户 → 最近一次使用的签名 nonce
}

// New 创建宿主
func New(cfg *Config, opts ...Option) *Host {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	h := &Host{
		cfg:      cfg,
		ledger:   ledger.NewMemoryLedger(),
		logger:   logger.Nop(),
		metrics:  metrics.Nop{},
		vaults:   make(map[types.Address]vault.Vault),
		deployed: make(map[types.Address]uint64),
		nonces:   make(map[types.Address]uint64),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.clock == nil {
		if cfg.Dev {
			genesis := cfg.GenesisTime
			if genesis.IsZero() {
				genesis = time.Now()
			}
			h.clock = ledger.NewManualClock(genesis)
		} else {
			h.clock = ledger.SystemClock{}
		}
	}
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = event.DefaultHistoryLimit
	}
	h.bus = event.NewBus(event.WithClock(h.clock), event.WithHistoryLimit(limit))
	return h
}

// Dev 是否开发模式
func (h *Host) Dev() bool { return h.cfg.Dev }

// Now 宿主当前时间
func (h *Host) Now() time.Time { return h.clock.Now() }

func (h *Host) runtime() *vault.Runtime {
	return &vault.Runtime{Ledger: h.ledger, Clock: h.clock, Events: h.bus, Logger: h.logger}
}

// nextVaultAddress 按 owner + 部署序号派生金库地址（与合约部署地址规则一致）
func (h *Host) nextVaultAddress(owner types.Address) types.Address {
	nonce := h.deployed[owner]
	return types.FromCommon(crypto.CreateAddress(owner.Common(), nonce))
}

func (h *Host) register(owner types.Address, v vault.Vault) {
	h.deployed[owner]++
	h.vaults[v.Address()] = v
	h.order = append(h.order, v.Address())
	h.metrics.RecordVaultCreated(string(v.Kind()))
}

// CreateVault 部署固定时间锁金库，owner 为调用者
func (h *Host) CreateVault(ctx context.Context, owner types.Address, lockYears int64) (*vault.TimeLockedVault, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	v, err := vault.NewTimeLocked(h.runtime(), lockYears, owner, vault.WithAddress(h.nextVaultAddress(owner)))
	if err != nil {
		return nil, err
	}
	h.register(owner, v)
	h.logger.Info("vault created", "vault", v.Address().Hex(), "kind", v.Kind(), "owner", owner.Hex(), "unlockTime", v.UnlockTime())
	return v, nil
}

// CreateGiftableVault 部署可赠与金库，owner 为调用者
func (h *Host) CreateGiftableVault(ctx context.Context, owner, beneficiary types.Address, lockYears int64) (*vault.GiftableVault, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	v, err := vault.NewGiftable(h.runtime(), lockYears, beneficiary, owner, vault.WithAddress(h.nextVaultAddress(owner)))
	if err != nil {
		return nil, err
	}
	h.register(owner, v)
	h.logger.Info("vault created", "vault", v.Address().Hex(), "kind", v.Kind(), "owner", owner.Hex(),
		"beneficiary", beneficiary.Hex(), "unlockTime", v.UnlockTime())
	return v, nil
}

// Vault 查询金库
func (h *Host) Vault(addr types.Address) (vault.Vault, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.vaults[addr]
	if !ok {
		return nil, types.NewNotFoundError(addr)
	}
	return v, nil
}

// Vaults 按创建顺序返回全部金库快照
func (h *Host) Vaults() []vault.Snapshot {
	h.mu.RLock()
	list := make([]vault.Vault, 0, len(h.order))
	for _, addr := range h.order {
		list = append(list, h.vaults[addr])
	}
	h.mu.RUnlock()

	out := make([]vault.Snapshot, 0, len(list))
	for _, v := range list {
		out = append(out, v.Snapshot())
	}
	return out
}

// VaultsOf 查询某账户作为 owner 或当前提取者的金库
func (h *Host) VaultsOf(account types.Address) []vault.Snapshot {
	var out []vault.Snapshot
	for _, s := range h.Vaults() {
		if s.Owner == account || s.Withdrawer == account {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UnlockTime < out[j].UnlockTime })
	return out
}

// Deposit 存入
func (h *Host) Deposit(ctx context.Context, vaultAddr, from types.Address, amount *uint256.Int) (vault.Snapshot, error) {
	v, err := h.Vault(vaultAddr)
	if err != nil {
		return vault.Snapshot{}, err
	}
	if err := v.Deposit(ctx, from, amount); err != nil {
		return vault.Snapshot{}, err
	}
	if amount != nil && !amount.IsZero() {
		h.metrics.RecordDeposit(amount)
	}
	return v.Snapshot(), nil
}

// Withdraw 提取
func (h *Host) Withdraw(ctx context.Context, vaultAddr, caller types.Address) (*event.Withdraw, error) {
	v, err := h.Vault(vaultAddr)
	if err != nil {
		return nil, err
	}
	ev, err := v.Withdraw(ctx, caller)
	if err != nil {
		reason := string(types.CodeInternal)
		if ve, ok := types.AsVaultError(err); ok {
			reason = string(ve.Code)
		}
		h.metrics.RecordWithdrawRejected(reason)
		return nil, err
	}
	h.metrics.RecordWithdraw(ev.Amount)
	return ev, nil
}

// UpdateBeneficiary 改派受益人，固定时间锁金库返回 UNSUPPORTED
func (h *Host) UpdateBeneficiary(ctx context.Context, vaultAddr, newBeneficiary, caller types.Address) (*event.BeneficiaryChanged, error) {
	v, err := h.Vault(vaultAddr)
	if err != nil {
		return nil, err
	}
	g, ok := v.(*vault.GiftableVault)
	if !ok {
		return nil, &types.VaultError{Code: types.CodeUnsupported, Message: types.MsgUnsupported}
	}
	ev, err := g.UpdateBeneficiary(ctx, newBeneficiary, caller)
	if err != nil {
		return nil, err
	}
	h.metrics.RecordBeneficiaryChanged()
	return ev, nil
}

// Balance 账本余额
func (h *Host) Balance(ctx context.Context, addr types.Address) (*uint256.Int, error) {
	return h.ledger.BalanceOf(ctx, addr)
}

// Ledger 底层账本
func (h *Host) Ledger() *ledger.MemoryLedger { return h.ledger }

// Fund 开发水龙头
func (h *Host) Fund(addr types.Address, amount *uint256.Int) (*uint256.Int, error) {
	if !h.cfg.Dev {
		return nil, ErrDevOnly
	}
	if addr.IsZero() {
		return nil, types.NewInvalidParamsError("Abort: cannot fund zero address")
	}
	// 铸币不经过收款回调，金库账户只能通过存款入账
	if h.ledger.HasReceiver(addr) {
		return nil, types.NewInvalidParamsError("Abort: cannot fund a vault account")
	}
	if amount == nil {
		amount = new(uint256.Int)
	}
	bal, err := h.ledger.Mint(addr, amount)
	if err != nil {
		return nil, fmt.Errorf("fund %s failed: %w", addr.Hex(), err)
	}
	h.logger.Debug("account funded", "address", addr.Hex(), "amount", amount.Dec(), "balance", bal.Dec())
	return bal, nil
}

// IncreaseTime 推进手动时钟（仅开发模式）
func (h *Host) IncreaseTime(d time.Duration) (time.Time, error) {
	mc, ok := h.clock.(*ledger.ManualClock)
	if !h.cfg.Dev || !ok {
		return time.Time{}, ErrDevOnly
	}
	if d < 0 {
		return time.Time{}, types.NewInvalidParamsError("Abort: time can only move forward")
	}
	now := mc.Advance(d)
	h.logger.Info("time increased", "by", d.String(), "now", now.Unix())
	return now, nil
}

// Events 查询事件历史
func (h *Host) Events(filter *event.Filter) []*event.Log {
	return h.bus.Events(filter)
}

// Subscribe 订阅事件
func (h *Host) Subscribe(ctx context.Context, filter *event.Filter) (<-chan *event.Log, error) {
	return h.bus.Subscribe(ctx, filter)
}

// Nonce 账户最近一次使用的签名 nonce（未使用过为 0）
func (h *Host) Nonce(addr types.Address) uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.nonces[addr]
}

// Authenticate 校验签名请求并返回调用者身份
//
// 签名有效且 nonce 大于该账户上次使用的值时，nonce 被消耗。
func (h *Host) Authenticate(env *types.Envelope) (types.Address, error) {
	if env == nil || env.Method == "" {
		return types.ZeroAddress, types.NewInvalidParamsError("Abort: empty envelope")
	}
	caller, err := wallet.RecoverAddress(env.Digest(), env.Signature)
	if err != nil {
		return types.ZeroAddress, &types.VaultError{Code: types.CodeBadSignature, Message: types.MsgBadSignature, Cause: err}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	last := h.nonces[caller]
	if env.Nonce <= last {
		return types.ZeroAddress, &types.VaultError{
			Code:    types.CodeBadNonce,
			Message: types.MsgBadNonce,
			Cause:   fmt.Errorf("nonce %d for %s, expected > %d", env.Nonce, caller.Hex(), last),
		}
	}
	h.nonces[caller] = env.Nonce
	return caller, nil
}

// Execute 校验并执行签名请求
//
// 返回值：创建 / 存入返回 vault.Snapshot，提取返回 *event.Withdraw，
// 改派返回 *event.BeneficiaryChanged。
func (h *Host) Execute(ctx context.Context, env *types.Envelope) (interface{}, error) {
	caller, err := h.Authenticate(env)
	if err != nil {
		return nil, err
	}

	switch env.Method {
	case types.MethodCreateVault:
		var p types.CreateVaultPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		v, err := h.CreateVault(ctx, caller, p.LockYears)
		if err != nil {
			return nil, err
		}
		return v.Snapshot(), nil

	case types.MethodCreateGiftable:
		var p types.CreateGiftablePayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		v, err := h.CreateGiftableVault(ctx, caller, p.Beneficiary, p.LockYears)
		if err != nil {
			return nil, err
		}
		return v.Snapshot(), nil

	case types.MethodDeposit:
		var p types.DepositPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		return h.Deposit(ctx, p.Vault, caller, p.Amount)

	case types.MethodWithdraw:
		var p types.WithdrawPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		return h.Withdraw(ctx, p.Vault, caller)

	case types.MethodUpdateBeneficiary:
		var p types.UpdateBeneficiaryPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		return h.UpdateBeneficiary(ctx, p.Vault, p.Beneficiary, caller)

	default:
		return nil, types.NewInvalidParamsError("Abort: method %s does not take a signed envelope", env.Method)
	}
}

func decodePayload(env *types.Envelope, out interface{}) error {
	if len(env.Payload) == 0 {
		return types.NewInvalidParamsError("Abort: missing payload for %s", env.Method)
	}
	if err := json.Unmarshal(env.Payload, out); err != nil {
		return &types.VaultError{
			Code:    types.CodeInvalidParams,
			Message: fmt.Sprintf("Abort: invalid payload for %s", env.Method),
			Cause:   err,
		}
	}
	return nil
}
