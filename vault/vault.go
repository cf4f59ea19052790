// Package vault 时间锁金库。
//
// 两种变体共用同一个状态机（core），区别只在于“谁是唯一有权提取的身份”：
//   - TimeLockedVault：owner
//   - GiftableVault：beneficiary（owner 可随时改派，包括改派给自己）
//
// 提取遵循 checks-effects-interactions：先校验时间与身份，再把余额清零，
// 最后才调用账本转出；转出失败时恢复余额。
package vault

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/weisyn/libretto-go/event"
	"github.com/weisyn/libretto-go/ledger"
	"github.com/weisyn/libretto-go/types"
)

// SecondsPerYear 一年按 365 天计
const SecondsPerYear = 365 * 24 * 60 * 60

// Vault 两种金库的公共接口
type Vault interface {
	Address() types.Address
	Owner() types.Address
	UnlockTime() uint64
	Balance() *uint256.Int
	AuthorizedWithdrawer() types.Address
	Kind() Kind
	State() State
	Snapshot() Snapshot

	// Deposit 任何人都可以存入，无授权检查
	Deposit(ctx context.Context, from types.Address, amount *uint256.Int) error

	// Withdraw 解锁后由唯一授权身份一次性取出全部余额
	Withdraw(ctx context.Context, caller types.Address) (*event.Withdraw, error)
}

var (
	_ Vault = (*TimeLockedVault)(nil)
	_ Vault = (*GiftableVault)(nil)
)

// Option 构造选项
type Option func(*options)

type options struct {
	address *types.Address
}

// WithAddress 指定金库账户地址（宿主按 owner + nonce 派生）
func WithAddress(addr types.Address) Option {
	return func(o *options) {
		o.address = &addr
	}
}

// withdrawerResolver 解析当前唯一有权提取的身份
//
// 调用时 core.mu 已持有。
type withdrawerResolver interface {
	authorizedWithdrawer() types.Address
	withdrawerRole() types.Role
}

// core 共享状态机
type core struct {
	rt       Runtime
	kind     Kind
	resolver withdrawerResolver

	mu         sync.Mutex
	address    types.Address
	owner      types.Address
	unlockTime uint64
	balance    *uint256.Int
	hooked     bool
}

// UnlockTimeFor 计算解锁时间：now + lockYears * 365 天（秒）
//
// lockYears <= 0 或结果溢出 int64 秒时返回 ConfigurationError。
func UnlockTimeFor(now time.Time, lockYears int64) (uint64, error) {
	if lockYears <= 0 {
		return 0, types.NewConfigurationError(types.MsgLockDuration)
	}
	start := now.Unix()
	if start < 0 {
		return 0, types.NewConfigurationError(types.MsgLockOverflow)
	}
	if lockYears > (math.MaxInt64-start)/SecondsPerYear {
		return 0, types.NewConfigurationError(types.MsgLockOverflow)
	}
	return uint64(start + lockYears*SecondsPerYear), nil
}

func newCore(rt *Runtime, kind Kind, lockYears int64, owner types.Address, opts []Option) (*core, error) {
	if owner.IsZero() {
		return nil, types.NewConfigurationError(types.MsgOwnerRequired)
	}
	env := rt.withDefaults()

	now := env.Clock.Now()
	unlock, err := UnlockTimeFor(now, lockYears)
	if err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	var addr types.Address
	if o.address != nil {
		addr = *o.address
	} else {
		addr = defaultAddress(owner)
	}
	if addr.IsZero() {
		return nil, types.NewConfigurationError("Abort: vault address is required")
	}

	c := &core{
		rt:         env,
		kind:       kind,
		address:    addr,
		owner:      owner,
		unlockTime: unlock,
		balance:    new(uint256.Int),
	}

	// 账本支持收款回调时，任何转入金库账户的价值都计为存款
	if n, ok := env.Ledger.(ledger.ReceiveNotifier); ok {
		if err := n.ClaimReceiver(addr, c.receive); err != nil {
			return nil, &types.VaultError{Code: types.CodeConfiguration, Message: types.MsgAddressInUse, Cause: err}
		}
		c.hooked = true
	}
	return c, nil
}

// deployed 未指定地址时的部署序号，进程内单调递增
var deployed atomic.Uint64

// vaultInitHash 默认地址派生用的 init code 哈希
var vaultInitHash = crypto.Keccak256([]byte("libretto.vault"))

// defaultAddress CREATE2 风格派生：owner + 进程内序号
func defaultAddress(owner types.Address) types.Address {
	var salt [32]byte
	binary.BigEndian.PutUint64(salt[24:], deployed.Add(1))
	return types.FromCommon(crypto.CreateAddress2(owner.Common(), salt, vaultInitHash))
}

// Address 金库账户地址
func (c *core) Address() types.Address { return c.address }

// Owner 所有者（构造后不可变）
func (c *core) Owner() types.Address { return c.owner }

// UnlockTime 解锁时间（Unix 秒，构造后不可变）
func (c *core) UnlockTime() uint64 { return c.unlockTime }

// UnlockAt 解锁时间
func (c *core) UnlockAt() time.Time { return time.Unix(int64(c.unlockTime), 0) }

// Kind 金库类型
func (c *core) Kind() Kind { return c.kind }

// Balance 当前余额副本
func (c *core) Balance() *uint256.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(uint256.Int).Set(c.balance)
}

// AuthorizedWithdrawer 当前唯一有权提取的身份
func (c *core) AuthorizedWithdrawer() types.Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolver.authorizedWithdrawer()
}

// IsUnlocked 当前时间是否已到达解锁时间
func (c *core) IsUnlocked() bool {
	return c.rt.Clock.Now().Unix() >= int64(c.unlockTime)
}

// State 当前状态
func (c *core) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *core) stateLocked() State {
	s := State{Lock: Locked, Funds: Empty}
	if c.IsUnlocked() {
		s.Lock = Unlocked
	}
	if !c.balance.IsZero() {
		s.Funds = HasBalance
	}
	return s
}

// Snapshot 只读视图（不含 beneficiary，由变体补充）
func (c *core) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *core) snapshotLocked() Snapshot {
	return Snapshot{
		Address:    c.address,
		Kind:       c.kind,
		Owner:      c.owner,
		Withdrawer: c.resolver.authorizedWithdrawer(),
		UnlockTime: c.unlockTime,
		Balance:    new(uint256.Int).Set(c.balance),
		State:      c.stateLocked(),
	}
}

// Deposit 存入
//
// 无授权检查，任何锁定状态都接受。amount 为 0 时不产生任何变化。
func (c *core) Deposit(ctx context.Context, from types.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	if from == c.address {
		return types.NewInvalidParamsError("Abort: vault cannot deposit into itself")
	}
	if err := c.rt.Ledger.Transfer(ctx, from, c.address, amount); err != nil {
		c.rt.Logger.Warn("deposit transfer failed", "vault", c.address.Hex(), "from", from.Hex(), "amount", amount.Dec(), "error", err)
		return err
	}
	if !c.hooked {
		return c.receive(ctx, from, amount)
	}
	return nil
}

// receive 入账：余额增加并发出 Deposit 事件
func (c *core) receive(ctx context.Context, from types.Address, amount *uint256.Int) error {
	c.mu.Lock()
	sum, overflow := new(uint256.Int).AddOverflow(c.balance, amount)
	if overflow {
		c.mu.Unlock()
		return types.NewInvalidParamsError("Abort: deposit overflows vault balance")
	}
	c.balance = sum
	c.mu.Unlock()

	c.publish(event.Deposit{From: from, Amount: new(uint256.Int).Set(amount)})
	c.rt.Logger.Debug("deposit received", "vault", c.address.Hex(), "from", from.Hex(), "amount", amount.Dec())
	return nil
}

// Withdraw 提取全部余额
//
// 先检查时间锁（与调用者无关），再检查调用者是否为授权身份。
// 余额在转出前清零，重入调用只能看到 0；转出失败时余额恢复，不发事件。
func (c *core) Withdraw(ctx context.Context, caller types.Address) (*event.Withdraw, error) {
	c.mu.Lock()
	if !c.IsUnlocked() {
		c.mu.Unlock()
		c.rt.Logger.Warn("withdraw rejected", "vault", c.address.Hex(), "caller", caller.Hex(), "reason", "locked")
		return nil, types.NewLockedError()
	}
	if caller != c.resolver.authorizedWithdrawer() {
		role := c.resolver.withdrawerRole()
		c.mu.Unlock()
		c.rt.Logger.Warn("withdraw rejected", "vault", c.address.Hex(), "caller", caller.Hex(), "reason", "not "+string(role))
		return nil, types.NewNotAuthorizedError(role)
	}
	amount := c.balance
	c.balance = new(uint256.Int)
	c.mu.Unlock()

	if !amount.IsZero() {
		if err := c.rt.Ledger.Transfer(ctx, c.address, caller, amount); err != nil {
			c.mu.Lock()
			c.balance = new(uint256.Int).Add(c.balance, amount)
			c.mu.Unlock()
			c.rt.Logger.Warn("withdraw transfer failed", "vault", c.address.Hex(), "to", caller.Hex(), "amount", amount.Dec(), "error", err)
			return nil, types.NewTransferError(err)
		}
	}

	ev := event.Withdraw{To: caller, Amount: amount}
	c.publish(ev)
	c.rt.Logger.Debug("withdraw completed", "vault", c.address.Hex(), "to", caller.Hex(), "amount", amount.Dec())
	return &event.Withdraw{To: caller, Amount: new(uint256.Int).Set(amount)}, nil
}

// publish 事件投递失败不回滚已完成的资金操作
func (c *core) publish(p event.Payload) {
	if _, err := c.rt.Events.Publish(c.address, p); err != nil {
		c.rt.Logger.Error("publish event failed", "vault", c.address.Hex(), "event", p.EventName(), "error", err)
	}
}
