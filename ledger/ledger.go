// Package ledger 宿主账本原语：账户余额与原子转账。
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	"github.com/weisyn/libretto-go/types"
)

// Ledger 账本接口
//
// Transfer 要么完整生效，要么不产生任何变化。
type Ledger interface {
	// Transfer 从 from 向 to 转移 amount
	Transfer(ctx context.Context, from, to types.Address, amount *uint256.Int) error

	// BalanceOf 查询账户余额
	BalanceOf(ctx context.Context, addr types.Address) (*uint256.Int, error)
}

// ReceiveHook 收款回调，在入账完成后、转账返回前调用
//
// 返回错误表示收款方拒收，整笔转账回滚。回调期间账本锁已释放，
// 回调内可以再次调用账本或金库（用于模拟重入）。
type ReceiveHook func(ctx context.Context, from types.Address, amount *uint256.Int) error

// ReceiveNotifier 支持收款回调的账本
//
// 金库借此把任何转入其账户的价值视为存款。每个账户只能被认领一次。
type ReceiveNotifier interface {
	ClaimReceiver(addr types.Address, hook ReceiveHook) error
}

// ErrReceiverClaimed 账户已有收款回调
var ErrReceiverClaimed = errors.New("receiver already claimed")

// MemoryLedger 内存账本
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[types.Address]*uint256.Int
	hooks    map[types.Address]ReceiveHook
}

// NewMemoryLedger 创建内存账本
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[types.Address]*uint256.Int),
		hooks:    make(map[types.Address]ReceiveHook),
	}
}

// Mint 凭空为账户增发余额（开发水龙头）
func (l *MemoryLedger) Mint(addr types.Address, amount *uint256.Int) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.balanceLocked(addr)
	sum, overflow := new(uint256.Int).AddOverflow(bal, amount)
	if overflow {
		return nil, fmt.Errorf("mint overflows balance of %s", addr.Hex())
	}
	l.balances[addr] = sum
	return new(uint256.Int).Set(sum), nil
}

// OnReceive 注册收款回调，hook 为 nil 时移除
func (l *MemoryLedger) OnReceive(addr types.Address, hook ReceiveHook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if hook == nil {
		delete(l.hooks, addr)
		return
	}
	l.hooks[addr] = hook
}

// ClaimReceiver 为尚未注册回调的账户注册收款回调
func (l *MemoryLedger) ClaimReceiver(addr types.Address, hook ReceiveHook) error {
	if hook == nil {
		return fmt.Errorf("nil receive hook for %s", addr.Hex())
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.hooks[addr]; ok {
		return fmt.Errorf("%s: %w", addr.Hex(), ErrReceiverClaimed)
	}
	l.hooks[addr] = hook
	return nil
}

// HasReceiver 账户是否已注册收款回调
func (l *MemoryLedger) HasReceiver(addr types.Address) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.hooks[addr]
	return ok
}

// BalanceOf 查询账户余额
func (l *MemoryLedger) BalanceOf(ctx context.Context, addr types.Address) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(uint256.Int).Set(l.balanceLocked(addr)), nil
}

// Transfer 原子转账
func (l *MemoryLedger) Transfer(ctx context.Context, from, to types.Address, amount *uint256.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if amount == nil || amount.IsZero() || from == to {
		return nil
	}

	l.mu.Lock()
	if err := l.moveLocked(from, to, amount); err != nil {
		l.mu.Unlock()
		return err
	}
	hook := l.hooks[to]
	l.mu.Unlock()

	if hook == nil {
		return nil
	}
	if err := hook(ctx, from, new(uint256.Int).Set(amount)); err != nil {
		l.mu.Lock()
		defer l.mu.Unlock()
		// 收款方拒收：反向转账回滚。回调期间收款方可能已把钱转走，此时无法回滚。
		if rbErr := l.moveLocked(to, from, amount); rbErr != nil {
			return fmt.Errorf("recipient %s rejected transfer (%v), rollback failed: %w", to.Hex(), err, rbErr)
		}
		return fmt.Errorf("recipient %s rejected transfer: %w", to.Hex(), err)
	}
	return nil
}

func (l *MemoryLedger) moveLocked(from, to types.Address, amount *uint256.Int) error {
	fromBal := l.balanceLocked(from)
	if fromBal.Lt(amount) {
		return &types.VaultError{
			Code:    types.CodeInsufficientFunds,
			Message: types.MsgInsufficientBal,
			Cause:   fmt.Errorf("account %s has %s, needs %s", from.Hex(), fromBal.Dec(), amount.Dec()),
		}
	}
	toBal := l.balanceLocked(to)
	sum, overflow := new(uint256.Int).AddOverflow(toBal, amount)
	if overflow {
		return fmt.Errorf("transfer overflows balance of %s", to.Hex())
	}
	l.balances[from] = new(uint256.Int).Sub(fromBal, amount)
	l.balances[to] = sum
	return nil
}

func (l *MemoryLedger) balanceLocked(addr types.Address) *uint256.Int {
	if bal, ok := l.balances[addr]; ok {
		return bal
	}
	return new(uint256.Int)
}
