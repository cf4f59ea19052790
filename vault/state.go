package vault

import (
	"github.com/holiman/uint256"

	"github.com/weisyn/libretto-go/types"
)

// Kind 金库类型
type Kind string

const (
	KindTimeLocked Kind = "timelocked"
	KindGiftable   Kind = "giftable"
)

// LockState 时间锁状态，Locked → Unlocked 只由时间推动且不可逆
type LockState string

const (
	Locked   LockState = "locked"
	Unlocked LockState = "unlocked"
)

// FundsState 余额状态
type FundsState string

const (
	Empty      FundsState = "empty"
	HasBalance FundsState = "hasBalance"
)

// State {Locked, Unlocked} × {HasBalance, Empty}
type State struct {
	Lock  LockState  `json:"lock"`
	Funds FundsState `json:"funds"`
}

func (s State) String() string {
	return string(s.Lock) + "/" + string(s.Funds)
}

// Snapshot 金库只读视图
type Snapshot struct {
	Address     types.Address  `json:"address"`
	Kind        Kind           `json:"kind"`
	Owner       types.Address  `json:"owner"`
	Beneficiary *types.Address `json:"beneficiary,omitempty"`
	Withdrawer  types.Address  `json:"withdrawer"`
	UnlockTime  uint64         `json:"unlockTime"`
	Balance     *uint256.Int   `json:"balance"`
	State       State          `json:"state"`
}
