package vault

import (
	"github.com/weisyn/libretto-go/types"
)

// TimeLockedVault 固定时间锁金库，owner 是唯一的提取者
type TimeLockedVault struct {
	*core
}

type ownerResolver struct {
	c *core
}

func (r ownerResolver) authorizedWithdrawer() types.Address { return r.c.owner }
func (r ownerResolver) withdrawerRole() types.Role          { return types.RoleOwner }

// NewTimeLocked 创建固定时间锁金库
//
// 解锁时间 = 当前时间 + lockYears * 365 天。
func NewTimeLocked(rt *Runtime, lockYears int64, owner types.Address, opts ...Option) (*TimeLockedVault, error) {
	c, err := newCore(rt, KindTimeLocked, lockYears, owner, opts)
	if err != nil {
		return nil, err
	}
	c.resolver = ownerResolver{c: c}
	c.rt.Logger.Debug("time-locked vault created", "vault", c.address.Hex(), "owner", owner.Hex(), "unlockTime", c.unlockTime)
	return &TimeLockedVault{core: c}, nil
}
