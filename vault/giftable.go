package vault

import (
	"context"

	"github.com/weisyn/libretto-go/event"
	"github.com/weisyn/libretto-go/types"
)

// GiftableVault 可赠与金库
//
// owner 保留管理权（改派受益人），提取权只属于当前 beneficiary。
// owner 把受益人改派给自己即可收回。
type GiftableVault struct {
	*core
	beneficiary types.Address
}

type beneficiaryResolver struct {
	v *GiftableVault
}

func (r beneficiaryResolver) authorizedWithdrawer() types.Address { return r.v.beneficiary }
func (r beneficiaryResolver) withdrawerRole() types.Role          { return types.RoleBeneficiary }

// NewGiftable 创建可赠与金库，beneficiary 可以与 owner 相同
func NewGiftable(rt *Runtime, lockYears int64, beneficiary, owner types.Address, opts ...Option) (*GiftableVault, error) {
	if beneficiary.IsZero() {
		return nil, types.NewConfigurationError(types.MsgBeneficiaryReq)
	}
	c, err := newCore(rt, KindGiftable, lockYears, owner, opts)
	if err != nil {
		return nil, err
	}
	v := &GiftableVault{core: c, beneficiary: beneficiary}
	c.resolver = beneficiaryResolver{v: v}
	c.rt.Logger.Debug("giftable vault created", "vault", c.address.Hex(), "owner", owner.Hex(),
		"beneficiary", beneficiary.Hex(), "unlockTime", c.unlockTime)
	return v, nil
}

// Beneficiary 当前受益人
func (v *GiftableVault) Beneficiary() types.Address {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.beneficiary
}

// Snapshot 只读视图（含受益人）
func (v *GiftableVault) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := v.snapshotLocked()
	b := v.beneficiary
	s.Beneficiary = &b
	return s
}

// UpdateBeneficiary 改派受益人
//
// 只有 owner 可以调用；不受时间锁和余额状态限制，允许设置为相同值或 owner 本人。
// 零地址不是可签名的身份，设置后资金将无法取出，因此以 CONFIGURATION 错误拒绝，
// 这是 owner 调用唯一会失败的情况。
func (v *GiftableVault) UpdateBeneficiary(ctx context.Context, newBeneficiary, caller types.Address) (*event.BeneficiaryChanged, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if caller != v.owner {
		v.rt.Logger.Warn("update beneficiary rejected", "vault", v.address.Hex(), "caller", caller.Hex())
		return nil, types.NewNotAuthorizedError(types.RoleOwner)
	}
	if newBeneficiary.IsZero() {
		return nil, types.NewConfigurationError(types.MsgBeneficiaryReq)
	}

	v.mu.Lock()
	old := v.beneficiary
	v.beneficiary = newBeneficiary
	v.mu.Unlock()

	ev := &event.BeneficiaryChanged{OldBeneficiary: old, NewBeneficiary: newBeneficiary}
	v.publish(*ev)
	v.rt.Logger.Debug("beneficiary updated", "vault", v.address.Hex(), "old", old.Hex(), "new", newBeneficiary.Hex())
	return ev, nil
}
