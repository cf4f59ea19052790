package vault

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/libretto-go/event"
	"github.com/weisyn/libretto-go/types"
)

var (
	giftOwner = types.Address{0x0a}
	giftHeir  = types.Address{0x0b}
	giftDonor = types.Address{0x0c}
)

func TestNewGiftable(t *testing.T) {
	env := newTestEnv(t)

	v, err := NewGiftable(env.rt, 1, giftHeir, giftOwner)
	require.NoError(t, err)
	assert.Equal(t, giftOwner, v.Owner())
	assert.Equal(t, giftHeir, v.Beneficiary())
	assert.Equal(t, giftHeir, v.AuthorizedWithdrawer())
	assert.Equal(t, KindGiftable, v.Kind())

	self, err := NewGiftable(env.rt, 1, giftOwner, giftOwner)
	require.NoError(t, err)
	assert.Equal(t, giftOwner, self.AuthorizedWithdrawer())
}

func TestNewGiftableRejectsBadConfig(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name        string
		years       int64
		beneficiary types.Address
		owner       types.Address
		wantMsg     string
	}{
		{"zero years", 0, giftHeir, giftOwner, types.MsgLockDuration},
		{"negative years", -1, giftHeir, giftOwner, types.MsgLockDuration},
		{"zero beneficiary", 1, types.ZeroAddress, giftOwner, types.MsgBeneficiaryReq},
		{"zero owner", 1, giftHeir, types.ZeroAddress, types.MsgOwnerRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGiftable(env.rt, tt.years, tt.beneficiary, tt.owner)
			require.Error(t, err)
			assert.Equal(t, tt.wantMsg, err.Error())
			assert.True(t, errors.Is(err, types.ErrConfiguration))
		})
	}
}

// 赠与场景：A 存入，B 在解锁后取出，其他人（包括 A 和 owner）都不行
func TestGiftScenario(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.fund(t, giftDonor, "2")

	v, err := NewGiftable(env.rt, 1, giftHeir, giftOwner)
	require.NoError(t, err)
	require.NoError(t, v.Deposit(ctx, giftDonor, eth(t, "2")))

	_, err = v.Withdraw(ctx, giftHeir)
	assert.EqualError(t, err, "Abort: funds are still locked")

	env.clock.Advance(pastUnlock(v))

	_, err = v.Withdraw(ctx, giftDonor)
	assert.EqualError(t, err, "Abort: caller is not the beneficiary")

	_, err = v.Withdraw(ctx, giftOwner)
	assert.EqualError(t, err, "Abort: caller is not the beneficiary")
	assert.True(t, errors.Is(err, types.ErrNotBeneficiary))
	assert.False(t, errors.Is(err, types.ErrNotOwner))

	ev, err := v.Withdraw(ctx, giftHeir)
	require.NoError(t, err)
	assert.Equal(t, giftHeir, ev.To)
	assert.True(t, eth(t, "2").Eq(ev.Amount))
	assert.True(t, v.Balance().IsZero())
	assert.True(t, eth(t, "2").Eq(env.balance(t, giftHeir)))
}

// 收回场景：owner 把受益人改派给自己
func TestOwnerReclaim(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.fund(t, giftDonor, "1")

	v, err := NewGiftable(env.rt, 1, giftHeir, giftOwner)
	require.NoError(t, err)
	require.NoError(t, v.Deposit(ctx, giftDonor, eth(t, "1")))

	// 锁定期内同样允许改派
	changed, err := v.UpdateBeneficiary(ctx, giftOwner, giftOwner)
	require.NoError(t, err)
	assert.Equal(t, giftHeir, changed.OldBeneficiary)
	assert.Equal(t, giftOwner, changed.NewBeneficiary)
	assert.Equal(t, giftOwner, v.AuthorizedWithdrawer())

	env.clock.Advance(pastUnlock(v))

	_, err = v.Withdraw(ctx, giftHeir)
	assert.EqualError(t, err, types.MsgNotBeneficiary)

	ev, err := v.Withdraw(ctx, giftOwner)
	require.NoError(t, err)
	assert.True(t, eth(t, "1").Eq(ev.Amount))
	assert.True(t, eth(t, "1").Eq(env.balance(t, giftOwner)))
}

func TestUpdateBeneficiary(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	v, err := NewGiftable(env.rt, 1, giftHeir, giftOwner)
	require.NoError(t, err)

	tests := []struct {
		name    string
		newB    types.Address
		caller  types.Address
		wantMsg string
		want    types.Address
	}{
		{"beneficiary cannot reassign", giftDonor, giftHeir, types.MsgNotOwner, giftHeir},
		{"stranger cannot reassign", giftDonor, giftDonor, types.MsgNotOwner, giftHeir},
		{"zero beneficiary rejected", types.ZeroAddress, giftOwner, types.MsgBeneficiaryReq, giftHeir},
		{"owner reassigns", giftDonor, giftOwner, "", giftDonor},
		{"same value allowed", giftDonor, giftOwner, "", giftDonor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.UpdateBeneficiary(ctx, tt.newB, tt.caller)
			if tt.wantMsg != "" {
				assert.EqualError(t, err, tt.wantMsg)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, v.Beneficiary())
		})
	}

	logs := env.events(v.Address(), event.NameBeneficiaryChanged)
	require.Len(t, logs, 2)
	decoded, err := event.Decode(logs[1])
	require.NoError(t, err)
	assert.Equal(t, event.BeneficiaryChanged{OldBeneficiary: giftDonor, NewBeneficiary: giftDonor}, decoded)
}

func TestUpdateBeneficiaryAfterWithdraw(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.fund(t, giftDonor, "2")

	v, err := NewGiftable(env.rt, 1, giftHeir, giftOwner)
	require.NoError(t, err)
	require.NoError(t, v.Deposit(ctx, giftDonor, eth(t, "1")))
	env.clock.Advance(pastUnlock(v))

	_, err = v.Withdraw(ctx, giftHeir)
	require.NoError(t, err)

	// 新受益人取得之后的存款
	_, err = v.UpdateBeneficiary(ctx, giftDonor, giftOwner)
	require.NoError(t, err)
	require.NoError(t, v.Deposit(ctx, giftDonor, eth(t, "1")))

	_, err = v.Withdraw(ctx, giftHeir)
	assert.EqualError(t, err, types.MsgNotBeneficiary)
	ev, err := v.Withdraw(ctx, giftDonor)
	require.NoError(t, err)
	assert.True(t, eth(t, "1").Eq(ev.Amount))
}

func TestGiftableSnapshot(t *testing.T) {
	env := newTestEnv(t)
	v, err := NewGiftable(env.rt, 1, giftHeir, giftOwner)
	require.NoError(t, err)

	var generic Vault = v
	s := generic.Snapshot()
	require.NotNil(t, s.Beneficiary)
	assert.Equal(t, giftHeir, *s.Beneficiary)
	assert.Equal(t, giftHeir, s.Withdrawer)
	assert.Equal(t, KindGiftable, s.Kind)
}
