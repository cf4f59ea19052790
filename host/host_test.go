package host

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/libretto-go/event"
	"github.com/weisyn/libretto-go/metrics"
	"github.com/weisyn/libretto-go/types"
	"github.com/weisyn/libretto-go/vault"
	"github.com/weisyn/libretto-go/wallet"
)

var genesis = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func newDevHost(t *testing.T) *Host {
	t.Helper()
	return New(&Config{Dev: true, GenesisTime: genesis})
}

func ether(t *testing.T, s string) *uint256.Int {
	t.Helper()
	v, err := types.ParseEther(s)
	require.NoError(t, err)
	return v
}

func newWallet(t *testing.T) wallet.Wallet {
	t.Helper()
	w, err := wallet.NewWallet()
	require.NoError(t, err)
	return w
}

func sign(t *testing.T, w wallet.Wallet, method string, payload interface{}, nonce uint64) *types.Envelope {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	env := &types.Envelope{Method: method, Payload: raw, Nonce: nonce}
	env.Signature, err = w.SignHash(env.Digest())
	require.NoError(t, err)
	return env
}

func TestVaultAddressFollowsOwnerNonce(t *testing.T) {
	ctx := context.Background()
	h := newDevHost(t)
	owner := types.Address{0x01}

	first, err := h.CreateVault(ctx, owner, 1)
	require.NoError(t, err)
	second, err := h.CreateGiftableVault(ctx, owner, types.Address{0x02}, 2)
	require.NoError(t, err)

	assert.Equal(t, types.FromCommon(crypto.CreateAddress(owner.Common(), 0)), first.Address())
	assert.Equal(t, types.FromCommon(crypto.CreateAddress(owner.Common(), 1)), second.Address())
	assert.Len(t, h.Vaults(), 2)
	assert.Equal(t, first.Address(), h.Vaults()[0].Address)
}

func TestFailedCreateDoesNotConsumeDeployNonce(t *testing.T) {
	ctx := context.Background()
	h := newDevHost(t)
	owner := types.Address{0x01}

	_, err := h.CreateVault(ctx, owner, 0)
	assert.True(t, errors.Is(err, types.ErrConfiguration))

	v, err := h.CreateVault(ctx, owner, 1)
	require.NoError(t, err)
	assert.Equal(t, types.FromCommon(crypto.CreateAddress(owner.Common(), 0)), v.Address())
}

func TestUnknownVault(t *testing.T) {
	ctx := context.Background()
	h := newDevHost(t)

	_, err := h.Withdraw(ctx, types.Address{0x99}, types.Address{0x01})
	assert.True(t, errors.Is(err, types.ErrNotFound))

	_, err = h.Vault(types.Address{0x99})
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestUpdateBeneficiaryOnFixedVaultUnsupported(t *testing.T) {
	ctx := context.Background()
	h := newDevHost(t)
	owner := types.Address{0x01}

	v, err := h.CreateVault(ctx, owner, 1)
	require.NoError(t, err)

	_, err = h.UpdateBeneficiary(ctx, v.Address(), types.Address{0x02}, owner)
	assert.True(t, errors.Is(err, types.ErrUnsupported))
}

func TestDevOnlyOperations(t *testing.T) {
	h := New(DefaultConfig())

	_, err := h.Fund(types.Address{0x01}, uint256.NewInt(1))
	assert.ErrorIs(t, err, ErrDevOnly)

	_, err = h.IncreaseTime(time.Hour)
	assert.ErrorIs(t, err, ErrDevOnly)
}

func TestFundRejectsVaultAccount(t *testing.T) {
	ctx := context.Background()
	h := newDevHost(t)
	owner := types.Address{0x01}

	v, err := h.CreateVault(ctx, owner, 1)
	require.NoError(t, err)

	_, err = h.Fund(v.Address(), ether(t, "5"))
	var ve *types.VaultError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, types.CodeInvalidParams, ve.Code)

	bal, err := h.Balance(ctx, v.Address())
	require.NoError(t, err)
	assert.True(t, bal.IsZero())
	assert.True(t, v.Balance().IsZero())

	// 普通账户照常可领
	_, err = h.Fund(owner, ether(t, "5"))
	require.NoError(t, err)
}

func TestZeroDepositNotRecorded(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	h := New(&Config{Dev: true, GenesisTime: genesis}, WithMetrics(metrics.NewCollector(reg)))
	owner := types.Address{0x01}

	v, err := h.CreateVault(ctx, owner, 1)
	require.NoError(t, err)
	_, err = h.Fund(owner, ether(t, "1"))
	require.NoError(t, err)

	_, err = h.Deposit(ctx, v.Address(), owner, new(uint256.Int))
	require.NoError(t, err)
	_, err = h.Deposit(ctx, v.Address(), owner, nil)
	require.NoError(t, err)
	_, err = h.Deposit(ctx, v.Address(), owner, ether(t, "1"))
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	counts := map[string]float64{}
	for _, mf := range families {
		switch mf.GetName() {
		case "libretto_deposits_total":
			counts[mf.GetName()] = mf.GetMetric()[0].GetCounter().GetValue()
		case "libretto_deposited_ether":
			counts[mf.GetName()] = float64(mf.GetMetric()[0].GetHistogram().GetSampleCount())
		}
	}
	assert.Equal(t, float64(1), counts["libretto_deposits_total"])
	assert.Equal(t, float64(1), counts["libretto_deposited_ether"])
}

func TestIncreaseTime(t *testing.T) {
	h := newDevHost(t)
	assert.Equal(t, genesis, h.Now())

	now, err := h.IncreaseTime(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, genesis.Add(time.Hour), now)

	_, err = h.IncreaseTime(-time.Second)
	var ve *types.VaultError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, types.CodeInvalidParams, ve.Code)
}

func TestAuthenticate(t *testing.T) {
	h := newDevHost(t)
	w := newWallet(t)

	env := sign(t, w, types.MethodCreateVault, types.CreateVaultPayload{LockYears: 1}, 1)
	caller, err := h.Authenticate(env)
	require.NoError(t, err)
	assert.Equal(t, w.Address(), caller)
	assert.Equal(t, uint64(1), h.Nonce(w.Address()))

	// 重放
	_, err = h.Authenticate(env)
	assert.True(t, errors.Is(err, types.ErrBadNonce))

	// 跳号允许，只要求严格递增
	_, err = h.Authenticate(sign(t, w, types.MethodCreateVault, types.CreateVaultPayload{LockYears: 1}, 5))
	require.NoError(t, err)
	assert.Equal(t, uint64(5), h.Nonce(w.Address()))

	// 篡改 payload 后签名恢复出其他身份，nonce 不再匹配或签名无效
	tampered := sign(t, w, types.MethodCreateVault, types.CreateVaultPayload{LockYears: 1}, 6)
	tampered.Payload = json.RawMessage(`{"lockYears":100}`)
	caller, err = h.Authenticate(tampered)
	if err == nil {
		assert.NotEqual(t, w.Address(), caller)
	}

	bad := &types.Envelope{Method: types.MethodWithdraw, Payload: json.RawMessage(`{}`), Nonce: 9, Signature: make([]byte, 10)}
	_, err = h.Authenticate(bad)
	assert.True(t, errors.Is(err, types.ErrBadSignature))
}

func TestExecuteGiftScenario(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	h := New(&Config{Dev: true, GenesisTime: genesis}, WithMetrics(metrics.NewCollector(reg)))

	owner, heir, donor := newWallet(t), newWallet(t), newWallet(t)
	_, err := h.Fund(donor.Address(), ether(t, "2"))
	require.NoError(t, err)

	res, err := h.Execute(ctx, sign(t, owner, types.MethodCreateGiftable,
		types.CreateGiftablePayload{LockYears: 1, Beneficiary: heir.Address()}, 1))
	require.NoError(t, err)
	snap := res.(vault.Snapshot)
	assert.Equal(t, owner.Address(), snap.Owner)
	assert.Equal(t, heir.Address(), snap.Withdrawer)

	res, err = h.Execute(ctx, sign(t, donor, types.MethodDeposit,
		types.DepositPayload{Vault: snap.Address, Amount: ether(t, "2")}, 1))
	require.NoError(t, err)
	assert.True(t, ether(t, "2").Eq(res.(vault.Snapshot).Balance))

	_, err = h.Execute(ctx, sign(t, heir, types.MethodWithdraw, types.WithdrawPayload{Vault: snap.Address}, 1))
	assert.EqualError(t, err, types.MsgLocked)

	_, err = h.IncreaseTime(time.Duration(vault.SecondsPerYear+1) * time.Second)
	require.NoError(t, err)

	_, err = h.Execute(ctx, sign(t, donor, types.MethodWithdraw, types.WithdrawPayload{Vault: snap.Address}, 2))
	assert.EqualError(t, err, types.MsgNotBeneficiary)

	res, err = h.Execute(ctx, sign(t, heir, types.MethodWithdraw, types.WithdrawPayload{Vault: snap.Address}, 2))
	require.NoError(t, err)
	ev := res.(*event.Withdraw)
	assert.True(t, ether(t, "2").Eq(ev.Amount))

	bal, err := h.Balance(ctx, heir.Address())
	require.NoError(t, err)
	assert.True(t, ether(t, "2").Eq(bal))

	v, err := h.Vault(snap.Address)
	require.NoError(t, err)
	assert.True(t, v.Balance().IsZero())

	names := make([]string, 0)
	for _, log := range h.Events(&event.Filter{Vault: &snap.Address}) {
		names = append(names, log.Name)
	}
	assert.Equal(t, []string{event.NameDeposit, event.NameWithdraw}, names)

	families, err := reg.Gather()
	require.NoError(t, err)
	found := map[string]bool{}
	for _, mf := range families {
		found[mf.GetName()] = true
	}
	assert.True(t, found["libretto_withdraw_rejected_total"])
	assert.True(t, found["libretto_withdrawals_total"])
}

func TestExecuteUpdateBeneficiary(t *testing.T) {
	ctx := context.Background()
	h := newDevHost(t)
	owner, heir := newWallet(t), newWallet(t)

	res, err := h.Execute(ctx, sign(t, owner, types.MethodCreateGiftable,
		types.CreateGiftablePayload{LockYears: 1, Beneficiary: heir.Address()}, 1))
	require.NoError(t, err)
	addr := res.(vault.Snapshot).Address

	_, err = h.Execute(ctx, sign(t, heir, types.MethodUpdateBeneficiary,
		types.UpdateBeneficiaryPayload{Vault: addr, Beneficiary: heir.Address()}, 1))
	assert.EqualError(t, err, types.MsgNotOwner)

	res, err = h.Execute(ctx, sign(t, owner, types.MethodUpdateBeneficiary,
		types.UpdateBeneficiaryPayload{Vault: addr, Beneficiary: owner.Address()}, 2))
	require.NoError(t, err)
	changed := res.(*event.BeneficiaryChanged)
	assert.Equal(t, heir.Address(), changed.OldBeneficiary)
	assert.Equal(t, owner.Address(), changed.NewBeneficiary)
}

func TestExecuteRejectsUnknownMethodAndBadPayload(t *testing.T) {
	ctx := context.Background()
	h := newDevHost(t)
	w := newWallet(t)

	_, err := h.Execute(ctx, sign(t, w, types.MethodGetVault, map[string]string{}, 1))
	var ve *types.VaultError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, types.CodeInvalidParams, ve.Code)

	env := sign(t, w, types.MethodCreateVault, "not an object", 2)
	_, err = h.Execute(ctx, env)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, types.CodeInvalidParams, ve.Code)
}

func TestVaultsOf(t *testing.T) {
	ctx := context.Background()
	h := newDevHost(t)
	a, b := types.Address{0x0a}, types.Address{0x0b}

	_, err := h.CreateVault(ctx, a, 3)
	require.NoError(t, err)
	_, err = h.CreateGiftableVault(ctx, a, b, 1)
	require.NoError(t, err)
	_, err = h.CreateVault(ctx, b, 2)
	require.NoError(t, err)

	assert.Len(t, h.VaultsOf(a), 2)
	mine := h.VaultsOf(b)
	require.Len(t, mine, 2)
	assert.Less(t, mine[0].UnlockTime, mine[1].UnlockTime)
}
