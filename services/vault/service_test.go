package vault

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/libretto-go/client"
	"github.com/weisyn/libretto-go/event"
	"github.com/weisyn/libretto-go/host"
	"github.com/weisyn/libretto-go/server"
	"github.com/weisyn/libretto-go/types"
	"github.com/weisyn/libretto-go/utils"
	"github.com/weisyn/libretto-go/vault"
	"github.com/weisyn/libretto-go/wallet"
)

const year = 365 * 24 * time.Hour

type testEnv struct {
	host *host.Host
	url  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	h := host.New(&host.Config{Dev: true, GenesisTime: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)})
	srv := httptest.NewServer(server.New(server.DefaultConfig(), h).Handler())
	t.Cleanup(srv.Close)
	return &testEnv{host: h, url: srv.URL}
}

func (e *testEnv) client(t *testing.T, protocol client.Protocol) client.Client {
	t.Helper()
	c, err := client.NewClient(&client.Config{Endpoint: e.url, Protocol: protocol, Timeout: 5})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func (e *testEnv) funded(t *testing.T, amount string) wallet.Wallet {
	t.Helper()
	w, err := wallet.NewWallet()
	require.NoError(t, err)
	if amount != "" {
		_, err = e.host.Fund(w.Address(), ether(t, amount))
		require.NoError(t, err)
	}
	return w
}

func ether(t *testing.T, s string) *uint256.Int {
	t.Helper()
	v, err := types.ParseEther(s)
	require.NoError(t, err)
	return v
}

func TestGiftableVaultLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.funded(t, "")
	heir := env.funded(t, "")
	donor := env.funded(t, "5")

	svc := NewServiceWithWallet(env.client(t, client.ProtocolHTTP), owner)

	snap, err := svc.CreateGiftableVault(ctx, &CreateGiftableVaultRequest{
		From:        owner.Address(),
		Beneficiary: heir.Address(),
		LockYears:   1,
	})
	require.NoError(t, err)
	assert.Equal(t, vault.KindGiftable, snap.Kind)
	assert.Equal(t, heir.Address(), snap.Withdrawer)

	snap, err = svc.Deposit(ctx, &DepositRequest{From: donor.Address(), Vault: snap.Address, Amount: ether(t, "2")}, donor)
	require.NoError(t, err)
	assert.Equal(t, ether(t, "2"), snap.Balance)
	assert.Equal(t, vault.HasBalance, snap.State.Funds)

	// 未到期
	_, err = svc.Withdraw(ctx, &WithdrawRequest{From: heir.Address(), Vault: snap.Address}, heir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrLocked))
	assert.Contains(t, err.Error(), types.MsgLocked)

	_, err = env.host.IncreaseTime(year)
	require.NoError(t, err)

	// owner 不是提款人
	_, err = svc.Withdraw(ctx, &WithdrawRequest{From: owner.Address(), Vault: snap.Address})
	assert.True(t, errors.Is(err, types.ErrNotBeneficiary))

	out, err := svc.Withdraw(ctx, &WithdrawRequest{From: heir.Address(), Vault: snap.Address}, heir)
	require.NoError(t, err)
	assert.Equal(t, heir.Address(), out.To)
	assert.Equal(t, ether(t, "2"), out.Amount)

	bal, err := svc.GetBalance(ctx, heir.Address())
	require.NoError(t, err)
	assert.Equal(t, ether(t, "2"), bal)

	logs, err := svc.GetEvents(ctx, &event.Filter{Vault: &snap.Address})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, event.NameDeposit, logs[0].Name)
	assert.Equal(t, event.NameWithdraw, logs[1].Name)
}

func TestUpdateBeneficiary(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.funded(t, "")
	first := env.funded(t, "")
	second := env.funded(t, "")
	svc := NewServiceWithWallet(env.client(t, client.ProtocolHTTP), owner)

	snap, err := svc.CreateGiftableVault(ctx, &CreateGiftableVaultRequest{From: owner.Address(), Beneficiary: first.Address(), LockYears: 2})
	require.NoError(t, err)

	changed, err := svc.UpdateBeneficiary(ctx, &UpdateBeneficiaryRequest{From: owner.Address(), Vault: snap.Address, Beneficiary: second.Address()})
	require.NoError(t, err)
	assert.Equal(t, first.Address(), changed.OldBeneficiary)
	assert.Equal(t, second.Address(), changed.NewBeneficiary)

	_, err = svc.UpdateBeneficiary(ctx, &UpdateBeneficiaryRequest{From: first.Address(), Vault: snap.Address, Beneficiary: first.Address()}, first)
	assert.True(t, errors.Is(err, types.ErrNotOwner))

	_, err = svc.UpdateBeneficiary(ctx, &UpdateBeneficiaryRequest{From: owner.Address(), Vault: snap.Address})
	require.Error(t, err)
	assert.Contains(t, err.Error(), types.MsgBeneficiaryReq)

	got, err := svc.GetVault(ctx, snap.Address)
	require.NoError(t, err)
	require.NotNil(t, got.Beneficiary)
	assert.Equal(t, second.Address(), *got.Beneficiary)
}

func TestTimeLockedVaultOwnerWithdraw(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.funded(t, "3")
	svc := NewServiceWithWallet(env.client(t, client.ProtocolHTTP), owner)

	snap, err := svc.CreateVault(ctx, &CreateVaultRequest{From: owner.Address(), LockYears: 1})
	require.NoError(t, err)
	assert.Equal(t, vault.KindTimeLocked, snap.Kind)
	assert.Nil(t, snap.Beneficiary)

	_, err = svc.Deposit(ctx, &DepositRequest{From: owner.Address(), Vault: snap.Address, Amount: ether(t, "1")})
	require.NoError(t, err)

	_, err = env.host.IncreaseTime(year)
	require.NoError(t, err)

	out, err := svc.Withdraw(ctx, &WithdrawRequest{From: owner.Address(), Vault: snap.Address})
	require.NoError(t, err)
	assert.Equal(t, ether(t, "1"), out.Amount)

	// 空金库再次提款：成功且金额为 0
	out, err = svc.Withdraw(ctx, &WithdrawRequest{From: owner.Address(), Vault: snap.Address})
	require.NoError(t, err)
	assert.True(t, out.Amount.IsZero())

	// UpdateBeneficiary 对时间锁金库不支持
	_, err = svc.UpdateBeneficiary(ctx, &UpdateBeneficiaryRequest{From: owner.Address(), Vault: snap.Address, Beneficiary: types.Address{0x09}})
	assert.True(t, errors.Is(err, types.ErrUnsupported))
}

func TestRequestValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	w := env.funded(t, "")
	other := env.funded(t, "")

	withWallet := NewServiceWithWallet(env.client(t, client.ProtocolHTTP), w)
	noWallet := NewService(env.client(t, client.ProtocolHTTP))

	tests := []struct {
		name    string
		call    func() error
		wantErr string
	}{
		{
			name: "nil request",
			call: func() error {
				_, err := withWallet.CreateVault(ctx, nil)
				return err
			},
			wantErr: "request is required",
		},
		{
			name: "zero lock years",
			call: func() error {
				_, err := withWallet.CreateVault(ctx, &CreateVaultRequest{From: w.Address()})
				return err
			},
			wantErr: "lock years must be positive",
		},
		{
			name: "giftable without beneficiary",
			call: func() error {
				_, err := withWallet.CreateGiftableVault(ctx, &CreateGiftableVaultRequest{From: w.Address(), LockYears: 1})
				return err
			},
			wantErr: "beneficiary is required",
		},
		{
			name: "missing wallet",
			call: func() error {
				_, err := noWallet.CreateVault(ctx, &CreateVaultRequest{From: w.Address(), LockYears: 1})
				return err
			},
			wantErr: "wallet is required",
		},
		{
			name: "wallet mismatch",
			call: func() error {
				_, err := withWallet.CreateVault(ctx, &CreateVaultRequest{From: other.Address(), LockYears: 1})
				return err
			},
			wantErr: "wallet address does not match from address",
		},
		{
			name: "deposit without amount",
			call: func() error {
				_, err := withWallet.Deposit(ctx, &DepositRequest{From: w.Address(), Vault: types.Address{0x01}})
				return err
			},
			wantErr: "amount is required",
		},
		{
			name: "withdraw without vault",
			call: func() error {
				_, err := withWallet.Withdraw(ctx, &WithdrawRequest{From: w.Address()})
				return err
			},
			wantErr: "vault address is required",
		},
		{
			name: "unknown vault",
			call: func() error {
				_, err := noWallet.GetVault(ctx, types.Address{0x42})
				return err
			},
			wantErr: types.MsgVaultNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetVaultsAndList(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.funded(t, "")
	heir := env.funded(t, "")
	svc := NewServiceWithWallet(env.client(t, client.ProtocolHTTP), owner)

	var addrs []types.Address
	for years := int64(3); years >= 1; years-- {
		snap, err := svc.CreateVault(ctx, &CreateVaultRequest{From: owner.Address(), LockYears: years})
		require.NoError(t, err)
		addrs = append(addrs, snap.Address)
	}
	gift, err := svc.CreateGiftableVault(ctx, &CreateGiftableVaultRequest{From: owner.Address(), Beneficiary: heir.Address(), LockYears: 1})
	require.NoError(t, err)

	missing := types.Address{0xee}
	res, err := svc.GetVaults(ctx, append(addrs, missing), &utils.BatchConfig{BatchSize: 2, Concurrency: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Success)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Results, 3)
	for i, snap := range res.Results {
		assert.Equal(t, addrs[i], snap.Address)
	}
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 3, res.Errors[0].Index)
	assert.True(t, errors.Is(res.Errors[0].Error, types.ErrNotFound))

	all, err := svc.ListVaults(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	mine := heir.Address()
	heirs, err := svc.ListVaults(ctx, &mine)
	require.NoError(t, err)
	require.Len(t, heirs, 1)
	assert.Equal(t, gift.Address, heirs[0].Address)
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.funded(t, "1")

	httpSvc := NewService(env.client(t, client.ProtocolHTTP))
	_, err := httpSvc.Subscribe(ctx, nil)
	require.Error(t, err)

	svc := NewServiceWithWallet(env.client(t, client.ProtocolWebSocket), owner)
	snap, err := svc.CreateVault(ctx, &CreateVaultRequest{From: owner.Address(), LockYears: 1})
	require.NoError(t, err)

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	logs, err := svc.Subscribe(subCtx, &event.Filter{Vault: &snap.Address})
	require.NoError(t, err)

	_, err = svc.Deposit(ctx, &DepositRequest{From: owner.Address(), Vault: snap.Address, Amount: ether(t, "0.5")})
	require.NoError(t, err)

	select {
	case log := <-logs:
		require.NotNil(t, log)
		decoded, err := event.Decode(log)
		require.NoError(t, err)
		assert.Equal(t, event.Deposit{From: owner.Address(), Amount: ether(t, "0.5")}, decoded)
	case <-time.After(5 * time.Second):
		t.Fatal("no deposit notification")
	}
}
