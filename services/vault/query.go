package vault

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/weisyn/libretto-go/client"
	"github.com/weisyn/libretto-go/event"
	"github.com/weisyn/libretto-go/types"
	"github.com/weisyn/libretto-go/utils"
	"github.com/weisyn/libretto-go/vault"
)

func (s *vaultService) GetVault(ctx context.Context, addr types.Address) (*vault.Snapshot, error) {
	var snap vault.Snapshot
	if err := client.CallInto(ctx, s.client, types.MethodGetVault, []interface{}{addr}, &snap); err != nil {
		return nil, fmt.Errorf("get vault failed: %w", err)
	}
	return &snap, nil
}

// GetVaults 批量查询，结果与 addrs 顺序一致，失败项记录在 Errors 中
func (s *vaultService) GetVaults(ctx context.Context, addrs []types.Address, config *utils.BatchConfig) (*utils.BatchQueryResult[*vault.Snapshot], error) {
	return utils.BatchQuery(ctx, addrs, func(ctx context.Context, addr types.Address, _ int) (*vault.Snapshot, error) {
		return s.GetVault(ctx, addr)
	}, config)
}

func (s *vaultService) ListVaults(ctx context.Context, account *types.Address) ([]vault.Snapshot, error) {
	params := []interface{}{}
	if account != nil {
		params = append(params, *account)
	}
	var out []vault.Snapshot
	if err := client.CallInto(ctx, s.client, types.MethodListVaults, params, &out); err != nil {
		return nil, fmt.Errorf("list vaults failed: %w", err)
	}
	return out, nil
}

func (s *vaultService) GetBalance(ctx context.Context, addr types.Address) (*uint256.Int, error) {
	var res types.BalanceResult
	if err := client.CallInto(ctx, s.client, types.MethodGetBalance, []interface{}{addr}, &res); err != nil {
		return nil, fmt.Errorf("get balance failed: %w", err)
	}
	if res.Balance == nil {
		return new(uint256.Int), nil
	}
	return res.Balance, nil
}

func (s *vaultService) GetEvents(ctx context.Context, filter *event.Filter) ([]*event.Log, error) {
	params := []interface{}{}
	if filter != nil {
		params = append(params, filter)
	}
	var out []*event.Log
	if err := client.CallInto(ctx, s.client, types.MethodGetEvents, params, &out); err != nil {
		return nil, fmt.Errorf("get events failed: %w", err)
	}
	return out, nil
}

func (s *vaultService) Subscribe(ctx context.Context, filter *event.Filter) (<-chan *event.Log, error) {
	return s.client.Subscribe(ctx, filter)
}
