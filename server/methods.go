package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/weisyn/libretto-go/event"
	"github.com/weisyn/libretto-go/types"
	"github.com/weisyn/libretto-go/vault"
)

// methodFunc JSON-RPC 方法处理函数
type methodFunc func(ctx context.Context, params json.RawMessage) (interface{}, error)

// registerMethods 注册全部方法，dev_* 只在开发模式下可见
func (s *Server) registerMethods() {
	s.methods = map[string]methodFunc{
		types.MethodCreateVault:       s.execute,
		types.MethodCreateGiftable:    s.execute,
		types.MethodDeposit:           s.execute,
		types.MethodWithdraw:          s.execute,
		types.MethodUpdateBeneficiary: s.execute,
		types.MethodGetVault:          s.getVault,
		types.MethodListVaults:        s.listVaults,
		types.MethodGetEvents:         s.getEvents,
		types.MethodGetBalance:        s.getBalance,
		types.MethodGetNonce:          s.getNonce,
	}
	if s.host.Dev() {
		s.methods[types.MethodDevFund] = s.devFund
		s.methods[types.MethodIncreaseTime] = s.devIncreaseTime
	}
}

// execute 签名方法：params = [Envelope]
//
// 信封中的 method 必须与请求方法一致，防止签名被挪用到其他操作。
func (s *Server) execute(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var env types.Envelope
	if err := firstParam(params, &env); err != nil {
		return nil, err
	}
	method, _ := ctx.Value(methodKey{}).(string)
	if env.Method != method {
		return nil, types.NewInvalidParamsError("Abort: envelope method %q does not match %q", env.Method, method)
	}
	return s.host.Execute(ctx, &env)
}

// getVault params = [address]
func (s *Server) getVault(_ context.Context, params json.RawMessage) (interface{}, error) {
	var addr types.Address
	if err := firstParam(params, &addr); err != nil {
		return nil, err
	}
	v, err := s.host.Vault(addr)
	if err != nil {
		return nil, err
	}
	return v.Snapshot(), nil
}

// listVaults params = [] 或 [account]
func (s *Server) listVaults(_ context.Context, params json.RawMessage) (interface{}, error) {
	list, err := positional(params, 0)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 || string(list[0]) == "null" {
		return s.host.Vaults(), nil
	}
	var account types.Address
	if err := json.Unmarshal(list[0], &account); err != nil {
		return nil, newError(CodeInvalidParams, "invalid account: %v", err)
	}
	out := s.host.VaultsOf(account)
	if out == nil {
		out = []vault.Snapshot{}
	}
	return out, nil
}

// getEvents params = [] 或 [filter]
func (s *Server) getEvents(_ context.Context, params json.RawMessage) (interface{}, error) {
	list, err := positional(params, 0)
	if err != nil {
		return nil, err
	}
	var filter *event.Filter
	if len(list) > 0 && string(list[0]) != "null" {
		filter = &event.Filter{}
		if err := json.Unmarshal(list[0], filter); err != nil {
			return nil, newError(CodeInvalidParams, "invalid filter: %v", err)
		}
	}
	return s.host.Events(filter), nil
}

// getBalance params = [address]
func (s *Server) getBalance(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var addr types.Address
	if err := firstParam(params, &addr); err != nil {
		return nil, err
	}
	bal, err := s.host.Balance(ctx, addr)
	if err != nil {
		return nil, err
	}
	return &types.BalanceResult{Address: addr, Balance: bal}, nil
}

// getNonce params = [address]
func (s *Server) getNonce(_ context.Context, params json.RawMessage) (interface{}, error) {
	var addr types.Address
	if err := firstParam(params, &addr); err != nil {
		return nil, err
	}
	n := s.host.Nonce(addr)
	return &types.NonceResult{Address: addr, Nonce: n, Next: n + 1}, nil
}

// devFund params = [{address, amount}]
func (s *Server) devFund(_ context.Context, params json.RawMessage) (interface{}, error) {
	var p types.FundParams
	if err := firstParam(params, &p); err != nil {
		return nil, err
	}
	bal, err := s.host.Fund(p.Address, p.Amount)
	if err != nil {
		return nil, err
	}
	return &types.BalanceResult{Address: p.Address, Balance: bal}, nil
}

// devIncreaseTime params = [{seconds}]
func (s *Server) devIncreaseTime(_ context.Context, params json.RawMessage) (interface{}, error) {
	var p types.IncreaseTimeParams
	if err := firstParam(params, &p); err != nil {
		return nil, err
	}
	now, err := s.host.IncreaseTime(time.Duration(p.Seconds) * time.Second)
	if err != nil {
		return nil, err
	}
	return &types.TimeResult{Now: uint64(now.Unix())}, nil
}
