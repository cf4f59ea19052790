// Package event 金库事件：日志结构、ABI 编解码与进程内事件总线。
package event

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/weisyn/libretto-go/types"
)

// 事件名称
const (
	NameDeposit            = "Deposit"
	NameWithdraw           = "Withdraw"
	NameBeneficiaryChanged = "BeneficiaryChanged"
)

// vaultABIJSON 与合约事件签名保持一致，便于链上索引器直接解码
const vaultABIJSON = `[
	{"type":"event","name":"Deposit","anonymous":false,"inputs":[
		{"name":"from","type":"address","indexed":false},
		{"name":"amount","type":"uint256","indexed":false}]},
	{"type":"event","name":"Withdraw","anonymous":false,"inputs":[
		{"name":"to","type":"address","indexed":false},
		{"name":"amount","type":"uint256","indexed":false}]},
	{"type":"event","name":"BeneficiaryChanged","anonymous":false,"inputs":[
		{"name":"oldBeneficiary","type":"address","indexed":false},
		{"name":"newBeneficiary","type":"address","indexed":false}]}
]`

var vaultABI = mustParseABI(vaultABIJSON)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("parse vault abi: %v", err))
	}
	return parsed
}

// Topic 返回事件签名哈希（keccak256("Withdraw(address,uint256)") 等）
func Topic(name string) (common.Hash, bool) {
	ev, ok := vaultABI.Events[name]
	if !ok {
		return common.Hash{}, false
	}
	return ev.ID, true
}

// Payload 可编码为日志的事件
type Payload interface {
	EventName() string
	pack() ([]byte, error)
}

// Log 事件日志
type Log struct {
	Seq       uint64        `json:"seq"`
	Vault     types.Address `json:"vault"`
	Name      string        `json:"name"`
	Topic     common.Hash   `json:"topic"`
	Data      hexutil.Bytes `json:"data"`
	Timestamp uint64        `json:"timestamp"`
}

// Deposit 入金事件
type Deposit struct {
	From   types.Address `json:"from"`
	Amount *uint256.Int  `json:"amount"`
}

// Withdraw 提取事件，Amount 为实际转出金额
type Withdraw struct {
	To     types.Address `json:"to"`
	Amount *uint256.Int  `json:"amount"`
}

// BeneficiaryChanged 受益人变更事件
type BeneficiaryChanged struct {
	OldBeneficiary types.Address `json:"oldBeneficiary"`
	NewBeneficiary types.Address `json:"newBeneficiary"`
}

func (Deposit) EventName() string            { return NameDeposit }
func (Withdraw) EventName() string           { return NameWithdraw }
func (BeneficiaryChanged) EventName() string { return NameBeneficiaryChanged }

func (d Deposit) pack() ([]byte, error) {
	return vaultABI.Events[NameDeposit].Inputs.Pack(d.From.Common(), amountBig(d.Amount))
}

func (w Withdraw) pack() ([]byte, error) {
	return vaultABI.Events[NameWithdraw].Inputs.Pack(w.To.Common(), amountBig(w.Amount))
}

func (b BeneficiaryChanged) pack() ([]byte, error) {
	return vaultABI.Events[NameBeneficiaryChanged].Inputs.Pack(b.OldBeneficiary.Common(), b.NewBeneficiary.Common())
}

func amountBig(v *uint256.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v.ToBig()
}

// Encode 将事件编码为日志（Seq / Timestamp 由总线填充）
func Encode(vault types.Address, p Payload) (*Log, error) {
	topic, ok := Topic(p.EventName())
	if !ok {
		return nil, fmt.Errorf("unknown event %q", p.EventName())
	}
	data, err := p.pack()
	if err != nil {
		return nil, fmt.Errorf("pack %s event failed: %w", p.EventName(), err)
	}
	return &Log{
		Vault: vault,
		Name:  p.EventName(),
		Topic: topic,
		Data:  data,
	}, nil
}

// Decode 解码日志为具体事件（Deposit / Withdraw / BeneficiaryChanged）
func Decode(log *Log) (Payload, error) {
	ev, ok := vaultABI.Events[log.Name]
	if !ok {
		return nil, fmt.Errorf("unknown event %q", log.Name)
	}
	if ev.ID != log.Topic {
		return nil, fmt.Errorf("topic mismatch for %s: got %s", log.Name, log.Topic.Hex())
	}
	values, err := ev.Inputs.Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s event failed: %w", log.Name, err)
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("unexpected %s field count: %d", log.Name, len(values))
	}

	switch log.Name {
	case NameDeposit:
		from, amount, err := addressAndAmount(values)
		if err != nil {
			return nil, err
		}
		return Deposit{From: from, Amount: amount}, nil
	case NameWithdraw:
		to, amount, err := addressAndAmount(values)
		if err != nil {
			return nil, err
		}
		return Withdraw{To: to, Amount: amount}, nil
	default:
		oldB, ok1 := values[0].(common.Address)
		newB, ok2 := values[1].(common.Address)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("invalid %s field types", log.Name)
		}
		return BeneficiaryChanged{OldBeneficiary: types.FromCommon(oldB), NewBeneficiary: types.FromCommon(newB)}, nil
	}
}

func addressAndAmount(values []interface{}) (types.Address, *uint256.Int, error) {
	addr, ok := values[0].(common.Address)
	if !ok {
		return types.ZeroAddress, nil, fmt.Errorf("invalid address field type %T", values[0])
	}
	b, ok := values[1].(*big.Int)
	if !ok {
		return types.ZeroAddress, nil, fmt.Errorf("invalid amount field type %T", values[1])
	}
	amount, overflow := uint256.FromBig(b)
	if overflow {
		return types.ZeroAddress, nil, fmt.Errorf("amount overflows uint256")
	}
	return types.FromCommon(addr), amount, nil
}
