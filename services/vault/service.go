package vault

import (
	"context"

	"github.com/holiman/uint256"

	"github.com/weisyn/libretto-go/client"
	"github.com/weisyn/libretto-go/event"
	"github.com/weisyn/libretto-go/types"
	"github.com/weisyn/libretto-go/utils"
	"github.com/weisyn/libretto-go/vault"
	"github.com/weisyn/libretto-go/wallet"
)

// Service 金库业务服务接口
//
// 写操作通过签名信封提交到节点，节点从签名恢复调用者身份；
// 读操作不需要 Wallet。
type Service interface {
	// CreateVault 创建时间锁金库，调用者成为 owner
	// wallet 参数可选：如果提供则使用，否则使用服务实例的默认 Wallet
	CreateVault(ctx context.Context, req *CreateVaultRequest, wallet ...wallet.Wallet) (*vault.Snapshot, error)

	// CreateGiftableVault 创建可赠与金库
	CreateGiftableVault(ctx context.Context, req *CreateGiftableVaultRequest, wallet ...wallet.Wallet) (*vault.Snapshot, error)

	// Deposit 存入资金，任何人都可以存
	Deposit(ctx context.Context, req *DepositRequest, wallet ...wallet.Wallet) (*vault.Snapshot, error)

	// Withdraw 到期后由提款人取出全部余额
	Withdraw(ctx context.Context, req *WithdrawRequest, wallet ...wallet.Wallet) (*event.Withdraw, error)

	// UpdateBeneficiary 可赠与金库的 owner 更换受益人
	UpdateBeneficiary(ctx context.Context, req *UpdateBeneficiaryRequest, wallet ...wallet.Wallet) (*event.BeneficiaryChanged, error)

	// GetVault 查询单个金库
	GetVault(ctx context.Context, addr types.Address) (*vault.Snapshot, error)

	// GetVaults 并发查询多个金库，单个失败不影响其他结果
	GetVaults(ctx context.Context, addrs []types.Address, config *utils.BatchConfig) (*utils.BatchQueryResult[*vault.Snapshot], error)

	// ListVaults 列出金库；account 非空时只返回其作为 owner 或受益人的金库
	ListVaults(ctx context.Context, account *types.Address) ([]vault.Snapshot, error)

	// GetBalance 查询账本余额
	GetBalance(ctx context.Context, addr types.Address) (*uint256.Int, error)

	// GetEvents 查询历史事件
	GetEvents(ctx context.Context, filter *event.Filter) ([]*event.Log, error)

	// Subscribe 订阅事件（需要 WebSocket 客户端）
	Subscribe(ctx context.Context, filter *event.Filter) (<-chan *event.Log, error)
}

// vaultService 金库服务实现
type vaultService struct {
	client client.Client
	wallet wallet.Wallet // 可选：默认 Wallet
}

// NewService 创建金库服务（不带 Wallet）
func NewService(client client.Client) Service {
	return &vaultService{
		client: client,
	}
}

// NewServiceWithWallet 创建带默认 Wallet 的金库服务
func NewServiceWithWallet(client client.Client, w wallet.Wallet) Service {
	return &vaultService{
		client: client,
		wallet: w,
	}
}

// getWallet 获取 Wallet（优先使用参数，其次使用默认 Wallet）
func (s *vaultService) getWallet(wallets ...wallet.Wallet) wallet.Wallet {
	if len(wallets) > 0 && wallets[0] != nil {
		return wallets[0]
	}
	return s.wallet
}

// CreateVaultRequest 创建时间锁金库请求
type CreateVaultRequest struct {
	From      types.Address // 创建者地址，必须与 Wallet 一致
	LockYears int64         // 锁定年数，必须大于 0
}

// CreateGiftableVaultRequest 创建可赠与金库请求
type CreateGiftableVaultRequest struct {
	From        types.Address
	Beneficiary types.Address // 初始受益人，不能为零地址
	LockYears   int64
}

// DepositRequest 存款请求
type DepositRequest struct {
	From   types.Address
	Vault  types.Address
	Amount *uint256.Int // 最小单位
}

// WithdrawRequest 提款请求
type WithdrawRequest struct {
	From  types.Address
	Vault types.Address
}

// UpdateBeneficiaryRequest 更换受益人请求
type UpdateBeneficiaryRequest struct {
	From        types.Address
	Vault       types.Address
	Beneficiary types.Address
}
