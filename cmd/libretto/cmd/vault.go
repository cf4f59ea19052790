package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/weisyn/libretto-go/client"
	vaultsvc "github.com/weisyn/libretto-go/services/vault"
	"github.com/weisyn/libretto-go/types"
	"github.com/weisyn/libretto-go/vault"
	"github.com/weisyn/libretto-go/wallet"
)

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "金库操作",
}

var vaultCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "创建时间锁金库；指定 --beneficiary 时创建可赠与金库",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		years, _ := cmd.Flags().GetInt64("years")
		beneficiary, _ := cmd.Flags().GetString("beneficiary")

		svc, w, closeFn, err := signingService(from)
		if err != nil {
			return err
		}
		defer closeFn()

		var snap *vault.Snapshot
		if beneficiary == "" {
			snap, err = svc.CreateVault(cmd.Context(), &vaultsvc.CreateVaultRequest{From: w.Address(), LockYears: years})
		} else {
			to, perr := types.ParseAddress(beneficiary)
			if perr != nil {
				return fmt.Errorf("invalid --beneficiary: %w", perr)
			}
			snap, err = svc.CreateGiftableVault(cmd.Context(), &vaultsvc.CreateGiftableVaultRequest{
				From:        w.Address(),
				Beneficiary: to,
				LockYears:   years,
			})
		}
		if err != nil {
			return err
		}
		printSnapshot(cmd.OutOrStdout(), snap)
		return nil
	},
}

var vaultDepositCmd = &cobra.Command{
	Use:   "deposit",
	Short: "向金库存入资金（单位 ether，支持小数）",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		amountStr, _ := cmd.Flags().GetString("amount")
		target, err := vaultFlag(cmd)
		if err != nil {
			return err
		}
		amount, err := types.ParseEther(amountStr)
		if err != nil {
			return fmt.Errorf("invalid --amount: %w", err)
		}

		svc, w, closeFn, err := signingService(from)
		if err != nil {
			return err
		}
		defer closeFn()

		snap, err := svc.Deposit(cmd.Context(), &vaultsvc.DepositRequest{From: w.Address(), Vault: target, Amount: amount})
		if err != nil {
			return err
		}
		printSnapshot(cmd.OutOrStdout(), snap)
		return nil
	},
}

var vaultWithdrawCmd = &cobra.Command{
	Use:   "withdraw",
	Short: "到期后取出全部余额",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		target, err := vaultFlag(cmd)
		if err != nil {
			return err
		}

		svc, w, closeFn, err := signingService(from)
		if err != nil {
			return err
		}
		defer closeFn()

		out, err := svc.Withdraw(cmd.Context(), &vaultsvc.WithdrawRequest{From: w.Address(), Vault: target})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "withdrew %s ether to %s\n", types.FormatEther(out.Amount), out.To.Hex())
		return nil
	},
}

var vaultBeneficiaryCmd = &cobra.Command{
	Use:   "beneficiary",
	Short: "更换可赠与金库的受益人",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		toStr, _ := cmd.Flags().GetString("to")
		target, err := vaultFlag(cmd)
		if err != nil {
			return err
		}
		to, err := types.ParseAddress(toStr)
		if err != nil {
			return fmt.Errorf("invalid --to: %w", err)
		}

		svc, w, closeFn, err := signingService(from)
		if err != nil {
			return err
		}
		defer closeFn()

		changed, err := svc.UpdateBeneficiary(cmd.Context(), &vaultsvc.UpdateBeneficiaryRequest{From: w.Address(), Vault: target, Beneficiary: to})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "beneficiary %s -> %s\n", changed.OldBeneficiary.Hex(), changed.NewBeneficiary.Hex())
		return nil
	},
}

var vaultInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "查询金库状态",
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := vaultFlag(cmd)
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		defer c.Close()

		snap, err := vaultsvc.NewService(c).GetVault(cmd.Context(), target)
		if err != nil {
			return err
		}
		printSnapshot(cmd.OutOrStdout(), snap)
		return nil
	},
}

var vaultListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出金库，--account 过滤 owner 或受益人",
	RunE: func(cmd *cobra.Command, args []string) error {
		account, _ := cmd.Flags().GetString("account")
		var filter *types.Address
		if account != "" {
			addr, err := types.ParseAddress(account)
			if err != nil {
				return fmt.Errorf("invalid --account: %w", err)
			}
			filter = &addr
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		defer c.Close()

		list, err := vaultsvc.NewService(c).ListVaults(cmd.Context(), filter)
		if err != nil {
			return err
		}
		for i := range list {
			printSnapshot(cmd.OutOrStdout(), &list[i])
		}
		return nil
	},
}

func newClient() (client.Client, error) {
	return client.NewClient(&client.Config{
		Endpoint: global.Node.Endpoint,
		Protocol: client.Protocol(global.Node.Protocol),
		Timeout:  int(global.Node.Timeout / time.Second),
	})
}

// signingService 解锁 from 账户并创建带 Wallet 的金库服务
func signingService(from string) (vaultsvc.Service, wallet.Wallet, func(), error) {
	w, err := loadWallet(from)
	if err != nil {
		return nil, nil, nil, err
	}
	c, err := newClient()
	if err != nil {
		return nil, nil, nil, err
	}
	return vaultsvc.NewServiceWithWallet(c, w), w, func() { _ = c.Close() }, nil
}

func vaultFlag(cmd *cobra.Command) (types.Address, error) {
	s, _ := cmd.Flags().GetString("vault")
	addr, err := types.ParseAddress(s)
	if err != nil {
		return types.ZeroAddress, fmt.Errorf("invalid --vault: %w", err)
	}
	return addr, nil
}

func printSnapshot(out io.Writer, snap *vault.Snapshot) {
	fmt.Fprintf(out, "vault:       %s (%s)\n", snap.Address.Hex(), snap.Kind)
	fmt.Fprintf(out, "owner:       %s\n", snap.Owner.Hex())
	if snap.Beneficiary != nil {
		fmt.Fprintf(out, "beneficiary: %s\n", snap.Beneficiary.Hex())
	}
	fmt.Fprintf(out, "unlock:      %s\n", time.Unix(int64(snap.UnlockTime), 0).UTC().Format(time.RFC3339))
	fmt.Fprintf(out, "balance:     %s ether\n", types.FormatEther(snap.Balance))
	fmt.Fprintf(out, "state:       %s\n", snap.State)
}

func init() {
	for _, c := range []*cobra.Command{vaultCreateCmd, vaultDepositCmd, vaultWithdrawCmd, vaultBeneficiaryCmd} {
		c.Flags().String("from", "", "签名账户地址（需在 keystore 中）")
		_ = c.MarkFlagRequired("from")
	}
	for _, c := range []*cobra.Command{vaultDepositCmd, vaultWithdrawCmd, vaultBeneficiaryCmd, vaultInfoCmd} {
		c.Flags().String("vault", "", "金库地址")
		_ = c.MarkFlagRequired("vault")
	}

	vaultCreateCmd.Flags().Int64("years", 1, "锁定年数")
	vaultCreateCmd.Flags().String("beneficiary", "", "受益人地址（创建可赠与金库）")
	vaultDepositCmd.Flags().String("amount", "", "存入金额（ether）")
	_ = vaultDepositCmd.MarkFlagRequired("amount")
	vaultBeneficiaryCmd.Flags().String("to", "", "新受益人地址")
	_ = vaultBeneficiaryCmd.MarkFlagRequired("to")
	vaultListCmd.Flags().String("account", "", "只列出与该账户相关的金库")

	vaultCmd.AddCommand(vaultCreateCmd, vaultDepositCmd, vaultWithdrawCmd, vaultBeneficiaryCmd, vaultInfoCmd, vaultListCmd)
	rootCmd.AddCommand(vaultCmd)
}
