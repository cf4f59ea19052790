package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weisyn/libretto-go/types"
	"github.com/weisyn/libretto-go/wallet"
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "管理本地 keystore 中的账户",
}

var walletNewCmd = &cobra.Command{
	Use:   "new",
	Short: "生成新账户并加密保存到 keystore",
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := keystorePassword()
		if err != nil {
			return err
		}
		km, err := wallet.NewKeystoreManager(global.Keystore.Dir)
		if err != nil {
			return err
		}

		w, err := wallet.NewWallet()
		if err != nil {
			return fmt.Errorf("generate key failed: %w", err)
		}
		path, err := km.Save(w, password)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "地址 (hex):    %s\n", w.Address().Hex())
		fmt.Fprintf(out, "地址 (base58): %s\n", w.Address().Base58())
		fmt.Fprintf(out, "keystore:      %s\n", path)
		return nil
	},
}

var walletListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出 keystore 中的账户",
	RunE: func(cmd *cobra.Command, args []string) error {
		km, err := wallet.NewKeystoreManager(global.Keystore.Dir)
		if err != nil {
			return err
		}
		addrs, err := km.List()
		if err != nil {
			return err
		}
		for _, addr := range addrs {
			fmt.Fprintln(cmd.OutOrStdout(), addr.Hex())
		}
		return nil
	},
}

func keystorePassword() (string, error) {
	if global.Keystore.Password == "" {
		return "", fmt.Errorf("keystore password is required (set LIBRETTO_KEYSTORE_PASSWORD)")
	}
	return global.Keystore.Password, nil
}

// loadWallet 从 keystore 解锁 from 对应的账户
func loadWallet(from string) (wallet.Wallet, error) {
	addr, err := types.ParseAddress(from)
	if err != nil {
		return nil, fmt.Errorf("invalid --from: %w", err)
	}
	password, err := keystorePassword()
	if err != nil {
		return nil, err
	}
	km, err := wallet.NewKeystoreManager(global.Keystore.Dir)
	if err != nil {
		return nil, err
	}
	return km.Load(addr, password)
}

func init() {
	walletCmd.AddCommand(walletNewCmd, walletListCmd)
	rootCmd.AddCommand(walletCmd)
}
