package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/weisyn/libretto-go/client"
	"github.com/weisyn/libretto-go/types"
)

var devCmd = &cobra.Command{
	Use:   "dev",
	Short: "开发模式节点的辅助命令",
}

var devFundCmd = &cobra.Command{
	Use:   "fund",
	Short: "从水龙头给账户铸币（ether）",
	RunE: func(cmd *cobra.Command, args []string) error {
		addrStr, _ := cmd.Flags().GetString("address")
		amountStr, _ := cmd.Flags().GetString("amount")
		addr, err := types.ParseAddress(addrStr)
		if err != nil {
			return fmt.Errorf("invalid --address: %w", err)
		}
		amount, err := types.ParseEther(amountStr)
		if err != nil {
			return fmt.Errorf("invalid --amount: %w", err)
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		defer c.Close()

		var res types.BalanceResult
		if err := client.CallInto(cmd.Context(), c, types.MethodDevFund, []interface{}{types.FundParams{Address: addr, Amount: amount}}, &res); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s balance: %s ether\n", res.Address.Hex(), types.FormatEther(res.Balance))
		return nil
	},
}

var devIncreaseTimeCmd = &cobra.Command{
	Use:   "increase-time <duration>",
	Short: "推进节点时钟，例如 8760h 或 365d",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := parseDuration(args[0])
		if err != nil {
			return err
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		defer c.Close()

		var res types.TimeResult
		params := []interface{}{types.IncreaseTimeParams{Seconds: int64(d / time.Second)}}
		if err := client.CallInto(cmd.Context(), c, types.MethodIncreaseTime, params, &res); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "node time: %s\n", time.Unix(int64(res.Now), 0).UTC().Format(time.RFC3339))
		return nil
	},
}

// parseDuration 在 time.ParseDuration 基础上支持 d（天）与 y（365 天）后缀
func parseDuration(s string) (time.Duration, error) {
	var n int64
	var unit string
	if _, err := fmt.Sscanf(s, "%d%s", &n, &unit); err == nil {
		switch unit {
		case "d":
			return time.Duration(n) * 24 * time.Hour, nil
		case "y":
			return time.Duration(n) * 365 * 24 * time.Hour, nil
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}

func init() {
	devFundCmd.Flags().String("address", "", "收款地址")
	devFundCmd.Flags().String("amount", "", "金额（ether）")
	_ = devFundCmd.MarkFlagRequired("address")
	_ = devFundCmd.MarkFlagRequired("amount")

	devCmd.AddCommand(devFundCmd, devIncreaseTimeCmd)
	rootCmd.AddCommand(devCmd)
}
