package types

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// EtherDecimals 1 ether = 10^18 wei
const EtherDecimals = 18

// ParseAmount 解析 wei 金额（十进制或 0x 十六进制）
func ParseAmount(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := uint256.FromHex(s)
		if err != nil {
			return nil, fmt.Errorf("invalid hex amount %q: %w", s, err)
		}
		return v, nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return v, nil
}

// ParseEther 将以 ether 为单位的十进制字符串转换为 wei
//
// 例如 "2" → 2000000000000000000，"0.5" → 500000000000000000。
func ParseEther(s string) (*uint256.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid ether amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("ether amount must not be negative: %s", s)
	}
	wei := d.Shift(EtherDecimals)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, fmt.Errorf("ether amount has more than %d decimals: %s", EtherDecimals, s)
	}
	v, err := uint256.FromDecimal(wei.StringFixed(0))
	if err != nil {
		return nil, fmt.Errorf("ether amount out of range: %w", err)
	}
	return v, nil
}

// FormatEther 将 wei 金额格式化为 ether
func FormatEther(v *uint256.Int) string {
	return ToEtherDecimal(v).String()
}

// ToEtherDecimal 将 wei 金额转换为以 ether 为单位的 decimal
func ToEtherDecimal(v *uint256.Int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v.ToBig(), -EtherDecimals)
}

// CloneAmount 复制金额，nil 视为 0
func CloneAmount(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}
