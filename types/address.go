package types

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/ethereum/go-ethereum/common"
)

// AddressLength 地址长度（字节）
const AddressLength = 20

// AddressVersion Base58Check 地址版本字节（P2PKH）
const AddressVersion = byte(0x1C)

// Address 身份标识（20 字节）
//
// 金库的 owner / beneficiary / 账本账户都使用同一种地址，
// 授权检查就是对两个 Address 做相等比较。
type Address [AddressLength]byte

// ZeroAddress 零地址
var ZeroAddress Address

// BytesToAddress 从 20 字节切片构造地址
func BytesToAddress(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressLength {
		return a, fmt.Errorf("invalid address length: expected %d bytes, got %d", AddressLength, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// MustAddress 同 BytesToAddress，失败时 panic（仅用于常量/测试）
func MustAddress(b []byte) Address {
	a, err := BytesToAddress(b)
	if err != nil {
		panic(err)
	}
	return a
}

// FromCommon 从 go-ethereum 地址转换
func FromCommon(c common.Address) Address {
	return Address(c)
}

// ParseAddress 解析地址字符串
//
// 支持两种格式：
// - 0x 前缀的十六进制（40 个字符）
// - Base58Check 编码
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ZeroAddress, fmt.Errorf("empty address")
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		raw, err := hex.DecodeString(s[2:])
		if err != nil {
			return ZeroAddress, fmt.Errorf("invalid hex address: %w", err)
		}
		return BytesToAddress(raw)
	}
	return AddressFromBase58(s)
}

// AddressFromBase58 解析 Base58Check 地址
func AddressFromBase58(s string) (Address, error) {
	payload, version, err := base58.CheckDecode(s)
	if err != nil {
		return ZeroAddress, fmt.Errorf("invalid base58 address: %w", err)
	}
	if version != AddressVersion {
		return ZeroAddress, fmt.Errorf("invalid address version: expected 0x%02x, got 0x%02x", AddressVersion, version)
	}
	return BytesToAddress(payload)
}

// Bytes 返回地址字节副本
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a[:])
	return out
}

// Hex 返回 0x 前缀的十六进制表示
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Base58 返回 Base58Check 表示
func (a Address) Base58() string {
	return base58.CheckEncode(a[:], AddressVersion)
}

func (a Address) String() string {
	return a.Hex()
}

// IsZero 是否为零地址
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// Common 转换为 go-ethereum 地址
func (a Address) Common() common.Address {
	return common.Address(a)
}

// MarshalText 实现 encoding.TextMarshaler（JSON 中使用十六进制）
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler，同时接受十六进制与 Base58
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
