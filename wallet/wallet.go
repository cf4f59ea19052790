package wallet

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/ripemd160"

	"github.com/weisyn/libretto-go/types"
)

// SignatureLength 签名长度：R || S || V
const SignatureLength = 65

// Wallet 钱包接口
type Wallet interface {
	// Address 获取钱包地址
	Address() types.Address

	// SignMessage 签名消息（先做 keccak256）
	SignMessage(msg []byte) ([]byte, error)

	// SignHash 签名 32 字节哈希，返回可恢复公钥的 65 字节签名
	SignHash(hash []byte) ([]byte, error)

	// PrivateKey 获取私钥（谨慎使用）
	PrivateKey() *ecdsa.PrivateKey
}

// SimpleWallet 简单钱包实现（用于测试和开发）
type SimpleWallet struct {
	privateKey *ecdsa.PrivateKey
	address    types.Address
	createdAt  time.Time
}

// NewWallet 创建新钱包
func NewWallet() (Wallet, error) {
	// 生成 secp256k1 私钥
	privateKey, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate private key: %w", err)
	}
	return newSimpleWallet(privateKey), nil
}

// NewWalletFromPrivateKey 从十六进制私钥创建钱包
func NewWalletFromPrivateKey(privateKeyHex string) (Wallet, error) {
	privateKeyBytes, err := hex.DecodeString(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	return NewWalletFromBytes(privateKeyBytes)
}

// NewWalletFromBytes 从原始 32 字节私钥创建钱包
func NewWalletFromBytes(privateKeyBytes []byte) (Wallet, error) {
	if len(privateKeyBytes) != 32 {
		return nil, fmt.Errorf("invalid private key length: expected 32 bytes, got %d", len(privateKeyBytes))
	}
	privateKey, err := ethcrypto.ToECDSA(privateKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("parse secp256k1 private key failed: %w", err)
	}
	return newSimpleWallet(privateKey), nil
}

func newSimpleWallet(privateKey *ecdsa.PrivateKey) *SimpleWallet {
	return &SimpleWallet{
		privateKey: privateKey,
		address:    PubkeyToAddress(&privateKey.PublicKey),
		createdAt:  time.Now(),
	}
}

// Address 获取钱包地址
func (w *SimpleWallet) Address() types.Address {
	return w.address
}

// SignHash 签名哈希值
func (w *SimpleWallet) SignHash(hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("hash must be 32 bytes, got %d", len(hash))
	}
	sig, err := ethcrypto.Sign(hash, w.privateKey)
	if err != nil {
		return nil, fmt.Errorf("secp256k1 sign: %w", err)
	}
	return sig, nil
}

// SignMessage 签名消息
func (w *SimpleWallet) SignMessage(msg []byte) ([]byte, error) {
	return w.SignHash(ethcrypto.Keccak256(msg))
}

// PrivateKey 获取私钥
func (w *SimpleWallet) PrivateKey() *ecdsa.PrivateKey {
	return w.privateKey
}

// PrivateKeyHex 导出十六进制私钥（不带 0x）
func PrivateKeyHex(w Wallet) string {
	return hex.EncodeToString(ethcrypto.FromECDSA(w.PrivateKey()))
}

// PubkeyToAddress 地址 = HASH160(compressed_pubkey)
func PubkeyToAddress(pub *ecdsa.PublicKey) types.Address {
	compressed := ethcrypto.CompressPubkey(pub)

	sha := sha256.Sum256(compressed)
	r := ripemd160.New()
	_, _ = r.Write(sha[:])

	var addr types.Address
	copy(addr[:], r.Sum(nil))
	return addr
}

// RecoverAddress 从签名恢复签名者地址
func RecoverAddress(hash, sig []byte) (types.Address, error) {
	if len(sig) != SignatureLength {
		return types.ZeroAddress, fmt.Errorf("invalid signature length: expected %d bytes, got %d", SignatureLength, len(sig))
	}
	pub, err := ethcrypto.SigToPub(hash, sig)
	if err != nil {
		return types.ZeroAddress, fmt.Errorf("recover public key: %w", err)
	}
	// 拒绝高 S 值签名，避免同一消息出现两个有效签名
	if !ethcrypto.VerifySignature(ethcrypto.CompressPubkey(pub), hash, sig[:64]) {
		return types.ZeroAddress, fmt.Errorf("signature does not verify")
	}
	return PubkeyToAddress(pub), nil
}
