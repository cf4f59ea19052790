package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"golang.org/x/crypto/pbkdf2"

	"github.com/weisyn/libretto-go/types"
)

// DefaultKDFIterations PBKDF2 默认迭代次数
const DefaultKDFIterations = 262144

// ErrInvalidPassword 口令错误（MAC 校验失败）
var ErrInvalidPassword = errors.New("invalid password")

// Keystore Keystore 文件结构
type Keystore struct {
	Version int    `json:"version"`
	ID      string `json:"id"`
	Address string `json:"address"`
	Crypto  Crypto `json:"crypto"`
}

// Crypto 加密信息
type Crypto struct {
	Cipher       string       `json:"cipher"`
	CipherText   string       `json:"ciphertext"`
	CipherParams CipherParams `json:"cipherparams"`
	KDF          string       `json:"kdf"`
	KDFParams    KDFParams    `json:"kdfparams"`
	MAC          string       `json:"mac"`
}

// CipherParams 加密参数
type CipherParams struct {
	IV string `json:"iv"`
}

// KDFParams PBKDF2 参数
type KDFParams struct {
	C     int    `json:"c"`
	DKLen int    `json:"dklen"`
	PRF   string `json:"prf"`
	Salt  string `json:"salt"`
}

// KeystoreManager Keystore 管理器，文件名为地址的十六进制形式
type KeystoreManager struct {
	keystoreDir string
	iterations  int
}

// NewKeystoreManager 创建 Keystore 管理器
func NewKeystoreManager(keystoreDir string) (*KeystoreManager, error) {
	if err := os.MkdirAll(keystoreDir, 0700); err != nil {
		return nil, fmt.Errorf("create keystore dir: %w", err)
	}
	return &KeystoreManager{
		keystoreDir: keystoreDir,
		iterations:  DefaultKDFIterations,
	}, nil
}

// WithIterations 调整 PBKDF2 迭代次数（测试中使用较小的值）
func (km *KeystoreManager) WithIterations(n int) *KeystoreManager {
	if n > 0 {
		km.iterations = n
	}
	return km
}

// Save 加密保存钱包私钥，返回文件路径
func (km *KeystoreManager) Save(w Wallet, password string) (string, error) {
	// 1. 生成随机 salt 和 IV
	salt := make([]byte, 32)
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	// 2. 派生密钥：前 16 字节用于 AES-128，后 16 字节用于 MAC
	key := pbkdf2.Key([]byte(password), salt, km.iterations, 32, sha256.New)

	// 3. 加密私钥
	ciphertext, err := xorCTR(key[:16], ethcrypto.FromECDSA(w.PrivateKey()), iv)
	if err != nil {
		return "", fmt.Errorf("encrypt private key: %w", err)
	}

	ks := &Keystore{
		Version: 1,
		ID:      uuid.NewString(),
		Address: w.Address().Hex(),
		Crypto: Crypto{
			Cipher:       "aes-128-ctr",
			CipherText:   hex.EncodeToString(ciphertext),
			CipherParams: CipherParams{IV: hex.EncodeToString(iv)},
			KDF:          "pbkdf2",
			KDFParams: KDFParams{
				C:     km.iterations,
				DKLen: 32,
				PRF:   "hmac-sha256",
				Salt:  hex.EncodeToString(salt),
			},
			MAC: hex.EncodeToString(computeMAC(key, ciphertext)),
		},
	}

	data, err := json.MarshalIndent(ks, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode keystore: %w", err)
	}
	keystorePath := km.path(w.Address())
	if err := os.WriteFile(keystorePath, data, 0600); err != nil {
		return "", fmt.Errorf("write keystore file: %w", err)
	}
	return keystorePath, nil
}

// Load 解密加载钱包
func (km *KeystoreManager) Load(address types.Address, password string) (Wallet, error) {
	data, err := os.ReadFile(km.path(address))
	if err != nil {
		return nil, fmt.Errorf("read keystore file: %w", err)
	}

	var ks Keystore
	if err := json.Unmarshal(data, &ks); err != nil {
		return nil, fmt.Errorf("parse keystore: %w", err)
	}
	if ks.Crypto.KDF != "pbkdf2" || ks.Crypto.Cipher != "aes-128-ctr" {
		return nil, fmt.Errorf("unsupported keystore: kdf=%s cipher=%s", ks.Crypto.KDF, ks.Crypto.Cipher)
	}

	salt, err := hex.DecodeString(ks.Crypto.KDFParams.Salt)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	iv, err := hex.DecodeString(ks.Crypto.CipherParams.IV)
	if err != nil {
		return nil, fmt.Errorf("decode iv: %w", err)
	}
	ciphertext, err := hex.DecodeString(ks.Crypto.CipherText)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	mac, err := hex.DecodeString(ks.Crypto.MAC)
	if err != nil {
		return nil, fmt.Errorf("decode mac: %w", err)
	}

	key := pbkdf2.Key([]byte(password), salt, ks.Crypto.KDFParams.C, 32, sha256.New)
	if !hmac.Equal(computeMAC(key, ciphertext), mac) {
		return nil, ErrInvalidPassword
	}

	plain, err := xorCTR(key[:16], ciphertext, iv)
	if err != nil {
		return nil, fmt.Errorf("decrypt private key: %w", err)
	}
	w, err := NewWalletFromBytes(plain)
	if err != nil {
		return nil, err
	}
	if w.Address() != address {
		return nil, fmt.Errorf("keystore address mismatch: file %s, key %s", address.Hex(), w.Address().Hex())
	}
	return w, nil
}

// List 列出 keystore 目录中的地址
func (km *KeystoreManager) List() ([]types.Address, error) {
	matches, err := filepath.Glob(filepath.Join(km.keystoreDir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list keystore dir: %w", err)
	}
	out := make([]types.Address, 0, len(matches))
	for _, m := range matches {
		name := filepath.Base(m)
		addr, err := types.ParseAddress(name[:len(name)-len(".json")])
		if err != nil {
			continue
		}
		out = append(out, addr)
	}
	return out, nil
}

func (km *KeystoreManager) path(address types.Address) string {
	return filepath.Join(km.keystoreDir, address.Hex()+".json")
}

func xorCTR(key, in, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(in))
	cipher.NewCTR(block, iv).XORKeyStream(out, in)
	return out, nil
}

// computeMAC keccak256(key[16:32] || ciphertext)
func computeMAC(key, ciphertext []byte) []byte {
	return ethcrypto.Keccak256(key[16:32], ciphertext)
}
