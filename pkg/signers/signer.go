// Package signers 把异构的签名后端（本地私钥、硬件钱包、远程协签、多签代理）
// 统一成单一的签名能力接口，并提供按公钥索引的注册表。
package signers

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/mr-tron/base58"
)

// Signer 表示"能为公钥 K 产生合法签名"这一能力。
// Sign 对序列化后的 message 字节签名；实现不要求可重入，
// 对同一物理签名器的并发调用由调用方自行串行化。
type Signer interface {
	Pubkey() common.PublicKey
	Sign(ctx context.Context, message []byte) ([]byte, error)
}

// SigningError 表示签名后端拒签或出错（设备拒绝、超时等）。
// 引擎在发送任何交易之前遇到该错误会中止整个 bundle。
type SigningError struct {
	Pubkey common.PublicKey
	Err    error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("signing failed for %s: %v", e.Pubkey.ToBase58(), e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }

// Local 是最常见的本地私钥签名器。
type Local struct {
	account types.Account
}

// NewLocal 用已有账户构造本地签名器。
func NewLocal(account types.Account) *Local {
	return &Local{account: account}
}

// LocalFromBase58 从 base58 编码的 64 字节私钥构造本地签名器（钱包导出格式）。
func LocalFromBase58(key string) (*Local, error) {
	account, err := types.AccountFromBase58(key)
	if err != nil {
		return nil, fmt.Errorf("decode base58 private key: %w", err)
	}
	return &Local{account: account}, nil
}

// LocalFromSeed 从 32 字节 seed 构造本地签名器。
func LocalFromSeed(seed []byte) (*Local, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid seed length: got %d, want %d", len(seed), ed25519.SeedSize)
	}
	account, err := types.AccountFromSeed(seed)
	if err != nil {
		return nil, fmt.Errorf("account from seed: %w", err)
	}
	return &Local{account: account}, nil
}

func (l *Local) Pubkey() common.PublicKey { return l.account.PublicKey }

func (l *Local) Sign(_ context.Context, message []byte) ([]byte, error) {
	return ed25519.Sign(l.account.PrivateKey, message), nil
}

// Func 用闭包承载签名能力，用于远程协签、硬件设备或多签代理等后端。
// 捕获后可跨重试复用：交互式签名器（如硬件钱包）把一次授权的结果
// 缓存进闭包，重试重签时不必再次弹出确认。
type Func struct {
	pubkey common.PublicKey
	sign   func(ctx context.Context, message []byte) ([]byte, error)
}

// NewFunc 构造闭包签名器。
func NewFunc(pubkey common.PublicKey, sign func(ctx context.Context, message []byte) ([]byte, error)) *Func {
	return &Func{pubkey: pubkey, sign: sign}
}

func (f *Func) Pubkey() common.PublicKey { return f.pubkey }

func (f *Func) Sign(ctx context.Context, message []byte) ([]byte, error) {
	sig, err := f.sign(ctx, message)
	if err != nil {
		return nil, &SigningError{Pubkey: f.pubkey, Err: err}
	}
	return sig, nil
}

// FormatSignature 把 64 字节签名编码成 base58 字符串（即链上的交易签名格式）。
func FormatSignature(sig []byte) string {
	return base58.Encode(sig)
}
