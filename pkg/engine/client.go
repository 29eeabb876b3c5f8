// Package engine 按 builder 输出顺序签名、提交并确认 bundle 内的交易，
// 处理过期 blockhash 重建、瞬时网络错误重试，并给出逐笔结果报告。
package engine

import (
	"context"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/types"
)

// Commitment 表示确认级别。
type Commitment string

const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

// rank 返回确认级别的偏序，用于判断状态是否已达到目标级别。
func (c Commitment) rank() int {
	switch c {
	case CommitmentProcessed:
		return 1
	case CommitmentConfirmed:
		return 2
	case CommitmentFinalized:
		return 3
	default:
		return 0
	}
}

// reached 报告 c 是否不低于 target。
func (c Commitment) reached(target Commitment) bool {
	return c.rank() >= target.rank()
}

// SimulationResult 是交易模拟的裁剪结果。
type SimulationResult struct {
	Err           any      // 链上错误，nil 表示模拟成功
	Logs          []string // 程序日志
	UnitsConsumed uint64   // 实际消耗的 compute units
}

// SignatureStatus 是签名状态查询的裁剪结果。
type SignatureStatus struct {
	Slot          uint64
	Confirmations *uint64
	Commitment    Commitment
	Err           any // 链上错误，nil 表示执行成功
}

// Client 是引擎消费的窄 RPC 接口。显式传入而不是藏在全局状态里，
// 多个并发 bundle 可共享同一实例，测试则注入 fake 实现。
type Client interface {
	// LatestBlockhash 获取最新 blockhash。
	LatestBlockhash(ctx context.Context) (string, error)
	// SendTransaction 广播已签名交易，返回交易签名。
	SendTransaction(ctx context.Context, tx types.Transaction) (string, error)
	// SimulateTransaction 模拟执行交易。
	SimulateTransaction(ctx context.Context, tx types.Transaction) (SimulationResult, error)
	// SignatureStatuses 批量查询签名状态；未见过的签名对应位置为 nil。
	SignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error)
}

// RPCClient 把 blocto SDK 的 RPC 客户端适配成 Client 接口。
type RPCClient struct {
	c *client.Client
}

// NewRPCClient 按 endpoint 创建 RPC 适配器。
func NewRPCClient(endpoint string) *RPCClient {
	return &RPCClient{c: client.NewClient(endpoint)}
}

// NewRPCClientFrom 复用已有的 SDK 客户端。
func NewRPCClientFrom(c *client.Client) *RPCClient {
	return &RPCClient{c: c}
}

func (r *RPCClient) LatestBlockhash(ctx context.Context) (string, error) {
	v, err := r.c.GetLatestBlockhash(ctx)
	if err != nil {
		return "", err
	}
	return v.Blockhash, nil
}

func (r *RPCClient) SendTransaction(ctx context.Context, tx types.Transaction) (string, error) {
	return r.c.SendTransaction(ctx, tx)
}

func (r *RPCClient) SimulateTransaction(ctx context.Context, tx types.Transaction) (SimulationResult, error) {
	v, err := r.c.SimulateTransaction(ctx, tx)
	if err != nil {
		return SimulationResult{}, err
	}
	out := SimulationResult{Err: v.Err, Logs: v.Logs}
	if v.UnitConsumed != nil {
		out.UnitsConsumed = *v.UnitConsumed
	}
	return out, nil
}

func (r *RPCClient) SignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error) {
	statuses, err := r.c.GetSignatureStatuses(ctx, signatures)
	if err != nil {
		return nil, err
	}
	out := make([]*SignatureStatus, len(statuses))
	for i, st := range statuses {
		if st == nil {
			continue
		}
		mapped := &SignatureStatus{
			Slot:          st.Slot,
			Confirmations: st.Confirmations,
			Err:           st.Err,
		}
		if st.ConfirmationStatus != nil {
			mapped.Commitment = Commitment(*st.ConfirmationStatus)
		}
		out[i] = mapped
	}
	return out, nil
}
