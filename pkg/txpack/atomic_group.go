package txpack

import (
	"fmt"

	"github.com/blocto/solana-go-sdk/common"
)

// AtomicGroup 表示一组必须落在同一笔交易里的有序指令。
// 组内指令按 Append 顺序上链，builder 永远不会把一个组拆到两笔交易里：
// 要么整组进同一笔交易，要么在构建期被整体拒绝。
type AtomicGroup struct {
	payer  common.PublicKey // 该组的 fee payer（打包时同 payer 的组才可合并）
	limits Limits
	ixs    []Instruction

	// Append 时维护的缓存，避免每次全量重算
	units   uint32             // 聚合 CU 估算
	signers []common.PublicKey // 去重后的必需签名者，保持首次出现顺序
	sealed  bool               // 交给 builder 后置为 true，禁止继续生长
}

// NewAtomicGroup 创建空组。payer 恒为必需签名者。
func NewAtomicGroup(payer common.PublicKey) *AtomicGroup {
	return NewAtomicGroupWithLimits(payer, DefaultLimits())
}

// NewAtomicGroupWithLimits 创建使用自定义限制的空组。
func NewAtomicGroupWithLimits(payer common.PublicKey, limits Limits) *AtomicGroup {
	return &AtomicGroup{
		payer:   payer,
		limits:  limits.normalize(),
		signers: []common.PublicKey{payer},
	}
}

// Append 追加一条指令并更新缓存的尺寸/CU 估算。
// 若追加后该组独占一笔交易也无法满足限制，返回 ErrSizeExceeded 且组保持不变。
func (g *AtomicGroup) Append(ix Instruction) error {
	if g.sealed {
		return ErrGroupSealed
	}

	next := append(g.ixs[:len(g.ixs):len(g.ixs)], ix)
	if err := g.checkSolo(next); err != nil {
		return err
	}

	g.ixs = next
	g.units = aggregateUnits(g.ixs)
	for _, key := range ix.SignerKeys() {
		g.addSigner(key)
	}
	return nil
}

// Extend 原子地追加多条指令：任何一条越限则整体失败，组保持不变。
func (g *AtomicGroup) Extend(ixs ...Instruction) error {
	if g.sealed {
		return ErrGroupSealed
	}

	next := append(g.ixs[:len(g.ixs):len(g.ixs)], ixs...)
	if err := g.checkSolo(next); err != nil {
		return err
	}

	g.ixs = next
	g.units = aggregateUnits(g.ixs)
	for _, ix := range ixs {
		for _, key := range ix.SignerKeys() {
			g.addSigner(key)
		}
	}
	return nil
}

// checkSolo 校验指令序列独占一笔交易（含 compute budget 指令）时是否满足限制。
func (g *AtomicGroup) checkSolo(ixs []Instruction) error {
	if len(ixs) > g.limits.MaxInstructionsPerTx {
		return fmt.Errorf("%w: %d instructions > max %d", ErrSizeExceeded, len(ixs), g.limits.MaxInstructionsPerTx)
	}
	if size := transactionSize(g.payer, ixs, true, 0); size > g.limits.MaxTransactionSize {
		return fmt.Errorf("%w: %d bytes > max %d", ErrSizeExceeded, size, g.limits.MaxTransactionSize)
	}
	var total uint64
	for _, ix := range ixs {
		total += uint64(ix.EstimatedUnits())
	}
	if total > uint64(g.limits.MaxComputeUnits) {
		return fmt.Errorf("%w: %d compute units > max %d", ErrSizeExceeded, total, g.limits.MaxComputeUnits)
	}
	return nil
}

func (g *AtomicGroup) addSigner(key common.PublicKey) {
	for _, s := range g.signers {
		if s == key {
			return
		}
	}
	g.signers = append(g.signers, key)
}

// seal 由 builder 调用，此后组只读。
func (g *AtomicGroup) seal() { g.sealed = true }

// Payer 返回该组的 fee payer。
func (g *AtomicGroup) Payer() common.PublicKey { return g.payer }

// Len 返回组内指令条数。
func (g *AtomicGroup) Len() int { return len(g.ixs) }

// IsEmpty 报告组是否为空。
func (g *AtomicGroup) IsEmpty() bool { return len(g.ixs) == 0 }

// ComputeUnits 返回聚合 CU 估算。
func (g *AtomicGroup) ComputeUnits() uint32 { return g.units }

// TransactionSize 返回该组独占一笔交易（含 compute budget 指令）时的序列化大小估算。
func (g *AtomicGroup) TransactionSize() int {
	return transactionSize(g.payer, g.ixs, true, 0)
}

// Instructions 返回组内指令的拷贝，保持追加顺序。
func (g *AtomicGroup) Instructions() []Instruction {
	out := make([]Instruction, len(g.ixs))
	copy(out, g.ixs)
	return out
}

// RequiredSigners 返回该组所有指令标记为 signer 的账户并集（含 payer），
// 去重且保持首次出现顺序。
func (g *AtomicGroup) RequiredSigners() []common.PublicKey {
	out := make([]common.PublicKey, len(g.signers))
	copy(out, g.signers)
	return out
}
