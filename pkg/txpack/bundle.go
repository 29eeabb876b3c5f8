package txpack

import (
	"fmt"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
)

// lamportsPerSignature 当前网络的固定签名费。
const lamportsPerSignature = 5000

// BundleOptions 控制打包行为。
type BundleOptions struct {
	Limits              Limits
	ForceOneTransaction bool   // 内容放不进单笔交易时直接报错，而不是拆成多笔
	ComputeUnitPrice    uint64 // 优先费（micro-lamports per CU），0 表示不附加
}

// Draft 表示一笔已打包但尚未 finalize 的交易：指令序列、聚合 CU、必需签名者已定，
// blockhash 与 compute budget 指令推迟到签名前才附加，缩短过期窗口。
type Draft struct {
	Seq     int              // 在 bundle 中的序号，从 0 开始
	Payer   common.PublicKey // fee payer
	units   uint32
	cuPrice uint64
	ixs     []Instruction
	signers []common.PublicKey
}

// Instructions 返回打包进该交易的指令（不含 compute budget 指令），保持输入顺序。
func (d *Draft) Instructions() []Instruction {
	out := make([]Instruction, len(d.ixs))
	copy(out, d.ixs)
	return out
}

// ComputeUnits 返回聚合 CU 估算（未加安全余量）。
func (d *Draft) ComputeUnits() uint32 { return d.units }

// RequiredSigners 返回该交易的必需签名者（去重，payer 在首位）。
func (d *Draft) RequiredSigners() []common.PublicKey {
	out := make([]common.PublicKey, len(d.signers))
	copy(out, d.signers)
	return out
}

// Message 以给定 blockhash finalize 出可签名的 message：
// compute budget 指令在前，随后是各组指令。
func (d *Draft) Message(recentBlockhash string) types.Message {
	all := append(budgetInstructionsFor(d.units, d.cuPrice), d.ixs...)
	return types.NewMessage(types.NewMessageParam{
		FeePayer:        d.Payer,
		RecentBlockhash: recentBlockhash,
		Instructions:    toSDKInstructions(all),
	})
}

// MessageWithUnits 同 Message，但使用显式的 CU 上限（例如 simulate 得到的精确值）。
func (d *Draft) MessageWithUnits(recentBlockhash string, units uint32) types.Message {
	all := append(budgetInstructionsFor(units, d.cuPrice), d.ixs...)
	return types.NewMessage(types.NewMessageParam{
		FeePayer:        d.Payer,
		RecentBlockhash: recentBlockhash,
		Instructions:    toSDKInstructions(all),
	})
}

// Bundle 表示按输入组顺序打包出的交易序列。
type Bundle struct {
	Drafts  []*Draft
	Options BundleOptions
}

// Len 返回 bundle 内的交易笔数。
func (b *Bundle) Len() int { return len(b.Drafts) }

// EstimateFee 估算整个 bundle 的执行费用（lamports）：
// 每笔交易按签名数收取固定签名费，另加按声明 CU 计的优先费。
func (b *Bundle) EstimateFee() uint64 {
	var total uint64
	for _, d := range b.Drafts {
		total += uint64(len(d.signers)) * lamportsPerSignature
		if b.Options.ComputeUnitPrice > 0 {
			// 优先费单位是 micro-lamports / CU
			total += uint64(budgetLimitWithMargin(d.units)) * b.Options.ComputeUnitPrice / 1_000_000
		}
	}
	return total
}

// BundleBuilder 将有序的 AtomicGroup 序列打包成最少数量的交易。
//
// 打包策略是保序的 first-fit：逐组尝试并入当前在建交易，放不下就封口、
// 开新交易。绝不跨组重排——后面的组经常依赖前面的组改写过的账户状态，
// 全局最优装箱需要理解跨组数据依赖，这里刻意不做，依赖边界由调用方
// 通过组划分表达。
type BundleBuilder struct {
	opts   BundleOptions
	drafts []*Draft
	cur    *Draft
}

// NewBundleBuilder 创建 builder。
func NewBundleBuilder(opts BundleOptions) *BundleBuilder {
	opts.Limits = opts.Limits.normalize()
	return &BundleBuilder{opts: opts}
}

// Push 追加一个组，等价于 PushWithOpts(g, false)。
func (b *BundleBuilder) Push(g *AtomicGroup) error {
	return b.PushWithOpts(g, false)
}

// PushWithOpts 追加一个组。newTransaction 为 true 时强制另起一笔交易。
// 组独占一笔交易仍越限时返回 ErrSizeExceeded，整个 bundle 构建失败。
func (b *BundleBuilder) PushWithOpts(g *AtomicGroup, newTransaction bool) error {
	if g.IsEmpty() {
		return nil
	}
	if err := b.validate(g); err != nil {
		return err
	}
	g.seal()

	if b.cur != nil && !newTransaction && b.fits(b.cur, g) {
		b.merge(b.cur, g)
		return nil
	}

	// 另起一笔交易
	if b.cur != nil && b.opts.ForceOneTransaction {
		return fmt.Errorf("%w: force_one_transaction is set", ErrTooManyTransactions)
	}
	b.closeCurrent()
	b.cur = &Draft{
		Seq:     len(b.drafts),
		Payer:   g.Payer(),
		units:   g.ComputeUnits(),
		cuPrice: b.opts.ComputeUnitPrice,
		ixs:     g.Instructions(),
		signers: g.RequiredSigners(),
	}
	return nil
}

// PushAll 按顺序追加多个组，遇到错误立即返回。
func (b *BundleBuilder) PushAll(groups ...*AtomicGroup) error {
	for _, g := range groups {
		if err := b.Push(g); err != nil {
			return err
		}
	}
	return nil
}

// validate 用 builder 自身的限制复核组独占一笔交易的可行性。
// 组构造时可能使用了更宽松的 Limits，这里以打包配置为准。
func (b *BundleBuilder) validate(g *AtomicGroup) error {
	if g.Len() > b.opts.Limits.MaxInstructionsPerTx {
		return fmt.Errorf("%w: %d instructions > max %d", ErrSizeExceeded, g.Len(), b.opts.Limits.MaxInstructionsPerTx)
	}
	if size := transactionSize(g.Payer(), g.ixs, true, b.opts.ComputeUnitPrice); size > b.opts.Limits.MaxTransactionSize {
		return fmt.Errorf("%w: %d bytes > max %d", ErrSizeExceeded, size, b.opts.Limits.MaxTransactionSize)
	}
	if g.ComputeUnits() > b.opts.Limits.MaxComputeUnits {
		return fmt.Errorf("%w: %d compute units > max %d", ErrSizeExceeded, g.ComputeUnits(), b.opts.Limits.MaxComputeUnits)
	}
	return nil
}

// fits 判断组并入在建交易后是否仍满足限制。payer 不同的组不合并。
func (b *BundleBuilder) fits(cur *Draft, g *AtomicGroup) bool {
	if cur.Payer != g.Payer() {
		return false
	}
	merged := append(cur.ixs[:len(cur.ixs):len(cur.ixs)], g.ixs...)
	if len(merged) > b.opts.Limits.MaxInstructionsPerTx {
		return false
	}
	if transactionSize(cur.Payer, merged, true, b.opts.ComputeUnitPrice) > b.opts.Limits.MaxTransactionSize {
		return false
	}
	if uint64(cur.units)+uint64(g.ComputeUnits()) > uint64(b.opts.Limits.MaxComputeUnits) {
		return false
	}
	return true
}

func (b *BundleBuilder) merge(cur *Draft, g *AtomicGroup) {
	cur.ixs = append(cur.ixs, g.ixs...)
	cur.units = aggregateUnits(cur.ixs)
	for _, key := range g.RequiredSigners() {
		exists := false
		for _, s := range cur.signers {
			if s == key {
				exists = true
				break
			}
		}
		if !exists {
			cur.signers = append(cur.signers, key)
		}
	}
}

func (b *BundleBuilder) closeCurrent() {
	if b.cur != nil {
		b.drafts = append(b.drafts, b.cur)
		b.cur = nil
	}
}

// Build 封口并返回 bundle。builder 此后不可复用。
func (b *BundleBuilder) Build() *Bundle {
	b.closeCurrent()
	return &Bundle{Drafts: b.drafts, Options: b.opts}
}
