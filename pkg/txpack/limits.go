package txpack

// Solana 协议硬限制，必须与目标网络完全一致。
const (
	// MaxTransactionSize 单笔交易序列化后的最大字节数（PACKET_DATA_SIZE）。
	// 来源：IPv6 最小 MTU 1280 - 40 字节 IPv6 头 - 8 字节 UDP 头。
	MaxTransactionSize = 1232

	// MaxComputeUnits 网络允许的单笔交易 compute unit 上限。
	MaxComputeUnits uint32 = 1_400_000

	// DefaultMaxInstructionsPerTx 单笔交易默认的最大指令条数（不含 compute budget 指令）。
	DefaultMaxInstructionsPerTx = 14

	// DefaultInstructionUnits 指令未显式声明 CU 估算时使用的保守默认值。
	DefaultInstructionUnits uint32 = 200_000

	// computeMarginPercent 下发 SetComputeUnitLimit 时在聚合估算之上附加的安全余量（百分比）。
	computeMarginPercent = 10
)

// Limits 表示打包交易时生效的尺寸与算力上限。
type Limits struct {
	MaxTransactionSize   int    // 序列化后的交易最大字节数，上限 MaxTransactionSize
	MaxComputeUnits      uint32 // 单笔交易 CU 上限，上限 MaxComputeUnits
	MaxInstructionsPerTx int    // 单笔交易最大指令条数（不含 compute budget 指令）
}

// DefaultLimits 返回与主网一致的默认限制。
func DefaultLimits() Limits {
	return Limits{
		MaxTransactionSize:   MaxTransactionSize,
		MaxComputeUnits:      MaxComputeUnits,
		MaxInstructionsPerTx: DefaultMaxInstructionsPerTx,
	}
}

// normalize 将零值字段回填为默认值，并把越界配置钳制到协议上限。
func (l Limits) normalize() Limits {
	if l.MaxTransactionSize <= 0 || l.MaxTransactionSize > MaxTransactionSize {
		l.MaxTransactionSize = MaxTransactionSize
	}
	if l.MaxComputeUnits == 0 || l.MaxComputeUnits > MaxComputeUnits {
		l.MaxComputeUnits = MaxComputeUnits
	}
	if l.MaxInstructionsPerTx <= 0 {
		l.MaxInstructionsPerTx = DefaultMaxInstructionsPerTx
	}
	return l
}
