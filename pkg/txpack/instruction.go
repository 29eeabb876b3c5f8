package txpack

import (
	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
)

// Instruction 表示一条协议级指令：目标程序、账户列表（保持原始顺序）与指令数据。
// 构造后不可变，Append 到组里的是值拷贝。
type Instruction struct {
	ProgramID common.PublicKey    // 所调用的程序地址
	Accounts  []types.AccountMeta // 账户元数据列表，顺序即上链顺序
	Data      []byte              // 指令数据（原始字节，不做解释）
	Units     uint32              // 该指令的 CU 估算；0 表示使用 DefaultInstructionUnits
}

// NewInstruction 构造一条指令，account/data 均拷贝一份，避免调用方后续修改造成污染。
func NewInstruction(programID common.PublicKey, accounts []types.AccountMeta, data []byte) Instruction {
	accs := make([]types.AccountMeta, len(accounts))
	copy(accs, accounts)
	d := make([]byte, len(data))
	copy(d, data)
	return Instruction{ProgramID: programID, Accounts: accs, Data: d}
}

// WithUnits 返回带 CU 估算的副本。估算用于打包与 compute budget 指令，不影响指令本身的编码。
func (ix Instruction) WithUnits(units uint32) Instruction {
	ix.Units = units
	return ix
}

// EstimatedUnits 返回该指令参与打包时使用的 CU 估算。
func (ix Instruction) EstimatedUnits() uint32 {
	if ix.Units == 0 {
		return DefaultInstructionUnits
	}
	return ix.Units
}

// SignerKeys 返回该指令标记为 signer 的账户公钥（保持出现顺序，不去重）。
func (ix Instruction) SignerKeys() []common.PublicKey {
	var keys []common.PublicKey
	for _, acc := range ix.Accounts {
		if acc.IsSigner {
			keys = append(keys, acc.PubKey)
		}
	}
	return keys
}

// toSDK 转成 blocto SDK 的指令结构，供 message 编译使用。
func (ix Instruction) toSDK() types.Instruction {
	return types.Instruction{
		ProgramID: ix.ProgramID,
		Accounts:  ix.Accounts,
		Data:      ix.Data,
	}
}

// toSDKInstructions 批量转换。
func toSDKInstructions(ixs []Instruction) []types.Instruction {
	out := make([]types.Instruction, 0, len(ixs))
	for _, ix := range ixs {
		out = append(out, ix.toSDK())
	}
	return out
}
