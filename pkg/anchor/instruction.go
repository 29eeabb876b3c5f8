// Package anchor 构造 anchor 风格的指令数据：8 字节方法判别符 + borsh 编码的参数。
package anchor

import (
	"crypto/sha256"
	"fmt"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/near/borsh-go"

	"github.com/gmsol-labs/gmx-solana/pkg/txpack"
)

// Discriminator 计算 anchor 方法判别符：sha256("<namespace>:<name>") 的前 8 字节。
func Discriminator(namespace, name string) []byte {
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	return sum[:8]
}

// InstructionData 生成 global namespace 方法的指令数据。
// args 为 nil 时只含判别符。
func InstructionData(name string, args any) ([]byte, error) {
	data := Discriminator("global", name)
	if args == nil {
		return data, nil
	}
	encoded, err := borsh.Serialize(args)
	if err != nil {
		return nil, fmt.Errorf("borsh serialize args for %q: %w", name, err)
	}
	return append(data, encoded...), nil
}

// NewInstruction 构造调用 anchor 程序方法的指令。
func NewInstruction(programID common.PublicKey, accounts []types.AccountMeta, name string, args any) (txpack.Instruction, error) {
	data, err := InstructionData(name, args)
	if err != nil {
		return txpack.Instruction{}, err
	}
	return txpack.NewInstruction(programID, accounts, data), nil
}
