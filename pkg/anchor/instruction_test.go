package anchor

import (
	"testing"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/near/borsh-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscriminator(t *testing.T) {
	// anchor 标准 initialize 方法的已知判别符
	want := []byte{0xaf, 0xaf, 0x6d, 0x1f, 0x0d, 0x98, 0x9b, 0xed}
	assert.Equal(t, want, Discriminator("global", "initialize"))
	assert.Equal(t, 8, len(Discriminator("global", "swap")))
	assert.NotEqual(t, Discriminator("global", "swap"), Discriminator("global", "deposit"))
}

func TestInstructionData_NoArgs(t *testing.T) {
	data, err := InstructionData("initialize", nil)
	require.NoError(t, err)
	assert.Equal(t, Discriminator("global", "initialize"), data)
}

func TestInstructionData_WithArgs(t *testing.T) {
	type swapArgs struct {
		AmountIn     uint64
		MinAmountOut uint64
	}
	args := swapArgs{AmountIn: 1000, MinAmountOut: 990}

	data, err := InstructionData("swap", args)
	require.NoError(t, err)

	assert.Equal(t, Discriminator("global", "swap"), data[:8])

	var decoded swapArgs
	require.NoError(t, borsh.Deserialize(&decoded, data[8:]))
	assert.Equal(t, args, decoded)
}

func TestNewInstruction(t *testing.T) {
	var p [32]byte
	p[0] = 7
	program := common.PublicKeyFromBytes(p[:])
	var a [32]byte
	a[0] = 8
	accounts := []types.AccountMeta{
		{PubKey: common.PublicKeyFromBytes(a[:]), IsSigner: true, IsWritable: true},
	}

	type args struct{ Amount uint64 }
	ix, err := NewInstruction(program, accounts, "deposit", args{Amount: 42})
	require.NoError(t, err)

	assert.Equal(t, program, ix.ProgramID)
	assert.Equal(t, accounts, ix.Accounts)
	assert.Equal(t, Discriminator("global", "deposit"), ix.Data[:8])
}
