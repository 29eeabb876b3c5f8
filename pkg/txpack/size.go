package txpack

import (
	"github.com/blocto/solana-go-sdk/common"
)

// 本文件按 legacy message 线格式估算交易序列化后的大小。
// 打包阶段还没有 blockhash，无法直接序列化真实交易，但 legacy 格式下
// 大小只取决于签名数、去重后的账户数和各指令的账户/数据长度，可以精确推出。

// compactU16Len 返回 compact-u16（shortvec）编码所需的字节数。
func compactU16Len(n int) int {
	switch {
	case n < 0x80:
		return 1
	case n < 0x4000:
		return 2
	default:
		return 3
	}
}

// messageAccounts 收集一笔交易涉及的全部去重账户（fee payer、指令账户、程序地址），
// 并统计其中需要签名的账户数。返回顺序与真实 message 的排序无关，只用于计数。
func messageAccounts(payer common.PublicKey, ixs []Instruction) (unique []common.PublicKey, numSigners int) {
	seen := make(map[common.PublicKey]bool)
	signer := make(map[common.PublicKey]bool)

	add := func(key common.PublicKey, isSigner bool) {
		if !seen[key] {
			seen[key] = true
			unique = append(unique, key)
		}
		if isSigner && !signer[key] {
			signer[key] = true
			numSigners++
		}
	}

	add(payer, true)
	for _, ix := range ixs {
		for _, acc := range ix.Accounts {
			add(acc.PubKey, acc.IsSigner)
		}
		add(ix.ProgramID, false)
	}
	return unique, numSigners
}

// transactionSize 估算指令序列打包为一笔 legacy 交易后的序列化字节数。
// withBudget 为 true 时把 finalize 阶段追加的 compute budget 指令也计入。
func transactionSize(payer common.PublicKey, ixs []Instruction, withBudget bool, cuPrice uint64) int {
	all := ixs
	if withBudget {
		all = append(budgetInstructionsFor(aggregateUnits(ixs), cuPrice), ixs...)
	}

	accounts, numSigners := messageAccounts(payer, all)

	// 签名区 + message header + 账户表 + blockhash
	size := compactU16Len(numSigners) + numSigners*64
	size += 3
	size += compactU16Len(len(accounts)) + len(accounts)*32
	size += 32

	// 指令表
	size += compactU16Len(len(all))
	for _, ix := range all {
		size += 1
		size += compactU16Len(len(ix.Accounts)) + len(ix.Accounts)
		size += compactU16Len(len(ix.Data)) + len(ix.Data)
	}
	return size
}

// aggregateUnits 返回指令序列的聚合 CU 估算（带上限钳制，防止溢出）。
func aggregateUnits(ixs []Instruction) uint32 {
	var total uint64
	for _, ix := range ixs {
		total += uint64(ix.EstimatedUnits())
	}
	if total > uint64(MaxComputeUnits) {
		return MaxComputeUnits
	}
	return uint32(total)
}
